// Package timing converts between tick-based musical time and wall-clock
// seconds under a piecewise tempo map, and answers bar/beat and paging
// queries under a time-signature map.
//
// A Map is immutable after New and safe for concurrent readers.
package timing

import (
	"math"
	"sort"
)

const (
	DefaultTicksPerQuarter = 480
	DefaultBPM             = 120.0
	DefaultNumerator       = 4
	DefaultDenominator     = 4

	// roundTripEpsilon is added before flooring seconds back to ticks so that
	// SecondsToTicks(TicksToSeconds(t)) == t for every integer t in range.
	roundTripEpsilon = 1e-6
)

// Tempo sets the beats-per-minute from Tick onwards.
type Tempo struct {
	Tick int
	BPM  float64
}

// TimeSignature sets the meter from Tick onwards.
type TimeSignature struct {
	Tick        int
	Numerator   int
	Denominator int
}

// Source is the sparse input a Map is built from.
type Source struct {
	TicksPerQuarter int
	DurationTicks   int
	Tempos          []Tempo
	TimeSignatures  []TimeSignature
}

// Segment is a maximal tick range with constant tempo.
type Segment struct {
	StartTick    int
	EndTick      int
	BPM          float64
	StartSeconds float64
	EndSeconds   float64
}

// Map answers tick/second and bar/beat queries for one sequence.
type Map struct {
	tpq             int
	durationTicks   int
	durationSeconds float64
	tempos          []Tempo
	signatures      []TimeSignature
	segments        []Segment
	measures        []Measure
}

func New(src Source) *Map {
	m := &Map{
		tpq:           src.TicksPerQuarter,
		durationTicks: src.DurationTicks,
	}
	if m.tpq <= 0 {
		m.tpq = DefaultTicksPerQuarter
	}
	if m.durationTicks < 0 {
		m.durationTicks = 0
	}
	m.tempos = normalizeTempos(src.Tempos)
	m.signatures = normalizeSignatures(src.TimeSignatures)
	m.buildSegments()
	m.buildMeasures()
	return m
}

func (m *Map) TicksPerQuarter() int     { return m.tpq }
func (m *Map) DurationTicks() int       { return m.durationTicks }
func (m *Map) DurationSeconds() float64 { return m.durationSeconds }

// Segments returns a copy of the tempo segments.
func (m *Map) Segments() []Segment {
	return append([]Segment(nil), m.segments...)
}

// Tempos returns the normalized tempo events, tick-0 default included.
func (m *Map) Tempos() []Tempo {
	return append([]Tempo(nil), m.tempos...)
}

func normalizeTempos(in []Tempo) []Tempo {
	out := make([]Tempo, 0, len(in)+1)
	for _, t := range in {
		if t.Tick < 0 || !finite(t.BPM) || t.BPM <= 0 {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Tick < out[j].Tick })
	out = lastWins(out, func(i int) int { return out[i].Tick })
	if len(out) == 0 || out[0].Tick != 0 {
		out = append([]Tempo{{Tick: 0, BPM: DefaultBPM}}, out...)
	}
	return out
}

// lastWins compacts a tick-sorted slice in place keeping the last entry of
// every run of equal ticks.
func lastWins[T any](s []T, tick func(i int) int) []T {
	n := 0
	for i := range s {
		if n > 0 && tick(n-1) == tick(i) {
			s[n-1] = s[i]
			continue
		}
		s[n] = s[i]
		n++
	}
	return s[:n]
}

func (m *Map) buildSegments() {
	secondsPerTick := func(bpm float64) float64 { return 60 / (bpm * float64(m.tpq)) }
	var at float64
	for i, t := range m.tempos {
		if i > 0 && t.Tick >= m.durationTicks {
			break
		}
		end := m.durationTicks
		if i+1 < len(m.tempos) && m.tempos[i+1].Tick < end {
			end = m.tempos[i+1].Tick
		}
		if end < t.Tick {
			end = t.Tick
		}
		seg := Segment{
			StartTick:    t.Tick,
			EndTick:      end,
			BPM:          t.BPM,
			StartSeconds: at,
		}
		seg.EndSeconds = at + float64(end-t.Tick)*secondsPerTick(t.BPM)
		at = seg.EndSeconds
		m.segments = append(m.segments, seg)
	}
	m.durationSeconds = at
}

// TicksToSeconds converts a tick position into seconds from the start.
// NaN maps to 0, infinities and out-of-range values clamp to the sequence.
func (m *Map) TicksToSeconds(ticks float64) float64 {
	t := m.clampTicks(ticks)
	seg := m.segments[m.segmentForTick(t)]
	return seg.StartSeconds + (t-float64(seg.StartTick))/float64(m.tpq)*60/seg.BPM
}

// SecondsToTicks converts seconds into the integral tick at or before it.
func (m *Map) SecondsToTicks(seconds float64) int {
	s := sanitize(seconds, 0, m.durationSeconds)
	seg := m.segments[m.segmentForSeconds(s)]
	ticks := float64(seg.StartTick) + (s-seg.StartSeconds)*seg.BPM/60*float64(m.tpq)
	out := int(math.Floor(ticks + roundTripEpsilon))
	return clampInt(out, 0, m.durationTicks)
}

// TempoAtTicks returns the bpm in effect at ticks.
func (m *Map) TempoAtTicks(ticks float64) float64 {
	return m.segments[m.segmentForTick(m.clampTicks(ticks))].BPM
}

func (m *Map) clampTicks(ticks float64) float64 {
	return sanitize(ticks, 0, float64(m.durationTicks))
}

func (m *Map) segmentForTick(t float64) int {
	i := sort.Search(len(m.segments), func(i int) bool {
		return float64(m.segments[i].StartTick) > t
	})
	if i > 0 {
		i--
	}
	return i
}

func (m *Map) segmentForSeconds(s float64) int {
	i := sort.Search(len(m.segments), func(i int) bool {
		return m.segments[i].StartSeconds > s
	})
	if i > 0 {
		i--
	}
	return i
}

// sanitize maps NaN to lo, +Inf to hi, -Inf to lo and clamps into [lo, hi].
func sanitize(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v):
		return lo
	case math.IsInf(v, 1):
		return hi
	case math.IsInf(v, -1):
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
