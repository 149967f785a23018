package timing

import (
	"math"
	"sort"
)

// Measure marks a bar boundary. A boundary is also forced wherever the time
// signature changes mid-measure, so every bar has exactly one signature.
type Measure struct {
	StartTick     int
	TimeSignature TimeSignature
}

// BarBeat is a 1-based musical position. SubBeat1000 is the progress through
// the current beat quantized to [0, 999].
type BarBeat struct {
	Bar           int
	Beat          int
	SubBeat1000   int
	BeatsInBar    int
	TimeSignature TimeSignature
}

func normalizeSignatures(in []TimeSignature) []TimeSignature {
	out := make([]TimeSignature, 0, len(in)+1)
	for _, s := range in {
		if s.Tick < 0 || s.Numerator <= 0 || s.Denominator <= 0 {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Tick < out[j].Tick })
	out = lastWins(out, func(i int) int { return out[i].Tick })
	if len(out) == 0 || out[0].Tick != 0 {
		def := TimeSignature{Numerator: DefaultNumerator, Denominator: DefaultDenominator}
		out = append([]TimeSignature{def}, out...)
	}
	return out
}

func (m *Map) ticksPerBeat(sig TimeSignature) float64 {
	return float64(m.tpq) * 4 / float64(sig.Denominator)
}

func (m *Map) measureTicks(sig TimeSignature) int {
	n := int(math.Round(float64(sig.Numerator) * m.ticksPerBeat(sig)))
	if n < 1 {
		n = 1
	}
	return n
}

func (m *Map) buildMeasures() {
	for i, sig := range m.signatures {
		if i > 0 && sig.Tick >= m.durationTicks {
			break
		}
		end := m.durationTicks
		if i+1 < len(m.signatures) && m.signatures[i+1].Tick < end {
			end = m.signatures[i+1].Tick
		}
		length := m.measureTicks(sig)
		for at := sig.Tick; ; at += length {
			m.measures = append(m.measures, Measure{StartTick: at, TimeSignature: sig})
			if at+length >= end {
				break
			}
		}
	}
}

// Measures returns a copy of the measure boundaries.
func (m *Map) Measures() []Measure {
	return append([]Measure(nil), m.measures...)
}

// TimeSignatures returns the normalized signature events, tick-0 default included.
func (m *Map) TimeSignatures() []TimeSignature {
	return append([]TimeSignature(nil), m.signatures...)
}

func (m *Map) BarCount() int { return len(m.measures) }

// endExclusive clamps ticks into [0, duration) so a query exactly at the end
// reports the last tick of the final bar instead of a bar that doesn't exist.
func (m *Map) endExclusive(ticks float64) float64 {
	t := m.clampTicks(ticks)
	if m.durationTicks > 0 && t >= float64(m.durationTicks) {
		t = float64(m.durationTicks - 1)
	}
	return t
}

func (m *Map) measureIndex(t float64) int {
	i := sort.Search(len(m.measures), func(i int) bool {
		return float64(m.measures[i].StartTick) > t
	})
	if i > 0 {
		i--
	}
	return i
}

// BarBeatAtTicks reports the bar, beat and sub-beat at ticks.
func (m *Map) BarBeatAtTicks(ticks float64) BarBeat {
	t := m.endExclusive(ticks)
	idx := m.measureIndex(t)
	ms := m.measures[idx]
	sig := ms.TimeSignature
	pos := (t - float64(ms.StartTick)) / m.ticksPerBeat(sig)
	whole := math.Floor(pos)
	sub := int(math.Floor((pos - whole) * 1000))
	return BarBeat{
		Bar:           idx + 1,
		Beat:          clampInt(int(whole), 0, sig.Numerator-1) + 1,
		SubBeat1000:   clampInt(sub, 0, 999),
		BeatsInBar:    sig.Numerator,
		TimeSignature: sig,
	}
}

// TimeSignatureAtTicks returns the signature in effect at ticks.
func (m *Map) TimeSignatureAtTicks(ticks float64) TimeSignature {
	return m.measures[m.measureIndex(m.endExclusive(ticks))].TimeSignature
}

// BarStartTick returns the first tick of a 1-based bar. Bars before the
// first clamp to 0, bars past the last clamp to the duration.
func (m *Map) BarStartTick(bar float64) int {
	switch {
	case math.IsNaN(bar), bar < 2:
		return 0
	case math.IsInf(bar, 1):
		return m.durationTicks
	}
	idx := int(math.Floor(bar)) - 1
	if idx >= len(m.measures) {
		return m.durationTicks
	}
	return m.measures[idx].StartTick
}
