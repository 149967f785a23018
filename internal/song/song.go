// Package song holds the immutable, parsed form of a sequence: notes and
// automation per channel, plus the tempo and time-signature map that places
// every tick on the timeline.
package song

import (
	"sort"

	"github.com/cbegin/seqplay-go/internal/timing"
)

// DrumChannel is the General MIDI percussion channel (0-based).
const DrumChannel = 9

type Note struct {
	Pitch         int
	Velocity      float64
	StartTick     int
	DurationTicks int
	EndTick       int
	StartTime     float64
	Duration      float64
	EndTime       float64
}

// PitchBend values are normalized to [-1, 1].
type PitchBend struct {
	Tick  int
	Time  float64
	Value float64
}

// ControlChange values are normalized to [0, 1].
type ControlChange struct {
	Controller int
	Tick       int
	Time       float64
	Value      float64
}

type Aftertouch struct {
	Tick  int
	Time  float64
	Value float64
}

type NoteAftertouch struct {
	Pitch int
	Tick  int
	Time  float64
	Value float64
}

// Track is the material of one MIDI channel within one file track.
type Track struct {
	Name              string
	Channel           int
	Program           int
	IsDrum            bool
	Notes             []Note
	PitchBends        []PitchBend
	ControlChanges    []ControlChange
	ChannelAftertouch []Aftertouch
	NoteAftertouch    []NoteAftertouch
}

// Empty reports whether the track carries no events at all.
func (t *Track) Empty() bool {
	return len(t.Notes) == 0 && len(t.PitchBends) == 0 && len(t.ControlChanges) == 0 &&
		len(t.ChannelAftertouch) == 0 && len(t.NoteAftertouch) == 0
}

type Sequence struct {
	Name            string
	TicksPerQuarter int
	DurationTicks   int
	DurationSeconds float64
	Tempos          []timing.Tempo
	TimeSignatures  []timing.TimeSignature
	Tracks          []Track

	timing *timing.Map
}

// Timing returns the tempo and measure map of the sequence.
func (s *Sequence) Timing() *timing.Map { return s.timing }

// Channels returns the distinct channels used by the tracks, ascending.
func (s *Sequence) Channels() []int {
	seen := map[int]bool{}
	var out []int
	for _, t := range s.Tracks {
		if !seen[t.Channel] {
			seen[t.Channel] = true
			out = append(out, t.Channel)
		}
	}
	sort.Ints(out)
	return out
}

// NoteCount is the total number of notes across all tracks.
func (s *Sequence) NoteCount() int {
	n := 0
	for _, t := range s.Tracks {
		n += len(t.Notes)
	}
	return n
}

// Source is the tick-only description a Sequence is built from.
type Source struct {
	Name            string
	TicksPerQuarter int
	// DurationTicks is derived from the last event when zero.
	DurationTicks  int
	Tempos         []timing.Tempo
	TimeSignatures []timing.TimeSignature
	Tracks         []Track
}

// New builds a Sequence from tick positions, filling every time field from
// the tempo map. The tracks in src are copied, so src may be reused.
func New(src Source) *Sequence {
	tracks := make([]Track, len(src.Tracks))
	for i, t := range src.Tracks {
		t.Notes = append([]Note(nil), t.Notes...)
		t.PitchBends = append([]PitchBend(nil), t.PitchBends...)
		t.ControlChanges = append([]ControlChange(nil), t.ControlChanges...)
		t.ChannelAftertouch = append([]Aftertouch(nil), t.ChannelAftertouch...)
		t.NoteAftertouch = append([]NoteAftertouch(nil), t.NoteAftertouch...)
		if t.Channel == DrumChannel {
			t.IsDrum = true
		}
		tracks[i] = t
	}

	duration := src.DurationTicks
	if duration <= 0 {
		duration = lastTick(tracks)
	}
	m := timing.New(timing.Source{
		TicksPerQuarter: src.TicksPerQuarter,
		DurationTicks:   duration,
		Tempos:          src.Tempos,
		TimeSignatures:  src.TimeSignatures,
	})
	sec := func(tick int) float64 { return m.TicksToSeconds(float64(tick)) }

	for i := range tracks {
		t := &tracks[i]
		for j := range t.Notes {
			n := &t.Notes[j]
			if n.EndTick < n.StartTick {
				n.EndTick = n.StartTick + n.DurationTicks
			}
			n.DurationTicks = n.EndTick - n.StartTick
			n.StartTime = sec(n.StartTick)
			n.EndTime = sec(n.EndTick)
			n.Duration = n.EndTime - n.StartTime
		}
		sort.SliceStable(t.Notes, func(a, b int) bool { return t.Notes[a].StartTick < t.Notes[b].StartTick })
		for j := range t.PitchBends {
			t.PitchBends[j].Time = sec(t.PitchBends[j].Tick)
		}
		sort.SliceStable(t.PitchBends, func(a, b int) bool { return t.PitchBends[a].Tick < t.PitchBends[b].Tick })
		for j := range t.ControlChanges {
			t.ControlChanges[j].Time = sec(t.ControlChanges[j].Tick)
		}
		sort.SliceStable(t.ControlChanges, func(a, b int) bool { return t.ControlChanges[a].Tick < t.ControlChanges[b].Tick })
		for j := range t.ChannelAftertouch {
			t.ChannelAftertouch[j].Time = sec(t.ChannelAftertouch[j].Tick)
		}
		sort.SliceStable(t.ChannelAftertouch, func(a, b int) bool { return t.ChannelAftertouch[a].Tick < t.ChannelAftertouch[b].Tick })
		for j := range t.NoteAftertouch {
			t.NoteAftertouch[j].Time = sec(t.NoteAftertouch[j].Tick)
		}
		sort.SliceStable(t.NoteAftertouch, func(a, b int) bool { return t.NoteAftertouch[a].Tick < t.NoteAftertouch[b].Tick })
	}

	return &Sequence{
		Name:            src.Name,
		TicksPerQuarter: m.TicksPerQuarter(),
		DurationTicks:   m.DurationTicks(),
		DurationSeconds: m.DurationSeconds(),
		Tempos:          m.Tempos(),
		TimeSignatures:  m.TimeSignatures(),
		Tracks:          tracks,
		timing:          m,
	}
}

func lastTick(tracks []Track) int {
	last := 0
	bump := func(t int) {
		if t > last {
			last = t
		}
	}
	for _, t := range tracks {
		for _, n := range t.Notes {
			bump(n.StartTick)
			bump(n.EndTick)
			bump(n.StartTick + n.DurationTicks)
		}
		for _, e := range t.PitchBends {
			bump(e.Tick)
		}
		for _, e := range t.ControlChanges {
			bump(e.Tick)
		}
		for _, e := range t.ChannelAftertouch {
			bump(e.Tick)
		}
		for _, e := range t.NoteAftertouch {
			bump(e.Tick)
		}
	}
	return last
}
