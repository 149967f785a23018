// Package channel tracks per-channel controller state during playback and
// maps it onto synthesis parameters.
package channel

import (
	"sort"
	"sync"
)

// Controller numbers understood by State.
const (
	CCModWheel     = 1
	CCDataEntryMSB = 6
	CCVolume       = 7
	CCPan          = 10
	CCExpression   = 11
	CCDataEntryLSB = 38
	CCSustain      = 64
	CCTremoloDepth = 92
	CCRPNLSB       = 100
	CCRPNMSB       = 101
	CCAllSoundOff  = 120
	CCResetAll     = 121
	CCAllNotesOff  = 123
)

const (
	DefaultBendRange = 2.0

	sustainThreshold = 0.5
	numMIDIChannels  = 16
)

// State is the controller record of one channel for one playback session.
type State struct {
	BendRange   float64 // semitones
	PitchBend   float64 // [-1, 1]
	ModWheel    float64
	Aftertouch  float64
	Tremolo     float64
	Volume      float64
	Expression  float64
	Pan         float64 // [-1, 1]
	SustainDown bool

	// sustained holds pitches whose note-off arrived while the pedal was down.
	sustained map[int]struct{}
}

// Defaults returns a freshly reset State.
func Defaults() State {
	var s State
	s.Reset()
	return s
}

// Reset restores every field to its session default.
func (s *State) Reset() {
	*s = State{
		BendRange:  DefaultBendRange,
		Volume:     1,
		Expression: 1,
		sustained:  map[int]struct{}{},
	}
}

// Effect reports which synthesis parameters a controller change touched.
type Effect struct {
	Gain        bool
	Pan         bool
	Depth       bool
	AllNotesOff bool
	// Release lists pitches to release now.
	Release []int
}

// ApplyControl updates the record for one controller value. RPN selectors
// and data entry are not handled here; the pitch bend range is derived ahead
// of time with DeriveBendRange.
func (s *State) ApplyControl(controller int, value float64) Effect {
	switch controller {
	case CCModWheel:
		s.ModWheel = clamp01(value)
		return Effect{Depth: true}
	case CCVolume:
		s.Volume = clamp01(value)
		return Effect{Gain: true}
	case CCExpression:
		s.Expression = clamp01(value)
		return Effect{Gain: true}
	case CCPan:
		s.Pan = PanPosition(value)
		return Effect{Pan: true}
	case CCTremoloDepth:
		s.Tremolo = clamp01(value)
		return Effect{Depth: true}
	case CCSustain:
		return Effect{Release: s.SetSustain(value)}
	case CCResetAll:
		release := s.SetSustain(0)
		s.PitchBend = 0
		s.ModWheel = 0
		s.Aftertouch = 0
		s.Tremolo = 0
		s.Expression = 1
		return Effect{Gain: true, Depth: true, Release: release}
	case CCAllSoundOff, CCAllNotesOff:
		s.sustained = map[int]struct{}{}
		return Effect{AllNotesOff: true}
	}
	return Effect{}
}

// SetAftertouch records channel pressure.
func (s *State) SetAftertouch(v float64) { s.Aftertouch = clamp01(v) }

// SetPitchBend records the bend position.
func (s *State) SetPitchBend(v float64) {
	switch {
	case v < -1:
		v = -1
	case v > 1:
		v = 1
	case v != v:
		v = 0
	}
	s.PitchBend = v
}

// Detune is the current bend in cents.
func (s *State) Detune() float64 { return DetuneCents(s.PitchBend, s.BendRange) }

// Gain is the current channel gain in dB.
func (s *State) Gain() float64 { return GainDB(s.Volume, s.Expression) }

// Vibrato is the current vibrato depth in [0, 1].
func (s *State) Vibrato() float64 { return VibratoDepth(s.ModWheel, s.Aftertouch) }

// NoteOn registers an attack. It reports whether a voice still held by the
// pedal for the same pitch must be released before the new attack.
func (s *State) NoteOn(pitch int) (forceRelease bool) {
	if _, ok := s.sustained[pitch]; ok {
		delete(s.sustained, pitch)
		return true
	}
	return false
}

// NoteOff reports whether the pitch should be released now. While the pedal
// is down the release is deferred until SetSustain lifts it.
func (s *State) NoteOff(pitch int) (releaseNow bool) {
	if s.SustainDown {
		if s.sustained == nil {
			s.sustained = map[int]struct{}{}
		}
		s.sustained[pitch] = struct{}{}
		return false
	}
	return true
}

// SetSustain applies a pedal value. On a down to up transition it returns
// every deferred pitch, ascending, and clears the set.
func (s *State) SetSustain(value float64) (release []int) {
	down := value >= sustainThreshold
	wasDown := s.SustainDown
	s.SustainDown = down
	if !wasDown || down {
		return nil
	}
	release = s.Sustained()
	s.sustained = map[int]struct{}{}
	return release
}

// Sustained returns the pitches currently held only by the pedal, ascending.
func (s *State) Sustained() []int {
	if len(s.sustained) == 0 {
		return nil
	}
	out := make([]int, 0, len(s.sustained))
	for p := range s.sustained {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// Bank holds lazily created States keyed by channel.
type Bank struct {
	mu     sync.Mutex
	states map[int]*State
}

func NewBank() *Bank {
	return &Bank{states: map[int]*State{}}
}

// Get returns the State for ch, creating it with defaults on first use.
func (b *Bank) Get(ch int) *State {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.states[ch]
	if !ok {
		st := Defaults()
		s = &st
		b.states[ch] = s
	}
	return s
}

// ResetAll resets every State created so far.
func (b *Bank) ResetAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.states {
		s.Reset()
	}
}

// ValidChannel reports whether ch is a MIDI channel number.
func ValidChannel(ch int) bool { return ch >= 0 && ch < numMIDIChannels }

func clamp01(v float64) float64 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
