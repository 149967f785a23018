// Package instrument adapts a synth voice pool to pitch-addressed playback.
package instrument

import (
	"sync"

	"github.com/cbegin/seqplay-go/internal/synth"
)

// Instrument is what the scheduler drives for one channel.
type Instrument interface {
	Attack(pitch int, velocity float64)
	Release(pitch int)
	ReleaseAll()
	// Silence cuts all sound without a release tail.
	Silence()
	SetDetune(cents float64)
	SetGain(db float64)
	SetPan(pan float64)
	SetDepth(vibrato, tremolo float64)
	SetNotePressure(pitch int, v float64)
}

// Voices is the voice pool an instrument plays on; *synth.Bank satisfies it.
type Voices interface {
	Start(t synth.Tone) int
	Stop(id int)
	StopAll()
	Silence()
	SetDetune(cents float64)
	SetGain(db float64)
	SetPan(pan float64)
	SetDepth(vibrato, tremolo float64)
	SetPressure(id int, v float64)
}

// New picks the drum kit for percussion channels and a polyphonic
// instrument otherwise.
func New(v Voices, isDrum bool, program int) Instrument {
	if isDrum {
		return NewDrumKit(v)
	}
	return NewPoly(v, WaveForProgram(program))
}

// Poly starts one voice per attack. Repeated attacks of the same pitch stack
// up and are released first in, first out.
type Poly struct {
	mu     sync.Mutex
	voices Voices
	wave   synth.Wave
	held   map[int][]int
}

func NewPoly(v Voices, wave synth.Wave) *Poly {
	return &Poly{voices: v, wave: wave, held: map[int][]int{}}
}

func (p *Poly) Attack(pitch int, velocity float64) {
	id := p.voices.Start(synth.Tone{Pitch: float64(pitch), Velocity: velocity, Wave: p.wave})
	p.mu.Lock()
	p.held[pitch] = append(p.held[pitch], id)
	p.mu.Unlock()
}

func (p *Poly) Release(pitch int) {
	p.mu.Lock()
	ids := p.held[pitch]
	if len(ids) == 0 {
		p.mu.Unlock()
		return
	}
	id := ids[0]
	if len(ids) == 1 {
		delete(p.held, pitch)
	} else {
		p.held[pitch] = ids[1:]
	}
	p.mu.Unlock()
	p.voices.Stop(id)
}

func (p *Poly) ReleaseAll() {
	p.mu.Lock()
	p.held = map[int][]int{}
	p.mu.Unlock()
	p.voices.StopAll()
}

func (p *Poly) Silence() {
	p.mu.Lock()
	p.held = map[int][]int{}
	p.mu.Unlock()
	p.voices.Silence()
}

func (p *Poly) SetDetune(cents float64) { p.voices.SetDetune(cents) }
func (p *Poly) SetGain(db float64) { p.voices.SetGain(db) }
func (p *Poly) SetPan(pan float64) { p.voices.SetPan(pan) }
func (p *Poly) SetDepth(vibrato, tremolo float64) { p.voices.SetDepth(vibrato, tremolo) }

func (p *Poly) SetNotePressure(pitch int, v float64) {
	p.mu.Lock()
	ids := append([]int(nil), p.held[pitch]...)
	p.mu.Unlock()
	for _, id := range ids {
		p.voices.SetPressure(id, v)
	}
}

// Held returns how many voices are held for pitch.
func (p *Poly) Held(pitch int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.held[pitch])
}

// WaveForProgram maps a General MIDI program to an oscillator by family.
func WaveForProgram(program int) synth.Wave {
	switch {
	case program < 8: // pianos
		return synth.WaveTriangle
	case program < 24: // chromatic percussion, organs
		return synth.WaveSquare
	case program < 40: // guitars, basses
		return synth.WavePulse
	case program < 56: // strings, ensembles
		return synth.WaveSaw
	case program < 80: // brass, reeds, pipes
		return synth.WaveSquare
	case program < 104: // synth leads and pads
		return synth.WaveSaw
	}
	return synth.WavePulse
}
