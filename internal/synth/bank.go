// Package synth renders notes into float32 stereo audio: a Bank is a pool of
// voices sharing channel-wide detune, gain, pan and modulation, and a Mixer
// sums banks into the output stream.
package synth

import (
	"math"
	"sync"

	"github.com/cbegin/seqplay-go/internal/lfo"
)

type Params struct {
	Voices       int     `yaml:"voices"`
	AttackSec    float64 `yaml:"attack_sec"`
	DecaySec     float64 `yaml:"decay_sec"`
	SustainLevel float64 `yaml:"sustain_level"`
	ReleaseSec   float64 `yaml:"release_sec"`
	// VibratoCents is the pitch swing at full vibrato depth.
	VibratoCents  float64 `yaml:"vibrato_cents"`
	VibratoRateHz float64 `yaml:"vibrato_rate_hz"`
	TremoloRateHz float64 `yaml:"tremolo_rate_hz"`
	// RampSec is the glide time of gain and pan changes.
	RampSec float64 `yaml:"ramp_sec"`
}

func DefaultParams() Params {
	return Params{
		Voices:        16,
		AttackSec:     0.005,
		DecaySec:      0.15,
		SustainLevel:  0.7,
		ReleaseSec:    0.2,
		VibratoCents:  50,
		VibratoRateHz: 5.5,
		TremoloRateHz: 4,
		RampSec:       0.01,
	}
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

// Tone describes one attack.
type Tone struct {
	Pitch    float64 // MIDI pitch, fractional allowed
	Velocity float64 // [0, 1]
	Wave     Wave
	// Decay, when positive, makes the tone percussive: it decays to silence
	// over Decay seconds and ignores detune.
	Decay float64
}

type voice struct {
	active    bool
	id        int
	age       int
	wave      Wave
	pitch     float64
	fixed     bool
	phase     float64
	velocity  float64
	pressure  float64
	env       float64
	envState  envState
	decay     float64
	noiseLFSR uint16
}

// Bank is a voice pool for one channel.
type Bank struct {
	mu         sync.Mutex
	sampleRate float64
	params     Params
	voices     []voice
	nextID     int

	detune     float64 // cents
	gain       float64 // linear, current
	gainTarget float64
	pan        float64 // [-1, 1], current
	panTarget  float64
	rampCoef   float64
	vibrato    lfo.LFO
	tremolo    lfo.LFO
}

func NewBank(sampleRate int, params Params) *Bank {
	if params.Voices <= 0 {
		params.Voices = DefaultParams().Voices
	}
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	b := &Bank{
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]voice, params.Voices),
		gain:       1,
		gainTarget: 1,
		vibrato:    lfo.New(lfo.Sine, params.VibratoRateHz),
		tremolo:    lfo.New(lfo.Triangle, params.TremoloRateHz),
	}
	if params.RampSec > 0 {
		b.rampCoef = 1 - math.Exp(-1/(params.RampSec*b.sampleRate))
	} else {
		b.rampCoef = 1
	}
	for i := range b.voices {
		b.voices[i].noiseLFSR = uint16(0xACE1 + i*97)
	}
	return b
}

// Start attacks a tone and returns its voice id.
func (b *Bank) Start(t Tone) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	slot := b.stealVoice()
	id := b.nextID
	b.nextID++
	v := &b.voices[slot]
	lfsr := v.noiseLFSR
	*v = voice{
		active:    true,
		id:        id,
		wave:      t.Wave,
		pitch:     t.Pitch,
		fixed:     t.Decay > 0,
		velocity:  clamp(t.Velocity, 0, 1),
		envState:  envAttack,
		decay:     t.Decay,
		noiseLFSR: lfsr,
	}
	if v.noiseLFSR == 0 {
		v.noiseLFSR = 0xACE1
	}
	return id
}

// Stop moves a voice into its release stage.
func (b *Bank) Stop(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.voices {
		v := &b.voices[i]
		if v.active && v.id == id && v.envState != envRelease {
			v.envState = envRelease
		}
	}
}

// StopAll releases every sounding voice.
func (b *Bank) StopAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.voices {
		if b.voices[i].active {
			b.voices[i].envState = envRelease
		}
	}
}

// Silence cuts every voice at once and drops pending ramps.
func (b *Bank) Silence() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.voices {
		b.voices[i].active = false
		b.voices[i].env = 0
		b.voices[i].envState = envOff
	}
	b.gain = b.gainTarget
	b.pan = b.panTarget
	b.vibrato.Reset()
	b.tremolo.Reset()
}

// SetPressure scales the level of one voice by polyphonic pressure.
func (b *Bank) SetPressure(id int, v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.voices {
		if b.voices[i].active && b.voices[i].id == id {
			b.voices[i].pressure = clamp(v, 0, 1)
		}
	}
}

// SetDetune shifts every non-percussive voice by cents.
func (b *Bank) SetDetune(cents float64) {
	b.mu.Lock()
	b.detune = cents
	b.mu.Unlock()
}

// SetGain ramps the bank gain to db decibels.
func (b *Bank) SetGain(db float64) {
	b.mu.Lock()
	b.gainTarget = math.Pow(10, db/20)
	b.mu.Unlock()
}

// SetPan ramps the stereo position to pan in [-1, 1].
func (b *Bank) SetPan(pan float64) {
	b.mu.Lock()
	b.panTarget = clamp(pan, -1, 1)
	b.mu.Unlock()
}

// SetDepth sets vibrato and tremolo depth, both in [0, 1].
func (b *Bank) SetDepth(vibrato, tremolo float64) {
	b.mu.Lock()
	b.vibrato.SetDepth(clamp(vibrato, 0, 1))
	b.tremolo.SetDepth(clamp(tremolo, 0, 1))
	b.mu.Unlock()
}

func (b *Bank) ActiveVoiceCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for i := range b.voices {
		if b.voices[i].active {
			n++
		}
	}
	return n
}

// mix adds frames into acc, which is interleaved stereo.
func (b *Bank) mix(acc []float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for f := 0; f+1 < len(acc); f += 2 {
		vib := b.vibrato.Sample(b.sampleRate) * b.params.VibratoCents
		trem := 1 + 0.5*b.tremolo.Sample(b.sampleRate)
		b.gain += (b.gainTarget - b.gain) * b.rampCoef
		b.pan += (b.panTarget - b.pan) * b.rampCoef

		tuned := math.Pow(2, (b.detune+vib)/1200)
		var sum float64
		for i := range b.voices {
			v := &b.voices[i]
			if !v.active {
				continue
			}
			v.age++
			env := b.advanceEnv(v)
			if !v.active {
				continue
			}
			freq := PitchToFreq(v.pitch)
			if !v.fixed {
				freq *= tuned
			}
			level := env * (0.2 + 0.8*v.velocity) * (1 + 0.5*v.pressure)
			sum += oscillate(v, freq/b.sampleRate) * level
		}
		if sum == 0 {
			continue
		}
		sig := sum * b.gain * trem
		angle := (b.pan + 1) / 2 * (math.Pi / 2)
		acc[f] += sig * math.Cos(angle)
		acc[f+1] += sig * math.Sin(angle)
	}
}

func (b *Bank) stealVoice() int {
	for i := range b.voices {
		if !b.voices[i].active {
			return i
		}
	}
	// Steal the oldest releasing voice, or failing that the oldest active voice.
	oldestRelease, oldestReleaseAge := -1, -1
	oldestActive, oldestActiveAge := 0, -1
	for i := range b.voices {
		v := &b.voices[i]
		if v.envState == envRelease && v.age > oldestReleaseAge {
			oldestRelease, oldestReleaseAge = i, v.age
		}
		if v.age > oldestActiveAge {
			oldestActive, oldestActiveAge = i, v.age
		}
	}
	if oldestRelease >= 0 {
		return oldestRelease
	}
	return oldestActive
}

func (b *Bank) advanceEnv(v *voice) float64 {
	p := b.params
	step := func(sec, span float64) float64 {
		if sec <= 0 {
			return 1
		}
		return span / (sec * b.sampleRate)
	}
	switch v.envState {
	case envAttack:
		v.env += step(p.AttackSec, 1)
		if v.env >= 1 {
			v.env = 1
			v.envState = envDecay
		}
	case envDecay:
		if v.decay > 0 {
			v.env -= step(v.decay, 1)
			if v.env <= 0.0001 {
				v.env = 0
				v.envState = envOff
				v.active = false
			}
			break
		}
		v.env -= step(p.DecaySec, 1-p.SustainLevel)
		if v.env <= p.SustainLevel {
			v.env = p.SustainLevel
			v.envState = envSustain
		}
	case envSustain:
	case envRelease:
		span := math.Max(p.SustainLevel, 0.1)
		if v.decay > 0 {
			span = 1
		}
		v.env -= step(p.ReleaseSec, span)
		if v.env <= 0.0001 {
			v.env = 0
			v.envState = envOff
			v.active = false
		}
	case envOff:
		v.active = false
		v.env = 0
	}
	return v.env
}
