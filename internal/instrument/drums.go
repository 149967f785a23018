package instrument

import "github.com/cbegin/seqplay-go/internal/synth"

// drumTone is the fixed sound of one General MIDI percussion key.
type drumTone struct {
	pitch float64
	wave  synth.Wave
	decay float64
}

var gmDrums = map[int]drumTone{
	35: {pitch: 26, wave: synth.WaveTriangle, decay: 0.25}, // acoustic bass drum
	36: {pitch: 28, wave: synth.WaveTriangle, decay: 0.22}, // bass drum
	37: {pitch: 84, wave: synth.WaveNoise, decay: 0.04},    // side stick
	38: {pitch: 72, wave: synth.WaveNoise, decay: 0.18},    // snare
	39: {pitch: 78, wave: synth.WaveNoise, decay: 0.12},    // clap
	40: {pitch: 74, wave: synth.WaveNoise, decay: 0.16},    // electric snare
	41: {pitch: 40, wave: synth.WaveTriangle, decay: 0.3},
	42: {pitch: 100, wave: synth.WaveNoise, decay: 0.05}, // closed hat
	43: {pitch: 43, wave: synth.WaveTriangle, decay: 0.3},
	44: {pitch: 100, wave: synth.WaveNoise, decay: 0.06}, // pedal hat
	45: {pitch: 46, wave: synth.WaveTriangle, decay: 0.28},
	46: {pitch: 100, wave: synth.WaveNoise, decay: 0.3}, // open hat
	47: {pitch: 49, wave: synth.WaveTriangle, decay: 0.26},
	48: {pitch: 52, wave: synth.WaveTriangle, decay: 0.24},
	49: {pitch: 96, wave: synth.WaveNoise, decay: 0.9}, // crash
	50: {pitch: 55, wave: synth.WaveTriangle, decay: 0.22},
	51: {pitch: 104, wave: synth.WaveNoise, decay: 0.5}, // ride
	57: {pitch: 96, wave: synth.WaveNoise, decay: 0.9},
	59: {pitch: 104, wave: synth.WaveNoise, decay: 0.5},
}

var defaultDrum = drumTone{pitch: 90, wave: synth.WaveNoise, decay: 0.15}

// DrumKit plays fixed percussive tones keyed by pitch. Tones decay on their
// own, so releases are ignored, and pitch bend never applies.
type DrumKit struct {
	voices Voices
}

func NewDrumKit(v Voices) *DrumKit {
	return &DrumKit{voices: v}
}

func (d *DrumKit) Attack(pitch int, velocity float64) {
	dt, ok := gmDrums[pitch]
	if !ok {
		dt = defaultDrum
	}
	d.voices.Start(synth.Tone{Pitch: dt.pitch, Velocity: velocity, Wave: dt.wave, Decay: dt.decay})
}

func (d *DrumKit) Release(int) {}
func (d *DrumKit) ReleaseAll() { d.voices.StopAll() }
func (d *DrumKit) Silence() { d.voices.Silence() }
func (d *DrumKit) SetDetune(float64) {}
func (d *DrumKit) SetGain(db float64) { d.voices.SetGain(db) }
func (d *DrumKit) SetPan(pan float64) { d.voices.SetPan(pan) }
func (d *DrumKit) SetDepth(float64, float64) {}
func (d *DrumKit) SetNotePressure(int, float64) {}
