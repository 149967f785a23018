package synth

import "math"

const twoPi = math.Pi * 2

// Wave selects a voice oscillator.
type Wave int

const (
	WavePulse Wave = iota
	WaveSquare
	WaveTriangle
	WaveSaw
	WaveNoise
)

// polyBLEP reduces aliasing at waveform discontinuities.
// t is the phase position [0,1), dt is the phase increment per sample.
func polyBLEP(t, dt float64) float64 {
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

func pulse(phase, dt, duty float64) float64 {
	out := -1.0
	if phase < duty {
		out = 1
	}
	out += polyBLEP(phase, dt)
	out -= polyBLEP(math.Mod(phase-duty+1, 1), dt)
	return out
}

// oscillate advances v by dt and returns its next sample.
func oscillate(v *voice, dt float64) float64 {
	v.phase += dt
	if v.phase >= 1 {
		v.phase -= math.Floor(v.phase)
	}
	switch v.wave {
	case WavePulse:
		return pulse(v.phase, dt, 0.25)
	case WaveSquare:
		return pulse(v.phase, dt, 0.5)
	case WaveTriangle:
		return 2*math.Abs(2*v.phase-1) - 1
	case WaveSaw:
		return 1 - 2*v.phase + polyBLEP(v.phase, dt)
	case WaveNoise:
		if v.phase < dt {
			bit := (v.noiseLFSR ^ (v.noiseLFSR >> 1)) & 1
			v.noiseLFSR = (v.noiseLFSR >> 1) | (bit << 15)
		}
		if v.noiseLFSR&1 == 1 {
			return 1
		}
		return -1
	}
	return 0
}

// PitchToFreq converts a fractional MIDI pitch to Hz.
func PitchToFreq(pitch float64) float64 {
	return 440 * math.Pow(2, (pitch-69)/12)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
