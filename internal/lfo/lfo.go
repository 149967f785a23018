// Package lfo implements the low-frequency oscillators behind vibrato and
// tremolo.
package lfo

import "math"

// Shape selects the oscillator waveform.
type Shape int

const (
	Sine Shape = iota
	Triangle
	Square
	Saw
)

// defaultRampSeconds is how long a depth change takes to settle.
const defaultRampSeconds = 0.02

// LFO produces a per-sample modulation value in [-depth, +depth]. Depth
// changes glide over a short ramp instead of jumping, so controller streams
// that move depth do not click.
type LFO struct {
	shape  Shape
	rateHz float64
	depth  float64
	target float64
	ramp   float64 // seconds for a full 0..1 depth sweep
	phase  float64 // [0, 1)
}

// New returns an LFO at rateHz with zero depth.
func New(shape Shape, rateHz float64) LFO {
	return LFO{shape: shape, rateHz: rateHz, ramp: defaultRampSeconds}
}

// SetRate changes the oscillation rate.
func (l *LFO) SetRate(rateHz float64) {
	if rateHz < 0 || math.IsNaN(rateHz) {
		rateHz = 0
	}
	l.rateHz = rateHz
}

// SetDepth sets the depth the oscillator glides towards.
func (l *LFO) SetDepth(depth float64) {
	if math.IsNaN(depth) {
		depth = 0
	}
	l.target = depth
}

// JumpDepth sets the depth without a ramp.
func (l *LFO) JumpDepth(depth float64) {
	l.SetDepth(depth)
	l.depth = l.target
}

func (l *LFO) Depth() float64 { return l.depth }

// Sample advances the oscillator by one frame.
func (l *LFO) Sample(sampleRate float64) float64 {
	if sampleRate <= 0 {
		return 0
	}
	if l.depth != l.target {
		step := 1 / (sampleRate * math.Max(l.ramp, 1e-6))
		switch {
		case l.depth < l.target:
			l.depth = math.Min(l.depth+step, l.target)
		default:
			l.depth = math.Max(l.depth-step, l.target)
		}
	}
	if l.depth == 0 || l.rateHz == 0 {
		return 0
	}

	var v float64
	switch l.shape {
	case Triangle:
		if l.phase < 0.5 {
			v = 4*l.phase - 1
		} else {
			v = 3 - 4*l.phase
		}
	case Square:
		v = 1
		if l.phase >= 0.5 {
			v = -1
		}
	case Saw:
		v = 1 - 2*l.phase
	default:
		v = math.Sin(2 * math.Pi * l.phase)
	}

	l.phase += l.rateHz / sampleRate
	l.phase -= math.Floor(l.phase)
	return v * l.depth
}

// Active reports whether the oscillator currently produces output.
func (l *LFO) Active() bool {
	return (l.depth != 0 || l.target != 0) && l.rateHz != 0
}

// Reset zeros phase and depth.
func (l *LFO) Reset() {
	l.phase = 0
	l.depth = 0
	l.target = 0
}
