package lfo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTriangleShape(t *testing.T) {
	l := New(Triangle, 1)
	l.JumpDepth(1)

	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = l.Sample(100)
	}
	assert.InDelta(t, -1.0, samples[0], 0.05)
	assert.InDelta(t, 0.0, samples[25], 0.05)
	assert.InDelta(t, 1.0, samples[50], 0.05)
}

func TestSineShape(t *testing.T) {
	l := New(Sine, 1)
	l.JumpDepth(0.5)
	var peak float64
	for i := 0; i < 100; i++ {
		peak = math.Max(peak, l.Sample(100))
	}
	assert.InDelta(t, 0.5, peak, 1e-9)
}

func TestSquareAndSaw(t *testing.T) {
	sq := New(Square, 1)
	sq.JumpDepth(2)
	assert.Equal(t, 2.0, sq.Sample(100))
	for i := 1; i < 60; i++ {
		sq.Sample(100)
	}
	assert.Equal(t, -2.0, sq.Sample(100))

	saw := New(Saw, 1)
	saw.JumpDepth(1)
	assert.Equal(t, 1.0, saw.Sample(100))
}

func TestDepthRamps(t *testing.T) {
	l := New(Sine, 5)
	l.SetDepth(1)
	l.Sample(1000)
	assert.Greater(t, l.Depth(), 0.0)
	assert.Less(t, l.Depth(), 1.0)
	for i := 0; i < 100; i++ {
		l.Sample(1000)
	}
	assert.Equal(t, 1.0, l.Depth())

	l.SetDepth(0)
	for i := 0; i < 100; i++ {
		l.Sample(1000)
	}
	assert.Equal(t, 0.0, l.Depth())
	assert.False(t, l.Active())
}

func TestZeroRateOrDepthIsSilent(t *testing.T) {
	l := New(Triangle, 0)
	l.JumpDepth(1)
	assert.Zero(t, l.Sample(44100))
	assert.False(t, l.Active())

	l = New(Triangle, 5)
	assert.Zero(t, l.Sample(44100))
	l.SetRate(math.NaN())
	l.JumpDepth(1)
	assert.False(t, l.Active())
}
