package seqplay

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSamplesProducesAudio(t *testing.T) {
	seq := testSequence()
	out, err := RenderSamples(seq, testRate, 1.5)
	require.NoError(t, err)
	assert.Len(t, out, int(1.5*testRate)*2)
	assert.Greater(t, energy(out[:testRate]), 0.0)
	for _, v := range out {
		require.False(t, math.IsNaN(float64(v)))
	}
}

func TestRenderSamplesWholeSequence(t *testing.T) {
	seq := testSequence()
	out, err := RenderSamples(seq, testRate, 0)
	require.NoError(t, err)
	assert.Equal(t, int((seq.DurationSeconds+0.5)*testRate)*2, len(out))
}

func TestEncodeWAVFloat32LE(t *testing.T) {
	samples := []float32{0.5, -0.5, 0.25, -0.25}
	b := EncodeWAVFloat32LE(samples, 44100, 2)
	require.Len(t, b, 44+len(samples)*4)
	assert.Equal(t, "RIFF", string(b[0:4]))
	assert.Equal(t, "WAVE", string(b[8:12]))
	assert.Equal(t, uint16(3), binary.LittleEndian.Uint16(b[20:]))
	assert.Equal(t, uint32(44100), binary.LittleEndian.Uint32(b[24:]))
	assert.Equal(t, float32(-0.25), math.Float32frombits(binary.LittleEndian.Uint32(b[44+12:])))
}
