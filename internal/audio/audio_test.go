package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constSource struct {
	v    float32
	done bool
}

func (c *constSource) Process(dst []float32) {
	for i := range dst {
		dst[i] = c.v
	}
}

func (c *constSource) Finished() bool { return c.done }

func TestStreamReaderEncodesFloat32LE(t *testing.T) {
	src := &constSource{v: 0.25}
	r := NewStreamReader(src)
	p := make([]byte, 17)
	n, err := r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.Equal(t, float32(0.25), math.Float32frombits(binary.LittleEndian.Uint32(p[12:])))

	src.done = true
	_, err = r.Read(p)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSumAddsSources(t *testing.T) {
	s := NewSum(&constSource{v: 0.25}, &constSource{v: 0.5})
	dst := make([]float32, 8)
	s.Process(dst)
	for _, v := range dst {
		assert.Equal(t, float32(0.75), v)
	}
}

// wavBytes builds a 16-bit stereo PCM WAV file.
func wavBytes(sampleRate int, frames [][2]int16) []byte {
	var data bytes.Buffer
	for _, f := range frames {
		binary.Write(&data, binary.LittleEndian, f[0])
		binary.Write(&data, binary.LittleEndian, f[1])
	}
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+data.Len()))
	b.WriteString("WAVEfmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint16(2))
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate*4))
	binary.Write(&b, binary.LittleEndian, uint16(4))
	binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(data.Len()))
	b.Write(data.Bytes())
	return b.Bytes()
}

func TestDecodeWAV(t *testing.T) {
	frames := make([][2]int16, 100)
	for i := range frames {
		frames[i] = [2]int16{16384, -16384}
	}
	clip, err := Decode(context.Background(), "backing.WAV", bytes.NewReader(wavBytes(8000, frames)), 8000)
	require.NoError(t, err)
	assert.Equal(t, 100, clip.Frames())
	assert.InDelta(t, 100.0/8000, clip.Duration(), 1e-9)
	assert.InDelta(t, 0.5, clip.Samples[0], 1e-6)
	assert.InDelta(t, -0.5, clip.Samples[1], 1e-6)
}

func TestDecodeRejectsUnknownExtension(t *testing.T) {
	_, err := Decode(context.Background(), "song.flac", bytes.NewReader(nil), 8000)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Decode(ctx, "a.wav", bytes.NewReader(wavBytes(8000, make([][2]int16, 10))), 8000)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackingFollowsCueAndHalt(t *testing.T) {
	clip := &Clip{SampleRate: 10, Samples: make([]float32, 2*40)}
	for i := range clip.Samples {
		clip.Samples[i] = float32(i / 2)
	}
	b := NewBacking(clip, 0.5)

	dst := make([]float32, 4)
	b.Process(dst)
	assert.Equal(t, []float32{0, 0, 0, 0}, dst, "silent until cued")

	b.Cue(1)
	b.Process(dst)
	assert.Equal(t, []float32{15, 15, 16, 16}, dst)
	assert.InDelta(t, 1.2, b.Position(), 1e-9)

	b.Halt()
	b.Process(dst)
	assert.Equal(t, []float32{0, 0, 0, 0}, dst)

	b.Cue(3.4)
	b.Process(make([]float32, 10))
	assert.False(t, b.Playing(), "stops at the end of the clip")
}
