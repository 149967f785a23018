package seqplay

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/cbegin/seqplay-go/internal/song"
)

const renderChunkFrames = 1024

// RenderSamples plays seq from the start without an audio device and returns
// interleaved stereo. seconds ≤ 0 renders the whole sequence plus a short
// release tail.
func RenderSamples(seq *song.Sequence, sampleRate int, seconds float64, opts ...PlayerOption) ([]float32, error) {
	opts = append(opts, WithSampleRate(sampleRate), WithHeadless())
	p, err := NewPlayer(seq, opts...)
	if err != nil {
		return nil, err
	}
	if !(seconds > 0) {
		seconds = seq.DurationSeconds + 0.5
	}
	if err := p.PlayFrom(context.Background(), 0); err != nil {
		return nil, err
	}
	frames := int(float64(sampleRate) * seconds)
	out := make([]float32, frames*2)
	for off := 0; off < len(out); off += renderChunkFrames * 2 {
		end := off + renderChunkFrames*2
		if end > len(out) {
			end = len(out)
		}
		p.Process(out[off:end])
	}
	p.Pause()
	return out, nil
}

func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
