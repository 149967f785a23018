package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Clip is a decoded recording as interleaved stereo float32.
type Clip struct {
	Name       string
	SampleRate int
	Samples    []float32
}

// Frames is the clip length in stereo frames.
func (c *Clip) Frames() int { return len(c.Samples) / 2 }

// Duration is the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(c.Frames()) / float64(c.SampleRate)
}

// Decode reads a WAV, MP3 or Ogg Vorbis recording, chosen by the extension
// of name, and resamples it to sampleRate. Decoding checks ctx between
// chunks and stops early when it is cancelled.
func Decode(ctx context.Context, name string, r io.Reader, sampleRate int) (*Clip, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	src := bytes.NewReader(data)

	var stream io.Reader
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		stream, err = wav.DecodeWithSampleRate(sampleRate, src)
	case ".mp3":
		stream, err = mp3.DecodeWithSampleRate(sampleRate, src)
	case ".ogg", ".oga":
		stream, err = vorbis.DecodeWithSampleRate(sampleRate, src)
	default:
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	clip := &Clip{Name: name, SampleRate: sampleRate}
	chunk := make([]byte, 16*1024)
	var carry []byte
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, rerr := stream.Read(chunk)
		buf := append(carry, chunk[:n]...)
		// 16-bit little-endian stereo; keep any partial sample for the next read.
		whole := len(buf) - len(buf)%2
		for i := 0; i < whole; i += 2 {
			clip.Samples = append(clip.Samples, float32(int16(binary.LittleEndian.Uint16(buf[i:])))/32768)
		}
		carry = append(carry[:0], buf[whole:]...)
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("decode %s: %w", name, rerr)
		}
	}
	if len(clip.Samples)%2 == 1 {
		clip.Samples = clip.Samples[:len(clip.Samples)-1]
	}
	return clip, nil
}
