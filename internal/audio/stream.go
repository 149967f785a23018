// Package audio connects sample sources to the ebiten audio device and
// decodes externally supplied recordings.
package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleSource fills interleaved stereo float32 frames.
type SampleSource interface {
	Process(dst []float32)
}

// FinishingSource is a SampleSource that can signal when playback has ended.
// When Finished returns true, the stream will return io.EOF on the next Read.
type FinishingSource interface {
	SampleSource
	Finished() bool
}

// StreamReader exposes a SampleSource as the little-endian float32 byte
// stream ebiten players consume.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i, s := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	n := frames * 8
	if fs, ok := r.source.(FinishingSource); ok && fs.Finished() {
		return n, io.EOF
	}
	return n, nil
}

func (r *StreamReader) Close() error { return nil }

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

// sharedContext returns the process-wide audio context. ebiten allows only
// one, so the first sample rate requested wins.
func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// WaitReady blocks until the audio device has started or ctx ends. On
// platforms that gate audio behind a user gesture this is where playback
// waits for the unlock.
func WaitReady(ctx context.Context, sampleRate int) error {
	ac, err := sharedContext(sampleRate)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for !ac.IsReady() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Output streams a SampleSource to the audio device.
type Output struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

func NewOutput(sampleRate int, source SampleSource) (*Output, error) {
	ac, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ac.NewPlayerF32(reader)
	if err != nil {
		return nil, fmt.Errorf("create audio player: %w", err)
	}
	pl.SetBufferSize(50 * time.Millisecond)
	return &Output{player: pl, reader: reader}, nil
}

func (o *Output) Play()           { o.player.Play() }
func (o *Output) Pause()          { o.player.Pause() }
func (o *Output) IsPlaying() bool { return o.player.IsPlaying() }

func (o *Output) Close() error {
	o.player.Pause()
	if err := o.player.Close(); err != nil {
		return err
	}
	return o.reader.Close()
}

// Sum mixes several sources by addition.
type Sum struct {
	mu      sync.Mutex
	sources []SampleSource
	scratch []float32
}

func NewSum(sources ...SampleSource) *Sum {
	return &Sum{sources: sources}
}

func (s *Sum) Process(dst []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range dst {
		dst[i] = 0
	}
	if cap(s.scratch) < len(dst) {
		s.scratch = make([]float32, len(dst))
	}
	tmp := s.scratch[:len(dst)]
	for _, src := range s.sources {
		src.Process(tmp)
		for i, v := range tmp {
			dst[i] += v
		}
	}
}
