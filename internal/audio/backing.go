package audio

import (
	"math"
	"sync"
)

// Backing plays a decoded clip in step with the transport. Offset shifts the
// clip against the sequence: with an offset of 1.5 the clip is 1.5 s ahead
// of the sequence position passed to Cue.
type Backing struct {
	mu      sync.Mutex
	clip    *Clip
	offset  float64
	frame   int
	playing bool
	gain    float32
}

func NewBacking(clip *Clip, offset float64) *Backing {
	return &Backing{clip: clip, offset: offset, gain: 1}
}

func (b *Backing) Clip() *Clip { return b.clip }

func (b *Backing) SetGain(g float64) {
	b.mu.Lock()
	b.gain = float32(math.Max(g, 0))
	b.mu.Unlock()
}

// Cue starts the clip at the frame matching sequence position seconds.
func (b *Backing) Cue(seconds float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	at := (seconds + b.offset) * float64(b.clip.SampleRate)
	if math.IsNaN(at) || at < 0 {
		at = 0
	}
	b.frame = int(math.Round(at))
	b.playing = true
}

// Halt stops output at once.
func (b *Backing) Halt() {
	b.mu.Lock()
	b.playing = false
	b.mu.Unlock()
}

func (b *Backing) Playing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.playing
}

// Position is the sequence position the clip is currently playing.
func (b *Backing) Position() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return float64(b.frame)/float64(b.clip.SampleRate) - b.offset
}

func (b *Backing) Process(dst []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := 0
	if b.playing {
		for ; i+1 < len(dst) && b.frame < b.clip.Frames(); i += 2 {
			dst[i] = b.clip.Samples[b.frame*2] * b.gain
			dst[i+1] = b.clip.Samples[b.frame*2+1] * b.gain
			b.frame++
		}
		if b.frame >= b.clip.Frames() {
			b.playing = false
		}
	}
	for ; i < len(dst); i++ {
		dst[i] = 0
	}
}
