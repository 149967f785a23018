// Package clock provides the audio-driven transport that playback callbacks
// are scheduled on.
package clock

import (
	"container/heap"
	"math"
	"sync"
)

// dueSlack absorbs float error between frame-quantized positions and
// callback times.
const dueSlack = 1e-9

// Renderer produces interleaved stereo samples.
type Renderer interface {
	Process(dst []float32)
}

type event struct {
	at  float64
	seq uint64
	fn  func()
}

type eventQueue []event

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x any)   { *q = append(*q, x.(event)) }
func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	*q = old[:n-1]
	return ev
}

// Transport is a position clock advanced by the audio thread. Callbacks
// registered with ScheduleOnce run on the goroutine that advances the clock,
// in time order, with insertion order breaking ties. The transport lock is
// never held while a callback or the renderer runs.
type Transport struct {
	mu         sync.Mutex
	sampleRate float64
	renderer   Renderer
	position   float64
	running    bool
	queue      eventQueue
	seq        uint64
}

// New creates a stopped transport. renderer may be nil when the transport is
// only advanced through Advance.
func New(sampleRate int, renderer Renderer) *Transport {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	return &Transport{sampleRate: float64(sampleRate), renderer: renderer}
}

func (t *Transport) SampleRate() int { return int(t.sampleRate) }

// ScheduleOnce registers fn to run once the position reaches at seconds.
func (t *Transport) ScheduleOnce(at float64, fn func()) {
	if fn == nil || math.IsNaN(at) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	heap.Push(&t.queue, event{at: at, seq: t.seq, fn: fn})
}

// CancelAll drops every pending callback.
func (t *Transport) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = nil
}

// Pending is the number of callbacks not yet fired.
func (t *Transport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Start runs the clock from position seconds.
func (t *Transport) Start(position float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if math.IsNaN(position) || position < 0 {
		position = 0
	}
	t.position = position
	t.running = true
}

func (t *Transport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
}

func (t *Transport) Position() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position
}

func (t *Transport) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// popDue removes the next callback due at or before limit and moves the
// position to its time.
func (t *Transport) popDue(limit float64) (func(), bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || len(t.queue) == 0 || t.queue[0].at > limit+dueSlack {
		return nil, false
	}
	ev := heap.Pop(&t.queue).(event)
	if ev.at > t.position {
		t.position = ev.at
	}
	return ev.fn, true
}

// Advance moves a running clock forward by seconds without rendering,
// firing every callback that falls due on the way.
func (t *Transport) Advance(seconds float64) {
	t.mu.Lock()
	if !t.running || !(seconds > 0) {
		t.mu.Unlock()
		return
	}
	target := t.position + seconds
	t.mu.Unlock()

	for {
		fn, ok := t.popDue(target)
		if !ok {
			break
		}
		fn()
	}
	t.mu.Lock()
	if t.running && t.position < target {
		t.position = target
	}
	t.mu.Unlock()
}

// Process fills dst with interleaved stereo from the renderer. While running
// the buffer is rendered in chunks that end where the next callback is due,
// so callbacks take effect at the right frame.
func (t *Transport) Process(dst []float32) {
	for len(dst) >= 2 {
		t.mu.Lock()
		pos := t.position
		t.mu.Unlock()
		if fn, ok := t.popDue(pos); ok {
			fn()
			continue
		}

		frames := t.nextChunk(len(dst) / 2)
		t.render(dst[:frames*2])
		dst = dst[frames*2:]
	}
	for i := range dst {
		dst[i] = 0
	}
}

// nextChunk returns how many frames can be rendered before the next
// callback falls due and advances the position by that much.
func (t *Transport) nextChunk(maxFrames int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return maxFrames
	}
	frames := maxFrames
	if len(t.queue) > 0 {
		until := int(math.Ceil((t.queue[0].at - t.position) * t.sampleRate))
		if until < 1 {
			until = 1
		}
		if until < frames {
			frames = until
		}
	}
	t.position += float64(frames) / t.sampleRate
	return frames
}

func (t *Transport) render(dst []float32) {
	if t.renderer == nil {
		for i := range dst {
			dst[i] = 0
		}
		return
	}
	t.renderer.Process(dst)
}
