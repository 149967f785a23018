// Package scheduler plays a song.Sequence by scheduling its notes and
// automation on a clock, with resume-from-position and generation-based
// cancellation of everything scheduled or awaited by an earlier session.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cbegin/seqplay-go/internal/automation"
	"github.com/cbegin/seqplay-go/internal/channel"
	"github.com/cbegin/seqplay-go/internal/instrument"
	"github.com/cbegin/seqplay-go/internal/song"
)

var (
	ErrPlaying          = errors.New("scheduler: position can only be set while stopped")
	ErrSuperseded       = errors.New("scheduler: superseded by a newer request")
	ErrNoExternalSource = errors.New("scheduler: external mode needs a source")
	ErrBadChannel       = errors.New("scheduler: channel out of range")
	ErrNoLoader         = errors.New("scheduler: no loader for external sources")
)

// Clock is the real-time transport callbacks are scheduled on.
type Clock interface {
	CancelAll()
	ScheduleOnce(at float64, fn func())
	Start(position float64)
	Stop()
	Position() float64
	Running() bool
}

// InstrumentFactory builds the instrument that plays one channel.
type InstrumentFactory func(ch int, isDrum bool, program int) instrument.Instrument

// ActiveNote is a pitch currently sounding on a channel.
type ActiveNote struct {
	Channel int
	Pitch   int
}

type Option func(*Scheduler)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

func WithInstruments(f InstrumentFactory) Option {
	return func(s *Scheduler) { s.newInstrument = f }
}

// WithUnlock installs a hook PlayFrom awaits before anything else, such as
// waiting for the audio device to start.
func WithUnlock(fn func(ctx context.Context) error) Option {
	return func(s *Scheduler) { s.unlock = fn }
}

// WithLoader sets how external sources are loaded.
func WithLoader(l Loader) Option {
	return func(s *Scheduler) { s.loader = l }
}

// WithOnEnded registers a hook fired when playback reaches the end. It runs
// on the clock goroutine without the scheduler lock held.
func WithOnEnded(fn func()) Option {
	return func(s *Scheduler) { s.onEnded = fn }
}

// WithCompaction overrides the compaction tunables.
func WithCompaction(bend, controller automation.Params) Option {
	return func(s *Scheduler) {
		s.bendParams = bend
		s.ccParams = controller
	}
}

// Scheduler is the playback state machine. All exported methods are safe
// for concurrent use.
type Scheduler struct {
	mu  sync.Mutex
	log zerolog.Logger

	seq   *song.Sequence
	clock Clock
	plans []*plan

	newInstrument InstrumentFactory
	instruments   map[int]instrument.Instrument
	states        *channel.Bank

	unlock  func(ctx context.Context) error
	loader  Loader
	onEnded func()

	bendParams automation.Params
	ccParams   automation.Params

	gen      uint64
	playing  bool
	position float64
	mode     Mode

	source *ExternalSource
	track  ExternalTrack

	active   map[ActiveNote]int
	deferred map[ActiveNote]int
}

// New prepares playback of seq on clk. Tracks on channels outside 0-15 are
// rejected with ErrBadChannel.
func New(seq *song.Sequence, clk Clock, opts ...Option) (*Scheduler, error) {
	if seq == nil {
		return nil, errors.New("scheduler: nil sequence")
	}
	for _, t := range seq.Tracks {
		if !channel.ValidChannel(t.Channel) {
			return nil, fmt.Errorf("%w: track %q uses channel %d", ErrBadChannel, t.Name, t.Channel)
		}
	}
	s := &Scheduler{
		log:         zerolog.Nop(),
		seq:         seq,
		clock:       clk,
		instruments: map[int]instrument.Instrument{},
		states:      channel.NewBank(),
		bendParams:  automation.PitchBendParams(),
		ccParams:    automation.ControllerParams(),
		active:      map[ActiveNote]int{},
		deferred:    map[ActiveNote]int{},
	}
	for _, o := range opts {
		o(s)
	}
	s.plans = buildPlans(seq, s.bendParams, s.ccParams)
	for _, p := range s.plans {
		var inst instrument.Instrument = silent{}
		if s.newInstrument != nil {
			inst = s.newInstrument(p.channel, p.isDrum, p.program)
		}
		s.instruments[p.channel] = inst
	}
	return s, nil
}

func (s *Scheduler) Sequence() *song.Sequence { return s.seq }

func (s *Scheduler) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// PositionSeconds is the clock position while playing and the recorded
// position while stopped.
func (s *Scheduler) PositionSeconds() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		return s.clampSeconds(s.clock.Position())
	}
	return s.position
}

// SetPositionSeconds moves the stopped position. It fails with ErrPlaying
// while playing; callers pause first.
func (s *Scheduler) SetPositionSeconds(seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		return ErrPlaying
	}
	s.position = s.clampSeconds(seconds)
	return nil
}

func (s *Scheduler) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// ActiveNotes lists sounding notes, including pedal-held ones, ordered by
// channel then pitch.
func (s *Scheduler) ActiveNotes() []ActiveNote {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ActiveNote, 0, len(s.active))
	for n := range s.active {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Channel != out[j].Channel {
			return out[i].Channel < out[j].Channel
		}
		return out[i].Pitch < out[j].Pitch
	})
	return out
}

// ChannelState returns a copy of the controller state of ch.
func (s *Scheduler) ChannelState(ch int) channel.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.states.Get(ch)
}

func (s *Scheduler) clampSeconds(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > s.seq.DurationSeconds:
		return s.seq.DurationSeconds
	}
	return v
}

// silent plays nothing; it stands in when no instrument factory is set and
// while external audio is playing.
type silent struct{}

func (silent) Attack(int, float64) {}
func (silent) Release(int) {}
func (silent) ReleaseAll() {}
func (silent) Silence() {}
func (silent) SetDetune(float64) {}
func (silent) SetGain(float64) {}
func (silent) SetPan(float64) {}
func (silent) SetDepth(float64, float64) {}
func (silent) SetNotePressure(int, float64) {}
