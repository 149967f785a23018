// Package seqplay plays Standard MIDI Files through a small built-in synth or
// alongside an external recording, with bar/beat aware seeking.
package seqplay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	intaudio "github.com/cbegin/seqplay-go/internal/audio"
	"github.com/cbegin/seqplay-go/internal/automation"
	"github.com/cbegin/seqplay-go/internal/clock"
	"github.com/cbegin/seqplay-go/internal/instrument"
	"github.com/cbegin/seqplay-go/internal/scheduler"
	"github.com/cbegin/seqplay-go/internal/song"
	"github.com/cbegin/seqplay-go/internal/synth"
	"github.com/cbegin/seqplay-go/internal/timing"
)

// PlaybackEvent is delivered on the Watch channel.
type PlaybackEvent struct {
	Kind     int // EventStarted, EventPaused or EventPlaybackEnded
	Position float64
}

const (
	EventStarted int = iota
	EventPaused
	EventPlaybackEnded
)

type AudioMode = scheduler.Mode

const (
	AudioModeSynth    = scheduler.ModeSynth
	AudioModeExternal = scheduler.ModeExternal
)

type PlayerOption func(*playerConfig)

type playerConfig struct {
	sampleRate  int
	log         zerolog.Logger
	pageBars    float64
	masterGain  float64
	synthParams synth.Params
	bendParams  automation.Params
	ccParams    automation.Params
	headless    bool
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{
		sampleRate:  48000,
		log:         zerolog.Nop(),
		pageBars:    4,
		masterGain:  0.3,
		synthParams: synth.DefaultParams(),
		bendParams:  automation.PitchBendParams(),
		ccParams:    automation.ControllerParams(),
	}
}

func WithSampleRate(sampleRate int) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleRate = sampleRate
	}
}

func WithLogger(l zerolog.Logger) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.log = l
	}
}

// WithPageBars sets how many bars a page spans for paging and page seeks.
func WithPageBars(bars float64) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.pageBars = bars
	}
}

func WithMasterGain(gain float64) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.masterGain = gain
	}
}

func WithSynthParams(params synth.Params) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.synthParams = params
	}
}

func WithCompaction(bend, controller automation.Params) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.bendParams = bend
		cfg.ccParams = controller
	}
}

// WithHeadless keeps the player off the audio device. The caller pulls
// audio through Process, which also drives the transport.
func WithHeadless() PlayerOption {
	return func(cfg *playerConfig) {
		cfg.headless = true
	}
}

type Player struct {
	mu         sync.Mutex
	log        zerolog.Logger
	seq        *song.Sequence
	sampleRate int
	pageBars   float64
	headless   bool
	baseGain   float64
	volume     float64

	mixer     *synth.Mixer
	backing   *backingSlot
	transport *clock.Transport
	sched     *scheduler.Scheduler
	out       *intaudio.Output

	done      chan struct{}
	eventCh   chan PlaybackEvent
	eventChMu sync.Mutex
}

func NewPlayer(seq *song.Sequence, opts ...PlayerOption) (*Player, error) {
	if seq == nil {
		return nil, errors.New("nil sequence")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	p := &Player{
		log:        cfg.log,
		seq:        seq,
		sampleRate: cfg.sampleRate,
		pageBars:   cfg.pageBars,
		headless:   cfg.headless,
		baseGain:   cfg.masterGain,
		volume:     1,
		mixer:      synth.NewMixer(cfg.sampleRate, cfg.synthParams),
		backing:    &backingSlot{gain: 1},
	}
	p.mixer.SetMasterGain(p.baseGain)
	p.transport = clock.New(cfg.sampleRate, intaudio.NewSum(p.mixer, p.backing))

	schedOpts := []scheduler.Option{
		scheduler.WithLogger(cfg.log),
		scheduler.WithCompaction(cfg.bendParams, cfg.ccParams),
		scheduler.WithInstruments(func(ch int, isDrum bool, program int) instrument.Instrument {
			return instrument.New(p.mixer.Bank(ch), isDrum, program)
		}),
		scheduler.WithLoader(p.load),
		scheduler.WithOnEnded(p.ended),
	}
	if !cfg.headless {
		schedOpts = append(schedOpts, scheduler.WithUnlock(p.unlock))
	}
	sched, err := scheduler.New(seq, p.transport, schedOpts...)
	if err != nil {
		return nil, err
	}
	p.sched = sched
	return p, nil
}

// Open reads a MIDI file and builds a player for it.
func Open(path string, opts ...PlayerOption) (*Player, error) {
	seq, err := song.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewPlayer(seq, opts...)
}

func (p *Player) Sequence() *song.Sequence { return p.seq }
func (p *Player) Timing() *timing.Map      { return p.seq.Timing() }
func (p *Player) SampleRate() int          { return p.sampleRate }
func (p *Player) PageBars() float64        { return p.pageBars }

// unlock waits for the audio device and starts streaming the transport.
func (p *Player) unlock(ctx context.Context) error {
	if err := intaudio.WaitReady(ctx, p.sampleRate); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out == nil {
		out, err := intaudio.NewOutput(p.sampleRate, p.transport)
		if err != nil {
			return err
		}
		p.out = out
	}
	if !p.out.IsPlaying() {
		p.out.Play()
	}
	return nil
}

func (p *Player) load(ctx context.Context, src scheduler.ExternalSource) (scheduler.ExternalTrack, error) {
	if src.Open == nil {
		return nil, fmt.Errorf("source %s cannot be opened", src.Name)
	}
	rc, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	clip, err := intaudio.Decode(ctx, src.Name, rc, p.sampleRate)
	if err != nil {
		return nil, err
	}
	p.log.Debug().Str("source", src.Name).Float64("seconds", clip.Duration()).Msg("recording decoded")
	return &backingTrack{Backing: intaudio.NewBacking(clip, src.Offset), slot: p.backing}, nil
}

// Play resumes from the current position.
func (p *Player) Play(ctx context.Context) error {
	return p.PlayFrom(ctx, p.sched.PositionSeconds())
}

func (p *Player) PlayFrom(ctx context.Context, seconds float64) error {
	p.mu.Lock()
	if p.done == nil {
		p.done = make(chan struct{})
	}
	p.mu.Unlock()
	if err := p.sched.PlayFrom(ctx, seconds); err != nil {
		if !errors.Is(err, scheduler.ErrSuperseded) {
			p.signalDone()
		}
		return err
	}
	p.sendEvent(PlaybackEvent{Kind: EventStarted, Position: p.sched.PositionSeconds()})
	return nil
}

func (p *Player) Pause() {
	p.sched.Pause()
	p.sendEvent(PlaybackEvent{Kind: EventPaused, Position: p.sched.PositionSeconds()})
}

func (p *Player) ended() {
	p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded, Position: p.sched.PositionSeconds()})
	p.signalDone()
}

// Seek moves to seconds. Playback that was running continues from there,
// and watchers see EventPaused followed by EventStarted.
func (p *Player) Seek(ctx context.Context, seconds float64) error {
	wasPlaying := p.sched.IsPlaying()
	if wasPlaying {
		p.Pause()
	}
	if err := p.sched.SetPositionSeconds(seconds); err != nil {
		return err
	}
	if wasPlaying {
		return p.PlayFrom(ctx, p.sched.PositionSeconds())
	}
	return nil
}

func (p *Player) SeekTicks(ctx context.Context, ticks int) error {
	return p.Seek(ctx, p.Timing().TicksToSeconds(float64(ticks)))
}

// SeekBar moves to the first tick of the 1-based bar.
func (p *Player) SeekBar(ctx context.Context, bar int) error {
	return p.SeekTicks(ctx, p.Timing().BarStartTick(float64(bar)))
}

// StepUnit is the size of a relative seek.
type StepUnit int

const (
	StepBeat StepUnit = iota
	StepBar
	StepPage
)

// Step seeks by n beats, bars or pages from the current position, sized by
// the measures at that position.
func (p *Player) Step(ctx context.Context, unit StepUnit, n int) error {
	m := p.Timing()
	ticks := m.SecondsToTicks(p.sched.PositionSeconds())
	steps := m.SeekStepTicksAtTicks(float64(ticks), p.pageBars)
	size := steps.Beat
	switch unit {
	case StepBar:
		size = steps.Bar
	case StepPage:
		size = steps.Page
	}
	target := ticks + n*size
	if target < 0 {
		target = 0
	}
	return p.SeekTicks(ctx, target)
}

func (p *Player) IsPlaying() bool                     { return p.sched.IsPlaying() }
func (p *Player) Position() float64                   { return p.sched.PositionSeconds() }
func (p *Player) AudioMode() AudioMode                { return p.sched.Mode() }
func (p *Player) ActiveNotes() []scheduler.ActiveNote { return p.sched.ActiveNotes() }

// SetAudioMode switches what sounds. It pauses playback.
func (p *Player) SetAudioMode(mode AudioMode, src *scheduler.ExternalSource) error {
	return p.sched.SetAudioMode(mode, src)
}

// UseRecording switches to external audio from the file at path, shifted
// by offset seconds against the sequence.
func (p *Player) UseRecording(path string, offset float64) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	src := &scheduler.ExternalSource{
		Name:    fi.Name(),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
		Offset:  offset,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
	return p.sched.SetAudioMode(scheduler.ModeExternal, src)
}

// Process renders interleaved stereo and advances the transport. It is what
// the audio device pulls; headless players call it directly.
func (p *Player) Process(dst []float32) {
	p.transport.Process(dst)
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

func (p *Player) signalDone() {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if done != nil {
		close(done)
	}
}

// Wait blocks until playback reaches the end of the sequence. It returns at
// once if nothing has been played.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a channel that receives playback events. The channel is
// buffered (cap 8); events are dropped when it is full. Only the most recent
// Watch channel receives events.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// SetMasterVolume sets runtime volume scalar. 1.0 is default.
func (p *Player) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	p.mixer.SetMasterGain(p.baseGain * p.volume)
	p.backing.setGain(p.volume)
}

func (p *Player) MasterVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Close stops playback and releases the audio device.
func (p *Player) Close() error {
	p.sched.Pause()
	p.signalDone()
	p.mu.Lock()
	out := p.out
	p.out = nil
	p.mu.Unlock()
	if out != nil {
		return out.Close()
	}
	return nil
}

// backingSlot renders whichever recording was cued last.
type backingSlot struct {
	mu   sync.Mutex
	cur  *intaudio.Backing
	gain float64
}

func (s *backingSlot) set(b *intaudio.Backing) {
	s.mu.Lock()
	s.cur = b
	g := s.gain
	s.mu.Unlock()
	b.SetGain(g)
}

func (s *backingSlot) setGain(g float64) {
	s.mu.Lock()
	s.gain = g
	cur := s.cur
	s.mu.Unlock()
	if cur != nil {
		cur.SetGain(g)
	}
}

func (s *backingSlot) Process(dst []float32) {
	s.mu.Lock()
	cur := s.cur
	s.mu.Unlock()
	if cur == nil {
		for i := range dst {
			dst[i] = 0
		}
		return
	}
	cur.Process(dst)
}

type backingTrack struct {
	*intaudio.Backing
	slot *backingSlot
}

func (t *backingTrack) Cue(seconds float64) {
	t.slot.set(t.Backing)
	t.Backing.Cue(seconds)
}
