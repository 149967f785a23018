package scheduler

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/cbegin/seqplay-go/internal/automation"
	"github.com/cbegin/seqplay-go/internal/channel"
	"github.com/cbegin/seqplay-go/internal/instrument"
)

// Same-time events apply in this order: range before bends so a bend lands
// on the new range, note-offs before note-ons so a repeated pitch
// re-attacks cleanly, and per-note pressure after the attack it targets.
const (
	prioRange = iota
	prioControl
	prioBend
	prioNoteOff
	prioNoteOn
	prioPressure
	prioLateOff
)

type pending struct {
	at   float64
	prio int
	fn   func()
}

// PlayFrom starts playback at seconds. It first awaits the unlock hook and,
// in external mode, the recording; if Pause, SetAudioMode or another PlayFrom
// happens meanwhile it returns ErrSuperseded without touching anything.
// A failed load leaves the transport stopped and silent.
func (s *Scheduler) PlayFrom(ctx context.Context, seconds float64) error {
	s.mu.Lock()
	if s.mode == ModeExternal && s.source == nil {
		s.mu.Unlock()
		return ErrNoExternalSource
	}
	s.gen++
	gen := s.gen
	mode := s.mode
	var src ExternalSource
	needLoad := mode == ModeExternal && s.track == nil
	if needLoad {
		src = *s.source
	}
	unlock, loader := s.unlock, s.loader
	s.mu.Unlock()

	if unlock != nil {
		if err := unlock(ctx); err != nil {
			return s.fail(gen, fmt.Errorf("unlock audio: %w", err))
		}
	}
	var loaded ExternalTrack
	if needLoad {
		if loader == nil {
			return s.fail(gen, ErrNoLoader)
		}
		tr, err := loader(ctx, src)
		if err != nil {
			return s.fail(gen, fmt.Errorf("load %s: %w", src.Name, err))
		}
		loaded = tr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		s.log.Debug().Uint64("gen", gen).Uint64("current", s.gen).Msg("stale play request dropped")
		if loaded != nil {
			loaded.Halt()
		}
		return ErrSuperseded
	}
	if loaded != nil && s.source != nil && s.source.key() == src.key() {
		s.track = loaded
	}
	s.startLocked(gen, s.clampSeconds(seconds))
	return nil
}

// fail reports err unless the request went stale meanwhile, halting any
// playback the request already invalidated.
func (s *Scheduler) fail(gen uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return ErrSuperseded
	}
	s.haltLocked()
	s.log.Warn().Err(err).Uint64("gen", gen).Msg("playback failed")
	return err
}

// Pause stops playback, cancels everything scheduled and silences output at
// once. Pending PlayFrom calls become stale.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.haltLocked()
}

func (s *Scheduler) haltLocked() {
	if s.playing {
		s.position = s.clampSeconds(s.clock.Position())
	}
	s.clock.Stop()
	s.clock.CancelAll()
	for _, inst := range s.instruments {
		inst.ReleaseAll()
		inst.Silence()
	}
	if s.track != nil {
		s.track.Halt()
	}
	s.active = map[ActiveNote]int{}
	s.deferred = map[ActiveNote]int{}
	if s.playing {
		s.log.Debug().Uint64("gen", s.gen).Float64("at", s.position).Msg("playback stopped")
	}
	s.playing = false
}

// instrument returns what plays ch in the current mode.
func (s *Scheduler) instrument(ch int) instrument.Instrument {
	if s.mode == ModeExternal {
		return silent{}
	}
	if inst, ok := s.instruments[ch]; ok {
		return inst
	}
	return silent{}
}

func (s *Scheduler) startLocked(gen uint64, from float64) {
	s.clock.Stop()
	s.clock.CancelAll()
	for _, inst := range s.instruments {
		inst.ReleaseAll()
	}
	s.active = map[ActiveNote]int{}
	s.deferred = map[ActiveNote]int{}

	var queue []pending
	for _, p := range s.plans {
		s.resumeChannel(p, from)
		queue = append(queue, s.planEvents(p, from)...)
	}
	sort.SliceStable(queue, func(i, j int) bool {
		if queue[i].at != queue[j].at {
			return queue[i].at < queue[j].at
		}
		return queue[i].prio < queue[j].prio
	})
	mode := s.mode
	for _, ev := range queue {
		s.clock.ScheduleOnce(ev.at, s.guard(gen, mode, ev.fn))
	}
	s.clock.ScheduleOnce(s.seq.DurationSeconds, func() { s.ended(gen, mode) })

	s.playing = true
	s.position = from
	if mode == ModeExternal && s.track != nil {
		s.track.Cue(from)
	}
	s.log.Info().Uint64("gen", gen).Float64("from", from).Str("mode", mode.String()).
		Int("events", len(queue)).Msg("playback started")
	s.clock.Start(from)
}

// resumeChannel resets ch and replays its automation up to from so the
// state is right from the first frame.
func (s *Scheduler) resumeChannel(p *plan, from float64) {
	st := s.states.Get(p.channel)
	st.Reset()
	st.BendRange = channel.RangeAt(p.ranges, from)
	downSince, cleared := 0.0, math.Inf(-1)
	for _, c := range p.controls {
		if c.Time > from {
			break
		}
		wasDown := st.SustainDown
		st.ApplyControl(c.controller, c.Value)
		if st.SustainDown && !wasDown {
			downSince = c.Time
		}
		if c.controller == channel.CCAllSoundOff || c.controller == channel.CCAllNotesOff {
			cleared = c.Time
		}
	}
	if pt, ok := automation.LatestAt(p.bends, from); ok {
		st.SetPitchBend(pt.Value)
	}
	if pt, ok := automation.LatestAt(p.touch, from); ok {
		st.SetAftertouch(pt.Value)
	}
	inst := s.instrument(p.channel)
	inst.SetDetune(st.Detune())
	inst.SetGain(st.Gain())
	inst.SetPan(st.Pan)
	inst.SetDepth(st.Vibrato(), st.Tremolo)
	if st.SustainDown {
		s.resumeHeld(p, from, downSince, cleared, st, inst)
	}
}

// resumeHeld attacks the notes that ended before from but are still held by
// a pedal that has stayed down since before their note-off. They are
// deferred, so the next pedal-up or retrigger releases them.
func (s *Scheduler) resumeHeld(p *plan, from, downSince, cleared float64, st *channel.State, inst instrument.Instrument) {
	for i, n := range p.notes {
		if !endedBefore(n.StartTime, n.EndTime, from) || n.EndTime < downSince || n.EndTime <= cleared {
			continue
		}
		if retriggered(p, i, from) {
			continue
		}
		st.NoteOn(n.Pitch)
		st.NoteOff(n.Pitch)
		inst.Attack(n.Pitch, n.Velocity)
		key := ActiveNote{p.channel, n.Pitch}
		s.active[key]++
		s.deferred[key]++
	}
}

// endedBefore reports whether a note's off falls before from, so planEvents
// does not schedule it.
func endedBefore(start, end, from float64) bool {
	return end < from || (end == from && start < from)
}

// retriggered reports whether another note of the same pitch started after
// note i ended and before from, force-releasing it.
func retriggered(p *plan, i int, from float64) bool {
	n := p.notes[i]
	for j, m := range p.notes {
		if m.StartTime >= from {
			break
		}
		if j != i && m.Pitch == n.Pitch && m.StartTime >= n.EndTime {
			return true
		}
	}
	return false
}

// latestPressure is the last pressure value of pitch within [since, until].
func latestPressure(ps []pressure, pitch int, since, until float64) (float64, bool) {
	v, ok := 0.0, false
	for _, a := range ps {
		if a.Time > until {
			break
		}
		if a.pitch == pitch && a.Time >= since {
			v, ok = a.Value, true
		}
	}
	return v, ok
}

func (s *Scheduler) planEvents(p *plan, from float64) []pending {
	ch := p.channel
	var out []pending
	for _, r := range p.ranges {
		if r.Time > from {
			r := r
			out = append(out, pending{r.Time, prioRange, func() { s.onRange(ch, r.Semitones) }})
		}
	}
	for _, c := range p.scheduled {
		if c.Time > from {
			c := c
			out = append(out, pending{c.Time, prioControl, func() { s.onControl(ch, c.controller, c.Value) }})
		}
	}
	for _, b := range automation.After(p.bends, from) {
		v := b.Value
		out = append(out, pending{b.Time, prioBend, func() { s.onBend(ch, v) }})
	}
	for _, a := range automation.After(p.touch, from) {
		v := a.Value
		out = append(out, pending{a.Time, prioBend, func() { s.onAftertouch(ch, v) }})
	}
	for _, a := range p.pressure {
		if a.Time > from {
			a := a
			out = append(out, pending{a.Time, prioPressure, func() { s.instrument(ch).SetNotePressure(a.pitch, a.Value) }})
		}
	}
	for _, n := range p.notes {
		if endedBefore(n.StartTime, n.EndTime, from) {
			continue
		}
		start := n.StartTime
		if start < from {
			start = from
		}
		pitch, vel := n.Pitch, n.Velocity
		out = append(out, pending{start, prioNoteOn, func() { s.onNoteOn(ch, pitch, vel) }})
		if start == from {
			if v, ok := latestPressure(p.pressure, pitch, n.StartTime, from); ok {
				out = append(out, pending{from, prioPressure, func() { s.instrument(ch).SetNotePressure(pitch, v) }})
			}
		}
		offPrio := prioNoteOff
		if n.EndTime <= start {
			offPrio = prioLateOff
		}
		out = append(out, pending{n.EndTime, offPrio, func() { s.onNoteOff(ch, pitch) }})
	}
	return out
}

// guard drops a callback that belongs to an older generation or mode.
func (s *Scheduler) guard(gen uint64, mode Mode, fn func()) func() {
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen || s.mode != mode {
			return
		}
		fn()
	}
}

func (s *Scheduler) ended(gen uint64, mode Mode) {
	s.mu.Lock()
	if s.gen != gen || s.mode != mode {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.haltLocked()
	s.position = s.seq.DurationSeconds
	cb := s.onEnded
	s.log.Info().Uint64("gen", gen).Msg("playback ended")
	s.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (s *Scheduler) onRange(ch int, semitones float64) {
	st := s.states.Get(ch)
	st.BendRange = semitones
	s.instrument(ch).SetDetune(st.Detune())
}

func (s *Scheduler) onBend(ch int, v float64) {
	st := s.states.Get(ch)
	st.SetPitchBend(v)
	s.instrument(ch).SetDetune(st.Detune())
}

func (s *Scheduler) onAftertouch(ch int, v float64) {
	st := s.states.Get(ch)
	st.SetAftertouch(v)
	s.instrument(ch).SetDepth(st.Vibrato(), st.Tremolo)
}

func (s *Scheduler) onControl(ch, controller int, v float64) {
	st := s.states.Get(ch)
	inst := s.instrument(ch)
	eff := st.ApplyControl(controller, v)
	if eff.Gain {
		inst.SetGain(st.Gain())
	}
	if eff.Pan {
		inst.SetPan(st.Pan)
	}
	if eff.Depth {
		inst.SetDepth(st.Vibrato(), st.Tremolo)
	}
	for _, pitch := range eff.Release {
		s.releaseDeferred(ch, pitch, inst)
	}
	if eff.AllNotesOff {
		inst.ReleaseAll()
		for n := range s.active {
			if n.Channel == ch {
				delete(s.active, n)
				delete(s.deferred, n)
			}
		}
	}
}

func (s *Scheduler) onNoteOn(ch, pitch int, velocity float64) {
	st := s.states.Get(ch)
	inst := s.instrument(ch)
	if st.NoteOn(pitch) {
		s.releaseDeferred(ch, pitch, inst)
	}
	inst.Attack(pitch, velocity)
	s.active[ActiveNote{ch, pitch}]++
}

func (s *Scheduler) onNoteOff(ch, pitch int) {
	key := ActiveNote{ch, pitch}
	if s.active[key] == 0 {
		return
	}
	st := s.states.Get(ch)
	if !st.NoteOff(pitch) {
		s.deferred[key]++
		return
	}
	s.instrument(ch).Release(pitch)
	s.dropActive(key, 1)
}

// releaseDeferred releases every voice of pitch held only by the pedal.
func (s *Scheduler) releaseDeferred(ch, pitch int, inst instrument.Instrument) {
	key := ActiveNote{ch, pitch}
	n := s.deferred[key]
	delete(s.deferred, key)
	for i := 0; i < n; i++ {
		inst.Release(pitch)
	}
	s.dropActive(key, n)
}

func (s *Scheduler) dropActive(key ActiveNote, n int) {
	if left := s.active[key] - n; left > 0 {
		s.active[key] = left
		return
	}
	delete(s.active, key)
}
