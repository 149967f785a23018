package song

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/seqplay-go/internal/timing"
)

// ReadFile parses a Standard MIDI File from disk.
func ReadFile(path string) (*Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MIDI file: %w", err)
	}
	defer f.Close()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Read(f, name)
}

// Read parses a Standard MIDI File. Every file track is split by channel, so
// one Track holds the events of one channel within one file track.
func Read(r io.Reader, name string) (*Sequence, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}
	src := Source{Name: name, TicksPerQuarter: timing.DefaultTicksPerQuarter}
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		src.TicksPerQuarter = int(mt.Resolution())
	}

	for _, tr := range s.Tracks {
		p := newTrackParser()
		var tick int
		for _, ev := range tr {
			tick += int(ev.Delta)
			p.handle(tick, ev.Message, &src)
		}
		src.Tracks = append(src.Tracks, p.finish(tick)...)
		if tick > src.DurationTicks {
			src.DurationTicks = tick
		}
	}
	if last := lastTick(src.Tracks); last > src.DurationTicks {
		src.DurationTicks = last
	}
	return New(src), nil
}

type pendingNote struct {
	tick     int
	velocity float64
}

// trackParser gathers the channel streams of a single file track.
type trackParser struct {
	name     string
	channels map[int]*Track
	open     map[[2]int][]pendingNote
}

func newTrackParser() *trackParser {
	return &trackParser{
		channels: map[int]*Track{},
		open:     map[[2]int][]pendingNote{},
	}
}

func (p *trackParser) track(ch uint8) *Track {
	t, ok := p.channels[int(ch)]
	if !ok {
		t = &Track{Channel: int(ch), IsDrum: ch == DrumChannel}
		p.channels[int(ch)] = t
	}
	return t
}

func (p *trackParser) handle(tick int, msg smf.Message, src *Source) {
	var (
		bpm      float64
		num, den uint8
		text     string
		ch, key  uint8
		vel, val uint8
		rel      int16
		abs      uint16
		ctrl     uint8
		program  uint8
		pressure uint8
	)
	switch {
	case msg.GetMetaTempo(&bpm):
		src.Tempos = append(src.Tempos, timing.Tempo{Tick: tick, BPM: bpm})
		return
	case msg.GetMetaMeter(&num, &den):
		src.TimeSignatures = append(src.TimeSignatures, timing.TimeSignature{Tick: tick, Numerator: int(num), Denominator: int(den)})
		return
	case msg.GetMetaTrackName(&text):
		p.name = text
		return
	}

	m := midi.Message(msg)
	switch {
	case m.GetNoteStart(&ch, &key, &vel):
		k := [2]int{int(ch), int(key)}
		p.track(ch)
		p.open[k] = append(p.open[k], pendingNote{tick: tick, velocity: float64(vel) / 127})
	case m.GetNoteEnd(&ch, &key):
		k := [2]int{int(ch), int(key)}
		queue := p.open[k]
		if len(queue) == 0 {
			return
		}
		on := queue[0]
		p.open[k] = queue[1:]
		t := p.track(ch)
		t.Notes = append(t.Notes, Note{Pitch: int(key), Velocity: on.velocity, StartTick: on.tick, EndTick: tick})
	case m.GetPitchBend(&ch, &rel, &abs):
		t := p.track(ch)
		t.PitchBends = append(t.PitchBends, PitchBend{Tick: tick, Value: clamp(float64(rel)/8192, -1, 1)})
	case m.GetControlChange(&ch, &ctrl, &val):
		t := p.track(ch)
		t.ControlChanges = append(t.ControlChanges, ControlChange{Controller: int(ctrl), Tick: tick, Value: float64(val) / 127})
	case m.GetAfterTouch(&ch, &pressure):
		t := p.track(ch)
		t.ChannelAftertouch = append(t.ChannelAftertouch, Aftertouch{Tick: tick, Value: float64(pressure) / 127})
	case m.GetPolyAfterTouch(&ch, &key, &pressure):
		t := p.track(ch)
		t.NoteAftertouch = append(t.NoteAftertouch, NoteAftertouch{Pitch: int(key), Tick: tick, Value: float64(pressure) / 127})
	case m.GetProgramChange(&ch, &program):
		t := p.track(ch)
		if len(t.Notes) == 0 {
			t.Program = int(program)
		}
	}
}

// finish closes notes left hanging at the end of the track and returns the
// non-empty channel tracks ordered by channel.
func (p *trackParser) finish(endTick int) []Track {
	for k, queue := range p.open {
		t := p.track(uint8(k[0]))
		for _, on := range queue {
			t.Notes = append(t.Notes, Note{Pitch: k[1], Velocity: on.velocity, StartTick: on.tick, EndTick: endTick})
		}
	}
	chans := make([]int, 0, len(p.channels))
	for ch := range p.channels {
		chans = append(chans, ch)
	}
	sort.Ints(chans)

	out := make([]Track, 0, len(chans))
	for _, ch := range chans {
		t := p.channels[ch]
		if t.Empty() {
			continue
		}
		t.Name = p.name
		if t.Name == "" {
			t.Name = fmt.Sprintf("Channel %d", ch+1)
		}
		out = append(out, *t)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
