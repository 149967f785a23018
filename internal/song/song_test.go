package song

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/seqplay-go/internal/timing"
)

func writeTestFile(t *testing.T) []byte {
	t.Helper()
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)

	var meta smf.Track
	meta.Add(0, smf.MetaMeter(4, 4))
	meta.Add(0, smf.MetaTempo(120))
	meta.Add(1920, smf.MetaTempo(60))
	meta.Close(0)
	require.NoError(t, s.Add(meta))

	var lead smf.Track
	lead.Add(0, midi.ControlChange(0, 7, 100))
	lead.Add(0, midi.NoteOn(0, 60, 127))
	lead.Add(240, midi.Pitchbend(0, 4096))
	lead.Add(240, midi.NoteOff(0, 60))
	lead.Add(0, midi.NoteOn(0, 64, 64))
	lead.Add(0, midi.NoteOn(9, 36, 100))
	lead.Add(1440, midi.NoteOff(0, 64))
	lead.Add(0, midi.NoteOff(9, 36))
	lead.Close(0)
	require.NoError(t, s.Add(lead))

	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadSplitsChannelsAndPairsNotes(t *testing.T) {
	seq, err := Read(bytes.NewReader(writeTestFile(t)), "demo")
	require.NoError(t, err)

	assert.Equal(t, "demo", seq.Name)
	assert.Equal(t, 480, seq.TicksPerQuarter)
	assert.Equal(t, 1920, seq.DurationTicks)
	require.Len(t, seq.Tracks, 2)
	assert.Equal(t, []int{0, 9}, seq.Channels())
	assert.Equal(t, 3, seq.NoteCount())

	lead := seq.Tracks[0]
	assert.Equal(t, 0, lead.Channel)
	assert.False(t, lead.IsDrum)
	require.Len(t, lead.Notes, 2)
	assert.Equal(t, 60, lead.Notes[0].Pitch)
	assert.InDelta(t, 1.0, lead.Notes[0].Velocity, 1e-9)
	assert.Equal(t, 480, lead.Notes[0].EndTick)
	assert.InDelta(t, 0.5, lead.Notes[0].EndTime, 1e-9)
	assert.Equal(t, 64, lead.Notes[1].Pitch)
	assert.Equal(t, 1440, lead.Notes[1].DurationTicks)
	assert.InDelta(t, 1.5, lead.Notes[1].Duration, 1e-9)

	require.Len(t, lead.PitchBends, 1)
	assert.InDelta(t, 0.5, lead.PitchBends[0].Value, 1e-9)
	assert.InDelta(t, 0.25, lead.PitchBends[0].Time, 1e-9)

	require.Len(t, lead.ControlChanges, 1)
	assert.Equal(t, 7, lead.ControlChanges[0].Controller)
	assert.InDelta(t, 100.0/127, lead.ControlChanges[0].Value, 1e-9)

	drums := seq.Tracks[1]
	assert.True(t, drums.IsDrum)
	assert.Equal(t, 36, drums.Notes[0].Pitch)
}

func TestReadCollectsTempoMap(t *testing.T) {
	seq, err := Read(bytes.NewReader(writeTestFile(t)), "demo")
	require.NoError(t, err)
	require.Len(t, seq.Tempos, 2)
	assert.InDelta(t, 120, seq.Tempos[0].BPM, 1e-6)
	assert.Equal(t, 1920, seq.Tempos[1].Tick)
	// The change at the very end never opens a segment.
	assert.Len(t, seq.Timing().Segments(), 1)
	assert.InDelta(t, 2.0, seq.DurationSeconds, 1e-9)
	assert.Equal(t, 1, seq.Timing().BarCount())
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("not a midi file")), "x")
	assert.Error(t, err)
}

func TestNewFillsTimesAndDerivesDuration(t *testing.T) {
	seq := New(Source{
		TicksPerQuarter: 480,
		Tempos:          []timing.Tempo{{Tick: 0, BPM: 60}},
		Tracks: []Track{{
			Channel: DrumChannel,
			Notes:   []Note{{Pitch: 38, StartTick: 960, DurationTicks: 480}, {Pitch: 36, StartTick: 0, DurationTicks: 240}},
			ControlChanges: []ControlChange{
				{Controller: 64, Tick: 480, Value: 1},
			},
		}},
	})
	assert.Equal(t, 1440, seq.DurationTicks)
	assert.InDelta(t, 3.0, seq.DurationSeconds, 1e-9)
	tr := seq.Tracks[0]
	assert.True(t, tr.IsDrum)
	assert.Equal(t, 36, tr.Notes[0].Pitch)
	assert.Equal(t, 1440, tr.Notes[1].EndTick)
	assert.InDelta(t, 2.0, tr.Notes[1].StartTime, 1e-9)
	assert.InDelta(t, 1.0, tr.ControlChanges[0].Time, 1e-9)
}
