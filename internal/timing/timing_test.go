package timing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fourFourThenThreeFour is two bars of 4/4 followed by 3/4 up to tick 9600.
func fourFourThenThreeFour() *Map {
	return New(Source{
		TicksPerQuarter: 480,
		DurationTicks:   9600,
		TimeSignatures: []TimeSignature{
			{Tick: 0, Numerator: 4, Denominator: 4},
			{Tick: 3840, Numerator: 3, Denominator: 4},
		},
	})
}

func TestSecondsToTicksRoundTrip(t *testing.T) {
	m := New(Source{
		TicksPerQuarter: 480,
		DurationTicks:   20000,
		Tempos:          []Tempo{{Tick: 0, BPM: 30}},
	})
	for _, tick := range []int{0, 1, 2, 123, 245, 490, 999, 1000, 12345} {
		assert.Equal(t, tick, m.SecondsToTicks(m.TicksToSeconds(float64(tick))), "tick %d", tick)
	}
}

func TestRoundTripAcrossTempoChanges(t *testing.T) {
	m := New(Source{
		TicksPerQuarter: 96,
		DurationTicks:   5000,
		Tempos: []Tempo{
			{Tick: 0, BPM: 133.7},
			{Tick: 700, BPM: 61.3},
			{Tick: 2100, BPM: 217},
		},
	})
	for tick := 0; tick <= 5000; tick++ {
		if got := m.SecondsToTicks(m.TicksToSeconds(float64(tick))); got != tick {
			t.Fatalf("round trip for tick %d = %d", tick, got)
		}
	}
}

func TestTempoChange(t *testing.T) {
	m := New(Source{
		TicksPerQuarter: 480,
		DurationTicks:   4800,
		Tempos:          []Tempo{{Tick: 0, BPM: 120}, {Tick: 1920, BPM: 60}},
	})
	assert.InDelta(t, 2.0, m.TicksToSeconds(1920), 1e-9)
	assert.InDelta(t, 3.0, m.TicksToSeconds(2400), 1e-9)
	assert.Equal(t, 2160, m.SecondsToTicks(2.5))
	assert.InDelta(t, 2.0+2880.0/480, m.DurationSeconds(), 1e-9)

	segs := m.Segments()
	require.Len(t, segs, 2)
	assert.Equal(t, segs[0].EndSeconds, segs[1].StartSeconds)
	assert.Equal(t, 1920, segs[0].EndTick)
	assert.Equal(t, 4800, segs[1].EndTick)
}

func TestImplicitDefaultTempoBeforeFirstEvent(t *testing.T) {
	m := New(Source{
		TicksPerQuarter: 480,
		DurationTicks:   1920,
		Tempos:          []Tempo{{Tick: 480, BPM: 60}},
	})
	assert.InDelta(t, 0.25, m.TicksToSeconds(240), 1e-9)
	assert.InDelta(t, 0.5, m.TicksToSeconds(480), 1e-9)
	assert.InDelta(t, 1.5, m.TicksToSeconds(960), 1e-9)
	assert.Equal(t, 120.0, m.TempoAtTicks(0))
	assert.Equal(t, 60.0, m.TempoAtTicks(480))
}

func TestInvalidTemposDiscardedAndDuplicatesLastWins(t *testing.T) {
	m := New(Source{
		TicksPerQuarter: 0,
		DurationTicks:   1920,
		Tempos: []Tempo{
			{Tick: -5, BPM: 200},
			{Tick: 0, BPM: math.NaN()},
			{Tick: 0, BPM: 90},
			{Tick: 0, BPM: 60},
			{Tick: 960, BPM: math.Inf(1)},
			{Tick: 960, BPM: -1},
		},
	})
	assert.Equal(t, DefaultTicksPerQuarter, m.TicksPerQuarter())
	require.Len(t, m.Tempos(), 1)
	assert.Equal(t, 60.0, m.Tempos()[0].BPM)
	assert.InDelta(t, 4.0, m.DurationSeconds(), 1e-9)
}

func TestTemposBeyondDurationIgnored(t *testing.T) {
	m := New(Source{
		TicksPerQuarter: 480,
		DurationTicks:   960,
		Tempos:          []Tempo{{Tick: 0, BPM: 120}, {Tick: 960, BPM: 30}, {Tick: 5000, BPM: 10}},
	})
	require.Len(t, m.Segments(), 1)
	assert.InDelta(t, 1.0, m.DurationSeconds(), 1e-9)
}

func TestSanitization(t *testing.T) {
	m := New(Source{TicksPerQuarter: 480, DurationTicks: 960})
	assert.Equal(t, 0.0, m.TicksToSeconds(math.NaN()))
	assert.Equal(t, m.DurationSeconds(), m.TicksToSeconds(math.Inf(1)))
	assert.Equal(t, 0.0, m.TicksToSeconds(math.Inf(-1)))
	assert.Equal(t, 0.0, m.TicksToSeconds(-10))
	assert.Equal(t, 0, m.SecondsToTicks(math.NaN()))
	assert.Equal(t, 960, m.SecondsToTicks(math.Inf(1)))
	assert.Equal(t, 960, m.SecondsToTicks(99))

	bb := m.BarBeatAtTicks(math.NaN())
	assert.Equal(t, 1, bb.Bar)
	assert.Equal(t, 1, bb.Beat)
	assert.Equal(t, 0, bb.SubBeat1000)
}

func TestEmptySequence(t *testing.T) {
	m := New(Source{})
	assert.Equal(t, 0.0, m.DurationSeconds())
	assert.Equal(t, 0, m.SecondsToTicks(3))
	assert.Equal(t, 1, m.BarCount())
	assert.Equal(t, BarBeat{Bar: 1, Beat: 1, BeatsInBar: 4, TimeSignature: TimeSignature{Numerator: 4, Denominator: 4}}, m.BarBeatAtTicks(0))
}

func TestBarBeatWithSignatureChange(t *testing.T) {
	m := fourFourThenThreeFour()

	var starts []int
	for bar := 1; bar <= 4; bar++ {
		starts = append(starts, m.BarStartTick(float64(bar)))
	}
	assert.Equal(t, []int{0, 1920, 3840, 5280}, starts)

	bb := m.BarBeatAtTicks(1920 + 960)
	assert.Equal(t, 2, bb.Bar)
	assert.Equal(t, 3, bb.Beat)

	bb = m.BarBeatAtTicks(3840 + 960)
	assert.Equal(t, 3, bb.Bar)
	assert.Equal(t, 3, bb.Beat)
	assert.Equal(t, 3, bb.BeatsInBar)

	bb = m.BarBeatAtTicks(3840 + 240)
	assert.Equal(t, 1, bb.Beat)
	assert.Equal(t, 500, bb.SubBeat1000)
}

func TestBarBeatAtEndIsExclusive(t *testing.T) {
	m := New(Source{TicksPerQuarter: 480, DurationTicks: 3840})
	bb := m.BarBeatAtTicks(3840)
	assert.Equal(t, 2, bb.Bar)
	assert.Equal(t, 4, bb.Beat)
	assert.Equal(t, 997, bb.SubBeat1000)
	assert.Equal(t, 2, m.BarCount())
}

func TestBarStartTickOutOfRange(t *testing.T) {
	m := fourFourThenThreeFour()
	assert.Equal(t, 0, m.BarStartTick(0))
	assert.Equal(t, 0, m.BarStartTick(-3))
	assert.Equal(t, 0, m.BarStartTick(math.NaN()))
	assert.Equal(t, 9600, m.BarStartTick(50))
	assert.Equal(t, 9600, m.BarStartTick(math.Inf(1)))
}

func TestForcedBoundaryAtMidMeasureSignatureChange(t *testing.T) {
	m := New(Source{
		TicksPerQuarter: 480,
		DurationTicks:   6000,
		TimeSignatures: []TimeSignature{
			{Tick: 0, Numerator: 4, Denominator: 4},
			{Tick: 2400, Numerator: 6, Denominator: 8},
		},
	})
	ms := m.Measures()
	require.GreaterOrEqual(t, len(ms), 3)
	assert.Equal(t, 1920, ms[1].StartTick)
	assert.Equal(t, 2400, ms[2].StartTick)
	assert.Equal(t, 6, ms[2].TimeSignature.Numerator)
	assert.Equal(t, 4, m.TimeSignatureAtTicks(2399).Numerator)
	assert.Equal(t, 8, m.TimeSignatureAtTicks(2400).Denominator)
}

func TestPaging(t *testing.T) {
	m := fourFourThenThreeFour()
	assert.Equal(t, PageRange{PageIndex: 1, StartBar: 3, EndBar: 4}, m.PageRangeForBar(3, 2))
	assert.Equal(t, TickRange{StartTick: 3840, EndTick: 6720}, m.PageTickRange(1, 2))
	assert.Equal(t, 1, m.PageIndexForBar(4, 2))
	assert.Equal(t, 0, m.PageIndexForBar(math.NaN(), 2))
	assert.Equal(t, 4, m.PageIndexForBar(5, math.NaN()))
	assert.Equal(t, 3, m.PageCount(2))
	assert.Equal(t, TickRange{StartTick: 0, EndTick: 3840}, m.PageTickRange(math.NaN(), 2))
}

func TestSeekStepsFollowActualMeasures(t *testing.T) {
	m := fourFourThenThreeFour()

	four := m.SeekStepTicksAtTicks(100, 2)
	assert.Equal(t, SeekSteps{Beat: 480, Bar: 1920, Page: 3840}, four)

	three := m.SeekStepTicksAtTicks(4000, 2)
	assert.Equal(t, 480, three.Beat)
	assert.Equal(t, 1440, three.Bar)
	assert.Equal(t, 6720-3840, three.Page)

	assert.Equal(t, m.SeekStepTicksAtTicks(0, 1), m.SeekStepTicksAtTicks(math.NaN(), math.NaN()))
}
