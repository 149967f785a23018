package channel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/seqplay-go/internal/song"
)

func cc(controller int, t, v float64) song.ControlChange {
	return song.ControlChange{Controller: controller, Time: t, Value: v}
}

func TestDefaults(t *testing.T) {
	s := Defaults()
	assert.Equal(t, 2.0, s.BendRange)
	assert.Equal(t, 1.0, s.Volume)
	assert.Equal(t, 1.0, s.Expression)
	assert.Equal(t, 0.0, s.Pan)
	assert.False(t, s.SustainDown)
	assert.Empty(t, s.Sustained())
	assert.Equal(t, 0.0, s.Gain())
}

func TestRPNSetsBendRange(t *testing.T) {
	ranges := DeriveBendRange([]song.ControlChange{
		cc(CCDataEntryMSB, 0, 12.0/127),
		cc(CCRPNLSB, 0, 0),
		cc(CCRPNMSB, 0, 0),
	})
	require.Len(t, ranges, 1)
	assert.Equal(t, 12.0, ranges[0].Semitones)

	s := Defaults()
	s.BendRange = RangeAt(ranges, 0)
	s.SetPitchBend(0.5)
	assert.InDelta(t, 600, s.Detune(), 1e-9)
}

func TestRPNIgnoresDataEntryUnderOtherSelector(t *testing.T) {
	ranges := DeriveBendRange([]song.ControlChange{
		cc(CCDataEntryMSB, 0, 24.0/127), // selector still null
		cc(CCRPNMSB, 1, 0),
		cc(CCRPNLSB, 1, 1.0/127), // fine tuning
		cc(CCDataEntryMSB, 1, 64.0/127),
		cc(CCRPNLSB, 2, 0),
		cc(CCDataEntryMSB, 2, 7.0/127),
		cc(CCDataEntryLSB, 2, 50.0/127),
		cc(CCRPNMSB, 3, 1),
		cc(CCDataEntryMSB, 3, 1),
	})
	require.Len(t, ranges, 1)
	assert.Equal(t, RangeChange{Time: 2, Semitones: 7.5}, ranges[0])

	assert.Equal(t, DefaultBendRange, RangeAt(ranges, 1.999))
	assert.Equal(t, 7.5, RangeAt(ranges, 10))
}

func TestMergeRPNTiePriority(t *testing.T) {
	merged := MergeRPN([]song.ControlChange{
		cc(CCDataEntryLSB, 0, 0),
		cc(CCVolume, 0, 1),
		cc(CCDataEntryMSB, 0, 0),
		cc(CCRPNLSB, 0, 0),
		cc(CCRPNMSB, 0, 0),
		cc(CCRPNMSB, -1, 0),
	})
	var got []int
	for _, m := range merged {
		got = append(got, m.Controller)
	}
	assert.Equal(t, []int{CCRPNMSB, CCRPNMSB, CCRPNLSB, CCDataEntryMSB, CCDataEntryLSB}, got)
	assert.Equal(t, -1.0, merged[0].Time)
}

func TestVolumeAndPanMapping(t *testing.T) {
	s := Defaults()
	eff := s.ApplyControl(CCVolume, 0.5)
	assert.True(t, eff.Gain)
	assert.InDelta(t, 20*math.Log10(0.5), s.Gain(), 1e-9)

	eff = s.ApplyControl(CCPan, 0)
	assert.True(t, eff.Pan)
	assert.Equal(t, -1.0, s.Pan)

	s.ApplyControl(CCExpression, 0)
	assert.Equal(t, MinGainDB, s.Gain())
	assert.Equal(t, 1.0, PanPosition(1))
}

func TestVibratoAndTremoloDepth(t *testing.T) {
	s := Defaults()
	assert.True(t, s.ApplyControl(CCModWheel, 0.4).Depth)
	s.SetAftertouch(0.4)
	assert.InDelta(t, 0.6, s.Vibrato(), 1e-9)
	s.SetAftertouch(4)
	assert.Equal(t, 1.0, s.Vibrato())

	assert.True(t, s.ApplyControl(CCTremoloDepth, 0.25).Depth)
	assert.Equal(t, 0.25, s.Tremolo)
}

func TestSustainDefersRelease(t *testing.T) {
	s := Defaults()
	assert.False(t, s.NoteOn(60))
	assert.Nil(t, s.SetSustain(1))
	assert.False(t, s.NoteOff(60), "release must wait for the pedal")
	assert.Equal(t, []int{60}, s.Sustained())

	eff := s.ApplyControl(CCSustain, 0.2)
	assert.Equal(t, []int{60}, eff.Release)
	assert.Empty(t, s.Sustained())
	assert.True(t, s.NoteOff(61))
}

func TestSustainedPitchIsForceReleasedOnRetrigger(t *testing.T) {
	s := Defaults()
	s.SetSustain(0.9)
	s.NoteOn(60)
	s.NoteOff(60)
	assert.True(t, s.NoteOn(60))
	assert.Empty(t, s.Sustained())
	assert.Nil(t, s.SetSustain(0))
}

func TestSustainRepeatedDownKeepsSet(t *testing.T) {
	s := Defaults()
	s.SetSustain(0.5)
	s.NoteOff(62)
	s.NoteOff(60)
	assert.Nil(t, s.SetSustain(0.7))
	assert.Equal(t, []int{60, 62}, s.SetSustain(0.49))
}

func TestResetAllControllers(t *testing.T) {
	s := Defaults()
	s.SetPitchBend(0.3)
	s.ApplyControl(CCExpression, 0.1)
	s.SetSustain(1)
	s.NoteOff(40)
	eff := s.ApplyControl(CCResetAll, 0)
	assert.Equal(t, []int{40}, eff.Release)
	assert.Equal(t, 0.0, s.PitchBend)
	assert.Equal(t, 1.0, s.Expression)

	s.SetSustain(1)
	s.NoteOff(41)
	assert.True(t, s.ApplyControl(CCAllNotesOff, 0).AllNotesOff)
	assert.Empty(t, s.Sustained())
}

func TestBankCreatesLazilyAndResets(t *testing.T) {
	b := NewBank()
	st := b.Get(3)
	st.Volume = 0.2
	assert.Same(t, st, b.Get(3))
	b.ResetAll()
	assert.Equal(t, 1.0, b.Get(3).Volume)

	assert.True(t, ValidChannel(15))
	assert.False(t, ValidChannel(16))
	assert.False(t, ValidChannel(-1))
}
