package instrument

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/seqplay-go/internal/synth"
)

type fakeVoices struct {
	started  []synth.Tone
	stopped  []int
	stopAll  int
	silenced int
	detune   float64
	pressure map[int]float64
}

func (f *fakeVoices) Start(t synth.Tone) int {
	f.started = append(f.started, t)
	return len(f.started) - 1
}
func (f *fakeVoices) Stop(id int) { f.stopped = append(f.stopped, id) }
func (f *fakeVoices) StopAll() { f.stopAll++ }
func (f *fakeVoices) Silence() { f.silenced++ }
func (f *fakeVoices) SetDetune(c float64) { f.detune = c }
func (f *fakeVoices) SetGain(float64) {}
func (f *fakeVoices) SetPan(float64) {}
func (f *fakeVoices) SetDepth(float64, float64) {}
func (f *fakeVoices) SetPressure(id int, v float64) {
	if f.pressure == nil {
		f.pressure = map[int]float64{}
	}
	f.pressure[id] = v
}

func TestPolyReleasesSamePitchFirstInFirstOut(t *testing.T) {
	fv := &fakeVoices{}
	p := NewPoly(fv, synth.WaveSaw)
	p.Attack(60, 1)
	p.Attack(60, 0.5)
	p.Attack(64, 1)
	assert.Equal(t, 2, p.Held(60))

	p.Release(60)
	p.Release(60)
	p.Release(60)
	assert.Equal(t, []int{0, 1}, fv.stopped)
	assert.Zero(t, p.Held(60))
	assert.Equal(t, 1, p.Held(64))
}

func TestPolyPressureTargetsHeldVoices(t *testing.T) {
	fv := &fakeVoices{}
	p := NewPoly(fv, synth.WaveSaw)
	p.Attack(60, 1)
	p.Attack(62, 1)
	p.SetNotePressure(62, 0.7)
	assert.Equal(t, map[int]float64{1: 0.7}, fv.pressure)
}

func TestPolyReleaseAllAndSilenceForget(t *testing.T) {
	fv := &fakeVoices{}
	p := NewPoly(fv, synth.WaveSaw)
	p.Attack(60, 1)
	p.ReleaseAll()
	assert.Zero(t, p.Held(60))
	p.Attack(61, 1)
	p.Silence()
	assert.Zero(t, p.Held(61))
	assert.Equal(t, 1, fv.stopAll)
	assert.Equal(t, 1, fv.silenced)
}

func TestDrumKitUsesFixedTonesAndIgnoresDetune(t *testing.T) {
	fv := &fakeVoices{}
	inst := New(fv, true, 0)
	_, ok := inst.(*DrumKit)
	require.True(t, ok)

	inst.SetDetune(300)
	inst.Attack(36, 1)
	inst.Attack(42, 1)
	inst.Attack(127, 1)
	inst.Release(36)
	assert.Zero(t, fv.detune)
	assert.Empty(t, fv.stopped)
	require.Len(t, fv.started, 3)
	assert.Equal(t, synth.WaveTriangle, fv.started[0].Wave)
	assert.Equal(t, synth.WaveNoise, fv.started[1].Wave)
	for _, tone := range fv.started {
		assert.Greater(t, tone.Decay, 0.0)
	}
}

func TestNewPicksPolyByProgram(t *testing.T) {
	inst := New(&fakeVoices{}, false, 40)
	p, ok := inst.(*Poly)
	require.True(t, ok)
	assert.Equal(t, synth.WaveSaw, p.wave)
	assert.Equal(t, synth.WaveTriangle, WaveForProgram(0))
}
