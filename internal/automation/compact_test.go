package automation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactDensePitchBendStream(t *testing.T) {
	var pts []Point
	for i := 0; i < 100; i++ {
		pts = append(pts, Point{Time: float64(i) * 0.001, Value: float64(i) / 100})
	}
	out := Compact(pts, PitchBendParams())
	assert.Less(t, len(out), 20)
	assert.Equal(t, pts[0], out[0])
	assert.Equal(t, pts[99], out[len(out)-1])
}

func TestCompactBoundedByDuration(t *testing.T) {
	p := ControllerParams()
	var pts []Point
	for i := 0; i < 10000; i++ {
		v := 0.5 + 0.5*math.Sin(float64(i)/40)
		pts = append(pts, Point{Time: float64(i) * 0.0002, Value: v})
	}
	out := Compact(pts, p)
	duration := pts[len(pts)-1].Time
	assert.LessOrEqual(t, len(out), int(duration/p.MinInterval)+2)
	for i := 1; i < len(out)-1; i++ {
		assert.GreaterOrEqual(t, out[i].Time-out[i-1].Time, p.MinInterval-1e-9)
	}
}

func TestCompactDropsSubEpsilonChanges(t *testing.T) {
	pts := []Point{
		{Time: 0, Value: 0.5},
		{Time: 0.1, Value: 0.5 + 1.0/1000},
		{Time: 0.2, Value: 0.5 - 1.0/1000},
		{Time: 0.3, Value: 0.9},
	}
	out := Compact(pts, ControllerParams())
	assert.Equal(t, []Point{{Time: 0, Value: 0.5}, {Time: 0.3, Value: 0.9}}, out)
}

func TestCompactLatestValueWinsWithinInterval(t *testing.T) {
	pts := []Point{
		{Time: 0, Value: 0},
		{Time: 0.001, Value: 0.3},
		{Time: 0.002, Value: 0.6},
		{Time: 0.003, Value: 1},
	}
	out := Compact(pts, ControllerParams())
	require.Len(t, out, 2)
	assert.Equal(t, Point{Time: 0.003, Value: 1}, out[1])
}

func TestCompactKeepsCollapsedValueBeforeDistantPoint(t *testing.T) {
	p := PitchBendParams()
	pts := []Point{
		{Time: 0, Value: 0},
		{Time: 0.01, Value: 0.5},
		{Time: 1.0, Value: 0.6},
	}
	out := Compact(pts, p)
	require.Len(t, out, 3)
	assert.InDelta(t, p.MinInterval, out[1].Time, 1e-12)
	assert.Equal(t, 0.5, out[1].Value)
	assert.Equal(t, pts[2], out[2])

	at, ok := LatestAt(out, 0.5)
	require.True(t, ok)
	assert.Equal(t, 0.5, at.Value)
}

func TestCompactCollapsedValueMayItselfStartACluster(t *testing.T) {
	p := ControllerParams()
	pts := []Point{
		{Time: 0, Value: 1},
		{Time: 0.01, Value: 0.25},
		{Time: 0.04, Value: 0.5},
		{Time: 2, Value: 0.9},
	}
	out := Compact(pts, p)
	require.Len(t, out, 4)
	assert.Equal(t, 0.25, out[1].Value)
	assert.InDelta(t, 2*p.MinInterval, out[2].Time, 1e-12)
	assert.Equal(t, 0.5, out[2].Value)
	assert.Equal(t, pts[3], out[3])
}

func TestCompactReturnToKeptValueCancelsPending(t *testing.T) {
	pts := []Point{
		{Time: 0, Value: 0.2},
		{Time: 0.01, Value: 0.8},
		{Time: 0.02, Value: 0.2},
	}
	out := Compact(pts, ControllerParams())
	assert.Equal(t, []Point{{Time: 0, Value: 0.2}}, out)
}

func TestCompactSkipsNonFiniteAndSorts(t *testing.T) {
	pts := []Point{
		{Time: 1, Value: 1},
		{Time: math.NaN(), Value: 0.5},
		{Time: 0, Value: 0},
		{Time: 2, Value: math.Inf(1)},
	}
	out := Compact(pts, ControllerParams())
	assert.Equal(t, []Point{{Time: 0, Value: 0}, {Time: 1, Value: 1}}, out)
	assert.Nil(t, Compact(nil, ControllerParams()))
}

func TestLatestAtAndAfter(t *testing.T) {
	pts := []Point{{Time: 0, Value: 1}, {Time: 1, Value: 2}, {Time: 2, Value: 3}}

	_, ok := LatestAt(pts, -0.5)
	assert.False(t, ok)

	p, ok := LatestAt(pts, 1)
	require.True(t, ok)
	assert.Equal(t, 2.0, p.Value)

	assert.Equal(t, pts[2:], After(pts, 1))
	assert.Empty(t, After(pts, 5))
}
