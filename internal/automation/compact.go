// Package automation reduces dense controller streams to the points worth
// scheduling.
package automation

import (
	"math"
	"sort"
)

// Point is one value of an automation stream at Time seconds.
type Point struct {
	Time  float64
	Value float64
}

// Params tunes compaction for one stream kind.
type Params struct {
	// Epsilon is the smallest value change that is kept.
	Epsilon float64 `yaml:"epsilon"`
	// MinInterval is the smallest spacing in seconds between kept points.
	MinInterval float64 `yaml:"min_interval"`
}

// PitchBendParams matches the 14-bit resolution of pitch bend.
func PitchBendParams() Params {
	return Params{Epsilon: 1.0 / 8192, MinInterval: 1.0 / 60}
}

// ControllerParams matches the 7-bit resolution of control changes and
// aftertouch.
func ControllerParams() Params {
	return Params{Epsilon: 1.0 / 127, MinInterval: 1.0 / 30}
}

// Compact returns a reduced copy of a time-sorted stream. The first point is
// always kept. A point closer than MinInterval to the last kept point is held
// as pending and replaced by any later such point, so the latest value wins.
// Once the stream moves MinInterval past the last kept point the pending
// value is kept at the first free slot, last kept time plus MinInterval.
// A point whose value is within Epsilon of the last kept value is dropped and
// discards the pending point, since the stream has returned to the kept value.
// The final pending point is flushed at its own time so the last distinct
// value survives.
func Compact(points []Point, p Params) []Point {
	in := make([]Point, 0, len(points))
	for _, pt := range points {
		if finite(pt.Time) && finite(pt.Value) {
			in = append(in, pt)
		}
	}
	if !sort.SliceIsSorted(in, func(i, j int) bool { return in[i].Time < in[j].Time }) {
		sort.SliceStable(in, func(i, j int) bool { return in[i].Time < in[j].Time })
	}
	if len(in) == 0 {
		return nil
	}

	out := []Point{in[0]}
	var pending *Point
	for i := 1; i < len(in); i++ {
		pt := in[i]
		last := out[len(out)-1]
		if pending != nil && pt.Time-last.Time >= p.MinInterval {
			last = Point{Time: last.Time + p.MinInterval, Value: pending.Value}
			out = append(out, last)
			pending = nil
		}
		if math.Abs(pt.Value-last.Value) < p.Epsilon {
			pending = nil
			continue
		}
		if pt.Time-last.Time < p.MinInterval {
			pending = &in[i]
			continue
		}
		out = append(out, pt)
	}
	if pending != nil {
		out = append(out, *pending)
	}
	return out
}

// LatestAt returns the last point at or before t.
func LatestAt(points []Point, t float64) (Point, bool) {
	i := sort.Search(len(points), func(i int) bool { return points[i].Time > t })
	if i == 0 {
		return Point{}, false
	}
	return points[i-1], true
}

// After returns the suffix of points strictly later than t.
func After(points []Point, t float64) []Point {
	i := sort.Search(len(points), func(i int) bool { return points[i].Time > t })
	return points[i:]
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
