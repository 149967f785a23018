package timing

import "math"

// PageRange is a run of bars shown together.
type PageRange struct {
	PageIndex int
	StartBar  int
	EndBar    int
}

// TickRange is a half-open tick interval.
type TickRange struct {
	StartTick int
	EndTick   int
}

// SeekSteps holds the tick distance of one beat, one bar and one page at a
// given position. They come from real measure boundaries, so a 3/4 region
// yields a shorter bar step than a 4/4 one.
type SeekSteps struct {
	Beat int
	Bar  int
	Page int
}

func sanitizePageBars(pageBars float64) int {
	if !finite(pageBars) || pageBars < 1 {
		return 1
	}
	return int(math.Floor(pageBars))
}

func (m *Map) sanitizeBar(bar float64) int {
	switch {
	case math.IsNaN(bar), math.IsInf(bar, -1), bar < 1:
		return 1
	case math.IsInf(bar, 1):
		return len(m.measures)
	}
	return int(math.Floor(bar))
}

// PageCount is the number of pages needed to show every bar.
func (m *Map) PageCount(pageBars float64) int {
	pb := sanitizePageBars(pageBars)
	return (len(m.measures) + pb - 1) / pb
}

// PageIndexForBar returns the 0-based page holding a 1-based bar.
func (m *Map) PageIndexForBar(bar, pageBars float64) int {
	return (m.sanitizeBar(bar) - 1) / sanitizePageBars(pageBars)
}

// PageRangeForBar returns the page holding bar and the bars it spans.
func (m *Map) PageRangeForBar(bar, pageBars float64) PageRange {
	pb := sanitizePageBars(pageBars)
	idx := (m.sanitizeBar(bar) - 1) / pb
	r := PageRange{PageIndex: idx, StartBar: idx*pb + 1}
	r.EndBar = r.StartBar + pb - 1
	if n := len(m.measures); r.EndBar > n && n >= r.StartBar {
		r.EndBar = n
	}
	return r
}

// PageTickRange returns the ticks covered by a 0-based page.
func (m *Map) PageTickRange(pageIndex, pageBars float64) TickRange {
	pb := sanitizePageBars(pageBars)
	var idx int
	switch {
	case math.IsInf(pageIndex, 1):
		idx = m.PageCount(float64(pb)) - 1
	case !finite(pageIndex), pageIndex < 0:
		idx = 0
	default:
		idx = int(math.Floor(pageIndex))
	}
	first := float64(idx*pb + 1)
	return TickRange{
		StartTick: m.BarStartTick(first),
		EndTick:   m.BarStartTick(first + float64(pb)),
	}
}

// SeekStepTicksAtTicks returns beat, bar and page step sizes at ticks.
func (m *Map) SeekStepTicksAtTicks(ticks, pageBars float64) SeekSteps {
	t := m.endExclusive(ticks)
	idx := m.measureIndex(t)
	ms := m.measures[idx]

	steps := SeekSteps{Beat: int(math.Round(m.ticksPerBeat(ms.TimeSignature)))}
	if steps.Beat < 1 {
		steps.Beat = 1
	}
	if idx+1 < len(m.measures) {
		steps.Bar = m.measures[idx+1].StartTick - ms.StartTick
	} else {
		steps.Bar = m.measureTicks(ms.TimeSignature)
	}

	pb := float64(sanitizePageBars(pageBars))
	page := m.PageTickRange(float64(m.PageIndexForBar(float64(idx+1), pb)), pb)
	steps.Page = page.EndTick - page.StartTick
	if steps.Page < steps.Bar {
		steps.Page = steps.Bar
	}
	return steps
}
