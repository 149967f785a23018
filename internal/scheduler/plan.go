package scheduler

import (
	"sort"

	"github.com/cbegin/seqplay-go/internal/automation"
	"github.com/cbegin/seqplay-go/internal/channel"
	"github.com/cbegin/seqplay-go/internal/song"
)

// control is one controller value on the timeline.
type control struct {
	controller int
	automation.Point
}

type pressure struct {
	pitch int
	automation.Point
}

// plan is everything scheduled for one channel, merged across the tracks
// that share it and reduced ahead of time so PlayFrom only slices.
type plan struct {
	channel int
	isDrum  bool
	program int
	notes   []song.Note
	ranges  []channel.RangeChange
	bends   []automation.Point
	touch   []automation.Point

	// controls holds every raw state controller event for replay up to a
	// resume point; scheduled holds the compacted events that are put on
	// the clock.
	controls  []control
	scheduled []control
	pressure  []pressure
}

// continuous controllers are compacted; the others are switches or resets
// whose every event matters.
var continuous = map[int]bool{
	channel.CCModWheel:     true,
	channel.CCVolume:       true,
	channel.CCPan:          true,
	channel.CCExpression:   true,
	channel.CCTremoloDepth: true,
}

var switches = map[int]bool{
	channel.CCSustain:     true,
	channel.CCAllSoundOff: true,
	channel.CCResetAll:    true,
	channel.CCAllNotesOff: true,
}

func buildPlans(seq *song.Sequence, bendParams, ccParams automation.Params) []*plan {
	byChannel := map[int][]song.Track{}
	for _, t := range seq.Tracks {
		byChannel[t.Channel] = append(byChannel[t.Channel], t)
	}
	chans := make([]int, 0, len(byChannel))
	for ch := range byChannel {
		chans = append(chans, ch)
	}
	sort.Ints(chans)

	plans := make([]*plan, 0, len(chans))
	for _, ch := range chans {
		plans = append(plans, buildPlan(ch, byChannel[ch], bendParams, ccParams))
	}
	return plans
}

func buildPlan(ch int, tracks []song.Track, bendParams, ccParams automation.Params) *plan {
	p := &plan{channel: ch, program: tracks[0].Program}
	var (
		ccs     []song.ControlChange
		bends   []automation.Point
		touch   []automation.Point
		perNote = map[int][]automation.Point{}
	)
	for _, t := range tracks {
		p.isDrum = p.isDrum || t.IsDrum
		p.notes = append(p.notes, t.Notes...)
		ccs = append(ccs, t.ControlChanges...)
		for _, b := range t.PitchBends {
			bends = append(bends, automation.Point{Time: b.Time, Value: b.Value})
		}
		for _, a := range t.ChannelAftertouch {
			touch = append(touch, automation.Point{Time: a.Time, Value: a.Value})
		}
		for _, a := range t.NoteAftertouch {
			perNote[a.Pitch] = append(perNote[a.Pitch], automation.Point{Time: a.Time, Value: a.Value})
		}
	}
	sort.SliceStable(p.notes, func(i, j int) bool { return p.notes[i].StartTime < p.notes[j].StartTime })
	sortPoints(bends)
	sortPoints(touch)
	sort.SliceStable(ccs, func(i, j int) bool { return ccs[i].Time < ccs[j].Time })

	p.ranges = channel.DeriveBendRange(ccs)
	p.bends = automation.Compact(bends, bendParams)
	p.touch = automation.Compact(touch, ccParams)

	perController := map[int][]automation.Point{}
	for _, cc := range ccs {
		if !continuous[cc.Controller] && !switches[cc.Controller] {
			continue
		}
		pt := automation.Point{Time: cc.Time, Value: cc.Value}
		p.controls = append(p.controls, control{controller: cc.Controller, Point: pt})
		if switches[cc.Controller] {
			p.scheduled = append(p.scheduled, control{controller: cc.Controller, Point: pt})
			continue
		}
		perController[cc.Controller] = append(perController[cc.Controller], pt)
	}
	for controller, pts := range perController {
		for _, pt := range automation.Compact(pts, ccParams) {
			p.scheduled = append(p.scheduled, control{controller: controller, Point: pt})
		}
	}
	sort.SliceStable(p.scheduled, func(i, j int) bool {
		if p.scheduled[i].Time != p.scheduled[j].Time {
			return p.scheduled[i].Time < p.scheduled[j].Time
		}
		return p.scheduled[i].controller < p.scheduled[j].controller
	})

	for pitch, pts := range perNote {
		sortPoints(pts)
		for _, pt := range automation.Compact(pts, ccParams) {
			p.pressure = append(p.pressure, pressure{pitch: pitch, Point: pt})
		}
	}
	sort.SliceStable(p.pressure, func(i, j int) bool {
		if p.pressure[i].Time != p.pressure[j].Time {
			return p.pressure[i].Time < p.pressure[j].Time
		}
		return p.pressure[i].pitch < p.pressure[j].pitch
	})
	return p
}

func sortPoints(pts []automation.Point) {
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Time < pts[j].Time })
}
