package seqplay

// Note is a sounding pitch on a channel.
type Note struct {
	Channel int `json:"channel"`
	Pitch   int `json:"pitch"`
}

// Status is a snapshot of the transport for display.
type Status struct {
	Playing     bool    `json:"playing"`
	Mode        string  `json:"mode"`
	Position    float64 `json:"position"`
	Duration    float64 `json:"duration"`
	Ticks       int     `json:"ticks"`
	Bar         int     `json:"bar"`
	Beat        int     `json:"beat"`
	SubBeat     int     `json:"sub_beat"`
	BeatsInBar  int     `json:"beats_in_bar"`
	Numerator   int     `json:"numerator"`
	Denominator int     `json:"denominator"`
	BPM         float64 `json:"bpm"`
	Bars        int     `json:"bars"`
	Page        int     `json:"page"`
	PageCount   int     `json:"page_count"`
	ActiveNotes []Note  `json:"active_notes"`
}

func (p *Player) Status() Status {
	m := p.Timing()
	pos := p.sched.PositionSeconds()
	ticks := m.SecondsToTicks(pos)
	bb := m.BarBeatAtTicks(float64(ticks))
	active := p.sched.ActiveNotes()
	notes := make([]Note, len(active))
	for i, n := range active {
		notes[i] = Note{Channel: n.Channel, Pitch: n.Pitch}
	}
	return Status{
		Playing:     p.sched.IsPlaying(),
		Mode:        p.sched.Mode().String(),
		Position:    pos,
		Duration:    m.DurationSeconds(),
		Ticks:       ticks,
		Bar:         bb.Bar,
		Beat:        bb.Beat,
		SubBeat:     bb.SubBeat1000,
		BeatsInBar:  bb.BeatsInBar,
		Numerator:   bb.TimeSignature.Numerator,
		Denominator: bb.TimeSignature.Denominator,
		BPM:         m.TempoAtTicks(float64(ticks)),
		Bars:        m.BarCount(),
		Page:        m.PageIndexForBar(float64(bb.Bar), p.pageBars),
		PageCount:   m.PageCount(p.pageBars),
		ActiveNotes: notes,
	}
}
