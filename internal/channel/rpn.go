package channel

import (
	"math"
	"sort"

	"github.com/cbegin/seqplay-go/internal/song"
)

// nullSelector is the RPN value that selects no parameter.
const nullSelector = 127

// RangeChange is a pitch bend range taking effect at Time.
type RangeChange struct {
	Time      float64
	Semitones float64
}

func rpnPriority(controller int) int {
	switch controller {
	case CCRPNMSB:
		return 0
	case CCRPNLSB:
		return 1
	case CCDataEntryMSB:
		return 2
	case CCDataEntryLSB:
		return 3
	}
	return -1
}

// MergeRPN extracts the selector and data entry controllers and orders them
// by time. Events sharing a time are ordered selector MSB, selector LSB, data
// entry MSB, data entry LSB, matching the order they go out on the wire.
func MergeRPN(ccs []song.ControlChange) []song.ControlChange {
	var out []song.ControlChange
	for _, cc := range ccs {
		if rpnPriority(cc.Controller) >= 0 {
			out = append(out, cc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return rpnPriority(out[i].Controller) < rpnPriority(out[j].Controller)
	})
	return out
}

// DeriveBendRange replays the RPN protocol over ccs and returns every change
// of the pitch bend range. Data entry only counts while the selector is
// (0, 0); the selector starts out null.
func DeriveBendRange(ccs []song.ControlChange) []RangeChange {
	selMSB, selLSB := nullSelector, nullSelector
	semis, cents := int(DefaultBendRange), 0

	var out []RangeChange
	for _, cc := range MergeRPN(ccs) {
		raw := int(math.Round(clamp01(cc.Value) * 127))
		switch cc.Controller {
		case CCRPNMSB:
			selMSB = raw
			continue
		case CCRPNLSB:
			selLSB = raw
			continue
		}
		if selMSB != 0 || selLSB != 0 {
			continue
		}
		if cc.Controller == CCDataEntryMSB {
			semis = raw
		} else {
			cents = raw
		}
		rc := RangeChange{Time: cc.Time, Semitones: float64(semis) + float64(cents)/100}
		if n := len(out); n > 0 && out[n-1].Time == rc.Time {
			out[n-1] = rc
			continue
		}
		out = append(out, rc)
	}
	return out
}

// RangeAt returns the bend range in effect at t.
func RangeAt(changes []RangeChange, t float64) float64 {
	i := sort.Search(len(changes), func(i int) bool { return changes[i].Time > t })
	if i == 0 {
		return DefaultBendRange
	}
	return changes[i-1].Semitones
}
