package channel

import "math"

// MinGainDB is the floor used for silent volume settings.
const MinGainDB = -96.0

// DetuneCents converts a bend position and range into cents.
func DetuneCents(bend, rangeSemitones float64) float64 {
	return bend * rangeSemitones * 100
}

// GainDB maps volume and expression onto decibels.
func GainDB(volume, expression float64) float64 {
	amp := clamp01(volume) * clamp01(expression)
	if amp <= 0 {
		return MinGainDB
	}
	return math.Max(20*math.Log10(amp), MinGainDB)
}

// PanPosition maps a controller value in [0, 1] to a pan position in [-1, 1].
func PanPosition(v float64) float64 {
	return clamp01(v)*2 - 1
}

// VibratoDepth combines the mod wheel with half of channel pressure.
func VibratoDepth(modWheel, aftertouch float64) float64 {
	return clamp01(modWheel + aftertouch/2)
}
