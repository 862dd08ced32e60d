// Package mapper converts a normalized hand position into musical parameters.
package mapper

import "math"

// NumChords is the number of chord slots across the width of the frame.
const NumChords = 5

// Cutoff range in Hz used by the filter sweep.
const (
	MinCutoff   = 300.0
	CutoffRange = 4000.0
)

// Roots holds the root note of each chord slot, left to right.
var Roots = [NumChords]string{"C4", "D4", "E4", "G3", "A3"}

// ChordParams is the musical reading of one hand sample.
type ChordParams struct {
	ChordIndex int     `json:"chord_index"`
	Intensity  float64 `json:"intensity"`
}

// Map converts a normalized (x, y) position into chord parameters.
// x selects the chord slot; y controls intensity, with the top of the frame loudest.
func Map(x, y float64) ChordParams {
	return ChordParams{
		ChordIndex: ChordIndex(x),
		Intensity:  Intensity(y),
	}
}

// ChordIndex returns floor(x*5) folded into [0, NumChords).
func ChordIndex(x float64) int {
	i := int(math.Floor(x*NumChords)) % NumChords
	if i < 0 {
		i += NumChords
	}
	return i
}

// Intensity returns 0.2 + 0.8*(1-y).
func Intensity(y float64) float64 {
	return 0.2 + 0.8*(1-y)
}

// Cutoff returns the lowpass cutoff frequency for a vertical position.
func Cutoff(y float64) float64 {
	return MinCutoff + (1-y)*CutoffRange
}

// Root returns the root note for a chord index.
func Root(index int) string {
	i := index % NumChords
	if i < 0 {
		i += NumChords
	}
	return Roots[i]
}
