// Package detect finds discontinuities in an acceleration series.
//
// A discontinuity is a step between consecutive samples whose magnitude
// exceeds a threshold. An exceeding index is reported unless the index just
// before it was itself reported, so a pair of adjacent exceedances yields one
// index and longer runs yield every other index.
package detect

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultThreshold is the jump magnitude, in acceleration units per sample
// step, above which a step counts as a discontinuity.
const DefaultThreshold = 100.0

// Diff returns the first difference of a: out[i] = a[i+1] - a[i].
// The result has len(a)-1 elements, or none when len(a) < 2.
func Diff(a []float64) []float64 {
	if len(a) < 2 {
		return []float64{}
	}
	out := make([]float64, len(a)-1)
	floats.SubTo(out, a[1:], a[:len(a)-1])
	return out
}

// RunStarts returns the indices into Diff(accel) at which a run of steps with
// |step| > threshold begins. Indices are strictly increasing and never
// adjacent; within a run of three or more exceeding steps every second index
// is reported. An index i also identifies the sample accel[i] just before the
// jump.
func RunStarts(accel []float64, threshold float64) []int {
	return RunStartsOfDiff(Diff(accel), threshold)
}

// RunStartsOfDiff is RunStarts for a precomputed difference sequence.
func RunStartsOfDiff(diff []float64, threshold float64) []int {
	starts := []int{}
	for i, d := range diff {
		if math.Abs(d) <= threshold {
			continue
		}
		if len(starts) == 0 || starts[len(starts)-1] != i-1 {
			starts = append(starts, i)
		}
	}
	return starts
}
