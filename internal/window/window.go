// Package window derives the display time window around a detected
// discontinuity.
package window

import (
	"errors"
	"fmt"
)

var (
	// ErrTooFewDiscontinuities is returned when fewer than two run starts
	// are available; the window needs both ends of the anomaly.
	ErrTooFewDiscontinuities = errors.New("need at least 2 discontinuities")
	// ErrNoSamples is returned for an empty time axis.
	ErrNoSamples = errors.New("no samples")
	// ErrDegenerate is returned when the computed window is empty or inverted.
	ErrDegenerate = errors.New("degenerate window")
)

// Margins scale the bracketing indices outward: the lower index is
// multiplied by Lower and the upper by Upper.
type Margins struct {
	Lower float64
	Upper float64
}

// DefaultMargins widen the window by 10% on each side.
var DefaultMargins = Margins{Lower: 0.9, Upper: 1.1}

// Window is an inclusive time interval.
type Window struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether t lies inside w.
func (w Window) Contains(t float64) bool {
	return t >= w.Min && t <= w.Max
}

// Width returns Max - Min.
func (w Window) Width() float64 {
	return w.Max - w.Min
}

func (w Window) String() string {
	return fmt.Sprintf("[%g, %g]", w.Min, w.Max)
}

// Result is a computed window together with the sample indices it was read
// from.
type Result struct {
	Window
	LowerIndex int  `json:"lower_index"`
	UpperIndex int  `json:"upper_index"`
	Clamped    bool `json:"clamped"`
}

// Compute derives the window from the first two run starts:
//
//	lower = trunc((starts[0] - 1) * m.Lower)
//	upper = trunc((starts[1] + 1) * m.Upper)
//
// Truncation is toward zero. Indices outside [0, len(t)-1] are clamped into
// range and Result.Clamped is set.
func Compute(starts []int, t []float64, m Margins) (Result, error) {
	if len(starts) < 2 {
		return Result{}, fmt.Errorf("%w, found %d", ErrTooFewDiscontinuities, len(starts))
	}
	if len(t) == 0 {
		return Result{}, ErrNoSamples
	}

	lo, loClamped := clamp(int(float64(starts[0]-1)*m.Lower), len(t))
	hi, hiClamped := clamp(int(float64(starts[1]+1)*m.Upper), len(t))

	r := Result{
		Window:     Window{Min: t[lo], Max: t[hi]},
		LowerIndex: lo,
		UpperIndex: hi,
		Clamped:    loClamped || hiClamped,
	}
	if !(r.Min < r.Max) {
		return r, fmt.Errorf("%w: %v from indices %d..%d", ErrDegenerate, r.Window, lo, hi)
	}
	return r, nil
}

func clamp(i, n int) (int, bool) {
	switch {
	case i < 0:
		return 0, true
	case i > n-1:
		return n - 1, true
	default:
		return i, false
	}
}
