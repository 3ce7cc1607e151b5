package model

import "math"

// BaselineWindow is a chronological sliding window of a KPI's most recent
// recorded daily values. The evaluation day itself is never part of its own
// window.
type BaselineWindow struct {
	Values   []float64
	Capacity int
}

// Size returns the number of values currently in the window.
func (w BaselineWindow) Size() int {
	return len(w.Values)
}

// Mean returns the arithmetic mean of the window, or 0 for an empty window.
func (w BaselineWindow) Mean() float64 {
	if len(w.Values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.Values {
		sum += v
	}
	return sum / float64(len(w.Values))
}

// StdDev returns the sample standard deviation (n-1 denominator) of the
// window. A single-point window has no observed variance and returns 0.
func (w BaselineWindow) StdDev() float64 {
	n := len(w.Values)
	if n < 2 {
		return 0
	}
	mean := w.Mean()
	var ss float64
	for _, v := range w.Values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// Append returns a copy of the window with v appended, evicting the oldest
// value once the capacity is exceeded.
func (w BaselineWindow) Append(v float64) BaselineWindow {
	values := make([]float64, len(w.Values), len(w.Values)+1)
	copy(values, w.Values)
	values = append(values, v)
	if w.Capacity > 0 && len(values) > w.Capacity {
		values = values[len(values)-w.Capacity:]
	}
	return BaselineWindow{Values: values, Capacity: w.Capacity}
}
