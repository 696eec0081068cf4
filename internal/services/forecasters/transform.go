package forecasters

import "math"

// StabilizeForward applies the variance-stabilizing transform log1p(max(y, 0))
// to a training target.
func StabilizeForward(y float64) float64 {
	return math.Log1p(math.Max(y, 0))
}

// StabilizeBack inverts StabilizeForward via expm1 and floors the result at 0.
// The same back-transform runs on both the backtest and the production path.
func StabilizeBack(v float64) float64 {
	return math.Max(math.Expm1(v), 0)
}

// ClipNonNegative floors every value at 0 in place and returns the slice.
func ClipNonNegative(vals []float64) []float64 {
	for i, v := range vals {
		if v < 0 {
			vals[i] = 0
		}
	}
	return vals
}
