package models

import "errors"

// Failure taxonomy. Callers wrap these with context via fmt.Errorf("%w")
// and classify with errors.Is.
var (
	// ErrInsufficientHistory marks a window or segment skipped because the
	// training slice is shorter than the configured floor. Logged, not fatal.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrFitRequired is returned by Predict when Fit has not been called.
	ErrFitRequired = errors.New("model not fitted")

	// ErrModelFit marks a per-window, per-model fit or predict failure.
	// The window is dropped for that model only; the backtest continues.
	ErrModelFit = errors.New("model fit failed")

	// ErrNoValidCandidate marks a segment where no candidate model produced
	// a single valid window. Surfaced as an explicit gap, never defaulted.
	ErrNoValidCandidate = errors.New("no valid candidate")

	// ErrMetricUndefined marks a metric whose denominator is degenerate
	// (all-zero actuals). Recorded as excluded, not coerced to 0 or NaN.
	ErrMetricUndefined = errors.New("metric undefined")
)
