package models

import (
	"fmt"
	"strings"
	"time"
)

// SegmentKey identifies one (series, target, frequency) evaluation unit.
type SegmentKey struct {
	SeriesID string    `json:"series_id"`
	Target   string    `json:"target"`
	Freq     Frequency `json:"frequency"`
}

func (k SegmentKey) String() string {
	return k.Target + "/" + string(k.Freq) + "/" + k.SeriesID
}

// MarshalText lets the key serve as a JSON map key.
func (k SegmentKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the target/frequency/series form. The series id is
// the tail, so it may itself contain slashes.
func (k *SegmentKey) UnmarshalText(b []byte) error {
	parts := strings.SplitN(string(b), "/", 3)
	if len(parts) != 3 {
		return fmt.Errorf("malformed segment key %q", b)
	}
	freq, err := ParseFrequency(parts[1])
	if err != nil {
		return fmt.Errorf("segment key %q: %w", b, err)
	}
	k.Target, k.Freq, k.SeriesID = parts[0], freq, parts[2]
	return nil
}

// Window is one rolling-origin split. Training data is every point with
// index <= TrainEnd; the test slice is the next Horizon points.
type Window struct {
	Index    int       `json:"index"`
	TrainEnd time.Time `json:"train_end"`
	TrainLen int       `json:"train_len"`
	Horizon  int       `json:"horizon"`
}

// PredictionRecord is one out-of-sample prediction paired with its actual.
type PredictionRecord struct {
	SeriesID    string    `json:"series_id"`
	Target      string    `json:"target"`
	Freq        Frequency `json:"frequency"`
	Model       string    `json:"model"`
	WindowIndex int       `json:"window_index"`
	TS          time.Time `json:"ts"`
	Actual      float64   `json:"actual"`
	Predicted   float64   `json:"predicted"`
}

// Key returns the segment the record belongs to.
func (r PredictionRecord) Key() SegmentKey {
	return SegmentKey{SeriesID: r.SeriesID, Target: r.Target, Freq: r.Freq}
}

// MetricRecord is the accuracy summary of one model over one window.
// WAPEDefined/VolumeDefined are false when the respective denominator is
// all-zero actuals with non-zero predictions; such windows are excluded
// from aggregation rather than coerced to 0.
type MetricRecord struct {
	SeriesID     string    `json:"series_id"`
	Target       string    `json:"target"`
	Freq         Frequency `json:"frequency"`
	Model        string    `json:"model"`
	WindowIndex  int       `json:"window_index"`
	MAE          float64   `json:"mae"`
	RMSE         float64   `json:"rmse"`
	MAPE         float64   `json:"mape"`
	MAPEExcluded int       `json:"mape_excluded"`
	SMAPE        float64   `json:"smape"`
	WAPE         float64   `json:"wape"`
	WAPEDefined  bool      `json:"wape_defined"`
	Bias         float64   `json:"bias"`
	BiasPct      float64   `json:"bias_pct"`
	VolumeErrPct float64   `json:"volume_error_pct"`
	VolumeDefined bool     `json:"volume_defined"`
}

// Key returns the segment the record belongs to.
func (r MetricRecord) Key() SegmentKey {
	return SegmentKey{SeriesID: r.SeriesID, Target: r.Target, Freq: r.Freq}
}

// SegmentScore is the window-aggregated score of one model on one segment.
type SegmentScore struct {
	SeriesID string    `json:"series_id"`
	Target   string    `json:"target"`
	Freq     Frequency `json:"frequency"`
	Model    string    `json:"model"`
	WAPE     float64   `json:"wape"`
	BiasPct  float64   `json:"bias_pct"`
	Windows  int       `json:"windows"`
	Excluded int       `json:"excluded"`
}

// Key returns the segment the score belongs to.
func (s SegmentScore) Key() SegmentKey {
	return SegmentKey{SeriesID: s.SeriesID, Target: s.Target, Freq: s.Freq}
}

// Selection is the chosen model for one segment. Alpha is meaningful only
// for the hybrid model.
type Selection struct {
	Key     SegmentKey `json:"key"`
	Model   string     `json:"model"`
	Alpha   float64    `json:"alpha"`
	WAPE    float64    `json:"wape"`
	BiasPct float64    `json:"bias_pct"`
}

// SelectionResult maps every evaluated segment either to a selection or to
// a gap reason. It is created once per run and never mutated afterwards.
type SelectionResult struct {
	Selections map[SegmentKey]Selection `json:"selections"`
	Gaps       map[SegmentKey]string    `json:"gaps"`
}

// NewSelectionResult allocates an empty result.
func NewSelectionResult() *SelectionResult {
	return &SelectionResult{
		Selections: make(map[SegmentKey]Selection),
		Gaps:       make(map[SegmentKey]string),
	}
}
