package repository

import (
	"context"

	"StayCast/internal/domain/models"
)

// PanelSource loads input panels built by the upstream aggregation job.
// Arrival-date aggregation, gap filling, and deduplication happen there;
// the core only validates the grid invariants on load.
type PanelSource interface {
	LoadPanel(ctx context.Context, target string, freq models.Frequency) (*models.Panel, error)
	Health(ctx context.Context) error
}

// ResultSink persists run artifacts, keyed by (series_id, target, frequency)
// for independent downstream consumption.
type ResultSink interface {
	Init(ctx context.Context) error
	StorePredictions(ctx context.Context, runID string, recs []models.PredictionRecord) error
	StoreMetrics(ctx context.Context, runID string, recs []models.MetricRecord) error
	StoreScores(ctx context.Context, runID string, scores []models.SegmentScore) error
	StoreSelection(ctx context.Context, runID string, sel *models.SelectionResult) error
	StoreForecast(ctx context.Context, runID string, forecast *models.Panel) error
	Close() error
}

// Publisher pushes selection entries and forecast points to downstream
// consumers (dashboards, monitoring).
type Publisher interface {
	PublishSelection(ctx context.Context, runID string, sel models.Selection) error
	PublishForecast(ctx context.Context, runID string, forecast *models.Panel) error
	Close() error
}

// Metrics records operational counters for a run.
type Metrics interface {
	RecordWindow(model string)
	RecordWindowSkipped(reason string)
	RecordFitFailure(model string)
	RecordRunDuration(seconds float64)
	RecordSelection(target, freq, model string)
	RecordRecordsStored(table string, n int)
	RecordError(kind string)
}
