package usecase

import (
	"context"
	"fmt"
	"time"

	"StayCast/internal/domain/models"
	"StayCast/internal/domain/repository"
	"StayCast/internal/domain/service"
	"StayCast/internal/services/forecasters"
	"StayCast/pkg/logger"
)

// BacktestConfig tunes one rolling-origin evaluation run.
type BacktestConfig struct {
	Horizon     int
	Windows     int
	Step        int
	MinTrain    int
	FitTimeout  time.Duration
	FitRetries  int
	NonNegative bool
}

// FitFailure records one model failing on one window. The window survives
// for every other model.
type FitFailure struct {
	Key         models.SegmentKey
	Model       string
	WindowIndex int
	Reason      string
}

// BacktestResult collects everything one engine run produced.
type BacktestResult struct {
	Records  []models.PredictionRecord
	Failures []FitFailure
	Skipped  int
	// Empty lists segments that yielded zero evaluable windows.
	Empty []models.SegmentKey
}

// BacktestEngine walks each series backwards from the last eligible origin,
// fits every candidate model on the training slice and scores it on the
// points immediately after. Training data never includes anything at or past
// the evaluation slice, so no window can leak future information.
type BacktestEngine struct {
	cfg BacktestConfig
	log *logger.Logger
	rec repository.Metrics
}

func NewBacktestEngine(cfg BacktestConfig, log *logger.Logger, rec repository.Metrics) *BacktestEngine {
	return &BacktestEngine{cfg: cfg, log: log, rec: rec}
}

// Windows generates the rolling-origin splits for one series, oldest origin
// first, and reports how many candidate origins were skipped for falling
// under the training floor.
func (e *BacktestEngine) Windows(s models.Series) ([]models.Window, int) {
	n := s.Len()
	lastOrigin := n - e.cfg.Horizon - 1
	if lastOrigin < 0 {
		return nil, e.cfg.Windows
	}

	var (
		wins    []models.Window
		skipped int
	)
	for i := 0; i < e.cfg.Windows; i++ {
		origin := lastOrigin - i*e.cfg.Step
		if origin < 0 {
			skipped += e.cfg.Windows - i
			break
		}
		trainLen := origin + 1
		if trainLen < e.cfg.MinTrain {
			// Stepping further back only shrinks the training slice.
			skipped += e.cfg.Windows - i
			break
		}
		wins = append(wins, models.Window{
			TrainEnd: s.Points[origin].TS,
			TrainLen: trainLen,
			Horizon:  e.cfg.Horizon,
		})
	}

	// Reverse so index 0 is the earliest origin.
	for l, r := 0, len(wins)-1; l < r; l, r = l+1, r-1 {
		wins[l], wins[r] = wins[r], wins[l]
	}
	for i := range wins {
		wins[i].Index = i
	}
	return wins, skipped
}

// Run evaluates every factory on every series of the panel. Failures are
// collected, never fatal; the only error returned is context cancellation.
func (e *BacktestEngine) Run(ctx context.Context, panel *models.Panel, factories []service.Factory) (*BacktestResult, error) {
	res := &BacktestResult{}

	for _, id := range panel.SeriesIDs() {
		s, _ := panel.Series(id)
		key := models.SegmentKey{SeriesID: id, Target: panel.Target(), Freq: panel.Frequency()}

		wins, skipped := e.Windows(s)
		if skipped > 0 {
			res.Skipped += skipped
			e.rec.RecordWindowSkipped("insufficient_history")
			e.log.Warn("windows skipped",
				logger.String("segment", key.String()),
				logger.Int("skipped", skipped),
				logger.Int("points", s.Len()),
				logger.Error(models.ErrInsufficientHistory))
		}
		if len(wins) == 0 {
			res.Empty = append(res.Empty, key)
			continue
		}

		for _, w := range wins {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("backtest cancelled: %w", err)
			}

			trainEnd := w.TrainLen // exclusive
			train := s.Points[:trainEnd]
			test := s.Points[trainEnd : trainEnd+w.Horizon]

			for _, f := range factories {
				preds, err := e.evalWindow(ctx, f, train, w.Horizon)
				if err != nil {
					if ctx.Err() != nil {
						return nil, fmt.Errorf("backtest cancelled: %w", ctx.Err())
					}
					res.Failures = append(res.Failures, FitFailure{
						Key:         key,
						Model:       f.Name,
						WindowIndex: w.Index,
						Reason:      err.Error(),
					})
					e.rec.RecordFitFailure(f.Name)
					e.log.Warn("model failed on window",
						logger.String("segment", key.String()),
						logger.String("model", f.Name),
						logger.Int("window", w.Index),
						logger.Error(err))
					continue
				}

				if e.cfg.NonNegative {
					preds = forecasters.ClipNonNegative(preds)
				}
				for i, p := range test {
					res.Records = append(res.Records, models.PredictionRecord{
						SeriesID:    id,
						Target:      panel.Target(),
						Freq:        panel.Frequency(),
						Model:       f.Name,
						WindowIndex: w.Index,
						TS:          p.TS,
						Actual:      p.Value,
						Predicted:   preds[i],
					})
				}
				e.rec.RecordWindow(f.Name)
			}
		}
	}

	return res, nil
}

// evalWindow fits a fresh model instance and predicts, with a per-attempt
// timeout and bounded retries. A fresh instance per attempt keeps the
// fit-once contract intact.
func (e *BacktestEngine) evalWindow(ctx context.Context, f service.Factory, train []models.Point, horizon int) ([]float64, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.FitRetries; attempt++ {
		preds, err := func() ([]float64, error) {
			fctx, cancel := ctx, func() {}
			if e.cfg.FitTimeout > 0 {
				fctx, cancel = context.WithTimeout(ctx, e.cfg.FitTimeout)
			}
			defer cancel()

			m := f.New()
			if err := m.Fit(fctx, train); err != nil {
				return nil, fmt.Errorf("fit %s: %w", f.Name, err)
			}
			out, err := m.Predict(fctx, horizon)
			if err != nil {
				return nil, fmt.Errorf("predict %s: %w", f.Name, err)
			}
			if len(out) != horizon {
				return nil, fmt.Errorf("predict %s: got %d values, want %d: %w", f.Name, len(out), horizon, models.ErrModelFit)
			}
			return out, nil
		}()
		if err == nil {
			return preds, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}
