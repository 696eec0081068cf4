package usecase

import (
	"context"
	"fmt"
	"time"

	"StayCast/internal/domain/models"
	"StayCast/internal/domain/service"
	"StayCast/internal/services/forecasters"
	"StayCast/pkg/logger"
)

// ForecastRunner produces the production forecast for each selected segment
// by refitting the winning model on the complete history. Post-processing
// is the same path the backtest used: ML back-transform inside the adapter,
// non-negativity clipping here, so backtest scores describe what ships.
type ForecastRunner struct {
	factories      map[string]service.Factory
	hybridBaseline string
	log            *logger.Logger
}

// NewForecastRunner indexes the candidate factories by model name.
// hybridBaseline names the statistical constituent blended into the hybrid.
func NewForecastRunner(factories []service.Factory, hybridBaseline string, log *logger.Logger) *ForecastRunner {
	byName := make(map[string]service.Factory, len(factories))
	for _, f := range factories {
		byName[f.Name] = f
	}
	return &ForecastRunner{factories: byName, hybridBaseline: hybridBaseline, log: log}
}

// Generate forecasts every series of the panel that has a selection. Series
// with a gap entry or no entry at all are left out of the returned panel;
// a per-series fit failure is logged and skips that series rather than
// failing the run.
func (r *ForecastRunner) Generate(ctx context.Context, panel *models.Panel, sel *models.SelectionResult, horizon int, nonNegative bool) (*models.Panel, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("forecast: horizon must be positive, got %d", horizon)
	}

	var out []models.Series
	for _, id := range panel.SeriesIDs() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("forecast cancelled: %w", err)
		}

		key := models.SegmentKey{SeriesID: id, Target: panel.Target(), Freq: panel.Frequency()}
		choice, ok := sel.Selections[key]
		if !ok {
			continue
		}
		s, _ := panel.Series(id)

		values, err := r.forecastSeries(ctx, s, choice, horizon, nonNegative)
		if err != nil {
			r.log.Warn("forecast skipped",
				logger.String("segment", key.String()),
				logger.String("model", choice.Model),
				logger.Error(err))
			continue
		}

		step := panel.Frequency().Step()
		last := s.Points[len(s.Points)-1].TS
		points := make([]models.Point, horizon)
		for i := 0; i < horizon; i++ {
			points[i] = models.Point{TS: last.Add(time.Duration(i+1) * step), Value: values[i]}
		}
		out = append(out, models.Series{ID: id, Points: points})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("forecast %s/%s: no series produced: %w",
			panel.Target(), panel.Frequency(), models.ErrNoValidCandidate)
	}
	return models.NewPanel(panel.Target(), panel.Frequency(), out)
}

func (r *ForecastRunner) forecastSeries(ctx context.Context, s models.Series, choice models.Selection, horizon int, nonNegative bool) ([]float64, error) {
	if choice.Model == HybridModelName {
		stat, err := r.fitPredict(ctx, r.hybridBaseline, s.Points, horizon)
		if err != nil {
			return nil, err
		}
		ml, err := r.fitPredict(ctx, forecasters.ModelML, s.Points, horizon)
		if err != nil {
			return nil, err
		}
		return Blend(stat, ml, choice.Alpha, nonNegative)
	}

	values, err := r.fitPredict(ctx, choice.Model, s.Points, horizon)
	if err != nil {
		return nil, err
	}
	if nonNegative {
		values = forecasters.ClipNonNegative(values)
	}
	return values, nil
}

func (r *ForecastRunner) fitPredict(ctx context.Context, model string, history []models.Point, horizon int) ([]float64, error) {
	f, ok := r.factories[model]
	if !ok {
		return nil, fmt.Errorf("unknown model %q", model)
	}
	m := f.New()
	if err := m.Fit(ctx, history); err != nil {
		return nil, fmt.Errorf("fit %s: %w", model, err)
	}
	out, err := m.Predict(ctx, horizon)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", model, err)
	}
	if len(out) != horizon {
		return nil, fmt.Errorf("predict %s: got %d values, want %d: %w", model, len(out), horizon, models.ErrModelFit)
	}
	return out, nil
}
