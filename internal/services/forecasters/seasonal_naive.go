package forecasters

import (
	"context"
	"fmt"

	"StayCast/internal/domain/models"
)

// SeasonalNaive repeats the last full season. With less than one season of
// history it degrades to the plain naive forecast.
type SeasonalNaive struct {
	period int
	season []float64
	fitted bool
}

// NewSeasonalNaive creates a seasonal naive forecaster with the given period
// (7 for daily, 52 for weekly grids).
func NewSeasonalNaive(period int) *SeasonalNaive {
	return &SeasonalNaive{period: period}
}

// Name returns the model identifier.
func (m *SeasonalNaive) Name() string { return ModelSNaive }

// Fit records the trailing season of observations.
func (m *SeasonalNaive) Fit(_ context.Context, history []models.Point) error {
	if len(history) == 0 {
		return fmt.Errorf("snaive: %w: empty history", models.ErrInsufficientHistory)
	}
	if m.period <= 0 {
		return fmt.Errorf("snaive: period must be positive, got %d", m.period)
	}
	n := m.period
	if len(history) < n {
		n = len(history)
	}
	m.season = make([]float64, 0, n)
	for _, p := range history[len(history)-n:] {
		m.season = append(m.season, p.Value)
	}
	m.fitted = true
	return nil
}

// Predict cycles the recorded season forward.
func (m *SeasonalNaive) Predict(_ context.Context, horizon int) ([]float64, error) {
	if !m.fitted {
		return nil, fmt.Errorf("snaive: %w", models.ErrFitRequired)
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("snaive: horizon must be positive, got %d", horizon)
	}
	out := make([]float64, horizon)
	for i := range out {
		out[i] = m.season[i%len(m.season)]
	}
	return out, nil
}
