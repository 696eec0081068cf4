package forecasters

import (
	"context"
	"fmt"

	"StayCast/internal/domain/models"
)

// Naive forecasts the last observed value for every step of the horizon.
type Naive struct {
	last   float64
	fitted bool
}

// NewNaive creates an unfitted naive forecaster.
func NewNaive() *Naive { return &Naive{} }

// Name returns the model identifier.
func (m *Naive) Name() string { return ModelNaive }

// Fit records the last observation.
func (m *Naive) Fit(_ context.Context, history []models.Point) error {
	if len(history) == 0 {
		return fmt.Errorf("naive: %w: empty history", models.ErrInsufficientHistory)
	}
	m.last = history[len(history)-1].Value
	m.fitted = true
	return nil
}

// Predict returns the last observed value repeated horizon times.
func (m *Naive) Predict(_ context.Context, horizon int) ([]float64, error) {
	if !m.fitted {
		return nil, fmt.Errorf("naive: %w", models.ErrFitRequired)
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("naive: horizon must be positive, got %d", horizon)
	}
	out := make([]float64, horizon)
	for i := range out {
		out[i] = m.last
	}
	return out, nil
}
