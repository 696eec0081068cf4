package forecasters

import (
	"context"
	"fmt"

	"StayCast/internal/domain/models"
)

// Smoothing is simple exponential smoothing with a fixed alpha. The forecast
// is flat at the final smoothed level.
type Smoothing struct {
	alpha  float64
	level  float64
	fitted bool
}

// NewSmoothing creates a simple exponential smoothing forecaster. Alpha
// outside (0,1] falls back to 0.3.
func NewSmoothing(alpha float64) *Smoothing {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}
	return &Smoothing{alpha: alpha}
}

// Name returns the model identifier.
func (m *Smoothing) Name() string { return ModelSES }

// Fit runs the smoothing recursion over the history.
func (m *Smoothing) Fit(_ context.Context, history []models.Point) error {
	if len(history) == 0 {
		return fmt.Errorf("ses: %w: empty history", models.ErrInsufficientHistory)
	}
	level := history[0].Value
	for _, p := range history[1:] {
		level = m.alpha*p.Value + (1-m.alpha)*level
	}
	m.level = level
	m.fitted = true
	return nil
}

// Predict returns the smoothed level repeated horizon times.
func (m *Smoothing) Predict(_ context.Context, horizon int) ([]float64, error) {
	if !m.fitted {
		return nil, fmt.Errorf("ses: %w", models.ErrFitRequired)
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("ses: horizon must be positive, got %d", horizon)
	}
	out := make([]float64, horizon)
	for i := range out {
		out[i] = m.level
	}
	return out, nil
}
