package service

import (
	"context"

	"StayCast/internal/domain/models"
)

// Model is the uniform forecaster contract. Fit is called at most once per
// instance; callers construct a fresh instance per window. Predict returns
// exactly horizon ordered values and fails with models.ErrFitRequired when
// called before Fit.
type Model interface {
	Name() string
	Fit(ctx context.Context, history []models.Point) error
	Predict(ctx context.Context, horizon int) ([]float64, error)
}

// Factory builds fresh model instances so no state leaks across windows.
type Factory struct {
	Name string
	New  func() Model
}
