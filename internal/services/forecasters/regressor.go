package forecasters

import (
	"context"
	"fmt"
	"time"

	"StayCast/internal/domain/models"
)

// Regressor wraps the external gradient-boosted regression service behind
// the fit/predict contract. When logStabilize is set (fixed at construction)
// training targets are sent through log1p and predictions come back through
// expm1 with a floor at 0.
type Regressor struct {
	base         *ServiceBase
	logStabilize bool
	values       []float64
	times        []int64
	stepSec      int64
	fitted       bool
}

// NewRegressor creates an unfitted ML adapter.
func NewRegressor(base *ServiceBase, logStabilize bool) *Regressor {
	return &Regressor{base: base, logStabilize: logStabilize}
}

// Name returns the model identifier.
func (m *Regressor) Name() string { return ModelML }

type regressorFitState struct {
	Values  []float64 `json:"values"`
	Times   []int64   `json:"times"`
	StepSec int64     `json:"step_seconds"`
	Horizon int       `json:"horizon"`
}

type regressorResp struct {
	Predictions []float64 `json:"predictions"`
	Model       string    `json:"model"`
}

// Fit records the (optionally transformed) training history. The service is
// stateless; the history travels with the predict call.
func (m *Regressor) Fit(_ context.Context, history []models.Point) error {
	if len(history) == 0 {
		return fmt.Errorf("ml: %w: empty history", models.ErrInsufficientHistory)
	}
	m.values = make([]float64, len(history))
	m.times = make([]int64, len(history))
	for i, p := range history {
		v := p.Value
		if m.logStabilize {
			v = StabilizeForward(v)
		}
		m.values[i] = v
		m.times[i] = p.TS.Unix()
	}
	if len(history) >= 2 {
		m.stepSec = int64(history[1].TS.Sub(history[0].TS) / time.Second)
	}
	m.fitted = true
	return nil
}

// Predict posts the training state and horizon to the regression service and
// back-transforms the response.
func (m *Regressor) Predict(ctx context.Context, horizon int) ([]float64, error) {
	if !m.fitted {
		return nil, fmt.Errorf("ml: %w", models.ErrFitRequired)
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("ml: horizon must be positive, got %d", horizon)
	}

	var resp regressorResp
	err := m.base.PostJSON(ctx, "/forecast", regressorFitState{
		Values:  m.values,
		Times:   m.times,
		StepSec: m.stepSec,
		Horizon: horizon,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("ml: %w: %v", models.ErrModelFit, err)
	}
	if len(resp.Predictions) != horizon {
		return nil, fmt.Errorf("ml: %w: service returned %d predictions, want %d",
			models.ErrModelFit, len(resp.Predictions), horizon)
	}

	out := make([]float64, horizon)
	for i, v := range resp.Predictions {
		if m.logStabilize {
			v = StabilizeBack(v)
		}
		out[i] = v
	}
	return out, nil
}
