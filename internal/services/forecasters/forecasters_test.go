package forecasters

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"StayCast/internal/domain/models"
	"StayCast/pkg/config"
)

func points(start time.Time, step time.Duration, values ...float64) []models.Point {
	out := make([]models.Point, len(values))
	for i, v := range values {
		out[i] = models.Point{TS: start.Add(time.Duration(i) * step), Value: v}
	}
	return out
}

func dailyPoints(values ...float64) []models.Point {
	return points(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 24*time.Hour, values...)
}

func TestNaivePredictsLastValue(t *testing.T) {
	m := NewNaive()
	if err := m.Fit(context.Background(), dailyPoints(3, 7, 5)); err != nil {
		t.Fatalf("fit: %v", err)
	}
	out, err := m.Predict(context.Background(), 4)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for _, v := range out {
		if v != 5 {
			t.Fatalf("expected flat 5, got %v", out)
		}
	}
}

func TestSeasonalNaiveCyclesSeason(t *testing.T) {
	m := NewSeasonalNaive(3)
	if err := m.Fit(context.Background(), dailyPoints(9, 9, 1, 2, 3)); err != nil {
		t.Fatalf("fit: %v", err)
	}
	out, err := m.Predict(context.Background(), 5)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	want := []float64{1, 2, 3, 1, 2}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, out)
		}
	}
}

func TestSeasonalNaivePartialSeason(t *testing.T) {
	m := NewSeasonalNaive(7)
	if err := m.Fit(context.Background(), dailyPoints(4, 6)); err != nil {
		t.Fatalf("fit: %v", err)
	}
	out, err := m.Predict(context.Background(), 3)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	want := []float64{4, 6, 4}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, out)
		}
	}
}

func TestSmoothingLevel(t *testing.T) {
	m := NewSmoothing(0.5)
	if err := m.Fit(context.Background(), dailyPoints(0, 10)); err != nil {
		t.Fatalf("fit: %v", err)
	}
	out, err := m.Predict(context.Background(), 2)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	// level = 0.5*10 + 0.5*0
	if out[0] != 5 || out[1] != 5 {
		t.Fatalf("expected level 5, got %v", out)
	}
}

func TestPredictBeforeFit(t *testing.T) {
	for _, m := range []interface {
		Predict(context.Context, int) ([]float64, error)
	}{NewNaive(), NewSeasonalNaive(7), NewSmoothing(0.3)} {
		if _, err := m.Predict(context.Background(), 3); !errors.Is(err, models.ErrFitRequired) {
			t.Fatalf("expected ErrFitRequired, got %v", err)
		}
	}
}

func TestFitEmptyHistory(t *testing.T) {
	if err := NewNaive().Fit(context.Background(), nil); !errors.Is(err, models.ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestStabilizeRoundTrip(t *testing.T) {
	for _, y := range []float64{0, 0.5, 1, 42, 10000} {
		back := StabilizeBack(StabilizeForward(y))
		if math.Abs(back-y) > 1e-9*math.Max(y, 1) {
			t.Fatalf("round trip for %v gave %v", y, back)
		}
	}
	// Negative inputs clamp to 0 going forward and stay at 0 coming back.
	if StabilizeBack(StabilizeForward(-3)) != 0 {
		t.Fatalf("negative input must round trip to 0")
	}
}

func mlTestBase(t *testing.T, url string) *ServiceBase {
	t.Helper()
	cfg := &config.Config{}
	cfg.MLService.URL = url
	cfg.MLService.Timeout = 2 * time.Second
	return NewServiceBase(cfg)
}

func TestRegressorRoundTrip(t *testing.T) {
	var gotReq regressorFitState
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/forecast" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		preds := make([]float64, gotReq.Horizon)
		for i := range preds {
			preds[i] = 7
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"predictions": preds, "model": "gbrt"})
	}))
	defer srv.Close()

	m := NewRegressor(mlTestBase(t, srv.URL), false)
	if err := m.Fit(context.Background(), dailyPoints(1, 2, 3)); err != nil {
		t.Fatalf("fit: %v", err)
	}
	out, err := m.Predict(context.Background(), 4)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(out) != 4 || out[0] != 7 {
		t.Fatalf("unexpected predictions %v", out)
	}
	if gotReq.Horizon != 4 || len(gotReq.Values) != 3 {
		t.Fatalf("unexpected request payload %+v", gotReq)
	}
	if gotReq.StepSec != 86400 {
		t.Fatalf("expected daily step seconds, got %d", gotReq.StepSec)
	}
}

func TestRegressorLogStabilize(t *testing.T) {
	var gotReq regressorFitState
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		// Echo a transformed-space value; the adapter must expm1 it.
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"predictions": []float64{math.Log1p(9)}})
	}))
	defer srv.Close()

	m := NewRegressor(mlTestBase(t, srv.URL), true)
	if err := m.Fit(context.Background(), dailyPoints(0, 99)); err != nil {
		t.Fatalf("fit: %v", err)
	}
	out, err := m.Predict(context.Background(), 1)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if math.Abs(out[0]-9) > 1e-9 {
		t.Fatalf("expected back-transformed 9, got %v", out[0])
	}
	if math.Abs(gotReq.Values[1]-math.Log1p(99)) > 1e-9 {
		t.Fatalf("training values must travel in transformed space: %v", gotReq.Values)
	}
}

func TestRegressorWrongLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"predictions": []float64{1, 2}})
	}))
	defer srv.Close()

	m := NewRegressor(mlTestBase(t, srv.URL), false)
	if err := m.Fit(context.Background(), dailyPoints(1, 2, 3)); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if _, err := m.Predict(context.Background(), 5); !errors.Is(err, models.ErrModelFit) {
		t.Fatalf("expected ErrModelFit on length mismatch, got %v", err)
	}
}

func TestRegressorPredictBeforeFit(t *testing.T) {
	m := NewRegressor(mlTestBase(t, "http://127.0.0.1:0"), false)
	if _, err := m.Predict(context.Background(), 3); !errors.Is(err, models.ErrFitRequired) {
		t.Fatalf("expected ErrFitRequired, got %v", err)
	}
}

func TestBaselineFactoriesFreshInstances(t *testing.T) {
	for _, f := range Baselines(models.FreqDaily) {
		a, b := f.New(), f.New()
		if a == b {
			t.Fatalf("factory %s must return fresh instances", f.Name)
		}
		if err := a.Fit(context.Background(), dailyPoints(1, 2, 3)); err != nil {
			t.Fatalf("fit %s: %v", f.Name, err)
		}
		if _, err := b.Predict(context.Background(), 1); !errors.Is(err, models.ErrFitRequired) {
			t.Fatalf("fitting one %s instance must not fit another", f.Name)
		}
	}
}

func TestSeasonLength(t *testing.T) {
	if SeasonLength(models.FreqDaily) != 7 {
		t.Fatalf("daily season must be 7")
	}
	if SeasonLength(models.FreqWeekly) != 52 {
		t.Fatalf("weekly season must be 52")
	}
}
