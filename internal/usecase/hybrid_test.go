package usecase

import (
	"errors"
	"testing"
	"time"

	"StayCast/internal/domain/models"
)

func TestBlendEndpoints(t *testing.T) {
	stat := []float64{10, 20}
	ml := []float64{30, 40}

	pure, err := Blend(stat, ml, 1, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pure[0] != 10 || pure[1] != 20 {
		t.Fatalf("alpha 1 must return the statistical path: %v", pure)
	}

	pureML, err := Blend(stat, ml, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pureML[0] != 30 || pureML[1] != 40 {
		t.Fatalf("alpha 0 must return the ML path: %v", pureML)
	}

	mid, err := Blend(stat, ml, 0.5, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mid[0] != 20 || mid[1] != 30 {
		t.Fatalf("unexpected midpoint blend: %v", mid)
	}
}

func TestBlendClipsNegative(t *testing.T) {
	out, err := Blend([]float64{-4}, []float64{-2}, 0.5, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0] != 0 {
		t.Fatalf("expected clipped value, got %v", out[0])
	}
}

func TestBlendLengthMismatch(t *testing.T) {
	if _, err := Blend([]float64{1}, []float64{1, 2}, 0.5, false); err == nil {
		t.Fatalf("expected length mismatch error")
	}
}

func blendTestRecords(model string, preds []float64) []models.PredictionRecord {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	actuals := []float64{10, 10, 10, 10}
	out := make([]models.PredictionRecord, len(preds))
	for i := range preds {
		out[i] = models.PredictionRecord{
			SeriesID:    "h1",
			Target:      "bookings",
			Freq:        models.FreqDaily,
			Model:       model,
			WindowIndex: i / 2,
			TS:          base.Add(time.Duration(i%2) * 24 * time.Hour),
			Actual:      actuals[i],
			Predicted:   preds[i],
		}
	}
	return out
}

func TestSelectAlphaPrefersBetterConstituent(t *testing.T) {
	// The statistical path is exact, the ML path is biased high, so the
	// search must land on pure stat.
	stat := blendTestRecords("ses", []float64{10, 10, 10, 10})
	ml := blendTestRecords("ml", []float64{14, 14, 14, 14})

	grid := []float64{0, 0.25, 0.5, 0.75, 1}
	choice, err := SelectAlpha(stat, ml, grid, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if choice.Alpha != 1 {
		t.Fatalf("expected alpha 1, got %v", choice.Alpha)
	}
	if choice.WAPE != 0 {
		t.Fatalf("expected zero WAPE at alpha 1, got %v", choice.WAPE)
	}
	if choice.Windows != 2 {
		t.Fatalf("expected 2 windows in search, got %d", choice.Windows)
	}
}

func TestSelectAlphaTieFallsToSmallerAlpha(t *testing.T) {
	// Identical constituents: every alpha scores the same, so the smaller
	// alpha must win.
	stat := blendTestRecords("ses", []float64{11, 11, 11, 11})
	ml := blendTestRecords("ml", []float64{11, 11, 11, 11})

	choice, err := SelectAlpha(stat, ml, []float64{0, 0.5, 1}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if choice.Alpha != 0 {
		t.Fatalf("expected the smallest alpha on an exact tie, got %v", choice.Alpha)
	}
}

func TestSelectAlphaBlendBeatsOppositeBiases(t *testing.T) {
	// Stat over-forecasts by 2, ML under-forecasts by 2: the midpoint
	// blend is exact.
	stat := blendTestRecords("ses", []float64{12, 12, 12, 12})
	ml := blendTestRecords("ml", []float64{8, 8, 8, 8})

	choice, err := SelectAlpha(stat, ml, []float64{0, 0.5, 1}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if choice.Alpha != 0.5 {
		t.Fatalf("expected alpha 0.5, got %v", choice.Alpha)
	}
	if choice.WAPE != 0 {
		t.Fatalf("expected zero WAPE for offsetting biases, got %v", choice.WAPE)
	}
}

func TestSelectAlphaNoOverlap(t *testing.T) {
	stat := blendTestRecords("ses", []float64{10, 10})
	_, err := SelectAlpha(stat, nil, []float64{0, 1}, true)
	if !errors.Is(err, models.ErrNoValidCandidate) {
		t.Fatalf("expected ErrNoValidCandidate, got %v", err)
	}
}

func TestSelectAlphaAllWindowsUndefined(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rec := func(model string, pred float64) models.PredictionRecord {
		return models.PredictionRecord{
			SeriesID:    "h1",
			Target:      "bookings",
			Freq:        models.FreqDaily,
			Model:       model,
			WindowIndex: 0,
			TS:          base,
			Actual:      0,
			Predicted:   pred,
		}
	}
	stat := []models.PredictionRecord{rec("ses", 3)}
	ml := []models.PredictionRecord{rec("ml", 5)}

	// Zero actuals against non-zero predictions leave WAPE undefined at
	// every alpha, so no blend weight can be chosen.
	_, err := SelectAlpha(stat, ml, []float64{0, 0.5, 1}, false)
	if !errors.Is(err, models.ErrNoValidCandidate) {
		t.Fatalf("expected ErrNoValidCandidate, got %v", err)
	}
	if !errors.Is(err, models.ErrMetricUndefined) {
		t.Fatalf("expected ErrMetricUndefined, got %v", err)
	}
}

func TestBlendRecordsCarriesIdentity(t *testing.T) {
	stat := blendTestRecords("ses", []float64{12, 12, 12, 12})
	ml := blendTestRecords("ml", []float64{8, 8, 8, 8})

	recs := BlendRecords(stat, ml, 0.5, true)
	if len(recs) != 4 {
		t.Fatalf("expected 4 blended records, got %d", len(recs))
	}
	for _, r := range recs {
		if r.Model != HybridModelName {
			t.Fatalf("blended record has model %q", r.Model)
		}
		if r.Predicted != 10 {
			t.Fatalf("expected blended value 10, got %v", r.Predicted)
		}
		if r.SeriesID != "h1" || r.Target != "bookings" || r.Freq != models.FreqDaily {
			t.Fatalf("segment identity lost: %+v", r)
		}
	}
}
