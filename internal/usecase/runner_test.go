package usecase

import (
	"context"
	"testing"
	"time"

	"StayCast/internal/domain/models"
	"StayCast/internal/domain/service"
)

func runnerSelection(model string, alpha float64) *models.SelectionResult {
	key := models.SegmentKey{SeriesID: "h1", Target: "bookings", Freq: models.FreqDaily}
	sel := models.NewSelectionResult()
	sel.Selections[key] = models.Selection{Key: key, Model: model, Alpha: alpha}
	return sel
}

func TestGenerateRefitsOnFullHistory(t *testing.T) {
	p := rampPanel(t, 30)
	r := NewForecastRunner([]service.Factory{stubFactory("naive", 0)}, "ses", testLogger(t))

	forecast, err := r.Generate(context.Background(), p, runnerSelection("naive", 0), 5, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s, ok := forecast.Series("h1")
	if !ok {
		t.Fatalf("forecast series missing")
	}
	if s.Len() != 5 {
		t.Fatalf("expected 5 forecast points, got %d", s.Len())
	}
	// The stub predicts the last history value; the ramp ends at 30.
	for _, pt := range s.Points {
		if pt.Value != 30 {
			t.Fatalf("model must be refit on the complete history, got %v", pt.Value)
		}
	}
}

func TestGenerateFutureTimestamps(t *testing.T) {
	p := rampPanel(t, 30)
	r := NewForecastRunner([]service.Factory{stubFactory("naive", 0)}, "ses", testLogger(t))

	forecast, err := r.Generate(context.Background(), p, runnerSelection("naive", 0), 3, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hist, _ := p.Series("h1")
	last := hist.Points[hist.Len()-1].TS
	s, _ := forecast.Series("h1")
	for i, pt := range s.Points {
		want := last.Add(time.Duration(i+1) * 24 * time.Hour)
		if !pt.TS.Equal(want) {
			t.Fatalf("forecast point %d at %v, want %v", i, pt.TS, want)
		}
	}
}

func TestGenerateHybridBlendsAtChosenAlpha(t *testing.T) {
	p := rampPanel(t, 30)
	factories := []service.Factory{
		stubFactory("ses", 10), // predicts 40
		stubFactory("ml", -10), // predicts 20
	}
	r := NewForecastRunner(factories, "ses", testLogger(t))

	forecast, err := r.Generate(context.Background(), p, runnerSelection("hybrid", 0.75), 2, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, _ := forecast.Series("h1")
	for _, pt := range s.Points {
		// 0.75*40 + 0.25*20
		if pt.Value != 35 {
			t.Fatalf("expected blended value 35, got %v", pt.Value)
		}
	}
}

func TestGenerateClipsNegative(t *testing.T) {
	p := rampPanel(t, 30)
	r := NewForecastRunner([]service.Factory{stubFactory("naive", -100)}, "ses", testLogger(t))

	forecast, err := r.Generate(context.Background(), p, runnerSelection("naive", 0), 2, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, _ := forecast.Series("h1")
	for _, pt := range s.Points {
		if pt.Value != 0 {
			t.Fatalf("expected clipped forecast, got %v", pt.Value)
		}
	}
}

func TestGenerateSkipsGapSegments(t *testing.T) {
	p := rampPanel(t, 30)
	sel := models.NewSelectionResult()
	key := models.SegmentKey{SeriesID: "h1", Target: "bookings", Freq: models.FreqDaily}
	sel.Gaps[key] = models.ErrNoValidCandidate.Error()

	r := NewForecastRunner([]service.Factory{stubFactory("naive", 0)}, "ses", testLogger(t))
	if _, err := r.Generate(context.Background(), p, sel, 2, true); err == nil {
		t.Fatalf("a panel with only gaps must produce no forecast")
	}
}

func TestGenerateUnknownModel(t *testing.T) {
	p := rampPanel(t, 30)
	r := NewForecastRunner([]service.Factory{stubFactory("naive", 0)}, "ses", testLogger(t))

	// The per-series failure is logged and skipped; with a single series,
	// the result is an empty forecast reported as an error.
	if _, err := r.Generate(context.Background(), p, runnerSelection("bogus", 0), 2, true); err == nil {
		t.Fatalf("expected error when every series fails")
	}
}
