package usecase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"StayCast/internal/domain/models"
	"StayCast/internal/services/forecasters"
	"StayCast/pkg/cache"
	"StayCast/pkg/config"
)

type stubSource struct {
	panel *models.Panel
}

func (s stubSource) LoadPanel(_ context.Context, _ string, _ models.Frequency) (*models.Panel, error) {
	return s.panel, nil
}

func (s stubSource) Health(context.Context) error { return nil }

type memSink struct {
	preds     int
	metrics   int
	scores    int
	selection *models.SelectionResult
	forecast  *models.Panel
}

func (s *memSink) Init(context.Context) error { return nil }
func (s *memSink) Close() error               { return nil }

func (s *memSink) StorePredictions(_ context.Context, _ string, recs []models.PredictionRecord) error {
	s.preds += len(recs)
	return nil
}

func (s *memSink) StoreMetrics(_ context.Context, _ string, recs []models.MetricRecord) error {
	s.metrics += len(recs)
	return nil
}

func (s *memSink) StoreScores(_ context.Context, _ string, scores []models.SegmentScore) error {
	s.scores += len(scores)
	return nil
}

func (s *memSink) StoreSelection(_ context.Context, _ string, sel *models.SelectionResult) error {
	s.selection = sel
	return nil
}

func (s *memSink) StoreForecast(_ context.Context, _ string, forecast *models.Panel) error {
	s.forecast = forecast
	return nil
}

type countPublisher struct {
	selections int
	forecasts  int
}

func (p *countPublisher) PublishSelection(context.Context, string, models.Selection) error {
	p.selections++
	return nil
}

func (p *countPublisher) PublishForecast(context.Context, string, *models.Panel) error {
	p.forecasts++
	return nil
}

func (p *countPublisher) Close() error { return nil }

// coordPanel holds three constant-100 series long enough for every window
// plus one series too short for any.
func coordPanel(t *testing.T) *models.Panel {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id string, n int) models.Series {
		s := models.Series{ID: id}
		for i := 0; i < n; i++ {
			s.Points = append(s.Points, models.Point{TS: start.Add(time.Duration(i) * 24 * time.Hour), Value: 100})
		}
		return s
	}
	p, err := models.NewPanel("bookings", models.FreqDaily,
		[]models.Series{mk("h1", 40), mk("h2", 40), mk("h3", 40), mk("h9", 5)})
	if err != nil {
		t.Fatalf("panel: %v", err)
	}
	return p
}

// mlServer answers the regression service contract with a constant value.
func mlServer(t *testing.T, value float64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Horizon int `json:"horizon"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		preds := make([]float64, req.Horizon)
		for i := range preds {
			preds[i] = value
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"predictions": preds, "model": "gbrt"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func coordConfig(workers int) CoordinatorConfig {
	return CoordinatorConfig{
		Workers:        workers,
		Backtest:       BacktestConfig{Windows: 3, Step: 7, MinTrain: 14},
		Horizons:       map[models.Frequency]int{models.FreqDaily: 7},
		AlphaGrid:      []float64{0, 0.5, 1},
		HybridBaseline: forecasters.ModelNaive,
		Epsilon:        0.005,
		CacheTTL:       time.Minute,
	}
}

func newTestCoordinator(t *testing.T, workers int, mlURL string, sink *memSink, pub *countPublisher, mem cache.Service) *Coordinator {
	t.Helper()
	mlCfg := &config.Config{}
	mlCfg.MLService.URL = mlURL
	targets := []TargetSpec{{Name: "bookings", Frequencies: []models.Frequency{models.FreqDaily}, NonNegative: true}}
	return NewCoordinator(coordConfig(workers), targets,
		stubSource{panel: coordPanel(t)}, sink, pub, mem, nopMetrics{},
		forecasters.NewServiceBase(mlCfg), testLogger(t))
}

func TestCoordinatorRunEndToEnd(t *testing.T) {
	srv := mlServer(t, 90) // consistently low, so the pure statistical blend wins
	sink := &memSink{}
	pub := &countPublisher{}
	mem := cache.NewMemoryCache()
	c := newTestCoordinator(t, 3, srv.URL, sink, pub, mem)

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// 3 long series, 3 windows, horizon 7: 4 base models plus the hybrid.
	if summary.Records != 3*5*3*7 {
		t.Fatalf("expected 315 prediction records, got %d", summary.Records)
	}
	if summary.Failures != 0 {
		t.Fatalf("expected no fit failures, got %d", summary.Failures)
	}
	if summary.Segments != 4 || summary.Selections != 3 || summary.Gaps != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	// The short series cannot field a single window.
	if summary.Skipped != 3 {
		t.Fatalf("expected 3 skipped windows, got %d", summary.Skipped)
	}

	if sink.selection == nil {
		t.Fatalf("selection was not stored")
	}
	gapKey := models.SegmentKey{SeriesID: "h9", Target: "bookings", Freq: models.FreqDaily}
	if reason := sink.selection.Gaps[gapKey]; reason != models.ErrInsufficientHistory.Error() {
		t.Fatalf("expected insufficient-history gap for h9, got %q", reason)
	}

	// On a constant series the statistical paths are exact, so the blend at
	// alpha 1 scores zero WAPE and zero bias and wins the name tie-break.
	for key, sel := range sink.selection.Selections {
		if sel.Model != HybridModelName {
			t.Fatalf("expected hybrid to win %s, got %s", key, sel.Model)
		}
		if sel.Alpha != 1 {
			t.Fatalf("expected the searched alpha to reach the selection, got %v", sel.Alpha)
		}
		if !almostEqual(sel.WAPE, 0) || !almostEqual(sel.BiasPct, 0) {
			t.Fatalf("expected exact forecast scores for %s: %+v", key, sel)
		}
	}

	if sink.forecast == nil || sink.forecast.Len() != 3 {
		t.Fatalf("expected a forecast for each selected segment: %+v", sink.forecast)
	}
	for _, id := range sink.forecast.SeriesIDs() {
		s, _ := sink.forecast.Series(id)
		if s.Len() != 7 {
			t.Fatalf("expected 7 forecast points for %s, got %d", id, s.Len())
		}
		for _, p := range s.Points {
			if !almostEqual(p.Value, 100) {
				t.Fatalf("expected the constant level forward for %s, got %v", id, p.Value)
			}
		}
	}

	if pub.selections != 3 || pub.forecasts != 1 {
		t.Fatalf("expected 3 selection and 1 forecast publications, got %d/%d", pub.selections, pub.forecasts)
	}

	// Artifacts must round-trip through the cache into typed destinations.
	var cached models.SelectionResult
	if err := mem.Get(context.Background(), "selection:bookings:daily", &cached); err != nil {
		t.Fatalf("cached selection: %v", err)
	}
	if len(cached.Selections) != 3 || len(cached.Gaps) != 1 {
		t.Fatalf("cached selection mismatch: %d selections, %d gaps", len(cached.Selections), len(cached.Gaps))
	}
	var points map[string][]models.Point
	if err := mem.Get(context.Background(), "forecast:bookings:daily", &points); err != nil {
		t.Fatalf("cached forecast: %v", err)
	}
	if len(points["h1"]) != 7 {
		t.Fatalf("expected 7 cached forecast points for h1, got %d", len(points["h1"]))
	}
}

func TestCoordinatorRunMLUnavailable(t *testing.T) {
	sink := &memSink{}
	c := newTestCoordinator(t, 2, "", sink, &countPublisher{}, cache.NewMemoryCache())

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// One failure per window per long series; the baselines still compete.
	if summary.Failures != 3*3 {
		t.Fatalf("expected 9 fit failures, got %d", summary.Failures)
	}
	if summary.Records != 3*3*3*7 {
		t.Fatalf("expected 189 prediction records, got %d", summary.Records)
	}
	if summary.Selections != 3 {
		t.Fatalf("expected a selection per long series, got %d", summary.Selections)
	}
	for key, sel := range sink.selection.Selections {
		if sel.Model != forecasters.ModelNaive {
			t.Fatalf("expected naive to win %s on the constant panel, got %s", key, sel.Model)
		}
		if !almostEqual(sel.WAPE, 0) || !almostEqual(sel.BiasPct, 0) {
			t.Fatalf("constant panel must score zero WAPE and bias: %+v", sel)
		}
	}
}

func TestCoordinatorRunOrderIndependent(t *testing.T) {
	srv := mlServer(t, 90)

	narrow := &memSink{}
	wide := &memSink{}
	c1 := newTestCoordinator(t, 1, srv.URL, narrow, &countPublisher{}, cache.NewMemoryCache())
	c4 := newTestCoordinator(t, 4, srv.URL, wide, &countPublisher{}, cache.NewMemoryCache())

	s1, err := c1.Run(context.Background())
	if err != nil {
		t.Fatalf("run workers=1: %v", err)
	}
	s4, err := c4.Run(context.Background())
	if err != nil {
		t.Fatalf("run workers=4: %v", err)
	}

	if s1.Records != s4.Records || s1.Selections != s4.Selections || s1.Gaps != s4.Gaps {
		t.Fatalf("summaries diverge across worker counts: %+v vs %+v", s1, s4)
	}
	for key, sel := range narrow.selection.Selections {
		other, ok := wide.selection.Selections[key]
		if !ok || other.Model != sel.Model || !almostEqual(other.WAPE, sel.WAPE) || other.Alpha != sel.Alpha {
			t.Fatalf("selection for %s depends on worker count: %+v vs %+v", key, sel, other)
		}
	}
}

func TestCoordinatorRunGuards(t *testing.T) {
	c := newTestCoordinator(t, 1, "", &memSink{}, &countPublisher{}, cache.NewMemoryCache())

	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
	if _, err := c.Run(context.Background()); err == nil {
		t.Fatalf("expected a second concurrent run to be rejected")
	}
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Run(ctx); err == nil {
		t.Fatalf("expected a cancelled run to fail")
	}
}
