package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"StayCast/internal/domain/models"
	"StayCast/internal/domain/repository"
	"StayCast/internal/domain/service"
	"StayCast/internal/services/forecasters"
	"StayCast/pkg/cache"
	"StayCast/pkg/logger"
)

// TargetSpec is one forecast target as the coordinator consumes it.
type TargetSpec struct {
	Name         string
	Frequencies  []models.Frequency
	NonNegative  bool
	LogStabilize bool
}

// CoordinatorConfig tunes a full evaluation run across all targets.
type CoordinatorConfig struct {
	Workers        int
	Backtest       BacktestConfig // Horizon and NonNegative are set per target
	Horizons       map[models.Frequency]int
	AlphaGrid      []float64
	HybridBaseline string
	Epsilon        float64
	CacheTTL       time.Duration
}

// RunSummary describes one completed run.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Segments   int       `json:"segments"`
	Records    int       `json:"records"`
	Failures   int       `json:"failures"`
	Skipped    int       `json:"skipped_windows"`
	Selections int       `json:"selections"`
	Gaps       int       `json:"gaps"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
}

// runAccumulator merges per-series backtest output under a mutex. Every
// merge is commutative, so worker scheduling order cannot change the run's
// outcome.
type runAccumulator struct {
	mu       sync.Mutex
	preds    []models.PredictionRecord
	failures []FitFailure
	skipped  int
	empty    []models.SegmentKey
	alphas   map[models.SegmentKey]float64
}

func newRunAccumulator() *runAccumulator {
	return &runAccumulator{alphas: make(map[models.SegmentKey]float64)}
}

func (a *runAccumulator) merge(res *BacktestResult, hybrid []models.PredictionRecord, alpha map[models.SegmentKey]float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.preds = append(a.preds, res.Records...)
	a.preds = append(a.preds, hybrid...)
	a.failures = append(a.failures, res.Failures...)
	a.skipped += res.Skipped
	a.empty = append(a.empty, res.Empty...)
	for k, v := range alpha {
		a.alphas[k] = v
	}
}

// Coordinator drives a run end to end: load panels, backtest every segment
// on a worker pool, aggregate metrics, select models, refit and forecast,
// then persist, publish and cache the artifacts.
type Coordinator struct {
	cfg     CoordinatorConfig
	targets []TargetSpec
	source  repository.PanelSource
	sink    repository.ResultSink
	pub     repository.Publisher
	cache   cache.Service
	rec     repository.Metrics
	mlBase  *forecasters.ServiceBase
	log     *logger.Logger

	mu      sync.Mutex
	running bool
	last    *RunSummary
}

func NewCoordinator(
	cfg CoordinatorConfig,
	targets []TargetSpec,
	source repository.PanelSource,
	sink repository.ResultSink,
	pub repository.Publisher,
	cacheSvc cache.Service,
	rec repository.Metrics,
	mlBase *forecasters.ServiceBase,
	log *logger.Logger,
) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		targets: targets,
		source:  source,
		sink:    sink,
		pub:     pub,
		cache:   cacheSvc,
		rec:     rec,
		mlBase:  mlBase,
		log:     log,
	}
}

// Running reports whether a run is currently in flight.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// LastSummary returns the most recent completed run, or nil.
func (c *Coordinator) LastSummary() *RunSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Run executes one full evaluation run, optionally restricted to the named
// targets. Only one run may be in flight at a time; a second call while
// running is rejected.
func (c *Coordinator) Run(ctx context.Context, only ...string) (*RunSummary, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil, fmt.Errorf("run already in progress")
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	runID := time.Now().UTC().Format("20060102T150405Z")
	started := time.Now()
	c.log.Info("run started", logger.String("run_id", runID))

	summary := &RunSummary{RunID: runID, Started: started}
	selector := NewSelector(c.cfg.Epsilon)

	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		wanted[name] = true
	}

	for _, t := range c.targets {
		if len(wanted) > 0 && !wanted[t.Name] {
			continue
		}
		for _, freq := range t.Frequencies {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("run %s cancelled: %w", runID, err)
			}
			if err := c.runSegmentGroup(ctx, runID, t, freq, selector, summary); err != nil {
				c.rec.RecordError("segment_group")
				return nil, fmt.Errorf("run %s: target %s/%s: %w", runID, t.Name, freq, err)
			}
		}
	}

	summary.Finished = time.Now()
	c.rec.RecordRunDuration(summary.Finished.Sub(started).Seconds())
	c.log.Info("run finished",
		logger.String("run_id", runID),
		logger.Int("segments", summary.Segments),
		logger.Int("records", summary.Records),
		logger.Int("selections", summary.Selections),
		logger.Int("gaps", summary.Gaps),
		logger.Int("failures", summary.Failures),
		logger.Duration("took", summary.Finished.Sub(started)))

	c.mu.Lock()
	c.last = summary
	c.mu.Unlock()
	return summary, nil
}

func (c *Coordinator) runSegmentGroup(ctx context.Context, runID string, t TargetSpec, freq models.Frequency, selector *Selector, summary *RunSummary) error {
	horizon := c.cfg.Horizons[freq]
	if horizon <= 0 {
		return fmt.Errorf("no horizon configured for frequency %s", freq)
	}

	panel, err := c.source.LoadPanel(ctx, t.Name, freq)
	if err != nil {
		return fmt.Errorf("load panel: %w", err)
	}
	if panel.Len() == 0 {
		c.log.Warn("empty panel", logger.String("target", t.Name), logger.String("frequency", string(freq)))
		return nil
	}

	btCfg := c.cfg.Backtest
	btCfg.Horizon = horizon
	btCfg.NonNegative = t.NonNegative
	engine := NewBacktestEngine(btCfg, c.log, c.rec)

	factories := append(forecasters.Baselines(freq), forecasters.ML(c.mlBase, t.LogStabilize))

	acc := newRunAccumulator()
	if err := c.backtestPool(ctx, panel, engine, factories, t, acc); err != nil {
		return err
	}

	metricRecs, err := BuildMetricRecords(acc.preds)
	if err != nil {
		return fmt.Errorf("build metrics: %w", err)
	}

	selection, scores := selector.Select(metricRecs)
	for key, sel := range selection.Selections {
		if sel.Model == HybridModelName {
			sel.Alpha = acc.alphas[key]
			selection.Selections[key] = sel
		}
	}
	for _, key := range acc.empty {
		selection.Gaps[key] = models.ErrInsufficientHistory.Error()
	}

	summary.Segments += panel.Len()
	summary.Records += len(acc.preds)
	summary.Failures += len(acc.failures)
	summary.Skipped += acc.skipped
	summary.Selections += len(selection.Selections)
	summary.Gaps += len(selection.Gaps)

	runner := NewForecastRunner(factories, c.cfg.HybridBaseline, c.log)
	var forecast *models.Panel
	if len(selection.Selections) > 0 {
		forecast, err = runner.Generate(ctx, panel, selection, horizon, t.NonNegative)
		if err != nil {
			c.log.Warn("forecast generation incomplete",
				logger.String("target", t.Name),
				logger.String("frequency", string(freq)),
				logger.Error(err))
			c.rec.RecordError("forecast")
			forecast = nil
		}
	}

	return c.persist(ctx, runID, t.Name, freq, acc.preds, metricRecs, scores, selection, forecast)
}

// backtestPool evaluates every series of the panel on Workers goroutines.
// Each job backtests one series and runs the hybrid alpha search on its own
// output, then merges into the shared accumulator.
func (c *Coordinator) backtestPool(ctx context.Context, panel *models.Panel, engine *BacktestEngine, factories []service.Factory, t TargetSpec, acc *runAccumulator) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan string)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	workers := c.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if runCtx.Err() != nil {
					continue
				}
				if err := c.evalSeries(runCtx, panel, id, engine, factories, t, acc); err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
				}
			}
		}()
	}

	for _, id := range panel.SeriesIDs() {
		select {
		case <-runCtx.Done():
		case jobs <- id:
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// evalSeries backtests one series. Model failures stay in the accumulator;
// the only returned error is cancellation.
func (c *Coordinator) evalSeries(ctx context.Context, panel *models.Panel, id string, engine *BacktestEngine, factories []service.Factory, t TargetSpec, acc *runAccumulator) error {
	s, ok := panel.Series(id)
	if !ok {
		return nil
	}
	sub, err := models.NewPanel(panel.Target(), panel.Frequency(), []models.Series{s})
	if err != nil {
		return fmt.Errorf("series %s: %w", id, err)
	}

	res, err := engine.Run(ctx, sub, factories)
	if err != nil {
		return err
	}

	key := models.SegmentKey{SeriesID: id, Target: panel.Target(), Freq: panel.Frequency()}
	hybrid, alphas := c.searchHybrid(key, res.Records, t.NonNegative)

	acc.merge(res, hybrid, alphas)
	return nil
}

// searchHybrid runs the alpha grid search over the series' own backtest
// records. A segment where the search finds no usable window simply fields
// no hybrid candidate.
func (c *Coordinator) searchHybrid(key models.SegmentKey, recs []models.PredictionRecord, nonNegative bool) ([]models.PredictionRecord, map[models.SegmentKey]float64) {
	var stat, ml []models.PredictionRecord
	for _, r := range recs {
		switch r.Model {
		case c.cfg.HybridBaseline:
			stat = append(stat, r)
		case forecasters.ModelML:
			ml = append(ml, r)
		}
	}
	if len(stat) == 0 || len(ml) == 0 {
		return nil, nil
	}

	choice, err := SelectAlpha(stat, ml, c.cfg.AlphaGrid, nonNegative)
	if err != nil {
		c.log.Debug("hybrid not a candidate",
			logger.String("segment", key.String()),
			logger.Error(err))
		return nil, nil
	}

	hybrid := BlendRecords(stat, ml, choice.Alpha, nonNegative)
	return hybrid, map[models.SegmentKey]float64{key: choice.Alpha}
}

func (c *Coordinator) persist(ctx context.Context, runID, target string, freq models.Frequency, preds []models.PredictionRecord, metrics []models.MetricRecord, scores []models.SegmentScore, selection *models.SelectionResult, forecast *models.Panel) error {
	if err := c.sink.StorePredictions(ctx, runID, preds); err != nil {
		return fmt.Errorf("store predictions: %w", err)
	}
	c.rec.RecordRecordsStored("predictions", len(preds))

	if err := c.sink.StoreMetrics(ctx, runID, metrics); err != nil {
		return fmt.Errorf("store metrics: %w", err)
	}
	c.rec.RecordRecordsStored("metrics", len(metrics))

	if err := c.sink.StoreScores(ctx, runID, scores); err != nil {
		return fmt.Errorf("store scores: %w", err)
	}
	c.rec.RecordRecordsStored("scores", len(scores))

	if err := c.sink.StoreSelection(ctx, runID, selection); err != nil {
		return fmt.Errorf("store selection: %w", err)
	}
	c.rec.RecordRecordsStored("selection", len(selection.Selections)+len(selection.Gaps))

	if forecast != nil {
		if err := c.sink.StoreForecast(ctx, runID, forecast); err != nil {
			return fmt.Errorf("store forecast: %w", err)
		}
		c.rec.RecordRecordsStored("forecast", forecast.Len())
	}

	for _, sel := range selection.Selections {
		c.rec.RecordSelection(sel.Key.Target, string(sel.Key.Freq), sel.Model)
		if err := c.pub.PublishSelection(ctx, runID, sel); err != nil {
			c.log.Warn("publish selection failed", logger.String("segment", sel.Key.String()), logger.Error(err))
			c.rec.RecordError("publish")
		}
	}
	if forecast != nil {
		if err := c.pub.PublishForecast(ctx, runID, forecast); err != nil {
			c.log.Warn("publish forecast failed", logger.String("target", target), logger.Error(err))
			c.rec.RecordError("publish")
		}
	}

	prefix := target + ":" + string(freq)
	if err := c.cache.Set(ctx, "selection:"+prefix, selection, c.cfg.CacheTTL); err != nil {
		c.log.Warn("cache selection failed", logger.Error(err))
	}
	if err := c.cache.Set(ctx, "scores:"+prefix, scores, c.cfg.CacheTTL); err != nil {
		c.log.Warn("cache scores failed", logger.Error(err))
	}
	if forecast != nil {
		pts := make(map[string][]models.Point, forecast.Len())
		for _, id := range forecast.SeriesIDs() {
			s, _ := forecast.Series(id)
			pts[id] = s.Points
		}
		if err := c.cache.Set(ctx, "forecast:"+prefix, pts, c.cfg.CacheTTL); err != nil {
			c.log.Warn("cache forecast failed", logger.Error(err))
		}
	}

	return nil
}
