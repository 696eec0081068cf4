package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"StayCast/internal/domain/models"
	pkgch "StayCast/pkg/clickhouse"
)

// Schema returns the idempotent DDL for the run artifact tables.
func Schema() []string {
	return []string{
		`CREATE DATABASE IF NOT EXISTS staycast`,
		`CREATE TABLE IF NOT EXISTS staycast.panel (
            target LowCardinality(String),
            frequency LowCardinality(String),
            series_id String,
            ds DateTime,
            value Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (target, frequency, series_id, ds)`,
		`CREATE TABLE IF NOT EXISTS staycast.bt_predictions (
            run_id String,
            target LowCardinality(String),
            frequency LowCardinality(String),
            series_id String,
            model LowCardinality(String),
            window_index UInt16,
            ts DateTime,
            actual Float64,
            predicted Float64
        ) ENGINE = MergeTree
        ORDER BY (run_id, target, frequency, series_id, model, window_index, ts)`,
		`CREATE TABLE IF NOT EXISTS staycast.bt_metrics (
            run_id String,
            target LowCardinality(String),
            frequency LowCardinality(String),
            series_id String,
            model LowCardinality(String),
            window_index UInt16,
            mae Float64,
            rmse Float64,
            mape Float64,
            mape_excluded UInt16,
            smape Float64,
            wape Float64,
            wape_defined UInt8,
            bias Float64,
            bias_pct Float64,
            volume_error_pct Float64,
            volume_defined UInt8
        ) ENGINE = MergeTree
        ORDER BY (run_id, target, frequency, series_id, model, window_index)`,
		`CREATE TABLE IF NOT EXISTS staycast.bt_scores (
            run_id String,
            target LowCardinality(String),
            frequency LowCardinality(String),
            series_id String,
            model LowCardinality(String),
            wape Float64,
            bias_pct Float64,
            windows UInt16,
            excluded UInt16
        ) ENGINE = MergeTree
        ORDER BY (run_id, target, frequency, series_id, model)`,
		`CREATE TABLE IF NOT EXISTS staycast.selection (
            run_id String,
            target LowCardinality(String),
            frequency LowCardinality(String),
            series_id String,
            model LowCardinality(String),
            alpha Float64,
            wape Float64,
            bias_pct Float64,
            gap_reason String
        ) ENGINE = ReplacingMergeTree
        ORDER BY (run_id, target, frequency, series_id)`,
		`CREATE TABLE IF NOT EXISTS staycast.forecast (
            run_id String,
            target LowCardinality(String),
            frequency LowCardinality(String),
            series_id String,
            ts DateTime,
            value Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (run_id, target, frequency, series_id, ts)`,
	}
}

// CHResultStore persists run artifacts to ClickHouse with chunked multi-row
// inserts.
type CHResultStore struct {
	db *sql.DB
}

func NewCHResultStore(ch *pkgch.Client) *CHResultStore {
	return &CHResultStore{db: ch.DB()}
}

// Init creates the database and tables if missing.
func (s *CHResultStore) Init(ctx context.Context) error {
	for _, stmt := range Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Chunk size tuned to keep single INSERT statements bounded.
const insertChunk = 2000

func (s *CHResultStore) insertChunked(ctx context.Context, table, cols, placeholder string, n, width int, arg func(i int) []interface{}) error {
	for start := 0; start < n; start += insertChunk {
		end := start + insertChunk
		if end > n {
			end = n
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*width)
		for i := start; i < end; i++ {
			values = append(values, placeholder)
			args = append(args, arg(i)...)
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, cols, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}

func (s *CHResultStore) StorePredictions(ctx context.Context, runID string, recs []models.PredictionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return s.insertChunked(ctx,
		"staycast.bt_predictions",
		"run_id, target, frequency, series_id, model, window_index, ts, actual, predicted",
		"(?, ?, ?, ?, ?, ?, ?, ?, ?)",
		len(recs), 9,
		func(i int) []interface{} {
			r := recs[i]
			return []interface{}{runID, r.Target, string(r.Freq), r.SeriesID, r.Model, uint16(r.WindowIndex), r.TS, r.Actual, r.Predicted}
		})
}

func (s *CHResultStore) StoreMetrics(ctx context.Context, runID string, recs []models.MetricRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return s.insertChunked(ctx,
		"staycast.bt_metrics",
		"run_id, target, frequency, series_id, model, window_index, mae, rmse, mape, mape_excluded, smape, wape, wape_defined, bias, bias_pct, volume_error_pct, volume_defined",
		"(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		len(recs), 17,
		func(i int) []interface{} {
			r := recs[i]
			return []interface{}{
				runID, r.Target, string(r.Freq), r.SeriesID, r.Model, uint16(r.WindowIndex),
				r.MAE, r.RMSE, r.MAPE, uint16(r.MAPEExcluded), r.SMAPE,
				r.WAPE, boolFlag(r.WAPEDefined), r.Bias, r.BiasPct,
				r.VolumeErrPct, boolFlag(r.VolumeDefined),
			}
		})
}

func (s *CHResultStore) StoreScores(ctx context.Context, runID string, scores []models.SegmentScore) error {
	if len(scores) == 0 {
		return nil
	}
	return s.insertChunked(ctx,
		"staycast.bt_scores",
		"run_id, target, frequency, series_id, model, wape, bias_pct, windows, excluded",
		"(?, ?, ?, ?, ?, ?, ?, ?, ?)",
		len(scores), 9,
		func(i int) []interface{} {
			sc := scores[i]
			return []interface{}{runID, sc.Target, string(sc.Freq), sc.SeriesID, sc.Model, sc.WAPE, sc.BiasPct, uint16(sc.Windows), uint16(sc.Excluded)}
		})
}

func (s *CHResultStore) StoreSelection(ctx context.Context, runID string, sel *models.SelectionResult) error {
	type row struct {
		key    models.SegmentKey
		model  string
		alpha  float64
		wape   float64
		bias   float64
		reason string
	}
	rows := make([]row, 0, len(sel.Selections)+len(sel.Gaps))
	for key, s := range sel.Selections {
		rows = append(rows, row{key: key, model: s.Model, alpha: s.Alpha, wape: s.WAPE, bias: s.BiasPct})
	}
	for key, reason := range sel.Gaps {
		rows = append(rows, row{key: key, reason: reason})
	}
	if len(rows) == 0 {
		return nil
	}
	return s.insertChunked(ctx,
		"staycast.selection",
		"run_id, target, frequency, series_id, model, alpha, wape, bias_pct, gap_reason",
		"(?, ?, ?, ?, ?, ?, ?, ?, ?)",
		len(rows), 9,
		func(i int) []interface{} {
			r := rows[i]
			return []interface{}{runID, r.key.Target, string(r.key.Freq), r.key.SeriesID, r.model, r.alpha, r.wape, r.bias, r.reason}
		})
}

func (s *CHResultStore) StoreForecast(ctx context.Context, runID string, forecast *models.Panel) error {
	if forecast == nil || forecast.Len() == 0 {
		return nil
	}
	type row struct {
		id    string
		point models.Point
	}
	var rows []row
	for _, id := range forecast.SeriesIDs() {
		sr, _ := forecast.Series(id)
		for _, p := range sr.Points {
			rows = append(rows, row{id: id, point: p})
		}
	}
	target, freq := forecast.Target(), string(forecast.Frequency())
	return s.insertChunked(ctx,
		"staycast.forecast",
		"run_id, target, frequency, series_id, ts, value",
		"(?, ?, ?, ?, ?, ?)",
		len(rows), 6,
		func(i int) []interface{} {
			r := rows[i]
			return []interface{}{runID, target, freq, r.id, r.point.TS, r.point.Value}
		})
}

func (s *CHResultStore) Close() error {
	return nil // pool owned by pkg client
}

func boolFlag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
