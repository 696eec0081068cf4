package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"StayCast/internal/domain/models"
	pkgch "StayCast/pkg/clickhouse"
	applogger "StayCast/pkg/logger"
	"StayCast/pkg/util"
)

// CHPanelSource loads input panels from ClickHouse. The upstream aggregation
// job writes one row per (target, frequency, series_id, ds); this reader only
// groups rows into series and lets panel construction enforce the grid
// invariants.
type CHPanelSource struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHPanelSource(ch *pkgch.Client, l *applogger.Logger) *CHPanelSource {
	return &CHPanelSource{db: ch.DB(), l: l}
}

func (s *CHPanelSource) LoadPanel(ctx context.Context, target string, freq models.Frequency) (*models.Panel, error) {
	start := time.Now()
	const q = `
        SELECT series_id, ds, value
        FROM staycast.panel
        WHERE target = ? AND frequency = ?
        ORDER BY series_id ASC, ds ASC
    `
	rows, err := s.db.QueryContext(ctx, q, target, string(freq))
	if err != nil {
		s.l.Error("clickhouse load_panel query error",
			applogger.String("target", target),
			applogger.String("frequency", string(freq)),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("load panel: %w", err)
	}
	defer rows.Close()

	var (
		series []models.Series
		cur    models.Series
		total  int
	)
	for rows.Next() {
		var (
			id    string
			ds    time.Time
			value float64
		)
		if err := rows.Scan(&id, &ds, &value); err != nil {
			s.l.Error("clickhouse load_panel scan error",
				applogger.String("target", target),
				applogger.String("frequency", string(freq)),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("scan panel row: %w", err)
		}
		if id != cur.ID {
			if cur.ID != "" {
				series = append(series, cur)
			}
			cur = models.Series{ID: id}
		}
		// Normalize timestamps onto the grid anchor before validation.
		ts := util.TruncateToDay(ds)
		if freq == models.FreqWeekly {
			ts = util.AlignToWeek(ds)
		}
		cur.Points = append(cur.Points, models.Point{TS: ts, Value: value})
		total++
	}
	if cur.ID != "" {
		series = append(series, cur)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("panel rows: %w", err)
	}

	panel, err := models.NewPanel(target, freq, series)
	if err != nil {
		return nil, fmt.Errorf("panel %s/%s: %w", target, freq, err)
	}

	s.l.Info("clickhouse load_panel ok",
		applogger.String("target", target),
		applogger.String("frequency", string(freq)),
		applogger.Int("series", panel.Len()),
		applogger.Int("rows", total),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return panel, nil
}

func (s *CHPanelSource) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
