package usecase

import (
	"math/rand"
	"testing"

	"StayCast/internal/domain/models"
)

func metricRec(series, model string, window int, wape float64, defined bool, biasPct float64) models.MetricRecord {
	return models.MetricRecord{
		SeriesID:    series,
		Target:      "bookings",
		Freq:        models.FreqDaily,
		Model:       model,
		WindowIndex: window,
		WAPE:        wape,
		WAPEDefined: defined,
		BiasPct:     biasPct,
	}
}

func TestSelectLowestMeanWAPEWins(t *testing.T) {
	recs := []models.MetricRecord{
		metricRec("h1", "naive", 0, 0.30, true, 0.1),
		metricRec("h1", "naive", 1, 0.40, true, 0.1),
		metricRec("h1", "ses", 0, 0.10, true, 0.2),
		metricRec("h1", "ses", 1, 0.20, true, 0.2),
	}

	result, scores := NewSelector(0.005).Select(recs)
	key := models.SegmentKey{SeriesID: "h1", Target: "bookings", Freq: models.FreqDaily}
	sel, ok := result.Selections[key]
	if !ok {
		t.Fatalf("expected a selection for %s", key)
	}
	if sel.Model != "ses" {
		t.Fatalf("expected ses to win, got %s", sel.Model)
	}
	if !almostEqual(sel.WAPE, 0.15) {
		t.Fatalf("expected mean WAPE 0.15, got %v", sel.WAPE)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(scores))
	}
}

func TestSelectEpsilonTieFallsToBias(t *testing.T) {
	recs := []models.MetricRecord{
		metricRec("h1", "naive", 0, 0.200, true, 0.01),
		metricRec("h1", "ses", 0, 0.204, true, 0.30),
	}

	result, _ := NewSelector(0.005).Select(recs)
	key := models.SegmentKey{SeriesID: "h1", Target: "bookings", Freq: models.FreqDaily}
	if got := result.Selections[key].Model; got != "naive" {
		t.Fatalf("tie inside epsilon must fall to lower |bias_pct|, got %s", got)
	}

	// Outside epsilon the WAPE decides despite the worse bias.
	recs[1].WAPE = 0.190
	result, _ = NewSelector(0.005).Select(recs)
	if got := result.Selections[key].Model; got != "ses" {
		t.Fatalf("expected the lower WAPE to win outside epsilon, got %s", got)
	}
}

func TestSelectUndefinedWindowsExcluded(t *testing.T) {
	recs := []models.MetricRecord{
		metricRec("h1", "naive", 0, 0.50, true, 0),
		metricRec("h1", "naive", 1, 0, false, 0),
	}

	result, scores := NewSelector(0.005).Select(recs)
	key := models.SegmentKey{SeriesID: "h1", Target: "bookings", Freq: models.FreqDaily}
	sel := result.Selections[key]
	if !almostEqual(sel.WAPE, 0.50) {
		t.Fatalf("undefined windows must not dilute the mean: %v", sel.WAPE)
	}
	if scores[0].Windows != 1 || scores[0].Excluded != 1 {
		t.Fatalf("expected 1 aggregated and 1 excluded window: %+v", scores[0])
	}
}

func TestSelectBiasAggregateSkipsUndefinedWindows(t *testing.T) {
	// The undefined window carries a forced-zero bias_pct; if it entered the
	// mean it would halve naive's bias and steal the tie-break from ses.
	recs := []models.MetricRecord{
		metricRec("h1", "naive", 0, 0.200, true, 0.30),
		metricRec("h1", "naive", 1, 0, false, 0),
		metricRec("h1", "ses", 0, 0.202, true, 0.20),
	}

	result, scores := NewSelector(0.005).Select(recs)
	key := models.SegmentKey{SeriesID: "h1", Target: "bookings", Freq: models.FreqDaily}
	if got := result.Selections[key].Model; got != "ses" {
		t.Fatalf("expected ses to win the bias tie-break, got %s", got)
	}
	for _, sc := range scores {
		if sc.Model == "naive" && !almostEqual(sc.BiasPct, 0.30) {
			t.Fatalf("naive bias must average defined windows only, got %v", sc.BiasPct)
		}
	}
}

func TestSelectGapWhenNoValidCandidate(t *testing.T) {
	recs := []models.MetricRecord{
		metricRec("h1", "naive", 0, 0, false, 0),
		metricRec("h1", "ses", 0, 0, false, 0),
	}

	result, _ := NewSelector(0.005).Select(recs)
	key := models.SegmentKey{SeriesID: "h1", Target: "bookings", Freq: models.FreqDaily}
	if len(result.Selections) != 0 {
		t.Fatalf("no candidate may be defaulted: %+v", result.Selections)
	}
	reason, ok := result.Gaps[key]
	if !ok || reason != models.ErrNoValidCandidate.Error() {
		t.Fatalf("expected explicit gap, got %q ok=%v", reason, ok)
	}
}

func TestSelectOrderIndependent(t *testing.T) {
	var recs []models.MetricRecord
	for _, series := range []string{"h1", "h2", "h3"} {
		for _, model := range []string{"naive", "snaive", "ses", "ml"} {
			for w := 0; w < 4; w++ {
				wape := float64(len(series)+len(model)+w) / 20
				recs = append(recs, metricRec(series, model, w, wape, true, wape/2))
			}
		}
	}

	base, _ := NewSelector(0.005).Select(recs)

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 5; trial++ {
		shuffled := append([]models.MetricRecord(nil), recs...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got, _ := NewSelector(0.005).Select(shuffled)
		if len(got.Selections) != len(base.Selections) {
			t.Fatalf("selection count differs across input orders")
		}
		for key, sel := range base.Selections {
			other, ok := got.Selections[key]
			if !ok || other.Model != sel.Model || !almostEqual(other.WAPE, sel.WAPE) {
				t.Fatalf("selection for %s depends on input order: %+v vs %+v", key, sel, other)
			}
		}
	}
}
