package usecase

import (
	"fmt"
	"math"
	"sort"
	"time"

	"StayCast/internal/domain/models"
	"StayCast/internal/services/forecasters"
)

// HybridModelName is the model label for blended predictions.
const HybridModelName = "hybrid"

// Blend combines a statistical and an ML path as alpha*stat + (1-alpha)*ml.
// Alpha 1 is the pure statistical path, alpha 0 the pure ML path.
func Blend(stat, ml []float64, alpha float64, nonNegative bool) ([]float64, error) {
	if len(stat) != len(ml) {
		return nil, fmt.Errorf("blend: length mismatch: %d stat vs %d ml", len(stat), len(ml))
	}
	out := make([]float64, len(stat))
	for i := range stat {
		out[i] = alpha*stat[i] + (1-alpha)*ml[i]
	}
	if nonNegative {
		out = forecasters.ClipNonNegative(out)
	}
	return out, nil
}

// AlphaChoice is the winning blend weight for one segment together with the
// backtest evidence behind it.
type AlphaChoice struct {
	Alpha   float64
	WAPE    float64
	BiasPct float64
	Windows int
}

type windowPair struct {
	index  int
	ts     []time.Time
	actual []float64
	stat   []float64
	ml     []float64
}

// pairWindows aligns the statistical and ML prediction records of one
// segment by (window, timestamp). Windows where either path is missing a
// point are dropped; a blend needs both constituents on every step.
func pairWindows(stat, ml []models.PredictionRecord) []windowPair {
	type pointKey struct {
		window int
		ts     int64
	}

	mlAt := make(map[pointKey]float64, len(ml))
	for _, r := range ml {
		mlAt[pointKey{r.WindowIndex, r.TS.UnixNano()}] = r.Predicted
	}

	byWindow := make(map[int][]models.PredictionRecord)
	for _, r := range stat {
		byWindow[r.WindowIndex] = append(byWindow[r.WindowIndex], r)
	}

	indices := make([]int, 0, len(byWindow))
	for idx := range byWindow {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	var pairs []windowPair
	for _, idx := range indices {
		rs := byWindow[idx]
		sort.Slice(rs, func(i, j int) bool { return rs[i].TS.Before(rs[j].TS) })

		p := windowPair{index: idx}
		complete := true
		for _, r := range rs {
			mlPred, ok := mlAt[pointKey{idx, r.TS.UnixNano()}]
			if !ok {
				complete = false
				break
			}
			p.ts = append(p.ts, r.TS)
			p.actual = append(p.actual, r.Actual)
			p.stat = append(p.stat, r.Predicted)
			p.ml = append(p.ml, mlPred)
		}
		if complete && len(p.actual) > 0 {
			pairs = append(pairs, p)
		}
	}
	return pairs
}

// SelectAlpha grid-searches the blend weight over the backtest windows
// already produced for the two constituent models of one segment. The
// winner minimizes mean WAPE across windows; ties fall to the lower
// absolute mean bias_pct, then to the smaller alpha. The search reuses the
// engine's windows verbatim, so no second windowing pass exists to drift.
func SelectAlpha(stat, ml []models.PredictionRecord, grid []float64, nonNegative bool) (AlphaChoice, error) {
	if len(grid) == 0 {
		return AlphaChoice{}, fmt.Errorf("select alpha: empty grid")
	}
	pairs := pairWindows(stat, ml)
	if len(pairs) == 0 {
		return AlphaChoice{}, fmt.Errorf("select alpha: no windows with both constituents: %w", models.ErrNoValidCandidate)
	}

	const tie = 1e-12

	var best AlphaChoice
	haveBest := false
	for _, alpha := range grid {
		var (
			wapeSum, biasSum float64
			defined          int
		)
		for _, p := range pairs {
			blended, err := Blend(p.stat, p.ml, alpha, nonNegative)
			if err != nil {
				return AlphaChoice{}, err
			}
			acc, err := ComputeAccuracy(p.actual, blended)
			if err != nil {
				return AlphaChoice{}, err
			}
			if !acc.WAPEDefined {
				continue
			}
			wapeSum += acc.WAPE
			biasSum += acc.BiasPct
			defined++
		}
		if defined == 0 {
			continue
		}

		cand := AlphaChoice{
			Alpha:   alpha,
			WAPE:    wapeSum / float64(defined),
			BiasPct: biasSum / float64(defined),
			Windows: defined,
		}
		if !haveBest || betterAlpha(cand, best, tie) {
			best = cand
			haveBest = true
		}
	}
	if !haveBest {
		return AlphaChoice{}, fmt.Errorf("select alpha: %w on every window: %w",
			models.ErrMetricUndefined, models.ErrNoValidCandidate)
	}
	return best, nil
}

func betterAlpha(a, b AlphaChoice, tie float64) bool {
	if math.Abs(a.WAPE-b.WAPE) > tie {
		return a.WAPE < b.WAPE
	}
	if math.Abs(math.Abs(a.BiasPct)-math.Abs(b.BiasPct)) > tie {
		return math.Abs(a.BiasPct) < math.Abs(b.BiasPct)
	}
	return a.Alpha < b.Alpha
}

// BlendRecords materializes hybrid prediction records at the chosen alpha so
// the hybrid competes in selection on the same footing as its constituents.
func BlendRecords(stat, ml []models.PredictionRecord, alpha float64, nonNegative bool) []models.PredictionRecord {
	pairs := pairWindows(stat, ml)
	var out []models.PredictionRecord
	for _, p := range pairs {
		blended, err := Blend(p.stat, p.ml, alpha, nonNegative)
		if err != nil {
			continue
		}
		for i := range p.actual {
			r := stat[0]
			out = append(out, models.PredictionRecord{
				SeriesID:    r.SeriesID,
				Target:      r.Target,
				Freq:        r.Freq,
				Model:       HybridModelName,
				WindowIndex: p.index,
				TS:          p.ts[i],
				Actual:      p.actual[i],
				Predicted:   blended[i],
			})
		}
	}
	return out
}
