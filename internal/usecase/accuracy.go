package usecase

import (
	"fmt"
	"math"
	"sort"

	"StayCast/internal/domain/models"
)

// Accuracy is the full metric set computed over one evaluation window.
// Ratio metrics are fractions, not percentages: a WAPE of 0.4 means 40%.
type Accuracy struct {
	MAE  float64
	RMSE float64

	// MAPE is averaged over points with a non-zero actual only.
	// MAPEExcluded counts the points dropped from that average; when it
	// equals the window length MAPE carries no information.
	MAPE         float64
	MAPEExcluded int

	SMAPE float64

	WAPE        float64
	WAPEDefined bool

	// Bias is mean(predicted - actual); positive means over-forecasting.
	Bias    float64
	BiasPct float64

	VolumeErrPct  float64
	VolumeDefined bool
}

// ComputeAccuracy evaluates predictions against actuals of equal length.
// A length mismatch is a caller bug, not a data condition, and is returned
// as an error rather than silently truncated.
func ComputeAccuracy(actual, predicted []float64) (Accuracy, error) {
	if len(actual) != len(predicted) {
		return Accuracy{}, fmt.Errorf("accuracy: length mismatch: %d actuals vs %d predictions", len(actual), len(predicted))
	}
	if len(actual) == 0 {
		return Accuracy{}, fmt.Errorf("accuracy: empty window")
	}

	n := float64(len(actual))
	var (
		sumAbsErr, sumSqErr      float64
		sumAbsActual, sumAbsPred float64
		sumActual, sumPred       float64
		mapeSum                  float64
		mapeN                    int
		smapeSum                 float64
		smapeN                   int
		biasSum                  float64
	)

	for i := range actual {
		a, p := actual[i], predicted[i]
		err := a - p

		sumAbsErr += math.Abs(err)
		sumSqErr += err * err
		sumAbsActual += math.Abs(a)
		sumAbsPred += math.Abs(p)
		sumActual += a
		sumPred += p
		biasSum += p - a

		if a != 0 {
			mapeSum += math.Abs(err) / math.Abs(a)
			mapeN++
		}
		if denom := (math.Abs(a) + math.Abs(p)) / 2; denom > 0 {
			smapeSum += math.Abs(err) / denom
			smapeN++
		}
	}

	acc := Accuracy{
		MAE:          sumAbsErr / n,
		RMSE:         math.Sqrt(sumSqErr / n),
		MAPEExcluded: len(actual) - mapeN,
		Bias:         biasSum / n,
	}

	if mapeN > 0 {
		acc.MAPE = mapeSum / float64(mapeN)
	}
	if smapeN > 0 {
		acc.SMAPE = smapeSum / float64(smapeN)
	}

	switch {
	case sumAbsActual > 0:
		acc.WAPE = sumAbsErr / sumAbsActual
		acc.WAPEDefined = true
		acc.BiasPct = acc.Bias / (sumAbsActual / n)
	case sumAbsPred == 0:
		// Perfect forecast of an all-zero window.
		acc.WAPE = 0
		acc.WAPEDefined = true
	}

	switch {
	case sumActual != 0:
		acc.VolumeErrPct = (sumPred - sumActual) / sumActual
		acc.VolumeDefined = true
	case sumPred == 0:
		acc.VolumeErrPct = 0
		acc.VolumeDefined = true
	}

	return acc, nil
}

// BuildMetricRecords groups prediction records by segment, model and window
// and computes one MetricRecord per group. Output order is deterministic
// regardless of input order.
func BuildMetricRecords(recs []models.PredictionRecord) ([]models.MetricRecord, error) {
	type groupKey struct {
		key    models.SegmentKey
		model  string
		window int
	}

	groups := make(map[groupKey][]models.PredictionRecord)
	for _, r := range recs {
		gk := groupKey{key: r.Key(), model: r.Model, window: r.WindowIndex}
		groups[gk] = append(groups[gk], r)
	}

	keys := make([]groupKey, 0, len(groups))
	for gk := range groups {
		keys = append(keys, gk)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.key.Target != b.key.Target {
			return a.key.Target < b.key.Target
		}
		if a.key.Freq != b.key.Freq {
			return a.key.Freq < b.key.Freq
		}
		if a.key.SeriesID != b.key.SeriesID {
			return a.key.SeriesID < b.key.SeriesID
		}
		if a.model != b.model {
			return a.model < b.model
		}
		return a.window < b.window
	})

	out := make([]models.MetricRecord, 0, len(keys))
	for _, gk := range keys {
		rs := groups[gk]
		sort.Slice(rs, func(i, j int) bool { return rs[i].TS.Before(rs[j].TS) })

		actual := make([]float64, len(rs))
		pred := make([]float64, len(rs))
		for i, r := range rs {
			actual[i] = r.Actual
			pred[i] = r.Predicted
		}

		acc, err := ComputeAccuracy(actual, pred)
		if err != nil {
			return nil, fmt.Errorf("metrics for %s/%s/%s model=%s window=%d: %w",
				gk.key.Target, gk.key.Freq, gk.key.SeriesID, gk.model, gk.window, err)
		}

		out = append(out, models.MetricRecord{
			SeriesID:      gk.key.SeriesID,
			Target:        gk.key.Target,
			Freq:          gk.key.Freq,
			Model:         gk.model,
			WindowIndex:   gk.window,
			MAE:           acc.MAE,
			RMSE:          acc.RMSE,
			MAPE:          acc.MAPE,
			MAPEExcluded:  acc.MAPEExcluded,
			SMAPE:         acc.SMAPE,
			WAPE:          acc.WAPE,
			WAPEDefined:   acc.WAPEDefined,
			Bias:          acc.Bias,
			BiasPct:       acc.BiasPct,
			VolumeErrPct:  acc.VolumeErrPct,
			VolumeDefined: acc.VolumeDefined,
		})
	}

	return out, nil
}
