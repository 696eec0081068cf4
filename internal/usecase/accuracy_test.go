package usecase

import (
	"math"
	"testing"
	"time"

	"StayCast/internal/domain/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeAccuracyPerfectForecast(t *testing.T) {
	actual := []float64{3, 5, 2, 8}
	acc, err := ComputeAccuracy(actual, actual)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acc.MAE != 0 || acc.RMSE != 0 || acc.MAPE != 0 || acc.SMAPE != 0 || acc.WAPE != 0 || acc.Bias != 0 {
		t.Fatalf("perfect forecast must score zero everywhere: %+v", acc)
	}
	if !acc.WAPEDefined || !acc.VolumeDefined {
		t.Fatalf("metrics must be defined on non-zero actuals")
	}
}

func TestComputeAccuracyWAPE(t *testing.T) {
	actual := []float64{1, 1, 1, 1, 1}
	predicted := []float64{2, 1, 0, 1, 1}
	acc, err := ComputeAccuracy(actual, predicted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// |err| sums to 2 over actuals summing to 5.
	if !almostEqual(acc.WAPE, 0.4) {
		t.Fatalf("expected WAPE 0.4, got %v", acc.WAPE)
	}
}

func TestComputeAccuracyAllZeroPerfect(t *testing.T) {
	actual := []float64{0, 0, 0}
	acc, err := ComputeAccuracy(actual, []float64{0, 0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acc.WAPEDefined || acc.WAPE != 0 {
		t.Fatalf("all-zero perfect forecast must have WAPE 0 defined: %+v", acc)
	}
	if !acc.VolumeDefined || acc.VolumeErrPct != 0 {
		t.Fatalf("all-zero perfect forecast must have volume error 0 defined: %+v", acc)
	}
	if acc.SMAPE != 0 {
		t.Fatalf("both-zero terms are excluded from sMAPE, got %v", acc.SMAPE)
	}
	if acc.MAPEExcluded != 3 {
		t.Fatalf("all points excluded from MAPE, got %d", acc.MAPEExcluded)
	}
}

func TestComputeAccuracyAllZeroActualsUndefined(t *testing.T) {
	actual := []float64{0, 0, 0}
	acc, err := ComputeAccuracy(actual, []float64{1, 0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acc.WAPEDefined {
		t.Fatalf("WAPE must be undefined for zero actuals with non-zero predictions")
	}
	if acc.VolumeDefined {
		t.Fatalf("volume error must be undefined for zero actuals with non-zero predictions")
	}
}

func TestComputeAccuracyScaleInvariant(t *testing.T) {
	actual := []float64{12, 0, 7, 30, 18}
	predicted := []float64{10, 2, 9, 27, 21}

	base, err := ComputeAccuracy(actual, predicted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const k = 37.5
	scaledA := make([]float64, len(actual))
	scaledP := make([]float64, len(predicted))
	for i := range actual {
		scaledA[i] = actual[i] * k
		scaledP[i] = predicted[i] * k
	}
	scaled, err := ComputeAccuracy(scaledA, scaledP)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Ratio metrics must not move when both series are rescaled together.
	if !almostEqual(base.WAPE, scaled.WAPE) {
		t.Fatalf("WAPE changed under scaling: %v vs %v", base.WAPE, scaled.WAPE)
	}
	if !almostEqual(base.SMAPE, scaled.SMAPE) {
		t.Fatalf("sMAPE changed under scaling: %v vs %v", base.SMAPE, scaled.SMAPE)
	}
	if !almostEqual(base.BiasPct, scaled.BiasPct) {
		t.Fatalf("bias_pct changed under scaling: %v vs %v", base.BiasPct, scaled.BiasPct)
	}
	if !almostEqual(base.VolumeErrPct, scaled.VolumeErrPct) {
		t.Fatalf("volume error changed under scaling: %v vs %v", base.VolumeErrPct, scaled.VolumeErrPct)
	}
	// Absolute metrics scale with the data.
	if !almostEqual(base.MAE*k, scaled.MAE) || !almostEqual(base.RMSE*k, scaled.RMSE) {
		t.Fatalf("MAE/RMSE must scale linearly: %v/%v vs %v/%v", base.MAE, base.RMSE, scaled.MAE, scaled.RMSE)
	}
}

func TestComputeAccuracyZeroHandlingVector(t *testing.T) {
	acc, err := ComputeAccuracy([]float64{0, 0, 5}, []float64{1, 0, 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Both zero actuals drop out of MAPE; only |5-4|/5 remains.
	if acc.MAPEExcluded != 2 {
		t.Fatalf("expected 2 points excluded from MAPE, got %d", acc.MAPEExcluded)
	}
	if !almostEqual(acc.MAPE, 0.2) {
		t.Fatalf("expected MAPE 0.2, got %v", acc.MAPE)
	}
	// The both-zero term drops out of sMAPE; the remaining terms are
	// 1/0.5 and 1/4.5.
	if !almostEqual(acc.SMAPE, (2+1/4.5)/2) {
		t.Fatalf("expected sMAPE %v, got %v", (2+1/4.5)/2, acc.SMAPE)
	}
	// WAPE pools the errors: (1+0+1)/5.
	if !acc.WAPEDefined || !almostEqual(acc.WAPE, 0.4) {
		t.Fatalf("expected WAPE 0.4 defined, got %v defined=%v", acc.WAPE, acc.WAPEDefined)
	}
	if !almostEqual(acc.Bias, 0) {
		t.Fatalf("errors offset, expected zero bias, got %v", acc.Bias)
	}
	if !acc.VolumeDefined || !almostEqual(acc.VolumeErrPct, 0) {
		t.Fatalf("totals match, expected zero volume error, got %v", acc.VolumeErrPct)
	}
}

func TestComputeAccuracyMAPEExclusions(t *testing.T) {
	actual := []float64{0, 2, 4}
	predicted := []float64{1, 1, 2}
	acc, err := ComputeAccuracy(actual, predicted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acc.MAPEExcluded != 1 {
		t.Fatalf("expected 1 excluded point, got %d", acc.MAPEExcluded)
	}
	// Over the two valid points: (1/2 + 2/4) / 2 = 0.5
	if !almostEqual(acc.MAPE, 0.5) {
		t.Fatalf("expected MAPE 0.5, got %v", acc.MAPE)
	}
}

func TestComputeAccuracyBiasSign(t *testing.T) {
	actual := []float64{10, 10}
	over, err := ComputeAccuracy(actual, []float64{12, 12})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if over.Bias <= 0 || over.BiasPct <= 0 {
		t.Fatalf("over-forecasting must yield positive bias: %+v", over)
	}
	under, err := ComputeAccuracy(actual, []float64{8, 8})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if under.Bias >= 0 || under.BiasPct >= 0 {
		t.Fatalf("under-forecasting must yield negative bias: %+v", under)
	}
	if !almostEqual(over.Bias, 2) || !almostEqual(over.BiasPct, 0.2) {
		t.Fatalf("expected bias 2 and bias_pct 0.2: %+v", over)
	}
}

func TestComputeAccuracyVolumeError(t *testing.T) {
	acc, err := ComputeAccuracy([]float64{4, 6}, []float64{5, 6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(acc.VolumeErrPct, 0.1) {
		t.Fatalf("expected volume error 0.1, got %v", acc.VolumeErrPct)
	}
}

func TestComputeAccuracyLengthMismatch(t *testing.T) {
	if _, err := ComputeAccuracy([]float64{1, 2}, []float64{1}); err == nil {
		t.Fatalf("expected length mismatch error")
	}
	if _, err := ComputeAccuracy(nil, nil); err == nil {
		t.Fatalf("expected empty window error")
	}
}

func TestBuildMetricRecordsGroupsAndOrders(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rec := func(model string, window int, offset int, actual, predicted float64) models.PredictionRecord {
		return models.PredictionRecord{
			SeriesID:    "h1",
			Target:      "bookings",
			Freq:        models.FreqDaily,
			Model:       model,
			WindowIndex: window,
			TS:          base.Add(time.Duration(offset) * 24 * time.Hour),
			Actual:      actual,
			Predicted:   predicted,
		}
	}

	// Deliberately shuffled input.
	recs := []models.PredictionRecord{
		rec("snaive", 1, 10, 2, 2),
		rec("naive", 0, 1, 1, 2),
		rec("naive", 0, 0, 1, 1),
		rec("naive", 1, 10, 4, 2),
	}

	out, err := BuildMetricRecords(recs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 metric records, got %d", len(out))
	}
	if out[0].Model != "naive" || out[0].WindowIndex != 0 {
		t.Fatalf("unexpected first group: %+v", out[0])
	}
	if out[1].Model != "naive" || out[1].WindowIndex != 1 {
		t.Fatalf("unexpected second group: %+v", out[1])
	}
	if out[2].Model != "snaive" {
		t.Fatalf("unexpected third group: %+v", out[2])
	}
	// naive window 0: errors |1-1|,|1-2| over actuals 1+1.
	if !almostEqual(out[0].WAPE, 0.5) {
		t.Fatalf("expected WAPE 0.5 for naive window 0, got %v", out[0].WAPE)
	}
}
