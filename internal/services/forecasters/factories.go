package forecasters

import (
	"StayCast/internal/domain/models"
	"StayCast/internal/domain/service"
)

// Model names as they appear in records, scores and selections.
const (
	ModelNaive  = "naive"
	ModelSNaive = "snaive"
	ModelSES    = "ses"
	ModelML     = "ml"
)

// SeasonLength returns the default seasonal period for a grid frequency.
func SeasonLength(freq models.Frequency) int {
	if freq == models.FreqWeekly {
		return 52
	}
	return 7
}

// Baselines returns fresh-instance factories for the statistical models.
func Baselines(freq models.Frequency) []service.Factory {
	period := SeasonLength(freq)
	return []service.Factory{
		{Name: ModelNaive, New: func() service.Model { return NewNaive() }},
		{Name: ModelSNaive, New: func() service.Model { return NewSeasonalNaive(period) }},
		{Name: ModelSES, New: func() service.Model { return NewSmoothing(0.3) }},
	}
}

// ML returns the factory for the external regression adapter. The transform
// choice is fixed here, once, per target.
func ML(base *ServiceBase, logStabilize bool) service.Factory {
	return service.Factory{
		Name: ModelML,
		New:  func() service.Model { return NewRegressor(base, logStabilize) },
	}
}
