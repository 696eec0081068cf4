package usecase

import (
	"math"
	"sort"

	"StayCast/internal/domain/models"
)

// Selector picks one model per segment from window-level metric records.
// Aggregation is a commutative fold over the records, so the outcome does
// not depend on the order segments were evaluated in.
type Selector struct {
	// Epsilon is the mean-WAPE band inside which two candidates count as
	// tied and the lower absolute bias_pct wins.
	Epsilon float64
}

func NewSelector(epsilon float64) *Selector {
	return &Selector{Epsilon: epsilon}
}

// candidateAgg folds window metrics for one (segment, model) pair. Bias
// accumulates over the same windows as WAPE: an undefined window carries a
// forced-zero bias_pct that would otherwise dilute the tie-break.
type candidateAgg struct {
	wapeSum  float64
	wapeN    int
	biasSum  float64
	excluded int
}

// Select aggregates per-window metrics into per-segment scores and picks a
// winner per segment. Segments where no candidate has a single window with
// a defined WAPE become gaps instead of defaulting to any model.
func (s *Selector) Select(recs []models.MetricRecord) (*models.SelectionResult, []models.SegmentScore) {
	aggs := make(map[models.SegmentKey]map[string]*candidateAgg)
	for _, r := range recs {
		key := r.Key()
		byModel, ok := aggs[key]
		if !ok {
			byModel = make(map[string]*candidateAgg)
			aggs[key] = byModel
		}
		a, ok := byModel[r.Model]
		if !ok {
			a = &candidateAgg{}
			byModel[r.Model] = a
		}
		if r.WAPEDefined {
			a.wapeSum += r.WAPE
			a.wapeN++
			a.biasSum += r.BiasPct
		} else {
			a.excluded++
		}
	}

	keys := make([]models.SegmentKey, 0, len(aggs))
	for key := range aggs {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		if a.Freq != b.Freq {
			return a.Freq < b.Freq
		}
		return a.SeriesID < b.SeriesID
	})

	result := models.NewSelectionResult()
	var scores []models.SegmentScore

	for _, key := range keys {
		byModel := aggs[key]

		names := make([]string, 0, len(byModel))
		for name := range byModel {
			names = append(names, name)
		}
		sort.Strings(names)

		var valid []models.SegmentScore
		for _, name := range names {
			a := byModel[name]
			if a.wapeN == 0 {
				// Every window's WAPE was undefined for this candidate.
				scores = append(scores, models.SegmentScore{
					SeriesID: key.SeriesID,
					Target:   key.Target,
					Freq:     key.Freq,
					Model:    name,
					Windows:  0,
					Excluded: a.excluded,
				})
				continue
			}
			sc := models.SegmentScore{
				SeriesID: key.SeriesID,
				Target:   key.Target,
				Freq:     key.Freq,
				Model:    name,
				WAPE:     a.wapeSum / float64(a.wapeN),
				BiasPct:  a.biasSum / float64(a.wapeN),
				Windows:  a.wapeN,
				Excluded: a.excluded,
			}
			scores = append(scores, sc)
			valid = append(valid, sc)
		}

		if len(valid) == 0 {
			result.Gaps[key] = models.ErrNoValidCandidate.Error()
			continue
		}
		winner := s.pick(valid)
		result.Selections[key] = models.Selection{
			Key:     key,
			Model:   winner.Model,
			WAPE:    winner.WAPE,
			BiasPct: winner.BiasPct,
		}
	}

	return result, scores
}

// pick applies the WAPE-then-bias rule: every candidate within Epsilon of
// the best mean WAPE is tied; the tie falls to the lower absolute bias_pct,
// and a persisting tie to the lexicographically smaller model name so the
// choice is deterministic.
func (s *Selector) pick(valid []models.SegmentScore) models.SegmentScore {
	minWAPE := valid[0].WAPE
	for _, sc := range valid[1:] {
		if sc.WAPE < minWAPE {
			minWAPE = sc.WAPE
		}
	}

	winner := valid[0]
	found := false
	for _, sc := range valid {
		if sc.WAPE-minWAPE > s.Epsilon {
			continue
		}
		if !found {
			winner = sc
			found = true
			continue
		}
		if math.Abs(sc.BiasPct) < math.Abs(winner.BiasPct) ||
			(math.Abs(sc.BiasPct) == math.Abs(winner.BiasPct) && sc.Model < winner.Model) {
			winner = sc
		}
	}
	return winner
}
