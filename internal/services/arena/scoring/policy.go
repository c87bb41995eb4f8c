// Package scoring aggregates per-round judgments into a score map. The
// aggregation formula is a pluggable policy so the weighting scheme can
// change without touching the engine.
package scoring

import (
	"math"

	"github.com/modelarena/arena/internal/services/arena/domain"
)

// Policy combines a round's judgments into one score per judged subject.
type Policy interface {
	Aggregate(judgments []domain.Judgment) map[string]float64
}

// DefaultMasterWeight is the relative weight of the master's judgment in
// the weighted-mean policy.
const DefaultMasterWeight = 2.0

// WeightedMean scores each subject as the weighted mean of its judgments,
// with master judgments weighted by MasterWeight and peer judgments by 1.
type WeightedMean struct {
	MasterWeight float64
}

// NewWeightedMean builds the default policy. A non-positive masterWeight
// falls back to DefaultMasterWeight.
func NewWeightedMean(masterWeight float64) WeightedMean {
	if masterWeight <= 0 {
		masterWeight = DefaultMasterWeight
	}
	return WeightedMean{MasterWeight: masterWeight}
}

// Aggregate implements Policy. Scores are rounded to two decimals.
func (p WeightedMean) Aggregate(judgments []domain.Judgment) map[string]float64 {
	sums := make(map[string]float64)
	weights := make(map[string]float64)
	for _, judgment := range judgments {
		weight := 1.0
		if judgment.IsMasterJudgment {
			weight = p.MasterWeight
		}
		sums[judgment.SubjectID] += judgment.Score * weight
		weights[judgment.SubjectID] += weight
	}

	scores := make(map[string]float64, len(sums))
	for subjectID, sum := range sums {
		scores[subjectID] = math.Round(sum/weights[subjectID]*100) / 100
	}
	return scores
}
