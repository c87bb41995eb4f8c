package scoring

import (
	"testing"

	"github.com/modelarena/arena/internal/services/arena/domain"
)

func TestWeightedMeanEqualWeights(t *testing.T) {
	policy := NewWeightedMean(1)

	scores := policy.Aggregate([]domain.Judgment{
		{JudgeID: "a", SubjectID: "b", Score: 8},
		{JudgeID: "c", SubjectID: "b", Score: 6},
	})
	if got := scores["b"]; got != 7 {
		t.Fatalf("expected mean 7, got %v", got)
	}
}

func TestWeightedMeanMasterWeighting(t *testing.T) {
	policy := NewWeightedMean(3)

	scores := policy.Aggregate([]domain.Judgment{
		{JudgeID: "a", SubjectID: "b", Score: 10, IsMasterJudgment: true},
		{JudgeID: "c", SubjectID: "b", Score: 2},
	})
	// (10*3 + 2*1) / 4 = 8
	if got := scores["b"]; got != 8 {
		t.Fatalf("expected weighted mean 8, got %v", got)
	}
}

func TestWeightedMeanRounding(t *testing.T) {
	policy := NewWeightedMean(1)

	scores := policy.Aggregate([]domain.Judgment{
		{JudgeID: "a", SubjectID: "b", Score: 7},
		{JudgeID: "c", SubjectID: "b", Score: 7},
		{JudgeID: "d", SubjectID: "b", Score: 8},
	})
	if got := scores["b"]; got != 7.33 {
		t.Fatalf("expected 7.33, got %v", got)
	}
}

func TestWeightedMeanDefaultsOnInvalidWeight(t *testing.T) {
	policy := NewWeightedMean(0)
	if policy.MasterWeight != DefaultMasterWeight {
		t.Fatalf("expected default master weight, got %v", policy.MasterWeight)
	}
}

func TestWeightedMeanEmptyJudgments(t *testing.T) {
	policy := NewWeightedMean(2)
	scores := policy.Aggregate(nil)
	if len(scores) != 0 {
		t.Fatalf("expected empty score map, got %v", scores)
	}
}
