package domain

import "testing"

func TestNextAnswererStartsClockwiseAfterMaster(t *testing.T) {
	participants := []string{"a", "b", "c"}

	next, ok := NextAnswerer(participants, "a", map[string]bool{})
	if !ok {
		t.Fatal("expected an answerer")
	}
	if next != "b" {
		t.Fatalf("expected b to answer first, got %q", next)
	}
}

func TestNextAnswererSkipsMaster(t *testing.T) {
	participants := []string{"a", "b", "c"}

	for answered := 0; answered < len(participants); answered++ {
		flags := map[string]bool{}
		order := []string{}
		for {
			next, ok := NextAnswerer(participants, "b", flags)
			if !ok {
				break
			}
			order = append(order, next)
			flags[next] = true
		}
		if len(order) != 2 {
			t.Fatalf("expected 2 answerers, got %v", order)
		}
		for _, participantID := range order {
			if participantID == "b" {
				t.Fatalf("master appeared as answerer in %v", order)
			}
		}
		if order[0] != "c" || order[1] != "a" {
			t.Fatalf("expected clockwise order [c a], got %v", order)
		}
	}
}

func TestNextAnswererDoneWhenAllAnswered(t *testing.T) {
	participants := []string{"a", "b", "c"}

	_, ok := NextAnswerer(participants, "a", map[string]bool{"b": true, "c": true})
	if ok {
		t.Fatal("expected no answerer once all non-masters answered")
	}
}

func TestNextJudgeMasterIsAlwaysLast(t *testing.T) {
	participants := []string{"a", "b", "c", "d"}
	flags := map[string]bool{}
	order := []string{}
	for {
		next, ok := NextJudge(participants, "c", flags)
		if !ok {
			break
		}
		order = append(order, next)
		flags[next] = true
	}

	want := []string{"d", "a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected judge order %v, got %v", want, order)
		}
	}
	if order[len(order)-1] != "c" {
		t.Fatalf("expected master to judge last, got %v", order)
	}
}

func TestNextJudgeMasterIneligibleUntilOthersJudged(t *testing.T) {
	participants := []string{"a", "b", "c"}

	next, ok := NextJudge(participants, "a", map[string]bool{"b": true})
	if !ok {
		t.Fatal("expected a judge")
	}
	if next == "a" {
		t.Fatal("master became eligible before all non-masters judged")
	}
	if next != "c" {
		t.Fatalf("expected c to judge next, got %q", next)
	}
}

func TestNextJudgeDoneAfterMaster(t *testing.T) {
	participants := []string{"a", "b", "c"}

	_, ok := NextJudge(participants, "a", map[string]bool{"a": true, "b": true, "c": true})
	if ok {
		t.Fatal("expected judging to be complete")
	}
}

func TestMasterForRoundRotates(t *testing.T) {
	participants := []string{"a", "b", "c"}

	tests := []struct {
		roundNumber int
		want        string
	}{
		{1, "a"},
		{2, "b"},
		{3, "c"},
		{4, "a"},
	}
	for _, tc := range tests {
		got := MasterForRound(participants, "a", tc.roundNumber)
		if got != tc.want {
			t.Fatalf("round %d: expected master %q, got %q", tc.roundNumber, tc.want, got)
		}
	}
}

func TestMasterForRoundHonorsSeed(t *testing.T) {
	participants := []string{"a", "b", "c"}

	if got := MasterForRound(participants, "c", 1); got != "c" {
		t.Fatalf("expected seeded master c, got %q", got)
	}
	if got := MasterForRound(participants, "c", 2); got != "a" {
		t.Fatalf("expected rotation to wrap to a, got %q", got)
	}
}
