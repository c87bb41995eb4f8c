package domain

import (
	"errors"
	"testing"
	"time"
)

func testClock() func() time.Time {
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func testIDs(prefix string) func() (string, error) {
	count := 0
	return func() (string, error) {
		count++
		return prefix + string(rune('0'+count)), nil
	}
}

func testSession(t *testing.T) GameSession {
	t.Helper()
	session, err := CreateSession(CreateSessionInput{
		TotalRounds:    3,
		ParticipantIDs: []string{"a", "b", "c"},
	}, testClock(), testIDs("sess"))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func TestCreateRoundAssignsRotatedMaster(t *testing.T) {
	session := testSession(t)

	for roundNumber, wantMaster := range map[int]string{1: "a", 2: "b", 3: "c"} {
		round, err := CreateRound(session, roundNumber, testClock(), testIDs("round"))
		if err != nil {
			t.Fatalf("create round %d: %v", roundNumber, err)
		}
		if round.Status != RoundStatusCreated {
			t.Fatalf("expected created status, got %s", round.Status)
		}
		if round.MasterID != wantMaster {
			t.Fatalf("round %d: expected master %q, got %q", roundNumber, wantMaster, round.MasterID)
		}
	}
}

func TestCreateRoundRejectsOutOfRangeNumber(t *testing.T) {
	session := testSession(t)

	if _, err := CreateRound(session, 0, testClock(), testIDs("round")); err == nil {
		t.Fatal("expected round 0 to be rejected")
	}
	if _, err := CreateRound(session, 4, testClock(), testIDs("round")); err == nil {
		t.Fatal("expected round beyond total to be rejected")
	}
}

func TestTransitionFollowsTable(t *testing.T) {
	path := []RoundStatus{
		RoundStatusTopicSelection,
		RoundStatusQuestionCreation,
		RoundStatusAnswering,
		RoundStatusJudging,
		RoundStatusScoring,
		RoundStatusCompleted,
	}

	round, err := CreateRound(testSession(t), 1, testClock(), testIDs("round"))
	if err != nil {
		t.Fatalf("create round: %v", err)
	}
	for _, next := range path {
		if err := round.Transition(next, time.Now()); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
	if round.Status != RoundStatusCompleted {
		t.Fatalf("expected completed, got %s", round.Status)
	}
}

func TestTransitionRejectsUnlistedEdges(t *testing.T) {
	statuses := []RoundStatus{
		RoundStatusCreated,
		RoundStatusTopicSelection,
		RoundStatusQuestionCreation,
		RoundStatusAnswering,
		RoundStatusJudging,
		RoundStatusScoring,
		RoundStatusCompleted,
		RoundStatusFailed,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			round := Round{Status: from}
			err := round.Transition(to, time.Now())
			if ValidTransition(from, to) {
				if err != nil {
					t.Fatalf("%s -> %s should be allowed: %v", from, to, err)
				}
				continue
			}
			if err == nil {
				t.Fatalf("%s -> %s should be rejected", from, to)
			}
		}
	}
}

func TestTransitionToFailedFromAnyNonTerminal(t *testing.T) {
	for _, from := range []RoundStatus{
		RoundStatusCreated,
		RoundStatusTopicSelection,
		RoundStatusQuestionCreation,
		RoundStatusAnswering,
		RoundStatusJudging,
		RoundStatusScoring,
	} {
		round := Round{Status: from}
		if err := round.Transition(RoundStatusFailed, time.Now()); err != nil {
			t.Fatalf("%s -> failed should be allowed: %v", from, err)
		}
	}

	round := Round{Status: RoundStatusCompleted}
	if err := round.Transition(RoundStatusFailed, time.Now()); !errors.Is(err, ErrRoundTerminal) {
		t.Fatalf("completed -> failed should report terminal round, got %v", err)
	}
}
