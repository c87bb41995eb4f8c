package domain

import (
	"fmt"
	"time"

	"github.com/modelarena/arena/internal/platform/id"
)

// RoundStatus describes the phase of a round.
type RoundStatus string

const (
	// RoundStatusCreated indicates the round exists and awaits topic selection.
	RoundStatusCreated RoundStatus = "created"
	// RoundStatusTopicSelection indicates the master selected a topic.
	RoundStatusTopicSelection RoundStatus = "topic_selection"
	// RoundStatusQuestionCreation indicates the master is authoring the question.
	RoundStatusQuestionCreation RoundStatus = "question_creation"
	// RoundStatusAnswering indicates non-master participants are answering.
	RoundStatusAnswering RoundStatus = "answering"
	// RoundStatusJudging indicates participants are judging answers.
	RoundStatusJudging RoundStatus = "judging"
	// RoundStatusScoring indicates judgments are being aggregated.
	RoundStatusScoring RoundStatus = "scoring"
	// RoundStatusCompleted indicates the round finished and is immutable.
	RoundStatusCompleted RoundStatus = "completed"
	// RoundStatusFailed indicates the round ended on an unrecoverable error.
	RoundStatusFailed RoundStatus = "failed"
)

// IsTerminal reports whether the round can no longer advance.
func (s RoundStatus) IsTerminal() bool {
	return s == RoundStatusCompleted || s == RoundStatusFailed
}

// forwardEdges is the sanctioned forward transition table. Failed is
// reachable from any non-terminal status and is handled separately.
var forwardEdges = map[RoundStatus][]RoundStatus{
	RoundStatusCreated:          {RoundStatusTopicSelection},
	RoundStatusTopicSelection:   {RoundStatusQuestionCreation, RoundStatusAnswering},
	RoundStatusQuestionCreation: {RoundStatusAnswering},
	RoundStatusAnswering:        {RoundStatusJudging},
	RoundStatusJudging:          {RoundStatusScoring},
	RoundStatusScoring:          {RoundStatusCompleted},
}

// ValidTransition reports whether from → to is a sanctioned forward edge.
// Rollback edges belong exclusively to undo and are validated by
// RollbackStatus instead.
func ValidTransition(from, to RoundStatus) bool {
	if to == RoundStatusFailed {
		return !from.IsTerminal()
	}
	for _, next := range forwardEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Round is one master-led question/answer/judging cycle within a session.
type Round struct {
	ID          string
	SessionID   string
	RoundNumber int
	Status      RoundStatus
	MasterID    string
	Topic       string
	Question    string
	Difficulty  string
	// Scores is the per-participant score map, set by the scoring step.
	Scores    map[string]float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateRound builds a new round in created status for a session.
func CreateRound(session GameSession, roundNumber int, now func() time.Time, idGenerator func() (string, error)) (Round, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if roundNumber < 1 || roundNumber > session.TotalRounds {
		return Round{}, fmt.Errorf("round number %d out of range 1..%d", roundNumber, session.TotalRounds)
	}

	roundID, err := idGenerator()
	if err != nil {
		return Round{}, fmt.Errorf("generate round id: %w", err)
	}

	createdAt := now().UTC()
	return Round{
		ID:          roundID,
		SessionID:   session.ID,
		RoundNumber: roundNumber,
		Status:      RoundStatusCreated,
		MasterID:    MasterForRound(session.ParticipantIDs, session.FirstMasterID, roundNumber),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}

// Transition moves the round to a forward status, enforcing the table.
func (r *Round) Transition(to RoundStatus, now time.Time) error {
	if r.Status.IsTerminal() && to != r.Status {
		return fmt.Errorf("%w: round is %s", ErrRoundTerminal, r.Status)
	}
	if !ValidTransition(r.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
	}
	r.Status = to
	r.UpdatedAt = now.UTC()
	return nil
}
