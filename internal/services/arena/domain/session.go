package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/modelarena/arena/internal/platform/id"
)

// SessionStatus describes the lifecycle state of a game session.
type SessionStatus string

const (
	// SessionStatusCreated indicates the session exists but has not started.
	SessionStatusCreated SessionStatus = "created"
	// SessionStatusRunning indicates rounds are in progress.
	SessionStatusRunning SessionStatus = "running"
	// SessionStatusPaused indicates no step may execute until resumed.
	SessionStatusPaused SessionStatus = "paused"
	// SessionStatusCompleted indicates all rounds finished.
	SessionStatusCompleted SessionStatus = "completed"
	// SessionStatusFailed indicates the session ended on an unrecoverable error.
	SessionStatusFailed SessionStatus = "failed"
)

// IsTerminal reports whether the session can no longer change state.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// GameSession is one multi-round competition between participants.
type GameSession struct {
	ID              string
	Status          SessionStatus
	TotalRounds     int
	CompletedRounds int
	// ParticipantIDs is the ordered participant list. Ordering is
	// significant: turn order and master rotation are positional.
	ParticipantIDs []string
	// FirstMasterID is the master of round 1; masters rotate from it.
	FirstMasterID string
	StartedAt     time.Time
	UpdatedAt     time.Time
}

// CreateSessionInput describes the metadata needed to create a session.
type CreateSessionInput struct {
	TotalRounds    int
	ParticipantIDs []string
	// FirstMasterID optionally seeds the round 1 master. Defaults to the
	// first participant.
	FirstMasterID string
}

// CreateSession builds a new session in created status with a generated ID.
func CreateSession(input CreateSessionInput, now func() time.Time, idGenerator func() (string, error)) (GameSession, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateSessionInput(input)
	if err != nil {
		return GameSession{}, err
	}

	sessionID, err := idGenerator()
	if err != nil {
		return GameSession{}, fmt.Errorf("generate session id: %w", err)
	}

	createdAt := now().UTC()
	return GameSession{
		ID:             sessionID,
		Status:         SessionStatusCreated,
		TotalRounds:    normalized.TotalRounds,
		ParticipantIDs: normalized.ParticipantIDs,
		FirstMasterID:  normalized.FirstMasterID,
		StartedAt:      createdAt,
		UpdatedAt:      createdAt,
	}, nil
}

// NormalizeCreateSessionInput trims and validates session input metadata.
func NormalizeCreateSessionInput(input CreateSessionInput) (CreateSessionInput, error) {
	if input.TotalRounds < 1 {
		return CreateSessionInput{}, ErrInvalidTotalRounds
	}

	seen := make(map[string]bool, len(input.ParticipantIDs))
	participants := make([]string, 0, len(input.ParticipantIDs))
	for _, participantID := range input.ParticipantIDs {
		participantID = strings.TrimSpace(participantID)
		if participantID == "" {
			continue
		}
		if seen[participantID] {
			return CreateSessionInput{}, fmt.Errorf("%w: duplicate participant %q", ErrInvalidParticipants, participantID)
		}
		seen[participantID] = true
		participants = append(participants, participantID)
	}
	if len(participants) < 2 {
		return CreateSessionInput{}, fmt.Errorf("%w: at least two participants are required", ErrInvalidParticipants)
	}
	input.ParticipantIDs = participants

	input.FirstMasterID = strings.TrimSpace(input.FirstMasterID)
	if input.FirstMasterID == "" {
		input.FirstMasterID = participants[0]
	} else if !seen[input.FirstMasterID] {
		return CreateSessionInput{}, fmt.Errorf("%w: first master %q is not a participant", ErrInvalidParticipants, input.FirstMasterID)
	}

	return input, nil
}
