// Package storage defines the persistence interfaces the arena engine
// depends on, plus the record types that live outside the game domain
// (participant roster and operational settings).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/modelarena/arena/internal/services/arena/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ExecutionMode selects how the engine is driven.
type ExecutionMode string

const (
	// ExecutionModeManual advances one step per operator action.
	ExecutionModeManual ExecutionMode = "manual"
	// ExecutionModeAutomatic advances on a timer until a terminal phase,
	// a pause, or a failure.
	ExecutionModeAutomatic ExecutionMode = "automatic"
)

// Settings are the operational knobs read by the engine.
type Settings struct {
	ExecutionMode ExecutionMode
	StepDelayMS   int
	// JudgeAnonymized hides answer authorship from judges.
	JudgeAnonymized bool
	// MasterJudgeWeight is the scoring weight of the master's judgment.
	MasterJudgeWeight float64
	// MaxStepRetries is the failure ceiling at one step position before
	// the round fails.
	MaxStepRetries int
	UpdatedAt      time.Time
}

// DefaultSettings returns the settings used before any are persisted.
func DefaultSettings() Settings {
	return Settings{
		ExecutionMode:     ExecutionModeManual,
		StepDelayMS:       2000,
		JudgeAnonymized:   true,
		MasterJudgeWeight: 2.0,
		MaxStepRetries:    3,
	}
}

// Participant is a roster record for one hosted model.
type Participant struct {
	ID        string
	Name      string
	Model     string
	Provider  string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionStore persists game sessions.
type SessionStore interface {
	PutSession(ctx context.Context, session domain.GameSession) error
	GetSession(ctx context.Context, sessionID string) (domain.GameSession, error)
	// GetActiveSession returns the single non-terminal session, or
	// ErrNotFound when every session is terminal.
	GetActiveSession(ctx context.Context) (domain.GameSession, error)
	ListSessions(ctx context.Context) ([]domain.GameSession, error)
}

// RoundStore persists rounds.
type RoundStore interface {
	PutRound(ctx context.Context, round domain.Round) error
	GetRound(ctx context.Context, roundID string) (domain.Round, error)
	// GetCurrentRound returns the highest-numbered round of a session.
	GetCurrentRound(ctx context.Context, sessionID string) (domain.Round, error)
	ListRounds(ctx context.Context, sessionID string) ([]domain.Round, error)
}

// StepStore persists steps. Steps are ordered by the Seq the store assigns
// on first insert.
type StepStore interface {
	PutStep(ctx context.Context, step domain.Step) (domain.Step, error)
	GetStep(ctx context.Context, stepID string) (domain.Step, error)
	ListSteps(ctx context.Context, roundID string) ([]domain.Step, error)
	DeleteStep(ctx context.Context, stepID string) error
}

// SettingsStore persists the engine's operational settings.
type SettingsStore interface {
	GetSettings(ctx context.Context) (Settings, error)
	PutSettings(ctx context.Context, settings Settings) error
}

// ParticipantStore persists the model roster.
type ParticipantStore interface {
	PutParticipant(ctx context.Context, participant Participant) error
	GetParticipant(ctx context.Context, participantID string) (Participant, error)
	ListParticipants(ctx context.Context) ([]Participant, error)
	DeleteParticipant(ctx context.Context, participantID string) error
}

// Stores groups every interface the engine needs.
type Stores struct {
	Sessions     SessionStore
	Rounds       RoundStore
	Steps        StepStore
	Settings     SettingsStore
	Participants ParticipantStore
}
