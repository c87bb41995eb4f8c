// Package events defines the arena's live event stream: the event kinds
// pushed to observers and the broker that fans them out without blocking
// the engine's write path.
package events

import (
	"time"

	"github.com/modelarena/arena/internal/services/arena/domain"
)

// Kind identifies the type of a stream event.
type Kind string

const (
	// KindConnected acknowledges an accepted observer.
	KindConnected Kind = "connected"
	// KindStateSnapshot carries the full current state, sent once per new
	// subscriber.
	KindStateSnapshot Kind = "state_snapshot"
	// KindSessionStarted records a session entering running status.
	KindSessionStarted Kind = "session_started"
	// KindSessionCompleted records a session reaching a terminal status.
	KindSessionCompleted Kind = "session_completed"
	// KindRoundStarted records the creation of a round.
	KindRoundStarted Kind = "round_started"
	// KindStepStarted records a step beginning execution.
	KindStepStarted Kind = "step_started"
	// KindStepCompleted records a step finishing with its output payload.
	KindStepCompleted Kind = "step_completed"
	// KindStepFailed records a step failure.
	KindStepFailed Kind = "step_failed"
	// KindStepCleanedUp records a failed step's error state being cleared.
	KindStepCleanedUp Kind = "step_cleaned_up"
	// KindStepUndone records the most recent step being reverted.
	KindStepUndone Kind = "step_undone"
	// KindRoundCompleted records a round finishing with its score map.
	KindRoundCompleted Kind = "round_completed"
)

// Event is one broadcast stream entry. Payload shape depends on Kind.
type Event struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// ConnectedPayload is the connected payload.
type ConnectedPayload struct {
	SubscriberID string `json:"subscriber_id"`
}

// SessionPayload is the session_started / session_completed payload.
type SessionPayload struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// RoundStartedPayload is the round_started payload.
type RoundStartedPayload struct {
	SessionID   string `json:"session_id"`
	RoundID     string `json:"round_id"`
	RoundNumber int    `json:"round_number"`
	MasterID    string `json:"master_id"`
	MasterName  string `json:"master_name,omitempty"`
}

// StepStartedPayload is the step_started payload.
type StepStartedPayload struct {
	RoundID   string          `json:"round_id"`
	StepID    string          `json:"step_id"`
	StepType  domain.StepType `json:"step_type"`
	ActorID   string          `json:"actor_id,omitempty"`
	ActorName string          `json:"actor_name,omitempty"`
}

// StepCompletedPayload is the step_completed payload. Output shape varies
// by step type.
type StepCompletedPayload struct {
	RoundID     string            `json:"round_id"`
	StepID      string            `json:"step_id"`
	StepType    domain.StepType   `json:"step_type"`
	ActorID     string            `json:"actor_id,omitempty"`
	Output      domain.StepOutput `json:"output,omitempty"`
	LatencyMS   int64             `json:"latency_ms"`
	RoundStatus string            `json:"round_status"`
}

// StepFailedPayload is the step_failed payload.
type StepFailedPayload struct {
	RoundID  string          `json:"round_id"`
	StepID   string          `json:"step_id"`
	StepType domain.StepType `json:"step_type"`
	ActorID  string          `json:"actor_id,omitempty"`
	Error    string          `json:"error"`
}

// StepCleanedUpPayload is the step_cleaned_up payload.
type StepCleanedUpPayload struct {
	RoundID  string          `json:"round_id"`
	StepID   string          `json:"step_id"`
	StepType domain.StepType `json:"step_type"`
	ActorID  string          `json:"actor_id,omitempty"`
}

// StepUndonePayload is the step_undone payload.
type StepUndonePayload struct {
	RoundID         string          `json:"round_id"`
	DeletedStepType domain.StepType `json:"deleted_step_type"`
	DeletedActorID  string          `json:"deleted_actor_id,omitempty"`
	ClearedFields   []string        `json:"cleared_fields"`
	NewRoundStatus  string          `json:"new_round_status"`
}

// RoundCompletedPayload is the round_completed payload.
type RoundCompletedPayload struct {
	SessionID   string             `json:"session_id"`
	RoundID     string             `json:"round_id"`
	RoundNumber int                `json:"round_number"`
	Scores      map[string]float64 `json:"scores"`
}
