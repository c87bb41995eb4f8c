package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/modelarena/arena/internal/services/arena/domain"
)

// Snapshot is a point-in-time copy of the active game state. It shares no
// memory with the engine's caches, so holders can read it freely while
// steps execute.
type Snapshot struct {
	Session      *SessionView      `json:"session,omitempty"`
	Round        *RoundView        `json:"round,omitempty"`
	Steps        []StepView        `json:"steps,omitempty"`
	Participants []ParticipantView `json:"participants,omitempty"`
	StepInFlight bool              `json:"step_in_flight"`
	Taken        time.Time         `json:"taken"`
}

// SessionView is the session portion of a snapshot.
type SessionView struct {
	ID              string   `json:"id"`
	Status          string   `json:"status"`
	TotalRounds     int      `json:"total_rounds"`
	CompletedRounds int      `json:"completed_rounds"`
	ParticipantIDs  []string `json:"participant_ids"`
	FirstMasterID   string   `json:"first_master_id"`
}

// RoundView is the round portion of a snapshot.
type RoundView struct {
	ID          string             `json:"id"`
	RoundNumber int                `json:"round_number"`
	Status      string             `json:"status"`
	MasterID    string             `json:"master_id"`
	MasterName  string             `json:"master_name,omitempty"`
	Topic       string             `json:"topic,omitempty"`
	Question    string             `json:"question,omitempty"`
	Difficulty  string             `json:"difficulty,omitempty"`
	Scores      map[string]float64 `json:"scores,omitempty"`
}

// StepView is one step of the current round as shown to observers. Output
// previews rather than full payloads keep the snapshot small.
type StepView struct {
	ID        string            `json:"id"`
	Seq       int               `json:"seq"`
	Type      domain.StepType   `json:"type"`
	ActorID   string            `json:"actor_id,omitempty"`
	ActorName string            `json:"actor_name,omitempty"`
	Status    domain.StepStatus `json:"status"`
	Output    domain.StepOutput `json:"output,omitempty"`
	Error     string            `json:"error,omitempty"`
	LatencyMS int64             `json:"latency_ms,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// ParticipantView is the per-participant state shown to observers.
type ParticipantView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Model       string          `json:"model,omitempty"`
	IsMaster    bool            `json:"is_master"`
	HasAnswered bool            `json:"has_answered"`
	HasJudged   bool            `json:"has_judged"`
	Activity    domain.Activity `json:"activity"`
}

// Snapshot copies the active state. It never blocks on an in-flight
// gateway call: the lock is only held for the copy.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := Snapshot{
		StepInFlight: e.stepInFlight,
		Taken:        e.now(),
	}
	if e.session == nil {
		return snapshot, nil
	}

	snapshot.Session = &SessionView{
		ID:              e.session.ID,
		Status:          string(e.session.Status),
		TotalRounds:     e.session.TotalRounds,
		CompletedRounds: e.session.CompletedRounds,
		ParticipantIDs:  append([]string(nil), e.session.ParticipantIDs...),
		FirstMasterID:   e.session.FirstMasterID,
	}

	for _, participantID := range e.session.ParticipantIDs {
		view := ParticipantView{
			ID:       participantID,
			Name:     e.participantName(participantID),
			Model:    e.participantModel(participantID),
			Activity: domain.ActivityIdle,
		}
		if state, ok := e.states[participantID]; ok {
			view.HasAnswered = state.HasAnswered
			view.HasJudged = state.HasJudged
			view.Activity = state.Activity
		}
		if e.round != nil {
			view.IsMaster = participantID == e.round.MasterID
		}
		snapshot.Participants = append(snapshot.Participants, view)
	}

	if e.round == nil {
		return snapshot, nil
	}

	scores := make(map[string]float64, len(e.round.Scores))
	for participantID, score := range e.round.Scores {
		scores[participantID] = score
	}
	snapshot.Round = &RoundView{
		ID:          e.round.ID,
		RoundNumber: e.round.RoundNumber,
		Status:      string(e.round.Status),
		MasterID:    e.round.MasterID,
		MasterName:  e.participantName(e.round.MasterID),
		Topic:       e.round.Topic,
		Question:    e.round.Question,
		Difficulty:  e.round.Difficulty,
		Scores:      scores,
	}

	steps, err := e.stores.Steps.ListSteps(ctx, e.round.ID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list steps: %w", err)
	}
	for _, step := range steps {
		snapshot.Steps = append(snapshot.Steps, StepView{
			ID:        step.ID,
			Seq:       step.Seq,
			Type:      step.Type,
			ActorID:   step.ActorID,
			ActorName: e.participantName(step.ActorID),
			Status:    step.Status,
			Output:    step.Output,
			Error:     step.Error,
			LatencyMS: step.LatencyMS,
			CreatedAt: step.CreatedAt,
		})
	}
	return snapshot, nil
}
