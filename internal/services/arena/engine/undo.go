package engine

import (
	"context"
	"fmt"

	"github.com/modelarena/arena/internal/services/arena/domain"
	"github.com/modelarena/arena/internal/services/arena/events"
)

// Undo deletes the most recent successful step of the current round and
// rewinds the round to the phase that produced it. Undo is the exact
// inverse of advance: the deleted step's fields are cleared and turn
// order recomputes from the surviving step sequence. Only the current
// round is undoable; once a later round exists its predecessor is sealed.
// Undo is single-level: a second call without a completed step in between
// returns ErrUndoLimit.
func (e *Engine) Undo(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stepInFlight {
		return domain.ErrStepInFlight
	}
	if e.session == nil {
		return domain.ErrSessionNotActive
	}
	if e.round == nil {
		return domain.ErrNothingToUndo
	}
	if e.undoSpent {
		return domain.ErrUndoLimit
	}

	steps, err := e.stores.Steps.ListSteps(ctx, e.round.ID)
	if err != nil {
		return fmt.Errorf("list steps: %w", err)
	}
	target, ok := latestStep(steps, domain.StepStatusSuccess)
	if !ok {
		return domain.ErrNothingToUndo
	}

	if err := e.stores.Steps.DeleteStep(ctx, target.ID); err != nil {
		return fmt.Errorf("delete step: %w", err)
	}

	rollback, err := domain.RollbackStatus(target.Type)
	if err != nil {
		return err
	}

	var cleared []string
	switch target.Type {
	case domain.StepTypeMasterTopic:
		e.round.Topic = ""
		cleared = append(cleared, "topic")
	case domain.StepTypeMasterQuestion:
		e.round.Question = ""
		e.round.Difficulty = ""
		cleared = append(cleared, "question", "difficulty")
	case domain.StepTypeModelAnswer:
		cleared = append(cleared, "hasAnswered:"+target.ActorID)
	case domain.StepTypeModelJudge:
		cleared = append(cleared, "hasJudged:"+target.ActorID)
	case domain.StepTypeScoring:
		e.round.Scores = nil
		cleared = append(cleared, "scores")
	}

	e.round.Status = rollback
	e.round.UpdatedAt = e.now()
	if err := e.stores.Rounds.PutRound(ctx, *e.round); err != nil {
		return fmt.Errorf("persist round: %w", err)
	}

	// Undoing the scoring step un-completes the round, which reopens the
	// session if scoring had finished it.
	if target.Type == domain.StepTypeScoring {
		e.session.CompletedRounds--
		if e.session.Status == domain.SessionStatusCompleted {
			e.session.Status = domain.SessionStatusRunning
		}
		e.session.UpdatedAt = e.now()
		if err := e.stores.Sessions.PutSession(ctx, *e.session); err != nil {
			return fmt.Errorf("persist session: %w", err)
		}
	}

	remaining, err := e.stores.Steps.ListSteps(ctx, e.round.ID)
	if err != nil {
		return fmt.Errorf("list steps: %w", err)
	}
	e.states = domain.ReplayParticipantStates(e.session.ParticipantIDs, remaining)
	e.undoSpent = true

	e.publish(events.KindStepUndone, events.StepUndonePayload{
		RoundID:         e.round.ID,
		DeletedStepType: target.Type,
		DeletedActorID:  target.ActorID,
		ClearedFields:   cleared,
		NewRoundStatus:  string(e.round.Status),
	})
	return nil
}

// CleanupFailedStep deletes the most recent failed step of the current
// round so its error no longer shows in the state. The round phase is
// untouched; the next advance retries the same position.
func (e *Engine) CleanupFailedStep(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stepInFlight {
		return domain.ErrStepInFlight
	}
	if e.session == nil {
		return domain.ErrSessionNotActive
	}
	if e.round == nil {
		return domain.ErrNothingToCleanUp
	}

	steps, err := e.stores.Steps.ListSteps(ctx, e.round.ID)
	if err != nil {
		return fmt.Errorf("list steps: %w", err)
	}
	target, ok := latestStep(steps, domain.StepStatusFailed)
	if !ok {
		return domain.ErrNothingToCleanUp
	}

	if err := e.stores.Steps.DeleteStep(ctx, target.ID); err != nil {
		return fmt.Errorf("delete step: %w", err)
	}
	delete(e.failures, failureKey(target.RoundID, target.Type, target.ActorID))

	e.publish(events.KindStepCleanedUp, events.StepCleanedUpPayload{
		RoundID:  target.RoundID,
		StepID:   target.ID,
		StepType: target.Type,
		ActorID:  target.ActorID,
	})
	return nil
}

// latestStep returns the highest-sequence step with the given status.
func latestStep(steps []domain.Step, status domain.StepStatus) (domain.Step, bool) {
	var (
		best  domain.Step
		found bool
	)
	for _, step := range steps {
		if step.Status != status {
			continue
		}
		if !found || step.Seq > best.Seq {
			best = step
			found = true
		}
	}
	return best, found
}
