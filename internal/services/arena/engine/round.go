package engine

import (
	"context"
	"fmt"

	"github.com/modelarena/arena/internal/services/arena/domain"
)

// stepPlan names the single step an advance call will execute.
type stepPlan struct {
	stepType domain.StepType
	actorID  string
}

// Advance executes exactly one step for the active session. The caller
// blocks until the step completes or fails; concurrent calls are rejected
// while a step is in flight. A step that fails at the gateway is returned
// with failed status and a nil error — invariant violations are the only
// errors.
func (e *Engine) Advance(ctx context.Context) (domain.Step, error) {
	e.mu.Lock()

	if e.stepInFlight {
		e.mu.Unlock()
		return domain.Step{}, domain.ErrStepInFlight
	}
	if e.session == nil {
		e.mu.Unlock()
		return domain.Step{}, domain.ErrSessionNotActive
	}
	switch e.session.Status {
	case domain.SessionStatusRunning:
	case domain.SessionStatusPaused:
		e.mu.Unlock()
		return domain.Step{}, domain.ErrSessionPaused
	case domain.SessionStatusCreated:
		e.mu.Unlock()
		return domain.Step{}, fmt.Errorf("%w: session not started", domain.ErrInvalidTransition)
	default:
		e.mu.Unlock()
		return domain.Step{}, domain.ErrSessionTerminal
	}
	if e.round == nil {
		e.mu.Unlock()
		return domain.Step{}, fmt.Errorf("%w: no round in progress", domain.ErrInvalidTransition)
	}
	if e.round.Status.IsTerminal() {
		e.mu.Unlock()
		return domain.Step{}, fmt.Errorf("%w: round is %s", domain.ErrRoundTerminal, e.round.Status)
	}

	plan, err := e.planStep(ctx)
	if err != nil {
		e.mu.Unlock()
		return domain.Step{}, err
	}

	// The in-flight flag stays set across the gateway call so no other
	// advance or undo can start while the lock is released.
	e.stepInFlight = true
	step, err := e.executeStep(ctx, plan)
	e.stepInFlight = false
	e.mu.Unlock()
	return step, err
}

// planStep maps the round status to the next step. Phases whose work is
// already complete (for example answering after the last answer was undone
// and redone across a restart) fall through to the next phase without
// consuming the call's one step.
func (e *Engine) planStep(ctx context.Context) (stepPlan, error) {
	for {
		switch e.round.Status {
		case domain.RoundStatusCreated:
			return stepPlan{stepType: domain.StepTypeMasterTopic, actorID: e.round.MasterID}, nil
		case domain.RoundStatusTopicSelection:
			return stepPlan{stepType: domain.StepTypeMasterQuestion, actorID: e.round.MasterID}, nil
		case domain.RoundStatusQuestionCreation, domain.RoundStatusAnswering:
			next, ok := domain.NextAnswerer(e.session.ParticipantIDs, e.round.MasterID, domain.AnsweredFlags(e.states))
			if ok {
				return stepPlan{stepType: domain.StepTypeModelAnswer, actorID: next}, nil
			}
			if err := e.transitionRound(ctx, domain.RoundStatusJudging); err != nil {
				return stepPlan{}, err
			}
		case domain.RoundStatusJudging:
			next, ok := domain.NextJudge(e.session.ParticipantIDs, e.round.MasterID, domain.JudgedFlags(e.states))
			if ok {
				// A judge whose only answer would be its own has nothing
				// to score; skip it. This only happens in two-participant
				// games, where the sole answerer never judges.
				if !e.hasScoreableAnswers(next) {
					if state, exists := e.states[next]; exists {
						state.HasJudged = true
					}
					continue
				}
				return stepPlan{stepType: domain.StepTypeModelJudge, actorID: next}, nil
			}
			if err := e.transitionRound(ctx, domain.RoundStatusScoring); err != nil {
				return stepPlan{}, err
			}
		case domain.RoundStatusScoring:
			return stepPlan{stepType: domain.StepTypeScoring}, nil
		default:
			return stepPlan{}, fmt.Errorf("%w: round is %s", domain.ErrRoundTerminal, e.round.Status)
		}
	}
}

// transitionRound applies a forward round transition and persists it.
// Caller holds the lock.
func (e *Engine) transitionRound(ctx context.Context, to domain.RoundStatus) error {
	if e.round.Status == to {
		return nil
	}
	// question_creation is a pass-through phase between topic_selection
	// and answering; hop through it when the table requires the hop.
	if e.round.Status == domain.RoundStatusTopicSelection && to == domain.RoundStatusAnswering {
		if err := e.round.Transition(domain.RoundStatusAnswering, e.now()); err != nil {
			return err
		}
	} else if err := e.round.Transition(to, e.now()); err != nil {
		return err
	}
	if err := e.stores.Rounds.PutRound(ctx, *e.round); err != nil {
		return fmt.Errorf("persist round: %w", err)
	}
	return nil
}

// hasScoreableAnswers reports whether any participant other than judgeID
// has answered this round.
func (e *Engine) hasScoreableAnswers(judgeID string) bool {
	for participantID, state := range e.states {
		if participantID != judgeID && state.HasAnswered {
			return true
		}
	}
	return false
}

// failureKey identifies a step position for the retry ceiling.
func failureKey(roundID string, stepType domain.StepType, actorID string) string {
	return roundID + "/" + string(stepType) + "/" + actorID
}

// failRound marks the round, and with it the session, failed. Terminal and
// unrecoverable: a new session is required to continue. Caller holds the
// lock.
func (e *Engine) failRound(ctx context.Context, reason string) error {
	if err := e.round.Transition(domain.RoundStatusFailed, e.now()); err != nil {
		return err
	}
	if err := e.stores.Rounds.PutRound(ctx, *e.round); err != nil {
		return fmt.Errorf("persist failed round: %w", err)
	}

	e.session.Status = domain.SessionStatusFailed
	e.session.UpdatedAt = e.now()
	if err := e.stores.Sessions.PutSession(ctx, *e.session); err != nil {
		return fmt.Errorf("persist failed session: %w", err)
	}

	e.logf("arena: session %s failed at round %d: %s", e.session.ID, e.round.RoundNumber, reason)
	e.stopAutoLocked()
	return nil
}

// completeRound finishes the round and either creates the next one or
// completes the session. Caller holds the lock; events for the completed
// round are published by the caller after persistence.
func (e *Engine) completeRound(ctx context.Context) (nextRound *domain.Round, sessionDone bool, err error) {
	e.session.CompletedRounds++
	e.session.UpdatedAt = e.now()

	if e.session.CompletedRounds >= e.session.TotalRounds {
		e.session.Status = domain.SessionStatusCompleted
		if err := e.stores.Sessions.PutSession(ctx, *e.session); err != nil {
			return nil, false, fmt.Errorf("persist session: %w", err)
		}
		return nil, true, nil
	}

	if err := e.stores.Sessions.PutSession(ctx, *e.session); err != nil {
		return nil, false, fmt.Errorf("persist session: %w", err)
	}
	round, err := e.beginRound(ctx, e.session.CompletedRounds+1)
	if err != nil {
		return nil, false, err
	}
	return &round, false, nil
}
