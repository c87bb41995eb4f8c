package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelarena/arena/internal/services/arena/domain"
	"github.com/modelarena/arena/internal/services/arena/events"
	"github.com/modelarena/arena/internal/services/arena/storage"
)

// Session lifecycle. All operations serialize through the engine lock and
// reject work while a step is in flight.

// CreateSession creates a new session in created status. The session
// immediately occupies the single active-session slot.
func (e *Engine) CreateSession(ctx context.Context, input domain.CreateSessionInput) (domain.GameSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stepInFlight {
		return domain.GameSession{}, domain.ErrStepInFlight
	}
	if err := e.ensureNoActiveSession(ctx); err != nil {
		return domain.GameSession{}, err
	}

	session, err := domain.CreateSession(input, e.clock, e.idGenerator)
	if err != nil {
		return domain.GameSession{}, err
	}
	roster, err := e.loadRoster(ctx, session.ParticipantIDs)
	if err != nil {
		return domain.GameSession{}, err
	}
	if err := e.stores.Sessions.PutSession(ctx, session); err != nil {
		return domain.GameSession{}, fmt.Errorf("persist session: %w", err)
	}

	e.session = &session
	e.round = nil
	e.states = nil
	e.roster = roster
	e.failures = make(map[string]int)
	return session, nil
}

// Start moves the session to running and creates round 1.
func (e *Engine) Start(ctx context.Context, sessionID string) (domain.GameSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stepInFlight {
		return domain.GameSession{}, domain.ErrStepInFlight
	}
	if err := e.requireSession(sessionID); err != nil {
		return domain.GameSession{}, err
	}
	if e.session.Status != domain.SessionStatusCreated {
		return domain.GameSession{}, fmt.Errorf("%w: session is %s", domain.ErrInvalidTransition, e.session.Status)
	}

	e.session.Status = domain.SessionStatusRunning
	e.session.UpdatedAt = e.now()
	e.undoSpent = false
	if err := e.stores.Sessions.PutSession(ctx, *e.session); err != nil {
		return domain.GameSession{}, fmt.Errorf("persist session: %w", err)
	}

	round, err := e.beginRound(ctx, 1)
	if err != nil {
		return domain.GameSession{}, err
	}

	e.publish(events.KindSessionStarted, events.SessionPayload{
		SessionID: e.session.ID,
		Status:    string(e.session.Status),
	})
	e.publishRoundStarted(round)

	e.maybeStartAutoLocked(ctx)
	return *e.session, nil
}

// Pause stops further advances until Resume. The in-flight step, if any,
// still finishes; pausing only prevents the next one from starting.
func (e *Engine) Pause(ctx context.Context, sessionID string) (domain.GameSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireSession(sessionID); err != nil {
		return domain.GameSession{}, err
	}
	if e.session.Status != domain.SessionStatusRunning {
		return domain.GameSession{}, fmt.Errorf("%w: session is %s", domain.ErrInvalidTransition, e.session.Status)
	}

	e.session.Status = domain.SessionStatusPaused
	e.session.UpdatedAt = e.now()
	if err := e.stores.Sessions.PutSession(ctx, *e.session); err != nil {
		return domain.GameSession{}, fmt.Errorf("persist session: %w", err)
	}
	e.stopAutoLocked()
	return *e.session, nil
}

// Resume returns a paused session to running.
func (e *Engine) Resume(ctx context.Context, sessionID string) (domain.GameSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireSession(sessionID); err != nil {
		return domain.GameSession{}, err
	}
	if e.session.Status != domain.SessionStatusPaused {
		return domain.GameSession{}, fmt.Errorf("%w: session is %s", domain.ErrInvalidTransition, e.session.Status)
	}

	e.session.Status = domain.SessionStatusRunning
	e.session.UpdatedAt = e.now()
	if err := e.stores.Sessions.PutSession(ctx, *e.session); err != nil {
		return domain.GameSession{}, fmt.Errorf("persist session: %w", err)
	}
	e.maybeStartAutoLocked(ctx)
	return *e.session, nil
}

// End terminates the session regardless of round progress, releasing the
// active-session slot.
func (e *Engine) End(ctx context.Context, sessionID string) (domain.GameSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stepInFlight {
		return domain.GameSession{}, domain.ErrStepInFlight
	}
	if err := e.requireSession(sessionID); err != nil {
		return domain.GameSession{}, err
	}
	if e.session.Status.IsTerminal() {
		return domain.GameSession{}, domain.ErrSessionTerminal
	}

	e.session.Status = domain.SessionStatusCompleted
	e.session.UpdatedAt = e.now()
	if err := e.stores.Sessions.PutSession(ctx, *e.session); err != nil {
		return domain.GameSession{}, fmt.Errorf("persist session: %w", err)
	}
	ended := *e.session

	e.stopAutoLocked()
	e.publish(events.KindSessionCompleted, events.SessionPayload{
		SessionID: ended.ID,
		Status:    string(ended.Status),
	})

	e.session = nil
	e.round = nil
	e.states = nil
	return ended, nil
}

// LoadActive rebuilds the engine cache from storage on startup. Turn order
// and participant state are recomputed from the persisted step sequence, so
// a crashed process resumes exactly where it stopped.
func (e *Engine) LoadActive(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, err := e.stores.Sessions.GetActiveSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load active session: %w", err)
	}

	roster, err := e.loadRoster(ctx, session.ParticipantIDs)
	if err != nil {
		return err
	}

	e.session = &session
	e.roster = roster
	e.failures = make(map[string]int)
	e.undoSpent = false
	e.round = nil
	e.states = nil

	round, err := e.stores.Rounds.GetCurrentRound(ctx, session.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load current round: %w", err)
	}

	steps, err := e.stores.Steps.ListSteps(ctx, round.ID)
	if err != nil {
		return fmt.Errorf("load steps: %w", err)
	}

	// A step marked running at load time was interrupted by a crash; it
	// can never complete, so record it as failed and let advance retry.
	for i := range steps {
		if steps[i].Status == domain.StepStatusRunning {
			steps[i].Status = domain.StepStatusFailed
			steps[i].Error = "interrupted by restart"
			completedAt := e.now()
			steps[i].CompletedAt = &completedAt
			if _, err := e.stores.Steps.PutStep(ctx, steps[i]); err != nil {
				return fmt.Errorf("mark interrupted step failed: %w", err)
			}
		}
	}

	e.round = &round
	e.states = domain.ReplayParticipantStates(session.ParticipantIDs, steps)
	e.logf("arena: resumed session %s round %d (%s)", session.ID, round.RoundNumber, round.Status)
	if session.Status == domain.SessionStatusRunning {
		e.maybeStartAutoLocked(ctx)
	}
	return nil
}

// requireSession checks that sessionID names the current active session.
func (e *Engine) requireSession(sessionID string) error {
	if e.session == nil {
		return domain.ErrSessionNotActive
	}
	if e.session.ID != sessionID {
		return fmt.Errorf("%w: active session is %s", domain.ErrSessionNotActive, e.session.ID)
	}
	return nil
}

func (e *Engine) ensureNoActiveSession(ctx context.Context) error {
	if e.session != nil && !e.session.Status.IsTerminal() {
		return domain.ErrSessionConflict
	}
	_, err := e.stores.Sessions.GetActiveSession(ctx)
	if err == nil {
		return domain.ErrSessionConflict
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("check active session: %w", err)
	}
	return nil
}

// loadRoster resolves every participant against the roster store.
func (e *Engine) loadRoster(ctx context.Context, participantIDs []string) (map[string]storage.Participant, error) {
	roster := make(map[string]storage.Participant, len(participantIDs))
	for _, participantID := range participantIDs {
		participant, err := e.stores.Participants.GetParticipant(ctx, participantID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%w: unknown participant %q", domain.ErrInvalidParticipants, participantID)
			}
			return nil, fmt.Errorf("load participant %s: %w", participantID, err)
		}
		if !participant.Enabled {
			return nil, fmt.Errorf("%w: participant %q is disabled", domain.ErrInvalidParticipants, participantID)
		}
		roster[participantID] = participant
	}
	return roster, nil
}

// beginRound creates and persists a round and resets derived state.
// Caller holds the lock.
func (e *Engine) beginRound(ctx context.Context, roundNumber int) (domain.Round, error) {
	round, err := domain.CreateRound(*e.session, roundNumber, e.clock, e.idGenerator)
	if err != nil {
		return domain.Round{}, err
	}
	if err := e.stores.Rounds.PutRound(ctx, round); err != nil {
		return domain.Round{}, fmt.Errorf("persist round: %w", err)
	}
	e.round = &round
	e.states = domain.ReplayParticipantStates(e.session.ParticipantIDs, nil)
	return round, nil
}

func (e *Engine) publishRoundStarted(round domain.Round) {
	e.publish(events.KindRoundStarted, events.RoundStartedPayload{
		SessionID:   round.SessionID,
		RoundID:     round.ID,
		RoundNumber: round.RoundNumber,
		MasterID:    round.MasterID,
		MasterName:  e.participantName(round.MasterID),
	})
}
