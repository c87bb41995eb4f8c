package domain

import "errors"

var (
	// ErrInvalidTotalRounds indicates a non-positive round count.
	ErrInvalidTotalRounds = errors.New("total rounds must be at least 1")
	// ErrInvalidParticipants indicates a malformed participant list.
	ErrInvalidParticipants = errors.New("invalid participant list")
	// ErrSessionConflict indicates another session holds the active slot.
	ErrSessionConflict = errors.New("another session is active")
	// ErrSessionNotActive indicates the operation targets a session that is
	// not the current active one.
	ErrSessionNotActive = errors.New("session is not active")
	// ErrStepInFlight indicates a step is already running.
	ErrStepInFlight = errors.New("a step is already running")
	// ErrSessionPaused indicates the session must be resumed first.
	ErrSessionPaused = errors.New("session is paused")
	// ErrSessionTerminal indicates the session already completed or failed.
	ErrSessionTerminal = errors.New("session is in a terminal state")
	// ErrNothingToUndo indicates the current round has no completed step.
	ErrNothingToUndo = errors.New("no completed step to undo")
	// ErrUndoLimit indicates a second consecutive undo; only the most
	// recent step is undoable until another step completes.
	ErrUndoLimit = errors.New("undo limit reached: complete a step before undoing again")
	// ErrNothingToCleanUp indicates the current round has no failed step.
	ErrNothingToCleanUp = errors.New("no failed step to clean up")
	// ErrInvalidTransition indicates a round status edge outside the
	// transition table.
	ErrInvalidTransition = errors.New("invalid round status transition")
	// ErrRoundTerminal indicates the round already completed or failed.
	ErrRoundTerminal = errors.New("round is in a terminal state")
)
