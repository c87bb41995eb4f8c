package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelarena/arena/internal/services/arena/domain"
	"github.com/modelarena/arena/internal/services/arena/storage"
)

// autoDriver runs the advance loop when the settings store selects
// automatic execution. One driver exists at a time; pause, terminal
// states, and failures all stop it.
type autoDriver struct {
	stop chan struct{}
	done chan struct{}
}

// maybeStartAutoLocked starts the automatic driver if the execution mode
// calls for it and none is running. Caller holds the lock.
func (e *Engine) maybeStartAutoLocked(ctx context.Context) {
	if e.auto != nil {
		return
	}
	settings, err := e.stores.Settings.GetSettings(ctx)
	if err != nil {
		e.logf("arena: auto driver: load settings: %v", err)
		return
	}
	if settings.ExecutionMode != storage.ExecutionModeAutomatic {
		return
	}

	driver := &autoDriver{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	e.auto = driver
	delay := time.Duration(settings.StepDelayMS) * time.Millisecond
	go e.runAuto(driver, delay)
}

// SyncAutoDriver reconciles the driver with the stored execution mode:
// manual mode stops a running driver, automatic mode starts one for a
// running session. Called after settings changes so a mode flip takes
// effect without a pause/resume cycle.
func (e *Engine) SyncAutoDriver(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	settings, err := e.stores.Settings.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if settings.ExecutionMode != storage.ExecutionModeAutomatic {
		e.stopAutoLocked()
		return nil
	}
	if e.session == nil || e.session.Status != domain.SessionStatusRunning {
		return nil
	}
	e.maybeStartAutoLocked(ctx)
	return nil
}

// stopAutoLocked signals the driver to stop without waiting for it; the
// driver may be blocked inside Advance and will notice on its next pass.
// Caller holds the lock.
func (e *Engine) stopAutoLocked() {
	if e.auto == nil {
		return
	}
	close(e.auto.stop)
	e.auto = nil
}

// runAuto advances until the session stops accepting steps. It runs
// without the lock; each Advance call takes it on its own.
func (e *Engine) runAuto(driver *autoDriver, delay time.Duration) {
	defer close(driver.done)
	// Deregister on exit so a later session can start its own driver.
	defer func() {
		e.mu.Lock()
		if e.auto == driver {
			e.auto = nil
		}
		e.mu.Unlock()
	}()
	ctx := context.Background()
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-driver.stop:
			return
		case <-timer.C:
		}

		step, err := e.Advance(ctx)
		switch {
		case err == nil:
			if step.Status == domain.StepStatusFailed {
				// A failure stops the loop; retrying is an operator
				// decision (advance again, clean up, or undo).
				e.logf("arena: auto driver stopping on failed step %s", step.Type)
				return
			}
		case errors.Is(err, domain.ErrStepInFlight):
			// A manual advance raced us; back off and retry.
		case errors.Is(err, domain.ErrSessionPaused),
			errors.Is(err, domain.ErrSessionTerminal),
			errors.Is(err, domain.ErrSessionNotActive),
			errors.Is(err, domain.ErrRoundTerminal):
			return
		default:
			e.logf("arena: auto driver stopping: %v", err)
			return
		}

		timer.Reset(delay)
	}
}
