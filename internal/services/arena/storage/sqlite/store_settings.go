package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/modelarena/arena/internal/services/arena/storage"
)

// GetSettings returns the persisted settings, or defaults when none exist.
func (s *Store) GetSettings(ctx context.Context) (storage.Settings, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT execution_mode, step_delay_ms, judge_anonymized, master_judge_weight, max_step_retries, updated_at
FROM settings WHERE id = 1`)

	var (
		settings        storage.Settings
		executionMode   string
		judgeAnonymized int
		updatedAt       int64
	)
	err := row.Scan(&executionMode, &settings.StepDelayMS, &judgeAnonymized, &settings.MasterJudgeWeight, &settings.MaxStepRetries, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.DefaultSettings(), nil
		}
		return storage.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	settings.ExecutionMode = storage.ExecutionMode(executionMode)
	settings.JudgeAnonymized = judgeAnonymized != 0
	settings.UpdatedAt = fromMillis(updatedAt)
	return settings, nil
}

// PutSettings persists the settings singleton row.
func (s *Store) PutSettings(ctx context.Context, settings storage.Settings) error {
	if settings.UpdatedAt.IsZero() {
		settings.UpdatedAt = time.Now().UTC()
	}
	judgeAnonymized := 0
	if settings.JudgeAnonymized {
		judgeAnonymized = 1
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO settings (id, execution_mode, step_delay_ms, judge_anonymized, master_judge_weight, max_step_retries, updated_at)
VALUES (1, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    execution_mode = excluded.execution_mode,
    step_delay_ms = excluded.step_delay_ms,
    judge_anonymized = excluded.judge_anonymized,
    master_judge_weight = excluded.master_judge_weight,
    max_step_retries = excluded.max_step_retries,
    updated_at = excluded.updated_at`,
		string(settings.ExecutionMode),
		settings.StepDelayMS,
		judgeAnonymized,
		settings.MasterJudgeWeight,
		settings.MaxStepRetries,
		toMillis(settings.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}
