package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/modelarena/arena/internal/services/arena/domain"
	"github.com/modelarena/arena/internal/services/arena/storage"
)

// PutStep inserts or updates a step record. On first insert the store
// assigns the next per-round sequence number; the returned step carries it.
func (s *Store) PutStep(ctx context.Context, step domain.Step) (domain.Step, error) {
	output, err := domain.EncodeStepOutput(step.Output)
	if err != nil {
		return domain.Step{}, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Step{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if step.Seq == 0 {
		row := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) + 1 FROM steps WHERE round_id = ?", step.RoundID)
		if err := row.Scan(&step.Seq); err != nil {
			return domain.Step{}, fmt.Errorf("next step seq: %w", err)
		}
	}

	var completedAt sql.NullInt64
	if step.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: toMillis(*step.CompletedAt), Valid: true}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO steps (id, round_id, seq, step_type, actor_id, status, output, error, latency_ms, created_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    status = excluded.status,
    output = excluded.output,
    error = excluded.error,
    latency_ms = excluded.latency_ms,
    completed_at = excluded.completed_at`,
		step.ID,
		step.RoundID,
		step.Seq,
		string(step.Type),
		step.ActorID,
		string(step.Status),
		string(output),
		step.Error,
		step.LatencyMS,
		toMillis(step.CreatedAt),
		completedAt,
	); err != nil {
		return domain.Step{}, fmt.Errorf("put step: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Step{}, fmt.Errorf("commit: %w", err)
	}
	return step, nil
}

const stepColumns = "id, round_id, seq, step_type, actor_id, status, output, error, latency_ms, created_at, completed_at"

func scanStep(row interface{ Scan(...any) error }) (domain.Step, error) {
	var (
		step        domain.Step
		stepType    string
		status      string
		output      string
		createdAt   int64
		completedAt sql.NullInt64
	)
	if err := row.Scan(
		&step.ID,
		&step.RoundID,
		&step.Seq,
		&stepType,
		&step.ActorID,
		&status,
		&output,
		&step.Error,
		&step.LatencyMS,
		&createdAt,
		&completedAt,
	); err != nil {
		return domain.Step{}, err
	}
	step.Type = domain.StepType(stepType)
	step.Status = domain.StepStatus(status)
	step.CreatedAt = fromMillis(createdAt)
	if completedAt.Valid {
		value := fromMillis(completedAt.Int64)
		step.CompletedAt = &value
	}
	decoded, err := domain.DecodeStepOutput(step.Type, []byte(output))
	if err != nil {
		return domain.Step{}, err
	}
	step.Output = decoded
	return step, nil
}

// GetStep returns a step by ID.
func (s *Store) GetStep(ctx context.Context, stepID string) (domain.Step, error) {
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+stepColumns+" FROM steps WHERE id = ?", stepID)
	step, err := scanStep(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Step{}, storage.ErrNotFound
		}
		return domain.Step{}, fmt.Errorf("get step: %w", err)
	}
	return step, nil
}

// ListSteps returns a round's steps in sequence order.
func (s *Store) ListSteps(ctx context.Context, roundID string) ([]domain.Step, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+stepColumns+" FROM steps WHERE round_id = ? ORDER BY seq ASC", roundID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []domain.Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

// DeleteStep removes a step row. Used by undo and failed-step cleanup.
func (s *Store) DeleteStep(ctx context.Context, stepID string) error {
	result, err := s.sqlDB.ExecContext(ctx, "DELETE FROM steps WHERE id = ?", stepID)
	if err != nil {
		return fmt.Errorf("delete step: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete step rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
