package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/modelarena/arena/internal/services/arena/storage"
)

// PutParticipant inserts or replaces a roster record.
func (s *Store) PutParticipant(ctx context.Context, participant storage.Participant) error {
	enabled := 0
	if participant.Enabled {
		enabled = 1
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO participants (id, name, model, provider, enabled, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    model = excluded.model,
    provider = excluded.provider,
    enabled = excluded.enabled,
    updated_at = excluded.updated_at`,
		participant.ID,
		participant.Name,
		participant.Model,
		participant.Provider,
		enabled,
		toMillis(participant.CreatedAt),
		toMillis(participant.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put participant: %w", err)
	}
	return nil
}

const participantColumns = "id, name, model, provider, enabled, created_at, updated_at"

func scanParticipant(row interface{ Scan(...any) error }) (storage.Participant, error) {
	var (
		participant storage.Participant
		enabled     int
		createdAt   int64
		updatedAt   int64
	)
	if err := row.Scan(
		&participant.ID,
		&participant.Name,
		&participant.Model,
		&participant.Provider,
		&enabled,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.Participant{}, err
	}
	participant.Enabled = enabled != 0
	participant.CreatedAt = fromMillis(createdAt)
	participant.UpdatedAt = fromMillis(updatedAt)
	return participant, nil
}

// GetParticipant returns a roster record by ID.
func (s *Store) GetParticipant(ctx context.Context, participantID string) (storage.Participant, error) {
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+participantColumns+" FROM participants WHERE id = ?", participantID)
	participant, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Participant{}, storage.ErrNotFound
		}
		return storage.Participant{}, fmt.Errorf("get participant: %w", err)
	}
	return participant, nil
}

// ListParticipants returns the roster in name order.
func (s *Store) ListParticipants(ctx context.Context) ([]storage.Participant, error) {
	rows, err := s.sqlDB.QueryContext(ctx, "SELECT "+participantColumns+" FROM participants ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var participants []storage.Participant
	for rows.Next() {
		participant, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, participant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return participants, nil
}

// DeleteParticipant removes a roster record.
func (s *Store) DeleteParticipant(ctx context.Context, participantID string) error {
	result, err := s.sqlDB.ExecContext(ctx, "DELETE FROM participants WHERE id = ?", participantID)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete participant rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
