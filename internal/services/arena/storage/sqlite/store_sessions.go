package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelarena/arena/internal/services/arena/domain"
	"github.com/modelarena/arena/internal/services/arena/storage"
)

func encodeParticipantIDs(participantIDs []string) (string, error) {
	if len(participantIDs) == 0 {
		return "[]", nil
	}
	encoded, err := json.Marshal(participantIDs)
	if err != nil {
		return "", fmt.Errorf("marshal participant ids: %w", err)
	}
	return string(encoded), nil
}

func decodeParticipantIDs(value string) ([]string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	var participantIDs []string
	if err := json.Unmarshal([]byte(value), &participantIDs); err != nil {
		return nil, fmt.Errorf("unmarshal participant ids: %w", err)
	}
	return participantIDs, nil
}

// PutSession inserts or replaces a session record.
func (s *Store) PutSession(ctx context.Context, session domain.GameSession) error {
	participantIDs, err := encodeParticipantIDs(session.ParticipantIDs)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO sessions (id, status, total_rounds, completed_rounds, participant_ids, first_master_id, started_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    status = excluded.status,
    completed_rounds = excluded.completed_rounds,
    updated_at = excluded.updated_at`,
		session.ID,
		string(session.Status),
		session.TotalRounds,
		session.CompletedRounds,
		participantIDs,
		session.FirstMasterID,
		toMillis(session.StartedAt),
		toMillis(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

const sessionColumns = "id, status, total_rounds, completed_rounds, participant_ids, first_master_id, started_at, updated_at"

func scanSession(row interface{ Scan(...any) error }) (domain.GameSession, error) {
	var (
		session        domain.GameSession
		status         string
		participantRaw string
		startedAt      int64
		updatedAt      int64
	)
	if err := row.Scan(
		&session.ID,
		&status,
		&session.TotalRounds,
		&session.CompletedRounds,
		&participantRaw,
		&session.FirstMasterID,
		&startedAt,
		&updatedAt,
	); err != nil {
		return domain.GameSession{}, err
	}
	participantIDs, err := decodeParticipantIDs(participantRaw)
	if err != nil {
		return domain.GameSession{}, err
	}
	session.Status = domain.SessionStatus(status)
	session.ParticipantIDs = participantIDs
	session.StartedAt = fromMillis(startedAt)
	session.UpdatedAt = fromMillis(updatedAt)
	return session, nil
}

// GetSession returns a session by ID.
func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.GameSession, error) {
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", sessionID)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.GameSession{}, storage.ErrNotFound
		}
		return domain.GameSession{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// GetActiveSession returns the single non-terminal session.
func (s *Store) GetActiveSession(ctx context.Context) (domain.GameSession, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE status NOT IN ('completed', 'failed') ORDER BY started_at DESC LIMIT 1")
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.GameSession{}, storage.ErrNotFound
		}
		return domain.GameSession{}, fmt.Errorf("get active session: %w", err)
	}
	return session, nil
}

// ListSessions returns every session, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]domain.GameSession, error) {
	rows, err := s.sqlDB.QueryContext(ctx, "SELECT "+sessionColumns+" FROM sessions ORDER BY started_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.GameSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}
