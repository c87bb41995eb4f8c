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

func encodeScores(scores map[string]float64) (string, error) {
	if len(scores) == 0 {
		return "", nil
	}
	encoded, err := json.Marshal(scores)
	if err != nil {
		return "", fmt.Errorf("marshal scores: %w", err)
	}
	return string(encoded), nil
}

func decodeScores(value string) (map[string]float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	var scores map[string]float64
	if err := json.Unmarshal([]byte(value), &scores); err != nil {
		return nil, fmt.Errorf("unmarshal scores: %w", err)
	}
	return scores, nil
}

// PutRound inserts or replaces a round record.
func (s *Store) PutRound(ctx context.Context, round domain.Round) error {
	scores, err := encodeScores(round.Scores)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO rounds (id, session_id, round_number, status, master_id, topic, question, difficulty, scores, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    status = excluded.status,
    topic = excluded.topic,
    question = excluded.question,
    difficulty = excluded.difficulty,
    scores = excluded.scores,
    updated_at = excluded.updated_at`,
		round.ID,
		round.SessionID,
		round.RoundNumber,
		string(round.Status),
		round.MasterID,
		round.Topic,
		round.Question,
		round.Difficulty,
		scores,
		toMillis(round.CreatedAt),
		toMillis(round.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put round: %w", err)
	}
	return nil
}

const roundColumns = "id, session_id, round_number, status, master_id, topic, question, difficulty, scores, created_at, updated_at"

func scanRound(row interface{ Scan(...any) error }) (domain.Round, error) {
	var (
		round     domain.Round
		status    string
		scoresRaw string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(
		&round.ID,
		&round.SessionID,
		&round.RoundNumber,
		&status,
		&round.MasterID,
		&round.Topic,
		&round.Question,
		&round.Difficulty,
		&scoresRaw,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Round{}, err
	}
	scores, err := decodeScores(scoresRaw)
	if err != nil {
		return domain.Round{}, err
	}
	round.Status = domain.RoundStatus(status)
	round.Scores = scores
	round.CreatedAt = fromMillis(createdAt)
	round.UpdatedAt = fromMillis(updatedAt)
	return round, nil
}

// GetRound returns a round by ID.
func (s *Store) GetRound(ctx context.Context, roundID string) (domain.Round, error) {
	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+roundColumns+" FROM rounds WHERE id = ?", roundID)
	round, err := scanRound(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Round{}, storage.ErrNotFound
		}
		return domain.Round{}, fmt.Errorf("get round: %w", err)
	}
	return round, nil
}

// GetCurrentRound returns the highest-numbered round of a session.
func (s *Store) GetCurrentRound(ctx context.Context, sessionID string) (domain.Round, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+roundColumns+" FROM rounds WHERE session_id = ? ORDER BY round_number DESC LIMIT 1", sessionID)
	round, err := scanRound(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Round{}, storage.ErrNotFound
		}
		return domain.Round{}, fmt.Errorf("get current round: %w", err)
	}
	return round, nil
}

// ListRounds returns a session's rounds in round-number order.
func (s *Store) ListRounds(ctx context.Context, sessionID string) ([]domain.Round, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+roundColumns+" FROM rounds WHERE session_id = ? ORDER BY round_number ASC", sessionID)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []domain.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		rounds = append(rounds, round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rounds: %w", err)
	}
	return rounds, nil
}
