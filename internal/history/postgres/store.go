package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/askdb/askdb/internal/history"
)

// Store persists conversation turns in Postgres. Per-user append ordering is
// enforced with a transaction-scoped advisory lock keyed by user id, so
// appends for distinct users proceed independently.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", history.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) AppendTurn(ctx context.Context, in history.AppendTurnInput) (history.Turn, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return history.Turn{}, fmt.Errorf("%w: begin append tx: %v", history.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, in.UserID); err != nil {
		return history.Turn{}, fmt.Errorf("%w: lock user history: %v", history.ErrStoreUnavailable, err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `
SELECT COALESCE(MAX(seq), 0) + 1
FROM conversation_turn
WHERE user_id = $1`, in.UserID).Scan(&seq); err != nil {
		return history.Turn{}, fmt.Errorf("%w: next seq: %v", history.ErrStoreUnavailable, err)
	}

	turn := history.Turn{
		UserID:   in.UserID,
		Seq:      seq,
		Question: in.Question,
		SQL:      in.SQL,
		Answer:   in.Answer,
	}
	if err := tx.QueryRowContext(ctx, `
INSERT INTO conversation_turn (user_id, seq, question, sql_text, answer)
VALUES ($1, $2, $3, $4, $5)
RETURNING turn_id, created_at`, in.UserID, seq, in.Question, in.SQL, in.Answer).Scan(&turn.TurnID, &turn.CreatedAt); err != nil {
		return history.Turn{}, fmt.Errorf("%w: insert turn: %v", history.ErrStoreUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return history.Turn{}, fmt.Errorf("%w: commit append tx: %v", history.ErrStoreUnavailable, err)
	}
	return turn, nil
}

func (s *Store) RecentTurns(ctx context.Context, userID string, limit int) ([]history.Turn, error) {
	if limit <= 0 {
		return []history.Turn{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT turn_id, user_id, seq, question, sql_text, answer, created_at
FROM conversation_turn
WHERE user_id = $1
ORDER BY seq DESC
LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query recent turns: %v", history.ErrStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	turns := make([]history.Turn, 0, limit)
	for rows.Next() {
		var turn history.Turn
		if err := rows.Scan(&turn.TurnID, &turn.UserID, &turn.Seq, &turn.Question, &turn.SQL, &turn.Answer, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan turn row: %v", history.ErrStoreUnavailable, err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate turn rows: %v", history.ErrStoreUnavailable, err)
	}

	// Rows come newest-first; callers expect chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *Store) Prune(ctx context.Context, userID string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	result, err := s.db.ExecContext(ctx, `
DELETE FROM conversation_turn
WHERE user_id = $1
  AND seq <= (SELECT COALESCE(MAX(seq), 0) - $2 FROM conversation_turn WHERE user_id = $1)`, userID, keep)
	if err != nil {
		return 0, fmt.Errorf("%w: prune turns: %v", history.ErrStoreUnavailable, err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	return deleted, nil
}

func (s *Store) Clear(ctx context.Context, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversation_turn WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: clear turns: %v", history.ErrStoreUnavailable, err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear rows affected: %w", err)
	}
	return deleted, nil
}
