package history

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable is returned when the conversation store cannot be
// reached.
var ErrStoreUnavailable = errors.New("history store unavailable")

// Turn is one persisted question/SQL/answer record. Turns are append-only
// and store the exact SQL that was executed, never the raw model output.
type Turn struct {
	TurnID    int64     `json:"turn_id"`
	UserID    string    `json:"user_id"`
	Seq       int64     `json:"seq"`
	Question  string    `json:"question"`
	SQL       string    `json:"sql"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

type AppendTurnInput struct {
	UserID   string
	Question string
	SQL      string
	Answer   string
}

type Store interface {
	// AppendTurn persists a turn and assigns the next per-user sequence
	// number. Appends for the same user are serialized; appends for
	// distinct users do not block each other.
	AppendTurn(ctx context.Context, in AppendTurnInput) (Turn, error)
	// RecentTurns returns at most limit turns in chronological order,
	// most recent last. Unknown users yield an empty slice, not an error.
	RecentTurns(ctx context.Context, userID string, limit int) ([]Turn, error)
	// Prune removes all but the newest keep turns for a user and reports
	// how many were deleted.
	Prune(ctx context.Context, userID string, keep int) (int64, error)
	// Clear removes every turn for a user.
	Clear(ctx context.Context, userID string) (int64, error)
	HealthCheck(ctx context.Context) error
}
