package ledger

import (
	"context"
	"time"
)

// Entry kinds.
const (
	KindDeduct    = "deduct"
	KindRefill    = "refill"
	KindDowngrade = "downgrade"
	KindUnlock    = "unlock"
)

// Entry is one credit movement of a user.
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Delta     int       `json:"delta"`
	Balance   int       `json:"balance"`
	Reason    string    `json:"reason,omitempty"`
	RefDate   string    `json:"ref_date,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder receives credit movements.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Noop drops every entry. Used when no database is configured.
type Noop struct{}

func (Noop) Record(context.Context, Entry) error { return nil }
