package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Repository stores ledger entries in PostgreSQL.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Record inserts an entry. A refill already recorded for the same user
// and date is ignored.
func (r *Repository) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	var refDate sql.NullString
	if e.RefDate != "" {
		refDate = sql.NullString{String: e.RefDate, Valid: true}
	}

	query := `
		INSERT INTO credit_ledger (id, user_id, kind, delta, balance, reason, ref_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query, e.ID, e.UserID, e.Kind, e.Delta, e.Balance, e.Reason, refDate)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil
		}
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}
	return nil
}

// List returns a user's most recent entries, newest first.
func (r *Repository) List(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, kind, delta, balance, reason, ref_date::text, created_at
		FROM credit_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var reason, refDate sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Delta, &e.Balance, &reason, &refDate, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.Reason = reason.String
		e.RefDate = refDate.String
		out = append(out, e)
	}
	return out, rows.Err()
}
