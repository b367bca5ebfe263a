package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitecraft-ai/sitecraft-backend/internal/gallery/domain"
	wsdomain "github.com/sitecraft-ai/sitecraft-backend/internal/workspace/domain"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Publish(ctx context.Context, e domain.Entry) (domain.Entry, error) {
	files, err := json.Marshal(e.Files)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("encode files: %w", err)
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}

	const q = `
insert into gallery_projects (id, owner_uid, name, files, tags, restricted)
values ($1::uuid, $2, $3, $4::jsonb, $5, $6)
returning id::text, likes, created_at;
`
	err = r.db.QueryRow(ctx, q, uuid.NewString(), e.OwnerUID, e.Name, files, e.Tags, e.Restricted).
		Scan(&e.ID, &e.Likes, &e.CreatedAt)
	if err != nil {
		return domain.Entry{}, err
	}
	e.FileCount = len(e.Files)
	return e, nil
}

// List returns the newest-most-liked entries, optionally only those
// carrying tag.
func (r *Repo) List(ctx context.Context, tag string, limit int) ([]domain.Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	const q = `
select id::text, owner_uid, name, jsonb_array_length(files), tags, restricted, likes, created_at
from gallery_projects
where $1 = '' or $1 = any(tags)
order by likes desc, created_at desc
limit $2;
`
	rows, err := r.db.Query(ctx, q, tag, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Entry, 0, 16)
	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(&e.ID, &e.OwnerUID, &e.Name, &e.FileCount, &e.Tags, &e.Restricted, &e.Likes, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id string) (domain.Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Entry{}, domain.ErrNotFound
	}
	const q = `
select id::text, owner_uid, name, files, tags, restricted, likes, created_at
from gallery_projects
where id = $1::uuid;
`
	var (
		e     domain.Entry
		files []byte
	)
	err := r.db.QueryRow(ctx, q, id).
		Scan(&e.ID, &e.OwnerUID, &e.Name, &files, &e.Tags, &e.Restricted, &e.Likes, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Entry{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Entry{}, err
	}
	if err := json.Unmarshal(files, &e.Files); err != nil {
		return domain.Entry{}, fmt.Errorf("decode files: %w", err)
	}
	if e.Files == nil {
		e.Files = []wsdomain.File{}
	}
	e.FileCount = len(e.Files)
	return e, nil
}

// Like records uid's like once and bumps the counter in the same
// transaction. Returns the new count.
func (r *Repo) Like(ctx context.Context, id, uid string) (int, error) {
	if _, err := uuid.Parse(id); err != nil {
		return 0, domain.ErrNotFound
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `insert into gallery_likes (project_id, user_uid) values ($1::uuid, $2);`, id, uid)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return 0, domain.ErrAlreadyLiked
		case "23503":
			return 0, domain.ErrNotFound
		}
	}
	if err != nil {
		return 0, err
	}

	var likes int
	err = tx.QueryRow(ctx, `update gallery_projects set likes = likes + 1 where id = $1::uuid returning likes;`, id).Scan(&likes)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return likes, nil
}
