package domain

import (
	"errors"
	"time"

	wsdomain "github.com/sitecraft-ai/sitecraft-backend/internal/workspace/domain"
)

var (
	ErrNotFound     = errors.New("gallery project not found")
	ErrAlreadyLiked = errors.New("already liked")
	ErrEmptyProject = errors.New("project has no files")
)

// Entry is a published project. List results leave Files empty.
type Entry struct {
	ID         string          `json:"id"`
	OwnerUID   string          `json:"owner_uid"`
	Name       string          `json:"name"`
	Files      []wsdomain.File `json:"files,omitempty"`
	FileCount  int             `json:"file_count"`
	Tags       []string        `json:"tags"`
	Restricted bool            `json:"restricted"`
	Likes      int             `json:"likes"`
	CreatedAt  time.Time       `json:"created_at"`
}

type PublishRequest struct {
	Name       string   `json:"name"`
	Tags       []string `json:"tags"`
	Restricted bool     `json:"restricted"`
}
