package domain

import "time"

// Project is a named collection of files plus its own message history.
// File order is display order only.
type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Files        []File    `json:"files"`
	Messages     []Message `json:"messages"`
	LastModified time.Time `json:"last_modified"`
	IsPublic     bool      `json:"is_public"`
	Likes        int       `json:"likes"`
	Tags         []string  `json:"tags,omitempty"`
}

// ProjectSummary is the list view of a project.
type ProjectSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	FileCount    int       `json:"file_count"`
	LastModified time.Time `json:"last_modified"`
	IsPublic     bool      `json:"is_public"`
	Active       bool      `json:"active"`
}

// File is a text file of a project. Binary assets never reach the core.
type File struct {
	Name     string   `json:"name"`
	Content  string   `json:"content"`
	Language Language `json:"language"`
}

// Role values
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message state values. A user message is provisional from submit until
// the generation it started reaches a terminal outcome.
const (
	StateProvisional = "provisional"
	StateCommitted   = "committed"
)

// Message is one entry of a project's chronological history.
type Message struct {
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
	State     string          `json:"state"`
	Files     []GeneratedFile `json:"files,omitempty"`
}

// GeneratedFile is a model-suggested file staged on a model message.
// It reaches the project only through an explicit apply.
type GeneratedFile struct {
	Name     string   `json:"name"`
	Content  string   `json:"content"`
	Language Language `json:"language"`
	Applied  bool     `json:"applied"`
	Added    int      `json:"added"`
	Removed  int      `json:"removed"`
}

// ApplyStatus distinguishes a first apply from a repeated one.
type ApplyStatus string

const (
	ApplyApplied        ApplyStatus = "applied"
	ApplyAlreadyApplied ApplyStatus = "already_applied"
)

// ApplyResult reports the outcome of applying one generated file.
type ApplyResult struct {
	Name    string      `json:"name"`
	Status  ApplyStatus `json:"status"`
	Created bool        `json:"created"`
}
