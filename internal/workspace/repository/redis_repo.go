package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sitecraft-ai/sitecraft-backend/internal/workspace/domain"
)

const (
	workspaceKeyPrefix = "ws:user:" // ws:user:{uid}:projects | :active | :settings
)

// Snapshot is everything persisted for one user's workspace.
type Snapshot struct {
	Projects []domain.Project
	ActiveID string
	Settings *domain.PersistedSettings
}

// Repository handles Redis persistence of workspaces
type Repository struct {
	client *redis.Client
}

// NewRepository creates a new Repository
func NewRepository(client *redis.Client) *Repository {
	return &Repository{client: client}
}

// Load reads the persisted workspace. A user with nothing stored gets an
// empty snapshot, not an error.
func (r *Repository) Load(ctx context.Context, uid string) (*Snapshot, error) {
	pipe := r.client.Pipeline()
	projCmd := pipe.Get(ctx, r.projectsKey(uid))
	activeCmd := pipe.Get(ctx, r.activeKey(uid))
	settingsCmd := pipe.Get(ctx, r.settingsKey(uid))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load workspace: %w", err)
	}

	snap := &Snapshot{}

	if data, err := projCmd.Bytes(); err == nil {
		if err := json.Unmarshal(data, &snap.Projects); err != nil {
			return nil, fmt.Errorf("failed to unmarshal projects: %w", err)
		}
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get projects: %w", err)
	}

	if id, err := activeCmd.Result(); err == nil {
		snap.ActiveID = id
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get active project: %w", err)
	}

	if data, err := settingsCmd.Bytes(); err == nil {
		var s domain.PersistedSettings
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
		snap.Settings = &s
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	return snap, nil
}

// SaveProjects writes the project list and the active project id together.
func (r *Repository) SaveProjects(ctx context.Context, uid string, projects []domain.Project, activeID string) error {
	data, err := json.Marshal(projects)
	if err != nil {
		return fmt.Errorf("failed to marshal projects: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.projectsKey(uid), data, 0)
	pipe.Set(ctx, r.activeKey(uid), activeID, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save projects: %w", err)
	}
	return nil
}

// SaveSettings writes the reduced settings subset.
func (r *Repository) SaveSettings(ctx context.Context, uid string, s domain.PersistedSettings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := r.client.Set(ctx, r.settingsKey(uid), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Delete removes everything stored for a user.
func (r *Repository) Delete(ctx context.Context, uid string) error {
	if err := r.client.Del(ctx, r.projectsKey(uid), r.activeKey(uid), r.settingsKey(uid)).Err(); err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	return nil
}

// Helper methods for key generation
func (r *Repository) projectsKey(uid string) string {
	return fmt.Sprintf("%s%s:projects", workspaceKeyPrefix, uid)
}

func (r *Repository) activeKey(uid string) string {
	return fmt.Sprintf("%s%s:active", workspaceKeyPrefix, uid)
}

func (r *Repository) settingsKey(uid string) string {
	return fmt.Sprintf("%s%s:settings", workspaceKeyPrefix, uid)
}
