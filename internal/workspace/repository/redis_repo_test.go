package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecraft-ai/sitecraft-backend/internal/workspace/domain"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	require.NoError(t, client.Ping(context.Background()).Err())
	return client, mr
}

func TestRepository_LoadEmpty(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	repo := NewRepository(client)

	snap, err := repo.Load(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, snap.Projects)
	assert.Equal(t, "", snap.ActiveID)
	assert.Nil(t, snap.Settings)
}

func TestRepository_SaveAndLoad(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	repo := NewRepository(client)
	ctx := context.Background()

	projects := []domain.Project{{
		ID:           "p1",
		Name:         "Landing",
		LastModified: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Files: []domain.File{
			{Name: "index.html", Content: "<html></html>", Language: domain.LanguageHTML},
		},
		Messages: []domain.Message{
			{ID: "m1", Role: domain.RoleUser, Content: "make it blue", State: domain.StateCommitted},
		},
	}}

	t.Run("round-trips projects and active id", func(t *testing.T) {
		require.NoError(t, repo.SaveProjects(ctx, "user-1", projects, "p1"))

		snap, err := repo.Load(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, snap.Projects, 1)
		assert.Equal(t, "p1", snap.ActiveID)
		assert.Equal(t, "Landing", snap.Projects[0].Name)
		assert.Equal(t, "<html></html>", snap.Projects[0].Files[0].Content)
		assert.Equal(t, "make it blue", snap.Projects[0].Messages[0].Content)
	})

	t.Run("stores only the reduced settings subset", func(t *testing.T) {
		s := domain.Settings{
			Features:      map[string]bool{"pwa": true},
			SelectedModel: "gemini-2.5-flash",
			ModelKeys:     map[string]string{"gemini": "k-123"},
			HostingAPIKey: "host-1",
			CursorEffect:  true,
		}
		require.NoError(t, repo.SaveSettings(ctx, "user-1", s.Persisted()))

		raw, err := mr.Get("ws:user:user-1:settings")
		require.NoError(t, err)
		assert.NotContains(t, raw, "pwa")
		assert.NotContains(t, raw, "features")

		snap, err := repo.Load(ctx, "user-1")
		require.NoError(t, err)
		require.NotNil(t, snap.Settings)
		assert.Equal(t, "gemini-2.5-flash", snap.Settings.SelectedModel)
		assert.Equal(t, "k-123", snap.Settings.ModelKeys["gemini"])
		assert.True(t, snap.Settings.CursorEffect)
	})

	t.Run("delete removes all keys", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "user-1"))
		assert.False(t, mr.Exists("ws:user:user-1:projects"))
		assert.False(t, mr.Exists("ws:user:user-1:settings"))
	})
}
