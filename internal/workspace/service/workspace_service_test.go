package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecraft-ai/sitecraft-backend/internal/workspace/domain"
	"github.com/sitecraft-ai/sitecraft-backend/internal/workspace/repository"
)

func setupWorkspace(t *testing.T) (*Workspace, *repository.Repository) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := repository.NewRepository(client)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	w, err := Open(context.Background(), "u1", repo, Options{
		DefaultModel: "gemini-2.5-pro",
		Now:          func() time.Time { return now },
	})
	require.NoError(t, err)
	return w, repo
}

func TestOpen_SeedsStarterProject(t *testing.T) {
	w, repo := setupWorkspace(t)

	projects := w.Projects()
	require.Len(t, projects, 1)
	assert.True(t, projects[0].Active)
	assert.Equal(t, "index.html", w.SelectedFile())

	snap, err := repo.Load(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, snap.Projects, 1)
	assert.Equal(t, projects[0].ID, snap.ActiveID)
}

func TestOpen_RestoresSnapshot(t *testing.T) {
	w, repo := setupWorkspace(t)
	ctx := context.Background()

	p, err := w.CreateProject(ctx, "Portfolio")
	require.NoError(t, err)
	require.NoError(t, w.CreateFile(ctx, "about.html", "<p>about</p>"))

	again, err := Open(ctx, "u1", repo, Options{DefaultModel: "gemini-2.5-pro"})
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ActiveProject().ID)
	_, ok := again.GetFile("about.html")
	assert.True(t, ok)
}

func TestFileOperations(t *testing.T) {
	w, _ := setupWorkspace(t)
	ctx := context.Background()

	require.NoError(t, w.CreateFile(ctx, "style.css", "body{}"))
	assert.ErrorIs(t, w.CreateFile(ctx, "style.css", "x"), domain.ErrFileExists)
	assert.ErrorIs(t, w.CreateFile(ctx, "  ", "x"), domain.ErrInvalidName)

	require.NoError(t, w.RenameFile(ctx, "style.css", "main.css"))
	f, ok := w.GetFile("main.css")
	require.True(t, ok)
	assert.Equal(t, domain.LanguageCSS, f.Language)
	assert.ErrorIs(t, w.RenameFile(ctx, "missing.css", "x.css"), domain.ErrFileNotFound)
	assert.ErrorIs(t, w.RenameFile(ctx, "main.css", "index.html"), domain.ErrFileExists)

	created, err := w.SaveFile(ctx, "INDEX.HTML", "<h1>new</h1>")
	require.NoError(t, err)
	assert.False(t, created)
	f, _ = w.GetFile("index.html")
	assert.Equal(t, "<h1>new</h1>", f.Content)

	require.NoError(t, w.DeleteFile(ctx, "main.css"))
	assert.ErrorIs(t, w.DeleteFile(ctx, "main.css"), domain.ErrFileNotFound)
	assert.ErrorIs(t, w.SelectFile("nope"), domain.ErrFileNotFound)
}

func TestDeleteLastProject_CreatesStarter(t *testing.T) {
	w, _ := setupWorkspace(t)
	ctx := context.Background()

	id := w.ActiveProject().ID
	require.NoError(t, w.DeleteProject(ctx, id))

	projects := w.Projects()
	require.Len(t, projects, 1)
	assert.NotEqual(t, id, projects[0].ID)
	assert.True(t, projects[0].Active)
	assert.ErrorIs(t, w.DeleteProject(ctx, id), domain.ErrProjectNotFound)
}

func TestActivateAndRenameProject(t *testing.T) {
	w, _ := setupWorkspace(t)
	ctx := context.Background()

	first := w.ActiveProject().ID
	_, err := w.CreateProject(ctx, "Second")
	require.NoError(t, err)

	require.NoError(t, w.ActivateProject(ctx, first))
	assert.Equal(t, first, w.ActiveProject().ID)
	assert.ErrorIs(t, w.ActivateProject(ctx, "nope"), domain.ErrProjectNotFound)

	require.NoError(t, w.RenameProject(ctx, first, "Renamed"))
	assert.Equal(t, "Renamed", w.ActiveProject().Name)
}

func TestProvisionalMessage_CommitAndRollback(t *testing.T) {
	w, _ := setupWorkspace(t)
	ctx := context.Background()
	pid := w.ActiveProject().ID

	m1, err := w.AppendMessage(ctx, pid, domain.Message{Role: domain.RoleUser, Content: "hi", State: domain.StateProvisional})
	require.NoError(t, err)
	require.NoError(t, w.RollbackMessage(ctx, pid, m1.ID))
	assert.Empty(t, w.Messages())

	m2, err := w.AppendMessage(ctx, pid, domain.Message{Role: domain.RoleUser, Content: "hi again", State: domain.StateProvisional})
	require.NoError(t, err)
	require.NoError(t, w.CommitMessage(ctx, pid, m2.ID))
	require.NoError(t, w.RollbackMessage(ctx, pid, m2.ID))

	msgs := w.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.StateCommitted, msgs[0].State)

	_, err = w.AppendMessage(ctx, "gone", domain.Message{Role: domain.RoleUser})
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestAppendMessage_FillsDiffStats(t *testing.T) {
	w, _ := setupWorkspace(t)
	ctx := context.Background()
	pid := w.ActiveProject().ID

	_, err := w.SaveFile(ctx, "index.html", "a\nb\nc\n")
	require.NoError(t, err)

	m, err := w.AppendMessage(ctx, pid, domain.Message{
		Role: domain.RoleModel,
		Files: []domain.GeneratedFile{
			{Name: "index.html", Content: "a\nB\nc\nd\n"},
			{Name: "app.js", Content: "let x = 1;\n"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, m.Files[0].Added)
	assert.Equal(t, 1, m.Files[0].Removed)
	assert.Equal(t, domain.LanguageHTML, m.Files[0].Language)
	assert.Equal(t, 1, m.Files[1].Added)
	assert.Equal(t, 0, m.Files[1].Removed)
	assert.Equal(t, domain.LanguageJavaScript, m.Files[1].Language)
}

func TestApplyGenerated_IsIdempotent(t *testing.T) {
	w, _ := setupWorkspace(t)
	ctx := context.Background()
	pid := w.ActiveProject().ID

	m, err := w.AppendMessage(ctx, pid, domain.Message{
		Role: domain.RoleModel,
		Files: []domain.GeneratedFile{
			{Name: "Index.html", Content: "<h1>v2</h1>"},
			{Name: "app.js", Content: "go()"},
		},
	})
	require.NoError(t, err)

	res, err := w.ApplyGenerated(ctx, m.ID, "Index.html")
	require.NoError(t, err)
	assert.Equal(t, domain.ApplyApplied, res.Status)
	assert.False(t, res.Created)

	files := w.Files()
	require.Len(t, files, 1)
	assert.Equal(t, "index.html", files[0].Name)
	assert.Equal(t, "<h1>v2</h1>", files[0].Content)

	res, err = w.ApplyGenerated(ctx, m.ID, "Index.html")
	require.NoError(t, err)
	assert.Equal(t, domain.ApplyAlreadyApplied, res.Status)

	all, err := w.ApplyAllGenerated(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.ApplyAlreadyApplied, all[0].Status)
	assert.Equal(t, domain.ApplyApplied, all[1].Status)
	assert.True(t, all[1].Created)
	assert.Len(t, w.Files(), 2)

	_, err = w.ApplyGenerated(ctx, m.ID, "nope.css")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
	_, err = w.ApplyGenerated(ctx, "missing", "app.js")
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
}

func TestApplyAllGenerated_NoFiles(t *testing.T) {
	w, _ := setupWorkspace(t)
	ctx := context.Background()

	m, err := w.AppendMessage(ctx, w.ActiveProject().ID, domain.Message{Role: domain.RoleModel, Content: "just text"})
	require.NoError(t, err)

	_, err = w.ApplyAllGenerated(ctx, m.ID)
	assert.ErrorIs(t, err, domain.ErrNoGeneratedFiles)
}

func TestClearHistory(t *testing.T) {
	w, _ := setupWorkspace(t)
	ctx := context.Background()

	_, err := w.AppendMessage(ctx, w.ActiveProject().ID, domain.Message{Role: domain.RoleUser, Content: "x"})
	require.NoError(t, err)
	w.ClearHistory(ctx)
	assert.Empty(t, w.Messages())
}

func TestUpdateSettings_FeatureGate(t *testing.T) {
	w, repo := setupWorkspace(t)
	ctx := context.Background()
	allowed := func(f string) bool { return f == "multi_file" }

	_, err := w.UpdateSettings(ctx, domain.SettingsPatch{Features: map[string]bool{"pwa": true}}, allowed)
	assert.ErrorIs(t, err, domain.ErrFeatureLocked)

	model := "gemini-2.5-flash"
	s, err := w.UpdateSettings(ctx, domain.SettingsPatch{
		Features:      map[string]bool{"multi_file": true, "pwa": false},
		SelectedModel: &model,
		ModelKeys:     map[string]string{"openai": "sk-test"},
	}, allowed)
	require.NoError(t, err)
	assert.True(t, s.Features["multi_file"])
	assert.Equal(t, "gemini-2.5-flash", s.SelectedModel)

	snap, err := repo.Load(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, snap.Settings)
	assert.Equal(t, "gemini-2.5-flash", snap.Settings.SelectedModel)
	assert.Equal(t, "sk-test", snap.Settings.ModelKeys["openai"])

	again, err := Open(ctx, "u1", repo, Options{DefaultModel: "gemini-2.5-pro"})
	require.NoError(t, err)
	assert.Empty(t, again.Settings().EnabledFeatures())

	w.RevokeFeatures(func(string) bool { return false })
	assert.Empty(t, w.Settings().EnabledFeatures())
}

func TestGenerationSnapshot_IsDetached(t *testing.T) {
	w, _ := setupWorkspace(t)

	snap := w.GenerationSnapshot()
	snap.Files[0].Content = "mutated"
	snap.Settings.Features["pwa"] = true

	f, _ := w.GetFile("index.html")
	assert.NotEqual(t, "mutated", f.Content)
	assert.False(t, w.Settings().Features["pwa"])
}

func TestLineDelta(t *testing.T) {
	added, removed := lineDelta("", "one\ntwo\n")
	assert.Equal(t, 2, added)
	assert.Equal(t, 0, removed)

	added, removed = lineDelta("same\n", "same\n")
	assert.Zero(t, added)
	assert.Zero(t, removed)
}
