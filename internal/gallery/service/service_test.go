package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	entdomain "github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/domain"
	"github.com/sitecraft-ai/sitecraft-backend/internal/gallery/domain"
	"github.com/sitecraft-ai/sitecraft-backend/internal/session"
	wsdomain "github.com/sitecraft-ai/sitecraft-backend/internal/workspace/domain"
	"github.com/sitecraft-ai/sitecraft-backend/internal/workspace/repository"
	wsservice "github.com/sitecraft-ai/sitecraft-backend/internal/workspace/service"
)

type memStore struct {
	mu      sync.Mutex
	entries map[string]domain.Entry
	likes   map[string]bool
}

func newMemStore() *memStore {
	return &memStore{entries: map[string]domain.Entry{}, likes: map[string]bool{}}
}

func (m *memStore) Publish(_ context.Context, e domain.Entry) (domain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now()
	e.FileCount = len(e.Files)
	m.entries[e.ID] = e
	return e, nil
}

func (m *memStore) List(_ context.Context, tag string, _ int) ([]domain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Entry
	for _, e := range m.entries {
		if tag == "" || contains(e.Tags, tag) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) Get(_ context.Context, id string) (domain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return domain.Entry{}, domain.ErrNotFound
	}
	return e, nil
}

func (m *memStore) Like(_ context.Context, id, uid string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if m.likes[id+"/"+uid] {
		return 0, domain.ErrAlreadyLiked
	}
	m.likes[id+"/"+uid] = true
	e.Likes++
	m.entries[id] = e
	return e.Likes, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type fakeSessions struct {
	ws     map[string]*wsservice.Workspace
	unlock map[string]int
}

func (f *fakeSessions) Workspace(uid string) (*wsservice.Workspace, error) {
	if ws, ok := f.ws[uid]; ok {
		return ws, nil
	}
	return nil, session.ErrNoSession
}

func (f *fakeSessions) SetUnlockCredits(uid string, n int) { f.unlock[uid] = n }

type fakeUnlocker struct {
	left  map[string]int
	calls int
}

func (f *fakeUnlocker) SpendUnlockCredit(_ context.Context, uid, _ string) (int, error) {
	f.calls++
	if f.left[uid] <= 0 {
		return 0, entdomain.ErrNoUnlockCredits
	}
	f.left[uid]--
	return f.left[uid], nil
}

func setup(t *testing.T) (*Service, *fakeSessions, *fakeUnlocker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := repository.NewRepository(client)

	sessions := &fakeSessions{ws: map[string]*wsservice.Workspace{}, unlock: map[string]int{}}
	for _, uid := range []string{"alice", "bob"} {
		ws, err := wsservice.Open(context.Background(), uid, repo, wsservice.Options{DefaultModel: "gemini-2.5-pro"})
		require.NoError(t, err)
		sessions.ws[uid] = ws
	}
	unlock := &fakeUnlocker{left: map[string]int{"bob": 1}}
	return New(newMemStore(), sessions, unlock), sessions, unlock
}

func TestPublish_MarksProjectPublic(t *testing.T) {
	svc, sessions, _ := setup(t)
	ctx := context.Background()

	e, err := svc.Publish(ctx, "alice", domain.PublishRequest{Tags: []string{" Portfolio", "portfolio", "dark"}})
	require.NoError(t, err)
	assert.Equal(t, "alice", e.OwnerUID)
	assert.Equal(t, "My Website", e.Name)
	assert.Equal(t, []string{"portfolio", "dark"}, e.Tags)
	assert.Equal(t, 1, e.FileCount)

	p := sessions.ws["alice"].ActiveProject()
	assert.True(t, p.IsPublic)
	assert.Equal(t, []string{"portfolio", "dark"}, p.Tags)

	list, err := svc.List(ctx, "DARK", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPublish_RequiresSession(t *testing.T) {
	svc, _, _ := setup(t)
	_, err := svc.Publish(context.Background(), "carol", domain.PublishRequest{})
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestLike_OncePerUser(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	e, err := svc.Publish(ctx, "alice", domain.PublishRequest{})
	require.NoError(t, err)

	n, err := svc.Like(ctx, "bob", e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.Like(ctx, "bob", e.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyLiked)

	_, err = svc.Like(ctx, "bob", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClone_OpenProjectIsFree(t *testing.T) {
	svc, sessions, unlock := setup(t)
	ctx := context.Background()

	require.NoError(t, sessions.ws["alice"].CreateFile(ctx, "style.css", "body{}"))
	e, err := svc.Publish(ctx, "alice", domain.PublishRequest{Name: "Landing"})
	require.NoError(t, err)

	p, err := svc.Clone(ctx, "bob", e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Landing", p.Name)
	assert.Len(t, p.Files, 2)
	assert.Zero(t, unlock.calls)

	bob := sessions.ws["bob"]
	assert.Equal(t, p.ID, bob.ActiveProject().ID)
	assert.Len(t, bob.Projects(), 2)
	f, ok := bob.GetFile("style.css")
	require.True(t, ok)
	assert.Equal(t, wsdomain.LanguageFor("style.css"), f.Language)
}

func TestClone_RestrictedSpendsUnlockCredit(t *testing.T) {
	svc, sessions, unlock := setup(t)
	ctx := context.Background()

	e, err := svc.Publish(ctx, "alice", domain.PublishRequest{Restricted: true})
	require.NoError(t, err)

	// owners clone their own work for free
	_, err = svc.Clone(ctx, "alice", e.ID)
	require.NoError(t, err)
	assert.Zero(t, unlock.calls)

	_, err = svc.Clone(ctx, "bob", e.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, sessions.unlock["bob"])

	_, err = svc.Clone(ctx, "bob", e.ID)
	assert.ErrorIs(t, err, entdomain.ErrNoUnlockCredits)
	assert.Len(t, sessions.ws["bob"].Projects(), 2)
}

func TestClone_InvalidNameKeepsUnlockCredit(t *testing.T) {
	svc, sessions, unlock := setup(t)
	ctx := context.Background()

	_, err := svc.Publish(ctx, "alice", domain.PublishRequest{Name: "../escape", Restricted: true})
	assert.ErrorIs(t, err, wsdomain.ErrInvalidName)

	// entries written before names were checked
	e, err := svc.store.Publish(ctx, domain.Entry{
		OwnerUID:   "alice",
		Name:       "../escape",
		Files:      []wsdomain.File{{Name: "index.html", Content: "<p>x</p>"}},
		Restricted: true,
	})
	require.NoError(t, err)

	_, err = svc.Clone(ctx, "bob", e.ID)
	assert.ErrorIs(t, err, wsdomain.ErrInvalidName)
	assert.Zero(t, unlock.calls)
	assert.Equal(t, 1, unlock.left["bob"])
	assert.Len(t, sessions.ws["bob"].Projects(), 1)
}

func TestNormalizeTags(t *testing.T) {
	in := []string{"a", "A", "", " b "}
	for i := 0; i < 20; i++ {
		in = append(in, uuid.NewString())
	}
	out := normalizeTags(in)
	assert.Len(t, out, maxTags)
	assert.Equal(t, []string{"a", "b"}, out[:2])
}
