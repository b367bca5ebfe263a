package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecraft-ai/sitecraft-backend/internal/auth"
	"github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/domain"
	"github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/engine"
	"github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/repository"
	"github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/service"
	"github.com/sitecraft-ai/sitecraft-backend/internal/ledger"
	"github.com/sitecraft-ai/sitecraft-backend/internal/session"
	wsrepo "github.com/sitecraft-ai/sitecraft-backend/internal/workspace/repository"
	wsservice "github.com/sitecraft-ai/sitecraft-backend/internal/workspace/service"
)

var plans = domain.Plans{
	"free": {ID: "free", Name: "Free", DailyCredits: 10},
	"pro":  {ID: "pro", Name: "Pro", DailyCredits: 100, UnlockCredits: 5},
}

type fakeLedger struct {
	entries []ledger.Entry
	err     error
}

func (f *fakeLedger) List(context.Context, string, int) ([]ledger.Entry, error) {
	return f.entries, f.err
}

func setupRouter(t *testing.T, history LedgerReader) (*gin.Engine, *repository.RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := repository.NewRedisStore(client)
	ent := service.New(store, ledger.Noop{}, plans, engine.Options{DefaultPlan: "free", Location: time.UTC})
	mgr := session.NewManager(ent, wsrepo.NewRepository(client), wsservice.Options{DefaultModel: "gemini-2.5-pro"})
	t.Cleanup(func() {
		for _, uid := range mgr.UIDs() {
			mgr.Logout(uid)
		}
	})

	gin.SetMode(gin.TestMode)
	r := gin.New()
	rg := r.Group("/api/v1")
	rg.Use(auth.DevUser())
	New(mgr, ent, history).Register(rg)
	return r, store
}

func call(r *gin.Engine, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-User-Id", "u1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestLoginProfileLogout(t *testing.T) {
	r, _ := setupRouter(t, nil)

	w, _ := call(r, http.MethodGet, "/api/v1/session/profile")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := call(r, http.MethodPost, "/api/v1/session/login")
	require.Equal(t, http.StatusOK, w.Code)
	profile := body["profile"].(map[string]any)
	assert.Equal(t, "free", profile["plan"])
	assert.EqualValues(t, 10, profile["credits"])

	w, _ = call(r, http.MethodGet, "/api/v1/session/profile")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = call(r, http.MethodPost, "/api/v1/session/logout")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = call(r, http.MethodGet, "/api/v1/session/profile")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_Banned(t *testing.T) {
	r, store := setupRouter(t, nil)
	require.NoError(t, store.CreateProfile(context.Background(), "u1", domain.UserProfile{Plan: "free", Banned: true}))

	w, body := call(r, http.MethodPost, "/api/v1/session/login")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "BANNED", body["code"])
}

func TestLogin_ExpiredPlanCarriesNotice(t *testing.T) {
	r, store := setupRouter(t, nil)
	expired := time.Now().Add(-48 * time.Hour).UnixMilli()
	require.NoError(t, store.CreateProfile(context.Background(), "u1", domain.UserProfile{
		Plan: "pro", PlanExpiry: expired, Credits: 50, UnlockCredits: 3,
	}))

	w, body := call(r, http.MethodPost, "/api/v1/session/login")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["downgraded"])
	assert.NotEmpty(t, body["notice"])
	assert.Equal(t, "free", body["profile"].(map[string]any)["plan"])
}

func TestListPlans(t *testing.T) {
	r, _ := setupRouter(t, nil)

	w, body := call(r, http.MethodGet, "/api/v1/plans")
	require.Equal(t, http.StatusOK, w.Code)
	list := body["plans"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, "free", list[0].(map[string]any)["id"])
}

func TestLedger(t *testing.T) {
	history := &fakeLedger{entries: []ledger.Entry{{UserID: "u1", Kind: ledger.KindDeduct, Delta: -1}}}
	r, _ := setupRouter(t, history)

	w, _ := call(r, http.MethodGet, "/api/v1/session/ledger")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	call(r, http.MethodPost, "/api/v1/session/login")
	w, body := call(r, http.MethodGet, "/api/v1/session/ledger")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["entries"], 1)

	history.err = errors.New("db down")
	w, _ = call(r, http.MethodGet, "/api/v1/session/ledger")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
