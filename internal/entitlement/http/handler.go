package http

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sitecraft-ai/sitecraft-backend/internal/auth"
	"github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/domain"
	"github.com/sitecraft-ai/sitecraft-backend/internal/ledger"
	"github.com/sitecraft-ai/sitecraft-backend/internal/logging"
	"github.com/sitecraft-ai/sitecraft-backend/internal/session"
)

type SessionManager interface {
	Login(ctx context.Context, uid string) (*session.Session, domain.Evaluation, error)
	Logout(uid string)
	Get(uid string) (*session.Session, error)
}

type PlanSource interface {
	Plans(ctx context.Context) domain.Plans
}

type LedgerReader interface {
	List(ctx context.Context, userID string, limit int) ([]ledger.Entry, error)
}

type Handler struct {
	sessions SessionManager
	plans    PlanSource
	ledger   LedgerReader
}

// New wires the session endpoints. history may be nil when no database
// is configured.
func New(sessions SessionManager, plans PlanSource, history LedgerReader) *Handler {
	return &Handler{sessions: sessions, plans: plans, ledger: history}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	s := rg.Group("/session")
	s.POST("/login", h.login)
	s.POST("/logout", h.logout)
	s.GET("/profile", h.profile)
	s.GET("/ledger", h.listLedger)

	rg.GET("/plans", h.listPlans)
}

func (h *Handler) login(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)
	s, ev, err := h.sessions.Login(c.Request.Context(), uid)
	if errors.Is(err, domain.ErrBanned) {
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": err.Error(), "code": "BANNED"})
		return
	}
	if err != nil {
		logging.NewLogger(c.Request.Context()).LogError("session.login", err, "uid", uid)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"profile":    s.Profile(),
		"notice":     s.TakeNotice(),
		"downgraded": ev.Downgraded,
		"refilled":   ev.Refilled,
	})
}

func (h *Handler) logout(c *gin.Context) {
	h.sessions.Logout(auth.UserFirebaseUID(c))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) profile(c *gin.Context) {
	s, err := h.sessions.Get(auth.UserFirebaseUID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": err.Error(), "code": "REQUIRE_LOGIN"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "profile": s.Profile(), "notice": s.TakeNotice()})
}

func (h *Handler) listPlans(c *gin.Context) {
	plans := h.plans.Plans(c.Request.Context())
	out := make([]domain.PlanDefinition, 0, len(plans))
	for _, p := range plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DailyCredits < out[j].DailyCredits })
	c.JSON(http.StatusOK, gin.H{"ok": true, "plans": out})
}

func (h *Handler) listLedger(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)
	if _, err := h.sessions.Get(uid); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": err.Error(), "code": "REQUIRE_LOGIN"})
		return
	}
	if h.ledger == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true, "entries": []ledger.Entry{}})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.ledger.List(c.Request.Context(), uid, limit)
	if err != nil {
		logging.NewLogger(c.Request.Context()).LogError("session.ledger", err, "uid", uid)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to load ledger"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "entries": entries})
}
