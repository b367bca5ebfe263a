package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sitecraft-ai/sitecraft-backend/internal/auth"
	entdomain "github.com/sitecraft-ai/sitecraft-backend/internal/entitlement/domain"
	"github.com/sitecraft-ai/sitecraft-backend/internal/gallery/domain"
	"github.com/sitecraft-ai/sitecraft-backend/internal/logging"
	"github.com/sitecraft-ai/sitecraft-backend/internal/session"
	wsdomain "github.com/sitecraft-ai/sitecraft-backend/internal/workspace/domain"
)

type Gallery interface {
	Publish(ctx context.Context, uid string, req domain.PublishRequest) (domain.Entry, error)
	List(ctx context.Context, tag string, limit int) ([]domain.Entry, error)
	Like(ctx context.Context, uid, id string) (int, error)
	Clone(ctx context.Context, uid, id string) (wsdomain.Project, error)
}

type Handler struct {
	gallery Gallery
}

func New(g Gallery) *Handler {
	return &Handler{gallery: g}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/gallery")
	g.GET("", h.list)
	g.POST("", h.publish)
	g.POST("/:id/like", h.like)
	g.POST("/:id/clone", h.clone)
}

func (h *Handler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.gallery.List(c.Request.Context(), c.Query("tag"), limit)
	if err != nil {
		writeError(c, "gallery.list", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": entries})
}

func (h *Handler) publish(c *gin.Context) {
	var req domain.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	e, err := h.gallery.Publish(c.Request.Context(), auth.UserFirebaseUID(c), req)
	if err != nil {
		writeError(c, "gallery.publish", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "project": e})
}

func (h *Handler) like(c *gin.Context) {
	likes, err := h.gallery.Like(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("id"))
	if err != nil {
		writeError(c, "gallery.like", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "likes": likes})
}

func (h *Handler) clone(c *gin.Context) {
	p, err := h.gallery.Clone(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("id"))
	if err != nil {
		writeError(c, "gallery.clone", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "project": p})
}

func writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, session.ErrNoSession):
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": err.Error(), "code": "REQUIRE_LOGIN"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrAlreadyLiked):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error(), "code": "ALREADY_LIKED"})
	case errors.Is(err, domain.ErrEmptyProject), errors.Is(err, wsdomain.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, entdomain.ErrNoUnlockCredits):
		c.JSON(http.StatusPaymentRequired, gin.H{"ok": false, "error": err.Error(), "code": "NO_UNLOCK_CREDITS"})
	default:
		logging.NewLogger(c.Request.Context()).LogError(op, err, "uid", auth.UserFirebaseUID(c))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal error"})
	}
}
