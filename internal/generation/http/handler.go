package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitecraft-ai/sitecraft-backend/internal/auth"
	"github.com/sitecraft-ai/sitecraft-backend/internal/generation/prompt"
	"github.com/sitecraft-ai/sitecraft-backend/internal/generation/service"
)

type Generator interface {
	Generate(ctx context.Context, uid string, req service.Request) (service.Outcome, error)
	Cancel(uid string) bool
	Status(uid string) (service.State, string)
}

type Handler struct {
	gen Generator
}

func New(gen Generator) *Handler {
	return &Handler{gen: gen}
}

type generateReq struct {
	Prompt      string              `json:"prompt"`
	Attachments []prompt.Attachment `json:"attachments"`
	SafeMode    bool                `json:"safe_mode"`
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/generate", h.generate)
	rg.POST("/generate/cancel", h.cancel)
	rg.GET("/generate/status", h.status)
}

func (h *Handler) generate(c *gin.Context) {
	var req generateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	for _, a := range req.Attachments {
		if a.Kind != prompt.AttachmentImage && a.Kind != prompt.AttachmentText {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unknown attachment kind: " + a.Kind})
			return
		}
	}

	out, err := h.gen.Generate(c.Request.Context(), auth.UserFirebaseUID(c), service.Request{
		Prompt:      req.Prompt,
		Attachments: req.Attachments,
		SafeMode:    req.SafeMode,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": out})
}

func (h *Handler) cancel(c *gin.Context) {
	cancelled := h.gen.Cancel(auth.UserFirebaseUID(c))
	c.JSON(http.StatusOK, gin.H{"ok": true, "cancelled": cancelled})
}

func (h *Handler) status(c *gin.Context) {
	state, model := h.gen.Status(auth.UserFirebaseUID(c))
	c.JSON(http.StatusOK, gin.H{"ok": true, "state": state, "model": model})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRequireLogin):
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": err.Error(), "code": "REQUIRE_LOGIN"})
	case errors.Is(err, service.ErrEmptyPrompt):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error(), "code": "EMPTY_PROMPT"})
	case errors.Is(err, service.ErrNoCredits):
		c.JSON(http.StatusPaymentRequired, gin.H{"ok": false, "error": err.Error(), "code": "NO_CREDITS"})
	case errors.Is(err, service.ErrGenerationInProgress):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error(), "code": "IN_PROGRESS"})
	case errors.Is(err, service.ErrNoModelAvailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": err.Error(), "code": "MODEL_UNAVAILABLE"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
	}
}
