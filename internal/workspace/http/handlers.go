package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sitecraft-ai/sitecraft-backend/internal/auth"
	"github.com/sitecraft-ai/sitecraft-backend/internal/workspace/domain"
	"github.com/sitecraft-ai/sitecraft-backend/internal/workspace/service"
)

// workspace resolves the caller's workspace or writes a 401.
func (h *Handler) workspace(c *gin.Context) (*service.Workspace, bool) {
	ws, err := h.sessions.Workspace(auth.UserFirebaseUID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": err.Error(), "code": "REQUIRE_LOGIN"})
		return nil, false
	}
	return ws, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrProjectNotFound),
		errors.Is(err, domain.ErrFileNotFound),
		errors.Is(err, domain.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrFileExists):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrInvalidName), errors.Is(err, domain.ErrNoGeneratedFiles):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrFeatureLocked):
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": err.Error(), "code": "FEATURE_LOCKED"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
	}
}

// ---- projects ----

func (h *Handler) listProjects(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": ws.Projects()})
}

func (h *Handler) createProject(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	var req nameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	p, err := ws.CreateProject(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "project": p})
}

func (h *Handler) renameProject(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	var req nameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	if err := ws.RenameProject(c.Request.Context(), c.Param("id"), req.Name); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) deleteProject(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	if err := ws.DeleteProject(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "active": ws.ActiveProject().ID})
}

func (h *Handler) activateProject(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	if err := ws.ActivateProject(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": ws.ActiveProject()})
}

// ---- history ----

func (h *Handler) listMessages(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "messages": ws.Messages()})
}

func (h *Handler) clearMessages(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	ws.ClearHistory(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) applyAll(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	results, err := ws.ApplyAllGenerated(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "results": results})
}

func (h *Handler) applyOne(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	res, err := ws.ApplyGenerated(c.Request.Context(), c.Param("id"), fileName(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": res})
}

// ---- files ----

func (h *Handler) listFiles(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "files": ws.Files(), "selected": ws.SelectedFile()})
}

func (h *Handler) getFile(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	f, found := ws.GetFile(fileName(c))
	if !found {
		writeError(c, domain.ErrFileNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "file": f})
}

func (h *Handler) createFile(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	var req createFileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	if err := ws.CreateFile(c.Request.Context(), req.Name, req.Content); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "selected": ws.SelectedFile()})
}

func (h *Handler) saveFile(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	var req saveFileReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	created, err := ws.SaveFile(c.Request.Context(), fileName(c), *req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "created": created})
}

func (h *Handler) renameFile(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	var req renameFileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	if err := ws.RenameFile(c.Request.Context(), fileName(c), req.NewName); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "selected": ws.SelectedFile()})
}

func (h *Handler) deleteFile(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	if err := ws.DeleteFile(c.Request.Context(), fileName(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "selected": ws.SelectedFile()})
}

func (h *Handler) selectFile(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	var req nameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	if err := ws.SelectFile(req.Name); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "selected": ws.SelectedFile()})
}

// fileName reads the catch-all name parameter, which gin reports with a
// leading slash.
func fileName(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("name"), "/")
}

// ---- settings ----

func (h *Handler) getSettings(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "settings": ws.Settings().View()})
}

func (h *Handler) updateSettings(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	var patch domain.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	uid := auth.UserFirebaseUID(c)
	s, err := ws.UpdateSettings(c.Request.Context(), patch, func(feature string) bool {
		return h.sessions.FeatureAllowed(uid, feature)
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "settings": s.View()})
}
