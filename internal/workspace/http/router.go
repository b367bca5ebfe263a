package http

import (
	"github.com/gin-gonic/gin"

	"github.com/sitecraft-ai/sitecraft-backend/internal/workspace/service"
)

// SessionSource resolves the workspace of a logged-in user.
type SessionSource interface {
	Workspace(uid string) (*service.Workspace, error)
	FeatureAllowed(uid, feature string) bool
}

// Handler bundles the dependencies for workspace HTTP endpoints.
type Handler struct {
	sessions SessionSource
}

func New(sessions SessionSource) *Handler {
	return &Handler{sessions: sessions}
}

// Register attaches workspace routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	projects := rg.Group("/projects")
	projects.GET("", h.listProjects)
	projects.POST("", h.createProject)
	projects.PATCH("/:id", h.renameProject)
	projects.DELETE("/:id", h.deleteProject)
	projects.POST("/:id/activate", h.activateProject)

	rg.GET("/messages", h.listMessages)
	rg.DELETE("/messages", h.clearMessages)
	rg.POST("/messages/:id/apply", h.applyAll)
	rg.POST("/messages/:id/files/*name", h.applyOne)

	files := rg.Group("/files")
	files.GET("", h.listFiles)
	files.POST("", h.createFile)
	files.POST("/select", h.selectFile)
	// file names may contain slashes (css/style.css)
	files.GET("/*name", h.getFile)
	files.PUT("/*name", h.saveFile)
	files.PATCH("/*name", h.renameFile)
	files.DELETE("/*name", h.deleteFile)

	rg.GET("/settings", h.getSettings)
	rg.PATCH("/settings", h.updateSettings)
}
