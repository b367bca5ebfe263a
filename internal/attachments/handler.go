package attachments

import (
	"bytes"
	"io"
	"net/http"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/sitecraft-ai/sitecraft-backend/internal/auth"
	"github.com/sitecraft-ai/sitecraft-backend/internal/generation/prompt"
)

var textExts = map[string]bool{
	".txt": true, ".md": true, ".html": true, ".htm": true, ".css": true,
	".js": true, ".json": true, ".csv": true, ".xml": true, ".svg": true,
}

type Handler struct {
	uploader *Uploader
	maxSize  int64
}

func NewHandler(u *Uploader, maxSize int64) *Handler {
	if maxSize <= 0 {
		maxSize = 5 << 20
	}
	return &Handler{uploader: u, maxSize: maxSize}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/attachments", h.upload)
}

// upload answers with a prompt attachment. A failed image upload gives
// a null attachment rather than an error.
func (h *Handler) upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "file is required"})
		return
	}
	if fh.Size > h.maxSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"ok": false, "error": "file too large"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "cannot read file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxSize+1))
	if err != nil || int64(len(data)) > h.maxSize {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "cannot read file"})
		return
	}

	ctype := http.DetectContentType(data)
	name := path.Base(fh.Filename)

	switch {
	case strings.HasPrefix(ctype, "image/") && !strings.HasSuffix(strings.ToLower(name), ".svg"):
		url, ok := h.uploader.Upload(c.Request.Context(), auth.UserFirebaseUID(c), name, ctype, bytes.NewReader(data))
		if !ok {
			c.JSON(http.StatusOK, gin.H{"ok": true, "attachment": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "attachment": prompt.Attachment{Kind: prompt.AttachmentImage, Name: name, URL: url}})

	case isText(name, ctype, data):
		c.JSON(http.StatusOK, gin.H{"ok": true, "attachment": prompt.Attachment{Kind: prompt.AttachmentText, Name: name, Content: string(data)}})

	default:
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"ok": false, "error": "only images and text files can be attached"})
	}
}

func isText(name, ctype string, data []byte) bool {
	if !utf8.Valid(data) {
		return false
	}
	return strings.HasPrefix(ctype, "text/") || textExts[strings.ToLower(path.Ext(name))]
}
