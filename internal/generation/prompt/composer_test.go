package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sitecraft-ai/sitecraft-backend/internal/workspace/domain"
)

func TestCompose_FeatureManifest(t *testing.T) {
	p := Compose(Input{Instruction: "x", Features: []string{FeaturePWA, FeatureTailwind}})

	assert.Contains(t, p.System, "[pwa: ON]")
	assert.Contains(t, p.System, "[tailwind: ON]")
	assert.Contains(t, p.System, "[admin_panel: OFF]")
	assert.Contains(t, p.System, "[multi_file: OFF]")
	assert.Contains(t, p.System, "[security_rules: OFF]")
	for _, id := range Catalog() {
		assert.Equal(t, 1, strings.Count(p.System, "["+id+":"), id)
	}
}

func TestCompose_FileMarkers(t *testing.T) {
	p := Compose(Input{
		Instruction: "make it blue",
		Files: []domain.File{
			{Name: "index.html", Content: "<h1>Hi</h1>"},
			{Name: "style.css", Content: "h1{}"},
		},
	})

	assert.Contains(t, p.User, "--- START OF FILE: index.html ---\n<h1>Hi</h1>\n--- END OF FILE: index.html ---")
	assert.Contains(t, p.User, "--- START OF FILE: style.css ---\nh1{}\n--- END OF FILE: style.css ---")
	assert.Less(t, strings.Index(p.User, "index.html"), strings.Index(p.User, "style.css"))
	assert.True(t, strings.HasSuffix(p.User, "REQUEST:\nmake it blue\n"))
}

func TestCompose_Attachments(t *testing.T) {
	p := Compose(Input{
		Instruction: "use these",
		Attachments: []Attachment{
			{Kind: AttachmentText, Name: "copy.txt", Content: "Welcome to our bakery"},
			{Kind: AttachmentImage, Name: "logo.png", URL: "https://cdn.example.com/logo.png", Content: "ignored"},
		},
	})

	assert.Contains(t, p.User, "[Attachment 1: copy.txt]\nWelcome to our bakery\n[End of attachment 1]")
	assert.Contains(t, p.User, "[Attachment 2: image logo.png] https://cdn.example.com/logo.png")
	assert.NotContains(t, p.User, "ignored")
}

func TestCompose_HistoryWindow(t *testing.T) {
	var hist []domain.Message
	for i := 0; i < 15; i++ {
		hist = append(hist, domain.Message{Role: domain.RoleUser, Content: fmt.Sprintf("msg-%02d", i)})
	}

	p := Compose(Input{Instruction: "x", History: hist})
	assert.NotContains(t, p.User, "msg-04")
	assert.Contains(t, p.User, "msg-05")
	assert.Contains(t, p.User, "msg-14")

	p = Compose(Input{Instruction: "x", History: hist, HistoryWindow: 2})
	assert.NotContains(t, p.User, "msg-12")
	assert.Contains(t, p.User, "msg-13")
}

func TestCompose_SafeModeAndContract(t *testing.T) {
	p := Compose(Input{Instruction: "x"})
	assert.NotContains(t, p.System, "SAFE MODE")
	assert.Contains(t, p.System, `{"message":`)
	assert.Contains(t, p.System, "Do not wrap the JSON in markdown code fences.")

	assert.NotContains(t, p.System, "minimal, logic-preserving edits")

	p = Compose(Input{Instruction: "x", SafeMode: true})
	assert.Contains(t, p.System, "SAFE MODE")
	assert.Contains(t, p.System, "minimal, logic-preserving edits instead of full rewrites")
	assert.Contains(t, p.System, "Change only what the request needs")
}

func TestCompose_IsDeterministic(t *testing.T) {
	in := Input{Instruction: "x", Features: []string{FeatureMultiFile}, Files: []domain.File{{Name: "a", Content: "b"}}}
	assert.Equal(t, Compose(in), Compose(in))
}

func TestKnown(t *testing.T) {
	assert.True(t, Known(FeaturePWA))
	assert.False(t, Known("dark_mode"))
}
