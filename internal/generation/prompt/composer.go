// Package prompt builds the model prompt from a generation request.
// Compose does no I/O.
package prompt

import (
	"fmt"
	"strings"

	"github.com/sitecraft-ai/sitecraft-backend/internal/workspace/domain"
)

const DefaultHistoryWindow = 10

// Attachment kinds.
const (
	AttachmentImage = "image"
	AttachmentText  = "text"
)

type Attachment struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	Content string `json:"content,omitempty"`
}

type Input struct {
	Instruction string
	Files       []domain.File
	History     []domain.Message
	Attachments []Attachment
	// Features are the toggles that are both switched on and entitled.
	Features      []string
	SafeMode      bool
	HistoryWindow int
}

type Prompt struct {
	System string
	User   string
}

const role = `You are an expert web developer who builds small static websites from HTML, CSS and JavaScript.
You edit the user's project by returning complete new contents for every file you change or create.`

const outputContract = `OUTPUT FORMAT (mandatory):
Respond with exactly one JSON object and nothing else:
{"message": "<short explanation for the user>", "files": [{"name": "<file name>", "content": "<complete file content>"}]}
- Do not wrap the JSON in markdown code fences.
- Do not write any text before or after the JSON object.
- List only files you changed or created, each with its full content.
- Use "files": [] when no file changes are needed.`

const safeModeRule = `SAFE MODE: Make minimal, logic-preserving edits instead of full rewrites.
- Keep the existing structure, naming and behaviour of every file.
- Change only what the request needs and leave unrelated code untouched.
- Only include files you actually had to change.`

func Compose(in Input) Prompt {
	return Prompt{System: system(in), User: user(in)}
}

func system(in Input) string {
	enabled := make(map[string]bool, len(in.Features))
	for _, f := range in.Features {
		enabled[f] = true
	}

	var b strings.Builder
	b.WriteString(role)
	b.WriteString("\n\nPROJECT REQUIREMENTS:\n")
	for _, f := range catalog {
		if enabled[f.ID] {
			fmt.Fprintf(&b, "- [%s: ON] %s\n", f.ID, f.Enabled)
		} else {
			fmt.Fprintf(&b, "- [%s: OFF] %s\n", f.ID, f.Disabled)
		}
	}
	if in.SafeMode {
		b.WriteString("\n")
		b.WriteString(safeModeRule)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(outputContract)
	return b.String()
}

func user(in Input) string {
	var b strings.Builder

	b.WriteString("CURRENT PROJECT FILES:\n")
	if len(in.Files) == 0 {
		b.WriteString("(the project has no files yet)\n")
	}
	for _, f := range in.Files {
		fmt.Fprintf(&b, "--- START OF FILE: %s ---\n%s\n--- END OF FILE: %s ---\n", f.Name, f.Content, f.Name)
	}

	if hist := window(in.History, in.HistoryWindow); len(hist) > 0 {
		b.WriteString("\nCONVERSATION SO FAR:\n")
		for _, m := range hist {
			fmt.Fprintf(&b, "[%s]: %s\n", m.Role, m.Content)
		}
	}

	if len(in.Attachments) > 0 {
		b.WriteString("\nATTACHMENTS:\n")
		for i, a := range in.Attachments {
			switch a.Kind {
			case AttachmentText:
				fmt.Fprintf(&b, "[Attachment %d: %s]\n%s\n[End of attachment %d]\n", i+1, a.Name, a.Content, i+1)
			case AttachmentImage:
				fmt.Fprintf(&b, "[Attachment %d: image %s] %s\n", i+1, a.Name, a.URL)
			}
		}
	}

	b.WriteString("\nREQUEST:\n")
	b.WriteString(strings.TrimSpace(in.Instruction))
	b.WriteString("\n")
	return b.String()
}

func window(history []domain.Message, n int) []domain.Message {
	if n <= 0 {
		n = DefaultHistoryWindow
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
