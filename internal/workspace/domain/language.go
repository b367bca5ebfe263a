package domain

import (
	"path"
	"strings"
)

type Language string

const (
	LanguageHTML       Language = "html"
	LanguageCSS        Language = "css"
	LanguageJavaScript Language = "javascript"
	LanguageJSON       Language = "json"
	LanguagePlaintext  Language = "plaintext"
)

// LanguageFor derives the language tag from a file name's extension.
func LanguageFor(name string) Language {
	switch strings.ToLower(path.Ext(name)) {
	case ".html", ".htm":
		return LanguageHTML
	case ".css":
		return LanguageCSS
	case ".js", ".mjs", ".cjs":
		return LanguageJavaScript
	case ".json", ".webmanifest":
		return LanguageJSON
	default:
		return LanguagePlaintext
	}
}
