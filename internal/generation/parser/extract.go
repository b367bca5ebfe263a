package parser

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

const jsonString = `"((?:[^"\\]|\\.)*)"`

var (
	nameThenContent = regexp.MustCompile(`"name"\s*:\s*` + jsonString + `\s*,\s*"content"\s*:\s*` + jsonString)
	contentThenName = regexp.MustCompile(`"content"\s*:\s*` + jsonString + `\s*,\s*"name"\s*:\s*` + jsonString)
	messageField    = regexp.MustCompile(`"message"\s*:\s*` + jsonString)
)

var fallbackUnescaper = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "\r", `\"`, `"`, `\/`, "/", `\\`, `\`)

// Extract scans for name/content pairs in either key order and for a
// message field, without requiring the surrounding JSON to be valid.
// Files come back in the order they appear.
func Extract(s string) (string, []File) {
	type hit struct {
		at   int
		file File
	}
	var hits []hit

	for _, m := range nameThenContent.FindAllStringSubmatchIndex(s, -1) {
		hits = append(hits, hit{at: m[0], file: File{Name: unescape(s[m[2]:m[3]]), Content: unescape(s[m[4]:m[5]])}})
	}
	for _, m := range contentThenName.FindAllStringSubmatchIndex(s, -1) {
		hits = append(hits, hit{at: m[0], file: File{Name: unescape(s[m[4]:m[5]]), Content: unescape(s[m[2]:m[3]])}})
	}

	// insertion sort by position; the hit count is small
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].at < hits[j-1].at; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	var files []File
	for _, h := range hits {
		if strings.TrimSpace(h.file.Name) == "" {
			continue
		}
		files = append(files, h.file)
	}

	var msg string
	if m := messageField.FindStringSubmatch(s); m != nil {
		msg = unescape(m[1])
	}
	return msg, files
}

// unescape decodes the JSON escapes of a raw string body.
func unescape(raw string) string {
	quoted := `"` + raw + `"`
	if gjson.Valid(quoted) {
		return gjson.Parse(quoted).String()
	}
	return fallbackUnescaper.Replace(raw)
}
