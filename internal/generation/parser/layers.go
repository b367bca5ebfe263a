package parser

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var fenceLine = regexp.MustCompile("(?m)^[ \t]*```[A-Za-z0-9_+-]*[ \t]*\r?$\n?")

// StripFences removes markdown code fence lines and a fence glued to
// either end of the text.
func StripFences(s string) string {
	s = fenceLine.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimLeft(s, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// LocateObject cuts any prose before the first '{'.
func LocateObject(s string) (string, bool) {
	i := strings.IndexByte(s, '{')
	if i < 0 {
		return "", false
	}
	return s[i:], true
}

// DecodeStrict reads the output contract from s when s is a valid JSON
// object. Entries without a name or content are dropped.
func DecodeStrict(s string) (Result, bool) {
	if !gjson.Valid(s) {
		return Result{}, false
	}
	root := gjson.Parse(s)
	if !root.IsObject() {
		return Result{}, false
	}

	res := Result{Message: root.Get("message").String()}

	files := root.Get("files")
	switch {
	case files.IsArray():
		for _, f := range files.Array() {
			name, content := f.Get("name"), f.Get("content")
			if name.Type != gjson.String || strings.TrimSpace(name.Str) == "" || !content.Exists() {
				continue
			}
			res.Files = append(res.Files, File{Name: name.Str, Content: content.String()})
		}
	case files.IsObject():
		files.ForEach(func(k, v gjson.Result) bool {
			if name := k.String(); strings.TrimSpace(name) != "" {
				res.Files = append(res.Files, File{Name: name, Content: v.String()})
			}
			return true
		})
	}
	return res, true
}
