package parser

import (
	"strings"

	"github.com/tidwall/gjson"
)

// closingSuffixes are tried in order before anything smarter.
var closingSuffixes = []string{`"`, `]`, `}`, `"}`, `]}`, `"]}`, `}]}`, `"}]}`}

const maxCutBacks = 64

// Repair tries to turn a truncated or trailing-prose object into valid
// JSON: fixed closing suffixes, then trimming text after the last '}',
// then a computed closure that cuts back to earlier commas until the
// result parses.
func Repair(s string) (string, bool) {
	s = strings.TrimRight(s, " \t\r\n")

	for _, suf := range closingSuffixes {
		if isObject(s + suf) {
			return s + suf, true
		}
	}

	if i := strings.LastIndexByte(s, '}'); i >= 0 && isObject(s[:i+1]) {
		return s[:i+1], true
	}

	cur := s
	for i := 0; i < maxCutBacks; i++ {
		if fixed := closeBalanced(cur); isObject(fixed) {
			return fixed, true
		}
		cut := lastCommaOutsideString(cur)
		if cut < 0 {
			break
		}
		cur = cur[:cut]
	}
	return "", false
}

func isObject(s string) bool {
	return gjson.Valid(s) && gjson.Parse(s).IsObject()
}

// closeBalanced closes an open string and every open bracket, dropping a
// dangling comma and giving a dangling key a null value.
func closeBalanced(s string) string {
	var stack []byte
	inStr, esc := false, false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	out := s
	if inStr {
		if esc {
			out = out[:len(out)-1]
		}
		out += `"`
	}
	out = strings.TrimRight(out, " \t\r\n")
	out = strings.TrimSuffix(out, ",")
	if strings.HasSuffix(out, ":") {
		out += "null"
	}

	var b strings.Builder
	b.WriteString(out)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

func lastCommaOutsideString(s string) int {
	last := -1
	inStr, esc := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case ',':
			last = i
		}
	}
	return last
}
