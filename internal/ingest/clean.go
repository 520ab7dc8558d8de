package ingest

import (
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?i)```(?:json)?")

// Clean strips markdown fences and any prose surrounding the outermost
// braces. Text without an opening brace is returned trimmed.
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = fencePattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	if start := strings.IndexByte(s, '{'); start > 0 {
		s = s[start:]
	}
	if end := strings.LastIndexByte(s, '}'); end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}
	return strings.TrimSpace(s)
}

// ExtractObject returns the first balanced top-level JSON object in text.
// Braces inside string literals are ignored.
func ExtractObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
