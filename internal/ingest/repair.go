package ingest

import (
	"strings"
)

type repairStrategy struct{}

func (repairStrategy) Name() string { return StrategyRepair }

func (repairStrategy) Parse(raw string) Result {
	cleaned := Clean(raw)
	if cleaned == "" {
		return Result{Err: errEmptyResponse}
	}
	repaired := Repair(cleaned)
	if repaired == cleaned {
		return Result{Err: errNothingToFix}
	}
	s, err := decodeStrict(repaired)
	return Result{Structure: s, Err: err}
}

// Repair applies textual fixes for the usual ways generated JSON goes wrong,
// in order: drop a dangling truncated element, strip trailing commas,
// terminate an open string, close open containers.
func Repair(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return s
	}
	if !balanced(s) {
		s = truncateToComplete(s)
	}
	s = stripTrailingCommas(s)
	if unterminatedString(s) {
		s += `"`
	}
	return closeOpen(s)
}

// walk calls fn for every byte outside string literals. fn receives the
// index and the byte; depth tracking is left to the caller.
func walk(s string, fn func(i int, c byte)) {
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
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
		if c == '"' {
			inString = true
		}
		fn(i, c)
	}
}

func unterminatedString(s string) bool {
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		}
	}
	return inString
}

func balanced(s string) bool {
	depth := 0
	walk(s, func(_ int, c byte) {
		switch c {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		}
	})
	return depth == 0 && !unterminatedString(s)
}

// truncateToComplete cuts s at the last point where everything before it is
// syntactically complete: after a closer, after an opener of an array, or
// before a comma separating root-level fields.
func truncateToComplete(s string) string {
	var stack []byte
	cut := -1
	walk(s, func(i int, c byte) {
		switch c {
		case '{', '[':
			stack = append(stack, c)
			if c == '[' || len(stack) == 1 {
				cut = i + 1
			}
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			cut = i + 1
		case ',':
			if len(stack) == 1 && stack[0] == '{' {
				cut = i
			}
		}
	})
	if cut <= 0 || cut >= len(s) {
		return s
	}
	return strings.TrimRight(s[:cut], " \t\r\n,")
}

// stripTrailingCommas removes commas that directly precede a closer.
func stripTrailingCommas(s string) string {
	drop := map[int]bool{}
	pending := -1
	walk(s, func(i int, c byte) {
		switch c {
		case ',':
			pending = i
		case ' ', '\t', '\r', '\n':
		case '}', ']':
			if pending >= 0 {
				drop[pending] = true
			}
			pending = -1
		default:
			pending = -1
		}
	})
	if len(drop) == 0 {
		return strings.TrimRight(s, ",")
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if !drop[i] {
			b.WriteByte(s[i])
		}
	}
	return strings.TrimRight(b.String(), ",")
}

// closeOpen appends closers for every container still open, innermost first.
func closeOpen(s string) string {
	var stack []byte
	walk(s, func(_ int, c byte) {
		switch c {
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	})
	if len(stack) == 0 {
		return s
	}

	s = strings.TrimRight(s, " \t\r\n,")
	// A dangling key or colon cannot be closed into valid JSON.
	s = strings.TrimRight(s, ":")
	var b strings.Builder
	b.WriteString(s)
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}
