package ingest

import (
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/Conceptual-Machines/voxel-architect/internal/models"
)

// incrementalStrategy reads the top-level fields one at a time and keeps
// whatever it can decode. Bad elements are skipped and a truncated tail is
// dropped, so it survives input a strict decoder rejects outright.
type incrementalStrategy struct{}

func (incrementalStrategy) Name() string { return StrategyIncremental }

func (incrementalStrategy) Parse(raw string) Result {
	text := Clean(raw)
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return Result{Err: errNoObject}
	}

	sc := &scanner{s: text, pos: start + 1}
	s := &models.Structure{}

	for {
		sc.skipSpace()
		if sc.done() {
			break
		}
		c := sc.peek()
		if c == '}' {
			break
		}
		if c == ',' {
			sc.pos++
			continue
		}
		if c != '"' {
			// Unquoted garbage between fields.
			before := sc.pos
			if !sc.skipValue() {
				break
			}
			if sc.pos == before {
				sc.pos++
			}
			continue
		}

		key, ok := sc.readString()
		if !ok {
			break
		}
		sc.skipSpace()
		if sc.done() || sc.peek() != ':' {
			continue
		}
		sc.pos++
		sc.skipSpace()
		if sc.done() {
			break
		}

		switch strings.ToLower(key) {
		case "name":
			if v, ok := sc.stringValue(); ok {
				s.Name = v
			}
		case "description":
			if v, ok := sc.stringValue(); ok {
				s.Description = v
			}
		case "size":
			if span, ok := sc.valueSpan(); ok {
				s.Size = decodeSize(span)
			}
		case "blocks", "placements":
			if len(s.Placements) > 0 {
				sc.skipValue()
				continue
			}
			s.Placements = sc.readVoxels()
		default:
			sc.skipValue()
		}
	}

	if len(s.Placements) == 0 {
		return Result{Err: errNoPlacements}
	}
	return Result{Structure: s}
}

// scanner is a lenient cursor over JSON-ish text. It never errors; methods
// report ok=false when the input ends before a value completes.
type scanner struct {
	s   string
	pos int
}

func (sc *scanner) done() bool { return sc.pos >= len(sc.s) }

func (sc *scanner) peek() byte { return sc.s[sc.pos] }

func (sc *scanner) skipSpace() {
	for sc.pos < len(sc.s) {
		switch sc.s[sc.pos] {
		case ' ', '\t', '\n', '\r':
			sc.pos++
		default:
			return
		}
	}
}

// readString consumes a quoted string at the cursor and returns its
// unescaped contents.
func (sc *scanner) readString() (string, bool) {
	if sc.done() || sc.peek() != '"' {
		return "", false
	}
	begin := sc.pos
	escaped := false
	for i := sc.pos + 1; i < len(sc.s); i++ {
		c := sc.s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			sc.pos = i + 1
			literal := sc.s[begin:sc.pos]
			if v, err := strconv.Unquote(literal); err == nil {
				return v, true
			}
			return literal[1 : len(literal)-1], true
		}
	}
	sc.pos = len(sc.s)
	return "", false
}

// stringValue reads a string value, skipping non-string values.
func (sc *scanner) stringValue() (string, bool) {
	if sc.peek() == '"' {
		return sc.readString()
	}
	sc.skipValue()
	return "", false
}

// valueSpan returns the text of the value at the cursor.
func (sc *scanner) valueSpan() (string, bool) {
	begin := sc.pos
	if !sc.skipValue() {
		return "", false
	}
	return sc.s[begin:sc.pos], true
}

// skipValue advances past one value of any kind.
func (sc *scanner) skipValue() bool {
	if sc.done() {
		return false
	}
	switch sc.peek() {
	case '"':
		_, ok := sc.readString()
		return ok
	case '{', '[':
		return sc.skipContainer()
	}
	for sc.pos < len(sc.s) {
		switch sc.s[sc.pos] {
		case ',', '}', ']':
			return true
		}
		sc.pos++
	}
	return false
}

// skipContainer advances past a balanced object or array, honoring quotes.
func (sc *scanner) skipContainer() bool {
	depth := 0
	inString, escaped := false, false
	for i := sc.pos; i < len(sc.s); i++ {
		c := sc.s[i]
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				sc.pos = i + 1
				return true
			}
		}
	}
	sc.pos = len(sc.s)
	return false
}

// readVoxels consumes a placement array, keeping every element that decodes.
// A truncated trailing element is discarded.
func (sc *scanner) readVoxels() []*models.Voxel {
	if sc.peek() != '[' {
		sc.skipValue()
		return nil
	}
	sc.pos++

	var out []*models.Voxel
	for {
		sc.skipSpace()
		if sc.done() {
			return out
		}
		switch sc.peek() {
		case ']':
			sc.pos++
			return out
		case ',':
			sc.pos++
			continue
		case '{':
			span, ok := sc.valueSpan()
			if !ok {
				return out
			}
			if v, ok := decodeVoxel(span); ok {
				out = append(out, v)
			}
		default:
			if !sc.skipValue() {
				return out
			}
			// A stray closer we did not open would stall the loop.
			if !sc.done() && sc.peek() == '}' {
				sc.pos++
			}
		}
	}
}

// decodeVoxel decodes one element, tolerating numeric strings and the
// common "block"/"type" spellings of the material key. Elements without
// a material are rejected.
func decodeVoxel(span string) (*models.Voxel, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(span), &fields); err != nil {
		return nil, false
	}

	v := &models.Voxel{}
	var ok bool
	if v.X, ok = coerceInt(fields["x"]); !ok {
		return nil, false
	}
	if v.Y, ok = coerceInt(fields["y"]); !ok {
		return nil, false
	}
	if v.Z, ok = coerceInt(fields["z"]); !ok {
		return nil, false
	}
	for _, key := range []string{"material", "block", "type"} {
		if m, isString := fields[key].(string); isString && strings.TrimSpace(m) != "" {
			v.Material = m
			break
		}
	}
	if v.Material == "" {
		return nil, false
	}
	if d, isString := fields["data"].(string); isString {
		v.Data = d
	}
	return v, true
}

func decodeSize(span string) models.Size {
	var fields map[string]any
	if err := json.Unmarshal([]byte(span), &fields); err != nil {
		return models.Size{}
	}
	w, _ := coerceInt(fields["width"])
	h, _ := coerceInt(fields["height"])
	d, _ := coerceInt(fields["depth"])
	return models.Size{Width: w, Height: h, Depth: d}
}

func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(math.Round(n)), true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return int(math.Round(f)), true
		}
	}
	return 0, false
}
