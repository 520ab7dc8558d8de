package ingest

// IsSuspect reports whether cleaned text shows signs of truncation or
// malformation: unbalanced containers, an unterminated string or a
// trailing comma before a closer.
func IsSuspect(cleaned string) bool {
	if cleaned == "" {
		return false
	}
	if !balanced(cleaned) {
		return true
	}
	return stripTrailingCommas(cleaned) != cleaned
}
