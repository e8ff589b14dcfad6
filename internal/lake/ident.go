package lake

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// NormalizeIdent converts an arbitrary header or file name into a safe,
// lowercase identifier suitable for column and table names.
func NormalizeIdent(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	// Simple ASCII-ish normalization:
	//  - lower
	//  - replace separators with underscore
	//  - remove non [a-z0-9_]
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))

	lastUnderscore := false
	for _, r := range s {
		if r == ' ' || r == '-' || r == '.' || r == '/' || r == '\\' || r == ':' || r == ';' {
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}

		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			lastUnderscore = (r == '_')
			continue
		}

		// Drop everything else.
	}

	return strings.Trim(b.String(), "_")
}

// TruncateIdent enforces backend identifier length limits while preserving
// UTF-8 validity.
func TruncateIdent(s string) string {
	const maxLen = 63
	if len(s) <= maxLen {
		return s
	}
	b := []byte(s)
	cut := maxLen
	for cut > 0 && !utf8.Valid(b[:cut]) {
		cut--
	}
	if cut <= 0 {
		return s[:maxLen]
	}
	return string(b[:cut])
}

// UniqueIdents normalizes a header row into distinct identifiers:
// empty names become col_<position> and duplicates get a numeric suffix.
// The result aligns with the input order.
func UniqueIdents(headers []string) []string {
	out := make([]string, 0, len(headers))
	seen := make(map[string]struct{}, len(headers))

	for i, h := range headers {
		name := TruncateIdent(NormalizeIdent(h))
		if name == "" {
			name = fmt.Sprintf("col_%d", i+1)
		}
		if _, dup := seen[name]; dup {
			for n := 2; ; n++ {
				cand := fmt.Sprintf("%s_%d", name, n)
				if _, taken := seen[cand]; !taken {
					name = cand
					break
				}
			}
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
