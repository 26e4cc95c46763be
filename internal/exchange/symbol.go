package exchange

import "strings"

// normalizeSymbol upper-cases alias and strips everything but ASCII letters and digits.
func normalizeSymbol(alias string) string {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(alias))
	for _, r := range alias {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if r >= 'a' && r <= 'z' {
				r -= 32
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}
