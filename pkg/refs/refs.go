package refs

import (
	"regexp"
	"strings"
)

// Cross-references in regulatory text come in many surface forms
// ("annex K", "AnnexK", "Annex  K", "Drawing No.4") and have to be
// reduced to one canonical spelling before they can be matched against
// index metadata. The pattern table is kept in one place so it can be
// tested without touching any index.
var refPattern = regexp.MustCompile(
	`(?i)\b(?:annex|appendix)\s+[a-z\d]+\b` +
		`|\bdrawing\s+no\.?\s*\d+\b` +
		`|\bfigure\s+\d+(?:\.\d+)*\b`,
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	noDigitPattern    = regexp.MustCompile(`(\bno)\s*(\d)`)
)

// Normalize reduces a raw reference to its canonical form: lowercase,
// internal whitespace collapsed, trimmed, and exactly one space between a
// trailing "no" token and a following digit. Normalize is idempotent.
func Normalize(label string) string {
	label = strings.ToLower(strings.ReplaceAll(label, "\n", " "))
	label = whitespacePattern.ReplaceAllString(strings.TrimSpace(label), " ")
	label = noDigitPattern.ReplaceAllString(label, "$1 $2")
	return label
}

// Extract returns the deduplicated set of normalized cross-references
// found in text. No matches is a normal outcome: the result is empty,
// never an error.
func Extract(text string) []string {
	matches := refPattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		norm := Normalize(m)
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}
