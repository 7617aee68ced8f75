// Package normalize canonicalizes concept labels for comparison and for
// stable id derivation.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// hyphen, non-breaking hyphen, figure dash, en dash, em dash, horizontal bar, minus sign
	dashReplacer = strings.NewReplacer(
		"‐", "-",
		"‑", "-",
		"‒", "-",
		"–", "-",
		"—", "-",
		"―", "-",
		"−", "-",
	)

	// RE2 \s is ASCII only, so unicode separators are listed explicitly.
	whitespaceRun   = regexp.MustCompile(`[\s\p{Z}]+`)
	spacedHyphen    = regexp.MustCompile(`[\s\p{Z}]*-[\s\p{Z}]*`)
	hyphenRun       = regexp.MustCompile(`-+`)
	nonIDCharacters = regexp.MustCompile(`[^\p{L}\p{N}_\s\p{Z}-]`)
)

// Label returns the comparison form of a label: NFKC, lower case, trimmed,
// with every dash variant folded to "-" and whitespace collapsed.
func Label(label string) string {
	s := norm.NFKC.String(label)
	s = strings.ToLower(s)
	s = strings.TrimSpace(s)
	s = dashReplacer.Replace(s)
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = spacedHyphen.ReplaceAllString(s, "-")
	s = hyphenRun.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ForID returns the id-safe form of a label: the comparison form with only
// letters, digits, underscores, whitespace and hyphens kept, and whitespace
// runs replaced by a single hyphen.
func ForID(label string) string {
	s := Label(label)
	s = nonIDCharacters.ReplaceAllString(s, "")
	return whitespaceRun.ReplaceAllString(s, "-")
}
