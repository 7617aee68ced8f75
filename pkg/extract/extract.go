// Package extract turns note text into typed extractions.
//
// LLMExtractor asks a language model for concepts and relationships.
// KeywordExtractor is a deterministic frequency-based fallback that needs no
// model. FallbackExtractor chains the two.
package extract

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/soundprediction/notegraph/pkg/types"
)

// MinTextLength is the shortest text, in runes, worth analysing.
const MinTextLength = 10

// Result is an extraction together with its provenance.
type Result struct {
	Extraction types.Extraction
	ModelUsed  string
	Cached     bool
}

// Extractor produces an extraction from free text.
type Extractor interface {
	Extract(ctx context.Context, text string) (*Result, error)
}

// checkText rejects empty and too short text.
func checkText(text string) error {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < MinTextLength {
		return types.ErrEmptyText
	}
	return nil
}

// truncate cuts s to n runes, appending suffix when anything was cut.
func truncate(s string, n int, suffix string) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos] + suffix
		}
		i++
	}
	return s
}
