package extract

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/soundprediction/notegraph/pkg/types"
)

// KeywordModel is the ModelUsed value of keyword extractions.
const KeywordModel = "nlp-fallback"

var wordRe = regexp.MustCompile(`[\p{L}\p{N}_-]{3,}`)

var stopWords = map[string]struct{}{
	"and": {}, "the": {}, "for": {}, "with": {}, "this": {}, "that": {},
	"from": {}, "have": {}, "your": {}, "are": {}, "was": {}, "were": {},
	"что": {}, "это": {}, "для": {}, "как": {}, "или": {}, "при": {}, "когда": {},
	"проблема": {}, "использование": {}, "большинство": {}, "нужен": {},
	"нужно": {}, "нужны": {}, "использования": {}, "проведения": {},
}

// tagRules map substrings of the text to tags.
var tagRules = []struct {
	tag     string
	needles []string
}{
	{"медицина", []string{"анестезия", "кетамин", "ксилазин", "лекарство", "препарат", "медицин"}},
	{"лабораторные_животные", []string{"мышь", "мыши", "животное", "лаборатория", "лабораторн"}},
	{"химия", []string{"химия", "вещество", "соединение", "химическ"}},
	{"биология", []string{"биология", "биологическ"}},
	{"регулирование", []string{"регулирование", "регулируются", "страны", "закон"}},
}

// KeywordExtractor builds an extraction from word frequencies.
type KeywordExtractor struct {
	maxKeywords int
	defaultTag  string
}

// NewKeywordExtractor creates a KeywordExtractor. Zero values take the
// defaults of 12 keywords and the tag "общее".
func NewKeywordExtractor(maxKeywords int, defaultTag string) *KeywordExtractor {
	if maxKeywords <= 0 {
		maxKeywords = 12
	}
	if defaultTag == "" {
		defaultTag = "общее"
	}
	return &KeywordExtractor{maxKeywords: maxKeywords, defaultTag: defaultTag}
}

// Keywords returns up to max lowercased keywords ordered by frequency, then
// lexically.
func Keywords(text string, max int) []string {
	freq := make(map[string]int)
	for _, w := range wordRe.FindAllString(text, -1) {
		w = strings.ToLower(w)
		if _, stop := stopWords[w]; stop {
			continue
		}
		if len([]rune(w)) <= 3 {
			continue
		}
		freq[w]++
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > max {
		words = words[:max]
	}
	return words
}

// Tags returns the tags whose rules match text, or the default tag.
func (k *KeywordExtractor) Tags(text string) []string {
	lower := strings.ToLower(text)
	var tags []string
	for _, rule := range tagRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				tags = append(tags, rule.tag)
				break
			}
		}
	}
	if len(tags) == 0 {
		tags = []string{k.defaultTag}
	}
	return tags
}

// Extract implements Extractor. The most frequent keyword is the topic
// concept and links to every other keyword.
func (k *KeywordExtractor) Extract(ctx context.Context, text string) (*Result, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	summary := truncate(text, 100, "...")

	ex := types.Extraction{
		MainTopic:     truncate(summary, 50, ""),
		Summary:       summary,
		Tags:          k.Tags(text),
		Reasoning:     "keyword frequency analysis",
		Concepts:      []types.Concept{},
		Relationships: []types.Relationship{},
	}

	keywords := Keywords(text, k.maxKeywords)
	for i, kw := range keywords {
		ex.Concepts = append(ex.Concepts, types.Concept{
			ID:          kw,
			Label:       kw,
			Description: "Концепция: " + kw,
		})
		if i > 0 {
			ex.Relationships = append(ex.Relationships, types.Relationship{
				Source: keywords[0],
				Target: kw,
				Type:   types.DefaultRelation,
			})
		}
	}
	return &Result{Extraction: ex, ModelUsed: KeywordModel}, nil
}
