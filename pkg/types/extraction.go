package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultRelation is used for relationships that arrive without a type.
const DefaultRelation = "related_to"

// Concept is a candidate entity found by one extraction. ID is only
// meaningful within that extraction.
type Concept struct {
	ID              string   `json:"id"`
	Label           string   `json:"label"`
	Description     string   `json:"description,omitempty"`
	KnowledgeGaps   []string `json:"knowledge_gaps,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// Relationship links two concepts of the same extraction by their local ids.
type Relationship struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Extraction is the typed result of analysing one note.
type Extraction struct {
	MainTopic     string         `json:"main_topic,omitempty"`
	Summary       string         `json:"summary,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	Reasoning     string         `json:"reasoning,omitempty"`
	Concepts      []Concept      `json:"concepts"`
	Relationships []Relationship `json:"relationships"`
}

// IsEmpty reports whether the extraction carries no concepts.
func (e Extraction) IsEmpty() bool {
	return len(e.Concepts) == 0
}

// Sanitize trims fields, drops concepts without an id or label and drops
// repeated concept ids (the first occurrence wins). The returned warnings
// describe every dropped entry.
func (e Extraction) Sanitize() (Extraction, []string) {
	var warnings []string
	out := Extraction{
		MainTopic:     strings.TrimSpace(e.MainTopic),
		Summary:       strings.TrimSpace(e.Summary),
		Tags:          cleanStrings(e.Tags),
		Reasoning:     e.Reasoning,
		Concepts:      make([]Concept, 0, len(e.Concepts)),
		Relationships: make([]Relationship, 0, len(e.Relationships)),
	}

	seen := make(map[string]struct{}, len(e.Concepts))
	for i, c := range e.Concepts {
		c.ID = strings.TrimSpace(c.ID)
		c.Label = strings.TrimSpace(c.Label)
		switch {
		case c.ID == "":
			warnings = append(warnings, fmt.Sprintf("concept %d has no id", i))
			continue
		case c.Label == "":
			warnings = append(warnings, fmt.Sprintf("concept %q has no label", c.ID))
			continue
		}
		if _, dup := seen[c.ID]; dup {
			warnings = append(warnings, fmt.Sprintf("concept id %q repeated", c.ID))
			continue
		}
		seen[c.ID] = struct{}{}
		c.Description = strings.TrimSpace(c.Description)
		c.KnowledgeGaps = cleanStrings(c.KnowledgeGaps)
		c.Recommendations = cleanStrings(c.Recommendations)
		c.Tags = cleanStrings(c.Tags)
		out.Concepts = append(out.Concepts, c)
	}

	for _, r := range e.Relationships {
		r.Source = strings.TrimSpace(r.Source)
		r.Target = strings.TrimSpace(r.Target)
		r.Type = strings.TrimSpace(r.Type)
		if r.Type == "" {
			r.Type = DefaultRelation
		}
		out.Relationships = append(out.Relationships, r)
	}

	return out, warnings
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// DecodeExtraction decodes a JSON extraction. Missing or mistyped fields
// default to their zero value; only input that is not a JSON object at all
// returns ErrExtractionMalformed.
func DecodeExtraction(data []byte) (Extraction, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(data), &raw); err != nil {
		return Extraction{Concepts: []Concept{}, Relationships: []Relationship{}},
			fmt.Errorf("%w: %v", ErrExtractionMalformed, err)
	}
	return ExtractionFromFields(raw), nil
}

// ExtractionFromFields builds an extraction from an already split JSON object.
func ExtractionFromFields(raw map[string]json.RawMessage) Extraction {
	ex := Extraction{
		MainTopic:     rawString(raw["main_topic"]),
		Summary:       rawString(raw["summary"]),
		Tags:          rawStrings(raw["tags"]),
		Reasoning:     rawString(raw["reasoning"]),
		Concepts:      []Concept{},
		Relationships: []Relationship{},
	}

	var concepts []map[string]json.RawMessage
	if err := json.Unmarshal(raw["concepts"], &concepts); err == nil {
		for _, c := range concepts {
			ex.Concepts = append(ex.Concepts, Concept{
				ID:              rawString(c["id"]),
				Label:           firstNonEmpty(rawString(c["label"]), rawString(c["name"])),
				Description:     rawString(c["description"]),
				KnowledgeGaps:   rawStrings(c["knowledge_gaps"]),
				Recommendations: rawStrings(c["recommendations"]),
				Tags:            rawStrings(c["tags"]),
			})
		}
	}

	var relationships []map[string]json.RawMessage
	if err := json.Unmarshal(raw["relationships"], &relationships); err == nil {
		for _, r := range relationships {
			ex.Relationships = append(ex.Relationships, Relationship{
				Source:      rawString(r["source"]),
				Target:      rawString(r["target"]),
				Type:        firstNonEmpty(rawString(r["type"]), rawString(r["relation"])),
				Description: rawString(r["description"]),
			})
		}
	}

	return ex
}

// rawString accepts a JSON string or number and returns "" for anything else.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f json.Number
	if err := json.Unmarshal(raw, &f); err == nil {
		if i, err := strconv.ParseInt(f.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return f.String()
	}
	return ""
}

// rawStrings accepts a JSON array of strings or a single string.
func rawStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s := rawString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := rawString(raw); s != "" {
		return []string{s}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
