package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	jsonrepair "github.com/kaptinlin/jsonrepair"

	"github.com/soundprediction/notegraph/pkg/cache"
	"github.com/soundprediction/notegraph/pkg/nlp"
	"github.com/soundprediction/notegraph/pkg/types"
)

const systemPrompt = `You are an expert in text analysis and knowledge graph construction.
Analyse the user's note and return a single JSON object, with no other text, with these fields:
- "main_topic": the main topic of the note as one short phrase
- "summary": one or two sentences
- "tags": 3 to 5 categorisation tags
- "reasoning": one sentence explaining the analysis
- "concepts": a list of objects {"id", "label", "description", "knowledge_gaps", "recommendations", "tags"}
- "relationships": a list of objects {"source", "target", "type", "description"} where source and target are concept ids

Rules:
- Concepts are nouns and key terms naming real entities: substances, methods, objects, processes.
- Never use function words or generic words such as "problem", "use" or "majority" as concepts.
- Write labels in the language of the note.
- "knowledge_gaps" lists aspects of the concept the note mentions but does not explain.
- "recommendations" lists what the author should study next about the concept.
- Relationship types are short snake_case verbs such as "part_of", "causes", "treats" or "related_to".`

var (
	fenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	thinkRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
)

// LLMExtractor asks a language model for an extraction.
type LLMExtractor struct {
	client nlp.Client
	model  string
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// LLMOption configures an LLMExtractor.
type LLMOption func(*LLMExtractor)

// WithCache stores successful extractions in c for ttl.
func WithCache(c cache.Cache, ttl time.Duration) LLMOption {
	return func(e *LLMExtractor) {
		e.cache = c
		e.ttl = ttl
	}
}

// NewLLMExtractor creates an extractor backed by client. model is recorded
// as ModelUsed and is part of the cache key.
func NewLLMExtractor(client nlp.Client, model string, logger *slog.Logger, opts ...LLMOption) *LLMExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &LLMExtractor{client: client, model: model, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract implements Extractor.
func (e *LLMExtractor) Extract(ctx context.Context, text string) (*Result, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}

	key := cache.Key("extraction", e.model, text)
	if e.cache != nil {
		var ex types.Extraction
		err := cache.GetJSON(e.cache, key, &ex)
		switch {
		case err == nil:
			e.logger.DebugContext(ctx, "Extraction cache hit", "model", e.model)
			return &Result{Extraction: ex, ModelUsed: e.model, Cached: true}, nil
		case !errors.Is(err, cache.ErrKeyNotFound):
			e.logger.WarnContext(ctx, "Extraction cache read failed", "error", err)
		}
	}

	resp, err := e.client.ChatWithStructuredOutput(ctx, []types.Message{
		nlp.NewSystemMessage(systemPrompt),
		nlp.NewUserMessage("Note:\n" + text),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("llm extraction failed: %w", err)
	}

	ex, err := ParseResponse(resp.Content)
	if err != nil {
		return nil, err
	}

	model := e.model
	if resp.Model != "" {
		model = resp.Model
	}
	if e.cache != nil && !ex.IsEmpty() {
		if err := cache.SetJSON(e.cache, key, ex, e.ttl); err != nil {
			e.logger.WarnContext(ctx, "Extraction cache write failed", "error", err)
		}
	}
	return &Result{Extraction: ex, ModelUsed: model}, nil
}

// ParseResponse decodes a model reply. It strips reasoning blocks and code
// fences, repairs broken JSON and accepts both the flat concept list and
// the hierarchical main_concepts shape.
func ParseResponse(content string) (types.Extraction, error) {
	content = thinkRe.ReplaceAllString(content, "")
	content = strings.TrimSpace(content)
	if m := fenceRe.FindStringSubmatch(content); m != nil {
		content = m[1]
	}

	repaired, err := jsonrepair.JSONRepair(content)
	if err != nil {
		return types.Extraction{}, fmt.Errorf("%w: %v", types.ErrExtractionMalformed, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
		return types.Extraction{}, fmt.Errorf("%w: %v", types.ErrExtractionMalformed, err)
	}
	if _, flat := raw["concepts"]; !flat {
		if _, ok := raw["main_concepts"]; ok {
			return fromHierarchy(raw), nil
		}
	}
	return types.ExtractionFromFields(raw), nil
}

// fromHierarchy converts {main_topic, main_concepts, concept_hierarchy,
// concept_descriptions}. The topic contains each main concept and each main
// concept is part_of-linked to its related concepts.
func fromHierarchy(raw map[string]json.RawMessage) types.Extraction {
	base := types.ExtractionFromFields(raw)

	var mainConcepts []string
	_ = json.Unmarshal(raw["main_concepts"], &mainConcepts)
	var hierarchy map[string][]string
	_ = json.Unmarshal(raw["concept_hierarchy"], &hierarchy)
	var descriptions map[string]string
	_ = json.Unmarshal(raw["concept_descriptions"], &descriptions)
	var gaps []string
	_ = json.Unmarshal(raw["knowledge_gaps"], &gaps)

	ex := types.Extraction{
		MainTopic:     base.MainTopic,
		Summary:       base.Summary,
		Tags:          base.Tags,
		Reasoning:     base.Reasoning,
		Concepts:      []types.Concept{},
		Relationships: []types.Relationship{},
	}

	ids := make(map[string]string)
	add := func(label, description string) string {
		label = strings.TrimSpace(label)
		if label == "" {
			return ""
		}
		k := strings.ToLower(label)
		if id, ok := ids[k]; ok {
			return id
		}
		id := "c" + strconv.Itoa(len(ex.Concepts))
		ids[k] = id
		ex.Concepts = append(ex.Concepts, types.Concept{ID: id, Label: label, Description: description})
		return id
	}

	topicID := add(base.MainTopic, base.Summary)
	if topicID != "" && len(gaps) > 0 {
		ex.Concepts[0].KnowledgeGaps = gaps
	}
	for _, main := range mainConcepts {
		mainID := add(main, descriptions[main])
		if mainID == "" {
			continue
		}
		if topicID != "" && mainID != topicID {
			ex.Relationships = append(ex.Relationships, types.Relationship{Source: topicID, Target: mainID, Type: "contains"})
		}
		for _, related := range hierarchy[main] {
			relatedID := add(related, descriptions[related])
			if relatedID == "" || relatedID == mainID {
				continue
			}
			ex.Relationships = append(ex.Relationships, types.Relationship{Source: mainID, Target: relatedID, Type: "part_of"})
		}
	}
	return ex
}
