package notegraph

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/soundprediction/notegraph/pkg/extract"
	"github.com/soundprediction/notegraph/pkg/safety"
	"github.com/soundprediction/notegraph/pkg/types"
)

// Analyze implements NoteGraph.
//
// With the injection filter enabled, flagged text is sanitized first; text
// that is too short to analyse after sanitizing is rejected with
// types.ErrPromptInjection.
func (c *Client) Analyze(ctx context.Context, userID, text string) (analysis *types.AnalysisResult, err error) {
	if userID == "" {
		return nil, types.ErrEmptyUserID
	}
	if strings.TrimSpace(text) == "" {
		return nil, types.ErrEmptyText
	}
	if c.extractor == nil {
		return nil, ErrNoExtractor
	}

	model := "none"
	ctx, span := tracer.Start(ctx, "Client.Analyze",
		trace.WithAttributes(
			attribute.String("user_id", userID),
			attribute.Int("text_length", utf8.RuneCountInString(text)),
		),
	)
	defer func() {
		analyses.WithLabelValues(model, statusLabel(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c.options.InjectionFilter {
		if flagged, fragments := safety.Detect(text); flagged {
			injectionsDetected.Inc()
			c.logger.WarnContext(ctx, "Prompt injection detected, sanitizing text",
				"user_id", userID,
				"fragments", fragments)
			text = safety.Sanitize(text)
			if utf8.RuneCountInString(strings.TrimSpace(text)) < extract.MinTextLength {
				return nil, types.ErrPromptInjection
			}
		}
	}

	res, err := c.extractor.Extract(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}
	model = res.ModelUsed
	span.SetAttributes(
		attribute.String("model", res.ModelUsed),
		attribute.Bool("cached", res.Cached),
	)

	graph, err := c.Materialize(ctx, userID, res.Extraction)
	if err != nil {
		return nil, err
	}

	return &types.AnalysisResult{
		MainTopic: res.Extraction.MainTopic,
		Summary:   res.Extraction.Summary,
		Tags:      types.StringSet(res.Extraction.Tags),
		ModelUsed: res.ModelUsed,
		Reasoning: res.Extraction.Reasoning,
		Graph:     graph,
	}, nil
}
