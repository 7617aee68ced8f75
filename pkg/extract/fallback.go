package extract

import (
	"context"
	"errors"
	"log/slog"

	"github.com/soundprediction/notegraph/pkg/types"
)

// FallbackExtractor uses primary and falls back to secondary when primary
// fails or finds no concepts.
type FallbackExtractor struct {
	primary   Extractor
	secondary Extractor
	logger    *slog.Logger
}

// NewFallbackExtractor creates the chain. A nil primary always uses secondary.
func NewFallbackExtractor(primary, secondary Extractor, logger *slog.Logger) *FallbackExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackExtractor{primary: primary, secondary: secondary, logger: logger}
}

// Extract implements Extractor.
func (f *FallbackExtractor) Extract(ctx context.Context, text string) (*Result, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}
	if f.primary != nil {
		res, err := f.primary.Extract(ctx, text)
		switch {
		case err == nil && !res.Extraction.IsEmpty():
			return res, nil
		case err == nil:
			f.logger.WarnContext(ctx, "Primary extractor found no concepts, falling back")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		default:
			f.logger.WarnContext(ctx, "Primary extractor failed, falling back", "error", err)
		}
	}
	return f.secondary.Extract(ctx, text)
}

var _ Extractor = (*FallbackExtractor)(nil)
var _ Extractor = (*LLMExtractor)(nil)
var _ Extractor = (*KeywordExtractor)(nil)

// IsMalformed reports whether err came from an unusable model reply.
func IsMalformed(err error) bool {
	return errors.Is(err, types.ErrExtractionMalformed)
}
