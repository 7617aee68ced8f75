package nlp

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/soundprediction/notegraph/pkg/alert"
	"github.com/soundprediction/notegraph/pkg/config"
)

// ProviderNone disables the language model.
const ProviderNone = "none"

// Options assembles a client chain.
type Options struct {
	Model          config.NLPModelConfig
	CircuitBreaker config.CircuitBreakerConfig
	Alerter        alert.Alerter
	// UsageDir enables token tracking when set.
	UsageDir string
	Logger   *slog.Logger
}

// NewClientFromConfig builds OpenAIClient wrapped with retry, circuit
// breaker and token tracking as configured. It returns nil for the none
// provider.
func NewClientFromConfig(opts Options) (Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := opts.Model

	switch strings.ToLower(m.Provider) {
	case "", ProviderNone:
		return nil, nil
	case "openai":
	default:
		return nil, fmt.Errorf("%w: unsupported provider %q", ErrInvalidModel, m.Provider)
	}

	base, err := NewOpenAIClient(&LLMConfig{
		APIKey:      m.APIKey,
		Model:       m.Model,
		BaseURL:     m.BaseURL,
		Temperature: m.Temperature,
		MaxTokens:   m.MaxTokens,
		MaxRetries:  m.MaxRetries,
		Timeout:     m.Timeout,
	})
	if err != nil {
		return nil, err
	}

	var client Client = base
	retryConfig := DefaultRetryConfig()
	retryConfig.MaxRetries = m.MaxRetries
	client = NewRetryClient(client, retryConfig, logger)

	if opts.CircuitBreaker.Enabled {
		client = NewCircuitBreakerClient(client, opts.CircuitBreaker, opts.Alerter, "llm-"+base.Model(), logger)
	}

	if opts.UsageDir != "" {
		tracker, err := NewTokenTracker(filepath.Join(opts.UsageDir, "tokens"), 0)
		if err != nil {
			return nil, err
		}
		client = NewTokenTrackingClient(client, tracker, logger)
	}
	return client, nil
}
