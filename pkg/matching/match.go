package matching

import (
	"log/slog"

	"github.com/soundprediction/notegraph/pkg/normalize"
	"github.com/soundprediction/notegraph/pkg/types"
)

// Match is the best existing node found for a label.
type Match struct {
	NodeID string
	Label  string
	Score  float64
}

// FindMatchingNode scans nodes in order and returns the highest scoring one
// if its score reaches threshold. On equal scores the first node wins.
// When ok is false the best candidate below threshold is still returned.
func FindMatchingNode(label string, nodes []types.Node, threshold float64) (Match, bool) {
	best, ok := bestCandidate(label, nodes)
	if !ok || best.Score < threshold {
		return best, false
	}
	return best, true
}

func bestCandidate(label string, nodes []types.Node) (Match, bool) {
	normalized := normalize.Label(label)
	if normalized == "" {
		return Match{}, false
	}

	var best Match
	found := false
	for _, node := range nodes {
		score := scoreAgainst(normalized, node.Label)
		if score > best.Score {
			best = Match{NodeID: node.ID, Label: node.Label, Score: score}
			found = true
		}
	}
	return best, found
}

func scoreAgainst(normalized, candidate string) float64 {
	other := normalize.Label(candidate)
	switch {
	case other == "":
		return 0
	case normalized == other:
		return 1.0
	default:
		return scoreNormalized(normalized, other)
	}
}

// Matcher wraps FindMatchingNode with a threshold and diagnostic logging.
type Matcher struct {
	threshold float64
	logger    *slog.Logger
}

// NewMatcher creates a matcher. A threshold outside (0, 1] falls back to
// DefaultThreshold.
func NewMatcher(threshold float64, logger *slog.Logger) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{threshold: threshold, logger: logger}
}

// Threshold returns the configured threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Find returns the node label refers to, if any.
func (m *Matcher) Find(label string, nodes []types.Node) (Match, bool) {
	best, ok := FindMatchingNode(label, nodes, m.threshold)
	if ok {
		m.logger.Debug("Found matching node",
			"label", label,
			"match", best.Label,
			"node_id", best.NodeID,
			"score", best.Score)
		return best, true
	}
	if best.NodeID != "" {
		m.logger.Debug("No node above threshold",
			"label", label,
			"best", best.Label,
			"score", best.Score,
			"threshold", m.threshold)
	}
	return Match{}, false
}
