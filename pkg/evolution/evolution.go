// Package evolution promotes nodes whose connectivity has grown after an
// extraction has been written.
package evolution

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/soundprediction/notegraph/pkg/types"
)

// Policy decides which nodes are promoted to level 0.
type Policy struct {
	// PromoteLevel is the only level considered for promotion.
	PromoteLevel int
	// MinTotal is the number of incoming plus outgoing edges that triggers promotion.
	MinTotal int
	// MinOutgoing is the number of outgoing edges that triggers promotion.
	MinOutgoing int
}

// DefaultPolicy promotes level-1 nodes with at least five edges or at least
// three outgoing edges.
func DefaultPolicy() Policy {
	return Policy{
		PromoteLevel: 1,
		MinTotal:     5,
		MinOutgoing:  3,
	}
}

// Validate checks the policy values.
func (p Policy) Validate() error {
	if p.PromoteLevel < 1 {
		return fmt.Errorf("promote level must be at least 1, got %d", p.PromoteLevel)
	}
	if p.MinTotal < 1 || p.MinOutgoing < 1 {
		return fmt.Errorf("edge thresholds must be positive, got total=%d outgoing=%d", p.MinTotal, p.MinOutgoing)
	}
	return nil
}

// ShouldPromote reports whether a node at level with the given edge counts
// is promoted.
func (p Policy) ShouldPromote(level, total, outgoing int) bool {
	if level != p.PromoteLevel {
		return false
	}
	return total >= p.MinTotal || outgoing >= p.MinOutgoing
}

// Store is the part of the graph store the pass needs.
type Store interface {
	CountEdges(ctx context.Context, userID, nodeID string) (total, outgoing int, err error)
	UpsertNode(ctx context.Context, node types.Node) error
}

// Pass re-levels nodes touched by an extraction.
type Pass struct {
	store       Store
	policy      Policy
	concurrency int
	logger      *slog.Logger
}

// NewPass creates a pass. concurrency bounds the parallel edge counts and
// defaults to 4.
func NewPass(store Store, policy Policy, concurrency int, logger *slog.Logger) *Pass {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pass{
		store:       store,
		policy:      policy,
		concurrency: concurrency,
		logger:      logger,
	}
}

type counts struct {
	total    int
	outgoing int
}

// Run counts the edges of every distinct node in nodes and promotes the ones
// the policy selects. It returns nodes with promoted levels applied, in the
// same order, and the promoted ids. Any store error aborts the pass.
func (p *Pass) Run(ctx context.Context, userID string, nodes []types.Node) ([]types.Node, []string, error) {
	var candidates []types.Node
	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		if n.Level == p.policy.PromoteLevel {
			candidates = append(candidates, n)
		}
	}

	results := make([]counts, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, n := range candidates {
		g.Go(func() error {
			total, outgoing, err := p.store.CountEdges(gctx, userID, n.ID)
			if err != nil {
				return err
			}
			results[i] = counts{total: total, outgoing: outgoing}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	promoted := make(map[string]struct{})
	var promotedIDs []string
	for i, n := range candidates {
		c := results[i]
		if !p.policy.ShouldPromote(n.Level, c.total, c.outgoing) {
			continue
		}
		n.Level = 0
		if err := p.store.UpsertNode(ctx, n); err != nil {
			return nil, nil, err
		}
		p.logger.Info("Promoted node to central level",
			"user_id", userID,
			"node_id", n.ID,
			"label", n.Label,
			"total_edges", c.total,
			"outgoing_edges", c.outgoing)
		promoted[n.ID] = struct{}{}
		promotedIDs = append(promotedIDs, n.ID)
	}

	out := make([]types.Node, len(nodes))
	for i, n := range nodes {
		if _, ok := promoted[n.ID]; ok {
			n.Level = 0
		}
		out[i] = n
	}
	return out, promotedIDs, nil
}
