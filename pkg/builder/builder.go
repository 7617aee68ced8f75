// Package builder turns one extraction into an upsert plan for a user's
// graph: it picks the central concept, assigns levels, resolves every
// concept to a new or existing node and translates relationships to edges.
package builder

import (
	"log/slog"
	"time"

	"github.com/soundprediction/notegraph/pkg/matching"
	"github.com/soundprediction/notegraph/pkg/reconcile"
	"github.com/soundprediction/notegraph/pkg/types"
)

// Builder produces upsert plans. It holds no per-call state and is safe for
// concurrent use.
type Builder struct {
	matcher *matching.Matcher
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock replaces time.Now for node timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		b.now = now
	}
}

// New creates a builder. A nil matcher uses matching.DefaultThreshold.
func New(matcher *matching.Matcher, logger *slog.Logger, opts ...Option) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if matcher == nil {
		matcher = matching.NewMatcher(matching.DefaultThreshold, logger)
	}
	b := &Builder{
		matcher: matcher,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// plannedNode is the evolving state of one node id within a single plan.
type plannedNode struct {
	node    types.Node
	isNew   bool
	central bool
}

// Plan resolves ex against the user's existing nodes. The extraction is
// expected to be sanitized; existing is not modified.
//
// The returned plan has one NodePlan per concept in input order and one edge
// per relationship whose endpoints both resolved, also in input order.
// Several concepts may resolve to the same node; each of their NodePlans
// then carries the node's final planned state.
func (b *Builder) Plan(userID string, ex types.Extraction, existing []types.Node) types.Plan {
	now := b.now().UTC()
	central := CentralConcept(ex)
	levels := AssignLevels(ex, central)

	existingByID := make(map[string]types.Node, len(existing))
	candidates := make([]types.Node, 0, len(existing)+len(ex.Concepts))
	for _, n := range existing {
		existingByID[n.ID] = n
		candidates = append(candidates, n)
	}

	planned := make(map[string]*plannedNode)
	localToNode := make(map[string]string, len(ex.Concepts))
	conceptNodes := make([]string, 0, len(ex.Concepts))

	for _, c := range ex.Concepts {
		stableID := StableID(c.Label, userID)
		incoming := reconcile.FromConcept(c, ex.Tags)
		level := levels[c.ID]

		nodeID := b.resolve(c.Label, stableID, candidates, planned, existingByID)

		p, ok := planned[nodeID]
		switch {
		case ok:
			merged := reconcile.Merge(reconcile.FromNode(p.node), incoming)
			p.node = reconcile.Apply(p.node, merged)
			if level < p.node.Level {
				p.node.Level = level
			}
		case nodeID != "":
			stored := existingByID[nodeID]
			merged := reconcile.Merge(reconcile.FromNode(stored), incoming)
			node := reconcile.Apply(stored, merged)
			node.UserID = userID
			if level < node.Level {
				node.Level = level
			}
			p = &plannedNode{node: node}
			planned[nodeID] = p
		default:
			nodeID = stableID
			node := reconcile.Apply(types.Node{
				ID:        stableID,
				UserID:    userID,
				Label:     c.Label,
				Level:     level,
				CreatedAt: now,
			}, incoming)
			p = &plannedNode{node: node, isNew: true}
			planned[nodeID] = p
			candidates = append(candidates, node)
		}

		if c.ID == central {
			p.node.Level = 0
			p.central = true
		}
		p.node.UpdatedAt = now

		localToNode[c.ID] = nodeID
		conceptNodes = append(conceptNodes, nodeID)
	}

	plan := types.Plan{
		CentralID: localToNode[central],
		Nodes:     make([]types.NodePlan, 0, len(conceptNodes)),
		Edges:     make([]types.Edge, 0, len(ex.Relationships)),
	}
	for i, nodeID := range conceptNodes {
		p := planned[nodeID]
		plan.Nodes = append(plan.Nodes, types.NodePlan{
			ConceptID: ex.Concepts[i].ID,
			Node:      p.node,
			IsNew:     p.isNew,
			Central:   p.central,
		})
	}

	for _, r := range ex.Relationships {
		source, srcOK := localToNode[r.Source]
		target, dstOK := localToNode[r.Target]
		if !srcOK || !dstOK {
			b.logger.Warn("Dropping relationship with unresolved endpoint",
				"user_id", userID,
				"source", r.Source,
				"target", r.Target,
				"type", r.Type)
			plan.Dropped = append(plan.Dropped, r)
			continue
		}
		relation := r.Type
		if relation == "" {
			relation = types.DefaultRelation
		}
		plan.Edges = append(plan.Edges, types.Edge{
			UserID:      userID,
			Source:      source,
			Target:      target,
			Relation:    relation,
			Description: r.Description,
		})
	}

	return plan
}

// resolve returns the id of the node label refers to, or "" for a new node.
// Fuzzy matching runs first; an exact stable id match is the fallback.
func (b *Builder) resolve(label, stableID string, candidates []types.Node, planned map[string]*plannedNode, existing map[string]types.Node) string {
	if m, ok := b.matcher.Find(label, candidates); ok {
		return m.NodeID
	}
	if _, ok := planned[stableID]; ok {
		return stableID
	}
	if _, ok := existing[stableID]; ok {
		return stableID
	}
	return ""
}
