package notegraph

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/soundprediction/notegraph/pkg/normalize"
	"github.com/soundprediction/notegraph/pkg/types"
)

// Materialize implements NoteGraph.
//
// The user's nodes are read, the extraction is planned against them, every
// distinct planned node and every resolved edge is upserted, and the
// evolution pass runs over the touched nodes. The returned nodes follow the
// input concept order and carry the final persisted state. Work for one user
// is serialized within the process.
func (c *Client) Materialize(ctx context.Context, userID string, ex types.Extraction) (result *types.Result, err error) {
	if userID == "" {
		return nil, types.ErrEmptyUserID
	}

	start := time.Now()
	runID := uuid.NewString()
	ctx = context.WithValue(ctx, types.ContextKeyRunID, runID)
	ctx, span := tracer.Start(ctx, "Client.Materialize",
		trace.WithAttributes(
			attribute.String("user_id", userID),
			attribute.String("run_id", runID),
			attribute.Int("concepts", len(ex.Concepts)),
			attribute.Int("relationships", len(ex.Relationships)),
		),
	)
	defer func() {
		materializeDuration.WithLabelValues(statusLabel(err)).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	ex = c.sanitize(ctx, userID, ex)
	if ex.IsEmpty() {
		c.logger.InfoContext(ctx, "Extraction has no concepts, nothing to materialize",
			"user_id", userID,
			"run_id", runID)
		return &types.Result{RunID: runID, Nodes: []types.Node{}, Edges: []types.Edge{}}, nil
	}

	unlock := c.locks.lock(userID)
	defer unlock()

	existing, err := c.store.GetUserNodes(ctx, userID)
	if err != nil {
		return nil, err
	}

	plan := c.builder.Plan(userID, ex, existing)

	written := make(map[string]struct{}, len(plan.Nodes))
	for _, np := range plan.Nodes {
		if _, ok := written[np.Node.ID]; ok {
			continue
		}
		if err := c.store.UpsertNode(ctx, np.Node); err != nil {
			return nil, err
		}
		written[np.Node.ID] = struct{}{}
		if np.IsNew {
			nodesWritten.WithLabelValues("created").Inc()
		} else {
			nodesWritten.WithLabelValues("merged").Inc()
		}
	}

	for _, e := range plan.Edges {
		if err := c.store.UpsertEdge(ctx, e); err != nil {
			return nil, err
		}
	}
	edgesWritten.Add(float64(len(plan.Edges)))
	droppedRelationships.Add(float64(len(plan.Dropped)))

	nodes := make([]types.Node, len(plan.Nodes))
	for i, np := range plan.Nodes {
		nodes[i] = np.Node
	}
	nodes, promoted, err := c.evolution.Run(ctx, userID, nodes)
	if err != nil {
		return nil, err
	}
	promotions.Add(float64(len(promoted)))

	span.SetAttributes(
		attribute.Int("nodes_written", len(written)),
		attribute.Int("edges_written", len(plan.Edges)),
		attribute.Int("promoted", len(promoted)),
	)
	c.logger.InfoContext(ctx, "Materialized extraction",
		"user_id", userID,
		"run_id", runID,
		"central_id", plan.CentralID,
		"nodes", len(written),
		"edges", len(plan.Edges),
		"dropped_relationships", len(plan.Dropped),
		"promoted", len(promoted))

	return &types.Result{
		RunID:    runID,
		Nodes:    nodes,
		Edges:    plan.Edges,
		Promoted: promoted,
		Dropped:  len(plan.Dropped),
	}, nil
}

// sanitize cleans the extraction and drops concepts whose label has no
// comparable form.
func (c *Client) sanitize(ctx context.Context, userID string, ex types.Extraction) types.Extraction {
	ex, warnings := ex.Sanitize()
	for _, w := range warnings {
		c.logger.WarnContext(ctx, "Skipping concept", "user_id", userID, "reason", w)
	}

	kept := make([]types.Concept, 0, len(ex.Concepts))
	for _, concept := range ex.Concepts {
		if normalize.Label(concept.Label) == "" {
			c.logger.WarnContext(ctx, "Skipping concept with empty normalized label",
				"user_id", userID,
				"concept_id", concept.ID,
				"label", concept.Label)
			continue
		}
		kept = append(kept, concept)
	}
	ex.Concepts = kept
	return ex
}
