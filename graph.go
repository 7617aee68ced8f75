package notegraph

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/soundprediction/notegraph/pkg/types"
)

// GetUserGraph implements NoteGraph. Nodes and edges are read concurrently.
func (c *Client) GetUserGraph(ctx context.Context, userID string) (*types.Subgraph, error) {
	if userID == "" {
		return nil, types.ErrEmptyUserID
	}

	var nodes []types.Node
	var edges []types.Edge
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		nodes, err = c.store.GetUserNodes(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		edges, err = c.store.GetUserEdges(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &types.Subgraph{Nodes: nodes, Edges: edges}, nil
}

// GetNeighbors implements NoteGraph.
func (c *Client) GetNeighbors(ctx context.Context, userID, nodeID string) (*types.Subgraph, error) {
	if userID == "" {
		return nil, types.ErrEmptyUserID
	}
	if nodeID == "" {
		return nil, types.ErrEmptyID
	}
	return c.store.GetNeighbors(ctx, userID, nodeID, c.options.NeighborLimit)
}

// DeleteUserGraph implements NoteGraph.
func (c *Client) DeleteUserGraph(ctx context.Context, userID string) error {
	if userID == "" {
		return types.ErrEmptyUserID
	}
	unlock := c.locks.lock(userID)
	defer unlock()

	if err := c.store.DeleteUserGraph(ctx, userID); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Deleted user graph", "user_id", userID)
	return nil
}

// CreateIndices implements NoteGraph.
func (c *Client) CreateIndices(ctx context.Context) error {
	return c.store.CreateIndices(ctx)
}

// Close implements NoteGraph.
func (c *Client) Close(ctx context.Context) error {
	return c.store.Close(ctx)
}
