// Package store persists per-user knowledge graphs.
//
// Every GraphStore implementation follows the same write rules:
//   - UpsertNode creates a node that does not exist. For an existing node it
//     writes the summary only when the stored one is empty or is a prefix of
//     the new one, overwrites gaps, recommendations and tags with the values
//     given (callers pass already merged sets), and lowers the level but
//     never raises it.
//   - UpsertEdge is idempotent on (user, source, target, relation).
//   - CountEdges ignores self loops.
//
// Failures are returned as *types.StoreError.
package store

import (
	"context"
	"strings"

	"github.com/soundprediction/notegraph/pkg/types"
)

// DefaultNeighborLimit bounds GetNeighbors when no limit is given.
const DefaultNeighborLimit = 50

// GraphStore is the persistence boundary of the materialization engine.
type GraphStore interface {
	// GetUserNodes returns every node of the user in creation order.
	GetUserNodes(ctx context.Context, userID string) ([]types.Node, error)

	// UpsertNode creates or updates a node.
	UpsertNode(ctx context.Context, node types.Node) error

	// UpsertEdge creates an edge if the same (source, target, relation) does not exist.
	UpsertEdge(ctx context.Context, edge types.Edge) error

	// CountEdges returns the number of edges touching the node and the
	// number of those that start at it.
	CountEdges(ctx context.Context, userID, nodeID string) (total, outgoing int, err error)

	// GetUserEdges returns every edge of the user.
	GetUserEdges(ctx context.Context, userID string) ([]types.Edge, error)

	// GetNeighbors returns the node and up to limit directly connected nodes.
	GetNeighbors(ctx context.Context, userID, nodeID string, limit int) (*types.Subgraph, error)

	// DeleteUserGraph removes every node and edge of the user.
	DeleteUserGraph(ctx context.Context, userID string) error

	// CreateIndices creates constraints and indices where the backend has them.
	CreateIndices(ctx context.Context) error

	// Close releases the store's resources.
	Close(ctx context.Context) error
}

// mergedSummary applies the summary write rule shared by all stores.
func mergedSummary(stored, incoming string) string {
	if stored == "" || strings.HasPrefix(incoming, stored) {
		return incoming
	}
	return stored
}
