package dto

import "github.com/soundprediction/notegraph/pkg/types"

// GraphResponse wraps a subgraph with its counts.
type GraphResponse struct {
	UserID    string       `json:"user_id"`
	Nodes     []types.Node `json:"nodes"`
	Edges     []types.Edge `json:"edges"`
	NodeCount int          `json:"node_count"`
	EdgeCount int          `json:"edge_count"`
}

// NewGraphResponse builds the response for sub.
func NewGraphResponse(userID string, sub *types.Subgraph) GraphResponse {
	nodes, edges := sub.Nodes, sub.Edges
	if nodes == nil {
		nodes = []types.Node{}
	}
	if edges == nil {
		edges = []types.Edge{}
	}
	return GraphResponse{
		UserID:    userID,
		Nodes:     nodes,
		Edges:     edges,
		NodeCount: len(nodes),
		EdgeCount: len(edges),
	}
}
