package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soundprediction/notegraph/pkg/types"
)

// MemoryStore is an in-process GraphStore. It is used by tests and by the
// server when no database is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*userGraph
	now   func() time.Time
}

type userGraph struct {
	order []string
	nodes map[string]types.Node
	edges []types.Edge
	keys  map[string]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*userGraph),
		now:   time.Now,
	}
}

func (m *MemoryStore) graph(userID string, create bool) *userGraph {
	g, ok := m.users[userID]
	if !ok && create {
		g = &userGraph{
			nodes: make(map[string]types.Node),
			keys:  make(map[string]struct{}),
		}
		m.users[userID] = g
	}
	return g
}

// GetUserNodes implements GraphStore.
func (m *MemoryStore) GetUserNodes(ctx context.Context, userID string) ([]types.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.NewStoreError("get_user_nodes", userID, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := m.graph(userID, false)
	if g == nil {
		return []types.Node{}, nil
	}
	nodes := make([]types.Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, copyNode(g.nodes[id]))
	}
	return nodes, nil
}

// UpsertNode implements GraphStore.
func (m *MemoryStore) UpsertNode(ctx context.Context, node types.Node) error {
	if err := ctx.Err(); err != nil {
		return types.NewStoreError("upsert_node", node.UserID, err)
	}
	if err := node.Validate(); err != nil {
		return fmt.Errorf("cannot upsert node: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	g := m.graph(node.UserID, true)
	stored, exists := g.nodes[node.ID]
	if !exists {
		node = copyNode(node)
		if node.CreatedAt.IsZero() {
			node.CreatedAt = now
		}
		node.UpdatedAt = now
		node.HasGap = types.ComputeHasGap(node.KnowledgeGaps, node.Recommendations)
		g.nodes[node.ID] = node
		g.order = append(g.order, node.ID)
		return nil
	}

	stored.Summary = mergedSummary(stored.Summary, node.Summary)
	stored.KnowledgeGaps = append([]string(nil), node.KnowledgeGaps...)
	stored.Recommendations = append([]string(nil), node.Recommendations...)
	stored.Tags = append([]string(nil), node.Tags...)
	stored.HasGap = types.ComputeHasGap(stored.KnowledgeGaps, stored.Recommendations)
	if node.Level < stored.Level {
		stored.Level = node.Level
	}
	stored.UpdatedAt = now
	g.nodes[node.ID] = stored
	return nil
}

// UpsertEdge implements GraphStore.
func (m *MemoryStore) UpsertEdge(ctx context.Context, edge types.Edge) error {
	if err := ctx.Err(); err != nil {
		return types.NewStoreError("upsert_edge", edge.UserID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.graph(edge.UserID, false)
	if g == nil {
		return fmt.Errorf("%w: %s", types.ErrNodeNotFound, edge.Source)
	}
	if _, ok := g.nodes[edge.Source]; !ok {
		return fmt.Errorf("%w: %s", types.ErrNodeNotFound, edge.Source)
	}
	if _, ok := g.nodes[edge.Target]; !ok {
		return fmt.Errorf("%w: %s", types.ErrNodeNotFound, edge.Target)
	}
	key := edge.Key()
	if _, ok := g.keys[key]; ok {
		return nil
	}
	g.keys[key] = struct{}{}
	g.edges = append(g.edges, edge)
	return nil
}

// CountEdges implements GraphStore.
func (m *MemoryStore) CountEdges(ctx context.Context, userID, nodeID string) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, types.NewStoreError("count_edges", userID, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := m.graph(userID, false)
	if g == nil {
		return 0, 0, nil
	}
	total, outgoing := 0, 0
	for _, e := range g.edges {
		if e.Source == e.Target {
			continue
		}
		if e.Source == nodeID {
			total++
			outgoing++
		} else if e.Target == nodeID {
			total++
		}
	}
	return total, outgoing, nil
}

// GetUserEdges implements GraphStore.
func (m *MemoryStore) GetUserEdges(ctx context.Context, userID string) ([]types.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.NewStoreError("get_user_edges", userID, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := m.graph(userID, false)
	if g == nil {
		return []types.Edge{}, nil
	}
	return append([]types.Edge{}, g.edges...), nil
}

// GetNeighbors implements GraphStore.
func (m *MemoryStore) GetNeighbors(ctx context.Context, userID, nodeID string, limit int) (*types.Subgraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.NewStoreError("get_neighbors", userID, err)
	}
	if limit <= 0 {
		limit = DefaultNeighborLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	g := m.graph(userID, false)
	if g == nil {
		return nil, types.ErrNodeNotFound
	}
	center, ok := g.nodes[nodeID]
	if !ok {
		return nil, types.ErrNodeNotFound
	}

	sub := &types.Subgraph{Nodes: []types.Node{copyNode(center)}, Edges: []types.Edge{}}
	added := map[string]struct{}{nodeID: {}}
	for _, e := range g.edges {
		if len(sub.Edges) >= limit {
			break
		}
		var other string
		switch nodeID {
		case e.Source:
			other = e.Target
		case e.Target:
			other = e.Source
		default:
			continue
		}
		sub.Edges = append(sub.Edges, e)
		if _, ok := added[other]; !ok {
			added[other] = struct{}{}
			sub.Nodes = append(sub.Nodes, copyNode(g.nodes[other]))
		}
	}
	return sub, nil
}

// DeleteUserGraph implements GraphStore.
func (m *MemoryStore) DeleteUserGraph(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return types.NewStoreError("delete_user_graph", userID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
	return nil
}

// CreateIndices implements GraphStore. The memory store has none.
func (m *MemoryStore) CreateIndices(ctx context.Context) error {
	return nil
}

// Close implements GraphStore.
func (m *MemoryStore) Close(ctx context.Context) error {
	return nil
}

func copyNode(n types.Node) types.Node {
	n.Tags = append([]string{}, n.Tags...)
	n.KnowledgeGaps = append([]string{}, n.KnowledgeGaps...)
	n.Recommendations = append([]string{}, n.Recommendations...)
	return n
}
