package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/notegraph/pkg/types"
)

func TestMemoryStore_UpsertNode(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.UpsertNode(ctx, types.Node{
		ID: "n1", UserID: "u1", Label: "Cat", Summary: "purrs",
		KnowledgeGaps: []string{"diet"}, Level: 2,
	}))

	t.Run("summary extended by prefix", func(t *testing.T) {
		require.NoError(t, s.UpsertNode(ctx, types.Node{ID: "n1", UserID: "u1", Label: "Cat", Summary: "purrs\n\nhunts", Level: 2}))
		nodes, err := s.GetUserNodes(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "purrs\n\nhunts", nodes[0].Summary)
	})

	t.Run("unrelated summary does not overwrite", func(t *testing.T) {
		require.NoError(t, s.UpsertNode(ctx, types.Node{ID: "n1", UserID: "u1", Label: "Cat", Summary: "something else", Level: 2}))
		nodes, _ := s.GetUserNodes(ctx, "u1")
		assert.Equal(t, "purrs\n\nhunts", nodes[0].Summary)
	})

	t.Run("sets overwrite and has_gap follows", func(t *testing.T) {
		require.NoError(t, s.UpsertNode(ctx, types.Node{ID: "n1", UserID: "u1", Label: "Cat", Tags: []string{"pets"}, Level: 2}))
		nodes, _ := s.GetUserNodes(ctx, "u1")
		assert.Empty(t, nodes[0].KnowledgeGaps)
		assert.Equal(t, []string{"pets"}, nodes[0].Tags)
		assert.False(t, nodes[0].HasGap)
	})

	t.Run("level only lowers", func(t *testing.T) {
		require.NoError(t, s.UpsertNode(ctx, types.Node{ID: "n1", UserID: "u1", Label: "Cat", Level: 1}))
		require.NoError(t, s.UpsertNode(ctx, types.Node{ID: "n1", UserID: "u1", Label: "Cat", Level: 3}))
		nodes, _ := s.GetUserNodes(ctx, "u1")
		assert.Equal(t, 1, nodes[0].Level)
	})

	t.Run("invalid node rejected", func(t *testing.T) {
		err := s.UpsertNode(ctx, types.Node{ID: "n2", Label: "No user"})
		assert.ErrorIs(t, err, types.ErrEmptyUserID)
	})
}

func TestMemoryStore_UserIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.UpsertNode(ctx, types.Node{ID: "n1", UserID: "u1", Label: "Cat"}))
	require.NoError(t, s.UpsertNode(ctx, types.Node{ID: "n2", UserID: "u2", Label: "Dog"}))

	nodes, err := s.GetUserNodes(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "n1", nodes[0].ID)

	err = s.UpsertEdge(ctx, types.Edge{UserID: "u1", Source: "n1", Target: "n2", Relation: "knows"})
	assert.ErrorIs(t, err, types.ErrNodeNotFound)

	require.NoError(t, s.DeleteUserGraph(ctx, "u1"))
	nodes, _ = s.GetUserNodes(ctx, "u1")
	assert.Empty(t, nodes)
	nodes, _ = s.GetUserNodes(ctx, "u2")
	assert.Len(t, nodes, 1)
}

func TestMemoryStore_Edges(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.UpsertNode(ctx, types.Node{ID: id, UserID: "u1", Label: id}))
	}

	edges := []types.Edge{
		{UserID: "u1", Source: "a", Target: "b", Relation: "related_to"},
		{UserID: "u1", Source: "a", Target: "b", Relation: "related_to"},
		{UserID: "u1", Source: "a", Target: "b", Relation: "part_of"},
		{UserID: "u1", Source: "c", Target: "a", Relation: "related_to"},
		{UserID: "u1", Source: "a", Target: "a", Relation: "self"},
	}
	for _, e := range edges {
		require.NoError(t, s.UpsertEdge(ctx, e))
	}

	all, err := s.GetUserEdges(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 4, "duplicate triple collapses")

	total, outgoing, err := s.CountEdges(ctx, "u1", "a")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, outgoing)

	total, outgoing, err = s.CountEdges(ctx, "u1", "b")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 0, outgoing)

	sub, err := s.GetNeighbors(ctx, "u1", "b", 0)
	require.NoError(t, err)
	assert.Len(t, sub.Nodes, 2)
	assert.Len(t, sub.Edges, 2)

	sub, err = s.GetNeighbors(ctx, "u1", "a", 1)
	require.NoError(t, err)
	assert.Len(t, sub.Edges, 1)

	_, err = s.GetNeighbors(ctx, "u1", "missing", 0)
	assert.ErrorIs(t, err, types.ErrNodeNotFound)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().GetUserNodes(ctx, "u1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrStoreUnavailable))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.UpsertNode(ctx, types.Node{ID: "n1", UserID: "u1", Label: "Cat", Tags: []string{"a"}}))

	nodes, _ := s.GetUserNodes(ctx, "u1")
	nodes[0].Tags[0] = "mutated"

	again, _ := s.GetUserNodes(ctx, "u1")
	assert.Equal(t, []string{"a"}, again[0].Tags)
}

func TestMergedSummary(t *testing.T) {
	assert.Equal(t, "new", mergedSummary("", "new"))
	assert.Equal(t, "old\n\nnew", mergedSummary("old", "old\n\nnew"))
	assert.Equal(t, "old", mergedSummary("old", "other"))
	assert.Equal(t, "old", mergedSummary("old", ""))
}
