package evolution

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/notegraph/pkg/types"
)

type edgeCounts struct{ total, outgoing int }

type fakeStore struct {
	mu       sync.Mutex
	counts   map[string]edgeCounts
	upserted []types.Node
	countErr error
	writeErr error
	calls    int
}

func (f *fakeStore) CountEdges(ctx context.Context, userID, nodeID string) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.countErr != nil {
		return 0, 0, f.countErr
	}
	c := f.counts[nodeID]
	return c.total, c.outgoing, nil
}

func (f *fakeStore) UpsertNode(ctx context.Context, node types.Node) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.upserted = append(f.upserted, node)
	return nil
}

func TestPolicy_ShouldPromote(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name     string
		level    int
		total    int
		outgoing int
		want     bool
	}{
		{"level 1 with five edges", 1, 5, 0, true},
		{"level 1 with three outgoing", 1, 3, 3, true},
		{"level 1 below both thresholds", 1, 4, 2, false},
		{"level 0 is never promoted", 0, 10, 10, false},
		{"level 2 is not promoted", 2, 10, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.ShouldPromote(tt.level, tt.total, tt.outgoing))
		})
	}
}

func TestPolicy_Tunable(t *testing.T) {
	p := Policy{PromoteLevel: 2, MinTotal: 2, MinOutgoing: 1}
	require.NoError(t, p.Validate())
	assert.True(t, p.ShouldPromote(2, 0, 1))
	assert.False(t, p.ShouldPromote(1, 10, 10))
}

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
	assert.Error(t, Policy{PromoteLevel: 0, MinTotal: 5, MinOutgoing: 3}.Validate())
	assert.Error(t, Policy{PromoteLevel: 1, MinTotal: 0, MinOutgoing: 3}.Validate())
}

func TestPass_Run(t *testing.T) {
	store := &fakeStore{counts: map[string]edgeCounts{
		"hub":    {total: 5, outgoing: 1},
		"fanout": {total: 3, outgoing: 3},
		"quiet":  {total: 2, outgoing: 1},
		"deep":   {total: 9, outgoing: 9},
	}}
	pass := NewPass(store, DefaultPolicy(), 2, nil)

	nodes := []types.Node{
		{ID: "hub", Level: 1},
		{ID: "fanout", Level: 1},
		{ID: "quiet", Level: 1},
		{ID: "deep", Level: 2},
		{ID: "center", Level: 0},
		{ID: "hub", Level: 1},
	}

	out, promoted, err := pass.Run(context.Background(), "u1", nodes)
	require.NoError(t, err)

	assert.Equal(t, []string{"hub", "fanout"}, promoted)
	levels := make([]int, len(out))
	for i, n := range out {
		levels[i] = n.Level
	}
	assert.Equal(t, []int{0, 0, 1, 2, 0, 0}, levels)
	assert.Len(t, store.upserted, 2)
	assert.Equal(t, 3, store.calls, "only distinct level-1 nodes are counted")
}

func TestPass_Run_CountError(t *testing.T) {
	store := &fakeStore{countErr: errors.New("boom")}
	pass := NewPass(store, DefaultPolicy(), 0, nil)

	_, _, err := pass.Run(context.Background(), "u1", []types.Node{{ID: "a", Level: 1}})
	require.Error(t, err)
	assert.Empty(t, store.upserted)
}

func TestPass_Run_WriteError(t *testing.T) {
	store := &fakeStore{
		counts:   map[string]edgeCounts{"a": {total: 5}},
		writeErr: errors.New("write failed"),
	}
	pass := NewPass(store, DefaultPolicy(), 1, nil)

	_, _, err := pass.Run(context.Background(), "u1", []types.Node{{ID: "a", Level: 1}})
	assert.EqualError(t, err, "write failed")
}
