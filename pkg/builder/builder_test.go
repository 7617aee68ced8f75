package builder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/notegraph/pkg/types"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestBuilder() *Builder {
	return New(nil, nil, WithClock(func() time.Time { return fixedNow }))
}

func concept(id, label string) types.Concept {
	return types.Concept{ID: id, Label: label}
}

func rel(source, target string) types.Relationship {
	return types.Relationship{Source: source, Target: target, Type: "related_to"}
}

func TestStableID(t *testing.T) {
	id := StableID("Neural Network", "user-1")
	assert.Len(t, id, StableIDLength)
	assert.Regexp(t, `^[0-9a-f]{16}$`, id)

	assert.Equal(t, id, StableID("  neural   network ", "user-1"))
	assert.Equal(t, StableID("NMDA—antagonist", "u"), StableID("nmda-antagonist", "u"))
	assert.NotEqual(t, id, StableID("Neural Network", "user-2"))
	assert.NotEqual(t, id, StableID("Neural Networks", "user-1"))
}

func TestCentralConcept(t *testing.T) {
	tests := []struct {
		name string
		ex   types.Extraction
		want string
	}{
		{
			name: "no concepts",
			ex:   types.Extraction{},
			want: "",
		},
		{
			name: "no relationships picks first concept",
			ex:   types.Extraction{Concepts: []types.Concept{concept("a", "A"), concept("b", "B")}},
			want: "a",
		},
		{
			name: "tie goes to first seen in scan",
			ex: types.Extraction{
				Concepts:      []types.Concept{concept("c1", "Cat"), concept("c2", "Feline")},
				Relationships: []types.Relationship{rel("c1", "c2")},
			},
			want: "c1",
		},
		{
			name: "highest count wins",
			ex: types.Extraction{
				Concepts:      []types.Concept{concept("a", "A"), concept("b", "B"), concept("c", "C"), concept("d", "D")},
				Relationships: []types.Relationship{rel("a", "b"), rel("c", "b"), rel("d", "b")},
			},
			want: "b",
		},
		{
			name: "unknown endpoints are not counted",
			ex: types.Extraction{
				Concepts:      []types.Concept{concept("a", "A"), concept("b", "B")},
				Relationships: []types.Relationship{rel("x", "b"), rel("x", "a"), rel("a", "b"), rel("x", "a")},
			},
			want: "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CentralConcept(tt.ex))
		})
	}
}

func TestAssignLevels(t *testing.T) {
	ex := types.Extraction{
		Concepts: []types.Concept{
			concept("a", "A"), concept("b", "B"), concept("c", "C"),
			concept("d", "D"), concept("island", "Island"),
		},
		Relationships: []types.Relationship{
			rel("b", "a"), // reversed direction still counts
			rel("b", "c"),
			rel("c", "d"),
			rel("a", "d"),
			rel("d", "missing"),
		},
	}

	levels := AssignLevels(ex, "a")

	assert.Equal(t, map[string]int{
		"a":      0,
		"b":      1,
		"d":      1,
		"c":      2,
		"island": 0,
	}, levels)
}

func TestPlan_ScenarioA_FreshUser(t *testing.T) {
	b := newTestBuilder()
	ex := types.Extraction{
		Concepts:      []types.Concept{concept("c1", "Cat"), concept("c2", "Feline")},
		Relationships: []types.Relationship{rel("c1", "c2")},
	}

	plan := b.Plan("u1", ex, nil)

	require.Len(t, plan.Nodes, 2)
	require.Len(t, plan.Edges, 1)

	cat, feline := plan.Nodes[0], plan.Nodes[1]
	assert.Equal(t, StableID("Cat", "u1"), cat.Node.ID)
	assert.Equal(t, StableID("Feline", "u1"), feline.Node.ID)
	assert.True(t, cat.IsNew)
	assert.True(t, feline.IsNew)
	assert.True(t, cat.Central)
	assert.Equal(t, 0, cat.Node.Level)
	assert.Equal(t, 1, feline.Node.Level)
	assert.Equal(t, cat.Node.ID, plan.CentralID)
	assert.Equal(t, fixedNow, cat.Node.CreatedAt)

	assert.Equal(t, types.Edge{
		UserID:   "u1",
		Source:   cat.Node.ID,
		Target:   feline.Node.ID,
		Relation: "related_to",
	}, plan.Edges[0])
}

func TestPlan_MatchesExistingAndMerges(t *testing.T) {
	b := newTestBuilder()
	existing := []types.Node{{
		ID:            "stored-ketamine",
		UserID:        "u1",
		Label:         "Кетамин",
		Summary:       "NMDA antagonist",
		KnowledgeGaps: []string{"dosage"},
		Tags:          []string{"pharma"},
		Level:         2,
		CreatedAt:     fixedNow.Add(-time.Hour),
	}}
	ex := types.Extraction{
		Tags: []string{"anesthesia"},
		Concepts: []types.Concept{
			concept("t", "Анестезия"),
			{ID: "k", Label: "кетамин ", Description: "dissociative anesthetic", Recommendations: []string{"review"}},
		},
		Relationships: []types.Relationship{rel("t", "k")},
	}

	plan := b.Plan("u1", ex, existing)

	require.Len(t, plan.Nodes, 2)
	k := plan.Nodes[1]
	assert.False(t, k.IsNew)
	assert.Equal(t, "stored-ketamine", k.Node.ID)
	assert.Equal(t, "Кетамин", k.Node.Label)
	assert.Equal(t, "NMDA antagonist\n\ndissociative anesthetic", k.Node.Summary)
	assert.Equal(t, []string{"dosage"}, k.Node.KnowledgeGaps)
	assert.Equal(t, []string{"review"}, k.Node.Recommendations)
	assert.Equal(t, []string{"anesthesia", "pharma"}, k.Node.Tags)
	assert.True(t, k.Node.HasGap)
	assert.Equal(t, 1, k.Node.Level, "min(computed 1, stored 2)")
	assert.Equal(t, fixedNow.Add(-time.Hour), k.Node.CreatedAt)

	assert.Equal(t, "stored-ketamine", plan.Edges[0].Target)
}

func TestPlan_LevelNeverRaised(t *testing.T) {
	b := newTestBuilder()
	existing := []types.Node{{ID: StableID("Leaf", "u1"), UserID: "u1", Label: "Leaf", Level: 0}}
	ex := types.Extraction{
		Concepts:      []types.Concept{concept("r", "Root"), concept("m", "Middle"), concept("l", "Leaf")},
		Relationships: []types.Relationship{rel("r", "m"), rel("m", "l"), rel("r", "m")},
	}

	plan := b.Plan("u1", ex, existing)

	assert.Equal(t, 0, plan.Nodes[2].Node.Level)
	assert.False(t, plan.Nodes[2].IsNew)
}

func TestPlan_CentralForcedToZero(t *testing.T) {
	b := newTestBuilder()
	existing := []types.Node{{ID: "hub", UserID: "u1", Label: "Hub", Level: 3}}
	ex := types.Extraction{
		Concepts:      []types.Concept{concept("a", "Spoke"), concept("h", "hub")},
		Relationships: []types.Relationship{rel("h", "a"), rel("h", "a")},
	}

	plan := b.Plan("u1", ex, existing)

	assert.True(t, plan.Nodes[1].Central)
	assert.Equal(t, 0, plan.Nodes[1].Node.Level)
	assert.Equal(t, "hub", plan.CentralID)
}

func TestPlan_ExactIDFallback(t *testing.T) {
	b := newTestBuilder()
	// The stored label differs enough to miss the fuzzy threshold, but the
	// stored id is the stable id of the incoming label.
	existing := []types.Node{{ID: StableID("C++", "u1"), UserID: "u1", Label: "c plus plus", Level: 1}}
	ex := types.Extraction{Concepts: []types.Concept{concept("c", "C++")}}

	plan := b.Plan("u1", ex, existing)

	require.Len(t, plan.Nodes, 1)
	assert.False(t, plan.Nodes[0].IsNew)
	assert.Equal(t, StableID("C++", "u1"), plan.Nodes[0].Node.ID)
}

func TestPlan_ScenarioE_UnresolvedEndpoint(t *testing.T) {
	b := newTestBuilder()
	ex := types.Extraction{
		Concepts: []types.Concept{concept("c1", "Cat"), concept("c2", "Feline")},
		Relationships: []types.Relationship{
			rel("c1", "c99"),
			rel("c1", "c2"),
		},
	}

	plan := b.Plan("u1", ex, nil)

	assert.Len(t, plan.Nodes, 2)
	require.Len(t, plan.Edges, 1)
	assert.Equal(t, plan.Nodes[1].Node.ID, plan.Edges[0].Target)
	require.Len(t, plan.Dropped, 1)
	assert.Equal(t, "c99", plan.Dropped[0].Target)
}

func TestPlan_DuplicateLabelsInOneExtraction(t *testing.T) {
	b := newTestBuilder()
	ex := types.Extraction{
		Concepts: []types.Concept{
			{ID: "a", Label: "Graph", Description: "first"},
			{ID: "b", Label: "graph ", Description: "second", KnowledgeGaps: []string{"theory"}},
			concept("c", "Vertex"),
		},
		Relationships: []types.Relationship{rel("a", "c"), rel("b", "c")},
	}

	plan := b.Plan("u1", ex, nil)

	require.Len(t, plan.Nodes, 3)
	assert.Equal(t, plan.Nodes[0].Node.ID, plan.Nodes[1].Node.ID)
	assert.Equal(t, plan.Nodes[0].Node, plan.Nodes[1].Node)
	assert.Equal(t, "first\n\nsecond", plan.Nodes[0].Node.Summary)
	assert.True(t, plan.Nodes[0].Node.HasGap)
	assert.Len(t, plan.Edges, 2)
}

func TestPlan_NoRelationships(t *testing.T) {
	b := newTestBuilder()
	ex := types.Extraction{Concepts: []types.Concept{concept("a", "Alpha"), concept("b", "Beta")}}

	plan := b.Plan("u1", ex, nil)

	require.Len(t, plan.Nodes, 2)
	assert.True(t, plan.Nodes[0].Central)
	assert.Equal(t, 0, plan.Nodes[0].Node.Level)
	assert.Equal(t, 0, plan.Nodes[1].Node.Level)
	assert.Empty(t, plan.Edges)
}

func TestPlan_EmptyExtraction(t *testing.T) {
	plan := newTestBuilder().Plan("u1", types.Extraction{}, nil)
	assert.Empty(t, plan.Nodes)
	assert.Empty(t, plan.Edges)
	assert.Equal(t, "", plan.CentralID)
}

func TestPlan_Deterministic(t *testing.T) {
	ex := types.Extraction{
		Concepts:      []types.Concept{concept("a", "A1"), concept("b", "B2"), concept("c", "C3")},
		Relationships: []types.Relationship{rel("a", "b"), rel("b", "c"), rel("c", "a")},
	}
	first := newTestBuilder().Plan("u1", ex, nil)
	second := newTestBuilder().Plan("u1", ex, nil)
	assert.Equal(t, first, second)
}
