package types

import (
	"sort"
	"time"
)

// Node is a persisted concept in one user's knowledge graph.
type Node struct {
	ID              string    `json:"id" yaml:"id"`
	UserID          string    `json:"user_id" yaml:"user_id"`
	Label           string    `json:"label" yaml:"label"`
	Summary         string    `json:"summary" yaml:"summary"`
	Tags            []string  `json:"tags" yaml:"tags"`
	KnowledgeGaps   []string  `json:"knowledge_gaps" yaml:"knowledge_gaps"`
	Recommendations []string  `json:"recommendations" yaml:"recommendations"`
	HasGap          bool      `json:"has_gap" yaml:"has_gap"`
	Level           int       `json:"level" yaml:"level"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" yaml:"updated_at"`
}

// Validate checks that the node can be written.
func (n *Node) Validate() error {
	if n.ID == "" {
		return ErrEmptyID
	}
	if n.UserID == "" {
		return ErrEmptyUserID
	}
	if n.Label == "" {
		return ErrEmptyLabel
	}
	return nil
}

// ComputeHasGap derives has_gap from the gap and recommendation sets.
func ComputeHasGap(gaps, recommendations []string) bool {
	return len(gaps) > 0 || len(recommendations) > 0
}

// Edge is a directed relationship between two nodes of the same user.
// (UserID, Source, Target, Relation) identifies an edge.
type Edge struct {
	UserID      string `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Source      string `json:"source" yaml:"source"`
	Target      string `json:"target" yaml:"target"`
	Relation    string `json:"relation" yaml:"relation"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Key returns the identity triple of the edge.
func (e Edge) Key() string {
	return e.Source + "\x00" + e.Target + "\x00" + e.Relation
}

// Subgraph is a set of nodes and the edges between them.
type Subgraph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// NodePlan is the planned state of one node for one input concept.
type NodePlan struct {
	ConceptID string `json:"concept_id" yaml:"concept_id"`
	Node      Node   `json:"node" yaml:"node"`
	IsNew     bool   `json:"is_new" yaml:"is_new"`
	Central   bool   `json:"central" yaml:"central"`
}

// Plan is the upsert plan for one extraction.
type Plan struct {
	CentralID string         `json:"central_id,omitempty" yaml:"central_id,omitempty"`
	Nodes     []NodePlan     `json:"nodes" yaml:"nodes"`
	Edges     []Edge         `json:"edges" yaml:"edges"`
	Dropped   []Relationship `json:"dropped,omitempty" yaml:"dropped,omitempty"`
}

// Result is the materialized state of one extraction.
type Result struct {
	RunID    string   `json:"run_id" yaml:"run_id"`
	Nodes    []Node   `json:"nodes" yaml:"nodes"`
	Edges    []Edge   `json:"edges" yaml:"edges"`
	Promoted []string `json:"promoted,omitempty" yaml:"promoted,omitempty"`
	Dropped  int      `json:"dropped_relationships" yaml:"dropped_relationships"`
}

// AnalysisResult is returned by a full text analysis.
type AnalysisResult struct {
	MainTopic string   `json:"main_topic" yaml:"main_topic"`
	Summary   string   `json:"summary" yaml:"summary"`
	Tags      []string `json:"tags" yaml:"tags"`
	ModelUsed string   `json:"model_used" yaml:"model_used"`
	Reasoning string   `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	Graph     *Result  `json:"graph" yaml:"graph"`
}

// StringSet returns the sorted, de-duplicated, non-empty values of in.
// The result is never nil.
func StringSet(in ...[]string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, values := range in {
		for _, v := range values {
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
