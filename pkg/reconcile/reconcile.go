// Package reconcile merges accumulated knowledge of a matched node with the
// knowledge carried by a new extraction.
package reconcile

import (
	"strings"

	"github.com/soundprediction/notegraph/pkg/types"
)

// SummarySeparator joins summaries gathered from different extractions.
const SummarySeparator = "\n\n"

// Snapshot is the mergeable part of a node.
type Snapshot struct {
	Summary         string
	KnowledgeGaps   []string
	Recommendations []string
	Tags            []string
	HasGap          bool
}

// FromNode takes the mergeable fields of a node.
func FromNode(n types.Node) Snapshot {
	return Snapshot{
		Summary:         n.Summary,
		KnowledgeGaps:   types.StringSet(n.KnowledgeGaps),
		Recommendations: types.StringSet(n.Recommendations),
		Tags:            types.StringSet(n.Tags),
		HasGap:          types.ComputeHasGap(n.KnowledgeGaps, n.Recommendations),
	}
}

// FromConcept builds the incoming snapshot for a concept. Extraction-wide
// tags are added to the concept's own tags.
func FromConcept(c types.Concept, extractionTags []string) Snapshot {
	gaps := types.StringSet(c.KnowledgeGaps)
	recs := types.StringSet(c.Recommendations)
	return Snapshot{
		Summary:         strings.TrimSpace(c.Description),
		KnowledgeGaps:   gaps,
		Recommendations: recs,
		Tags:            types.StringSet(c.Tags, extractionTags),
		HasGap:          types.ComputeHasGap(gaps, recs),
	}
}

// Merge returns a new snapshot combining existing and incoming. Neither
// argument is modified. Set-valued fields are unions, so nothing is ever
// removed.
func Merge(existing, incoming Snapshot) Snapshot {
	gaps := types.StringSet(existing.KnowledgeGaps, incoming.KnowledgeGaps)
	recs := types.StringSet(existing.Recommendations, incoming.Recommendations)
	return Snapshot{
		Summary:         mergeSummary(existing.Summary, incoming.Summary),
		KnowledgeGaps:   gaps,
		Recommendations: recs,
		Tags:            types.StringSet(existing.Tags, incoming.Tags),
		HasGap:          types.ComputeHasGap(gaps, recs),
	}
}

func mergeSummary(existing, incoming string) string {
	switch {
	case incoming == "":
		return existing
	case existing == "":
		return incoming
	case strings.Contains(existing, incoming):
		return existing
	default:
		return existing + SummarySeparator + incoming
	}
}

// Apply writes the snapshot onto a copy of n.
func Apply(n types.Node, s Snapshot) types.Node {
	n.Summary = s.Summary
	n.KnowledgeGaps = append([]string{}, s.KnowledgeGaps...)
	n.Recommendations = append([]string{}, s.Recommendations...)
	n.Tags = append([]string{}, s.Tags...)
	n.HasGap = types.ComputeHasGap(n.KnowledgeGaps, n.Recommendations)
	return n
}
