// Package notegraph materializes concepts extracted from free-text notes into
// a persistent knowledge graph per user.
//
// Each extraction is reconciled against the nodes the user already has:
// concepts whose labels are close enough to a stored label update that node,
// the others become new nodes with ids derived from their labels. Levels are
// assigned by distance from the most connected concept of the extraction, and
// level-1 nodes that have gathered enough edges are promoted to level 0 after
// every write.
//
// # Basic Usage
//
//	graphStore, err := store.NewNeo4jStore(ctx, store.DefaultNeo4jConfig(), logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer graphStore.Close(ctx)
//
//	extractor := extract.NewFallbackExtractor(
//		extract.NewLLMExtractor(llmClient, "gpt-4o-mini", logger),
//		extract.NewKeywordExtractor(12, "общее"),
//		logger,
//	)
//
//	client, err := notegraph.NewClient(graphStore, extractor, &notegraph.Options{Logger: logger})
//
// # Materializing an Extraction
//
//	result, err := client.Materialize(ctx, "user-1", types.Extraction{
//		Concepts: []types.Concept{
//			{ID: "c1", Label: "Photosynthesis"},
//			{ID: "c2", Label: "Chlorophyll"},
//		},
//		Relationships: []types.Relationship{
//			{Source: "c1", Target: "c2", Type: "uses"},
//		},
//	})
//
// # Analyzing Text
//
// Analyze runs the prompt-injection filter and the extractor before
// materializing:
//
//	analysis, err := client.Analyze(ctx, "user-1", noteText)
//
// A failing store aborts the call with an error that matches
// types.ErrStoreUnavailable; a partial or empty result is never returned.
package notegraph
