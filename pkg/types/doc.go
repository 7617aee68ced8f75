// Package types defines the core data types for the notegraph knowledge graph.
//
// This package contains the fundamental types used throughout notegraph:
//   - Extraction, Concept, Relationship: the typed result of one note analysis
//   - Node: a persisted, deduplicated concept owned by one user
//   - Edge: a directed, typed relationship between two nodes of the same user
//   - Plan and Result: the upsert plan produced by the builder and the
//     materialized state returned to callers
//
// # Decoding
//
// Extractions arriving as JSON (from an LLM or an HTTP client) go through
// DecodeExtraction, which never fails on missing or mistyped optional fields:
//
//	ex, err := types.DecodeExtraction(raw)
//	if err != nil {
//	    // raw was not JSON at all
//	}
//
// # Errors
//
// Store failures are reported as *StoreError and match ErrStoreUnavailable
// under errors.Is.
package types
