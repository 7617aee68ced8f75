package notegraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/soundprediction/notegraph/pkg/builder"
	"github.com/soundprediction/notegraph/pkg/evolution"
	"github.com/soundprediction/notegraph/pkg/extract"
	"github.com/soundprediction/notegraph/pkg/matching"
	"github.com/soundprediction/notegraph/pkg/store"
	"github.com/soundprediction/notegraph/pkg/types"
)

// ErrNoExtractor is returned by Analyze when the client was built without an
// extractor.
var ErrNoExtractor = errors.New("no extractor configured")

// NoteGraph is the main interface for building per-user knowledge graphs
// from notes.
type NoteGraph interface {
	// Materialize reconciles an extraction with the user's graph and writes
	// the resulting nodes and edges. Any store failure aborts the call and
	// no result is returned.
	Materialize(ctx context.Context, userID string, ex types.Extraction) (*types.Result, error)

	// Analyze extracts concepts from text and materializes them.
	Analyze(ctx context.Context, userID, text string) (*types.AnalysisResult, error)

	// GetUserGraph returns every node and edge of the user.
	GetUserGraph(ctx context.Context, userID string) (*types.Subgraph, error)

	// GetNeighbors returns a node together with its directly connected nodes.
	GetNeighbors(ctx context.Context, userID, nodeID string) (*types.Subgraph, error)

	// DeleteUserGraph removes the user's whole graph.
	DeleteUserGraph(ctx context.Context, userID string) error

	// CreateIndices creates database indices and constraints.
	CreateIndices(ctx context.Context) error

	// Close closes the underlying store.
	Close(ctx context.Context) error
}

// Options configures a Client. Zero numeric fields, a zero Policy and a nil
// Logger or Clock select their defaults. InjectionFilter is off unless set;
// DefaultOptions turns it on.
type Options struct {
	// MatchThreshold is the minimum label similarity for reusing a node.
	MatchThreshold float64
	// Policy decides which nodes the evolution pass promotes.
	Policy evolution.Policy
	// Concurrency bounds the parallel edge counts of the evolution pass.
	Concurrency int
	// NeighborLimit bounds GetNeighbors.
	NeighborLimit int
	// InjectionFilter enables prompt-injection screening in Analyze.
	InjectionFilter bool
	Logger          *slog.Logger
	// Clock replaces time.Now for node timestamps.
	Clock func() time.Time
}

// DefaultOptions returns the options used when NewClient is given nil.
func DefaultOptions() *Options {
	return &Options{
		MatchThreshold:  matching.DefaultThreshold,
		Policy:          evolution.DefaultPolicy(),
		Concurrency:     4,
		NeighborLimit:   store.DefaultNeighborLimit,
		InjectionFilter: true,
	}
}

// Client is the main implementation of the NoteGraph interface.
type Client struct {
	store     store.GraphStore
	extractor extract.Extractor
	builder   *builder.Builder
	evolution *evolution.Pass
	locks     *userLocks
	options   Options
	logger    *slog.Logger
}

// NewClient creates a client over graphStore. extractor may be nil when only
// Materialize and the graph reads are used.
func NewClient(graphStore store.GraphStore, extractor extract.Extractor, opts *Options) (*Client, error) {
	if graphStore == nil {
		return nil, errors.New("graph store is required")
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.MatchThreshold == 0 {
		o.MatchThreshold = matching.DefaultThreshold
	}
	if o.Policy == (evolution.Policy{}) {
		o.Policy = evolution.DefaultPolicy()
	}
	if err := o.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid evolution policy: %w", err)
	}
	if o.NeighborLimit <= 0 {
		o.NeighborLimit = store.DefaultNeighborLimit
	}

	return &Client{
		store:     graphStore,
		extractor: extractor,
		builder:   builder.New(matching.NewMatcher(o.MatchThreshold, o.Logger), o.Logger, builder.WithClock(o.Clock)),
		evolution: evolution.NewPass(graphStore, o.Policy, o.Concurrency, o.Logger),
		locks:     newUserLocks(),
		options:   o,
		logger:    o.Logger,
	}, nil
}

var _ NoteGraph = (*Client)(nil)
