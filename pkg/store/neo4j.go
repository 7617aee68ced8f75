package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/soundprediction/notegraph/pkg/types"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Neo4jConfig holds connection settings for Neo4jStore.
type Neo4jConfig struct {
	URI                   string
	Username              string
	Password              string
	Database              string
	MaxConnectionPoolSize int
	ConnectTimeout        time.Duration
	// ConnectRetries is the number of connectivity checks before giving up.
	ConnectRetries int
	RetryDelay     time.Duration
}

// DefaultNeo4jConfig returns settings for a local Neo4j.
func DefaultNeo4jConfig() Neo4jConfig {
	return Neo4jConfig{
		URI:                   "bolt://localhost:7687",
		Username:              "neo4j",
		Database:              "neo4j",
		MaxConnectionPoolSize: 50,
		ConnectTimeout:        10 * time.Second,
		ConnectRetries:        5,
		RetryDelay:            2 * time.Second,
	}
}

// Neo4jStore implements GraphStore on Neo4j. Nodes carry the :Node label
// and relationships the RELATED type with a relation property.
type Neo4jStore struct {
	client   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewNeo4jStore creates the driver and waits until the server answers.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig, logger *slog.Logger) (*Neo4jStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultNeo4jConfig()
	if cfg.Database == "" {
		cfg.Database = defaults.Database
	}
	if cfg.MaxConnectionPoolSize <= 0 {
		cfg.MaxConnectionPoolSize = defaults.MaxConnectionPoolSize
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.ConnectRetries <= 0 {
		cfg.ConnectRetries = 1
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
		c.SocketConnectTimeout = cfg.ConnectTimeout
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	for attempt := 1; ; attempt++ {
		verifyCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		err = driver.VerifyConnectivity(verifyCtx)
		cancel()
		if err == nil {
			break
		}
		if attempt >= cfg.ConnectRetries {
			_ = driver.Close(ctx)
			return nil, types.NewStoreError("connect", "", err)
		}
		logger.Warn("Neo4j connection failed, retrying",
			"attempt", attempt,
			"max_attempts", cfg.ConnectRetries,
			"delay", cfg.RetryDelay,
			"error", err)
		select {
		case <-time.After(cfg.RetryDelay):
		case <-ctx.Done():
			_ = driver.Close(context.Background())
			return nil, types.NewStoreError("connect", "", ctx.Err())
		}
	}

	return &Neo4jStore{
		client:   driver,
		database: cfg.Database,
		logger:   logger,
	}, nil
}

func (s *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

// GetUserNodes implements GraphStore.
func (s *Neo4jStore) GetUserNodes(ctx context.Context, userID string) ([]types.Node, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n:Node {user_id: $user_id})
			RETURN n
			ORDER BY n.created_at, n.id
		`, map[string]any{"user_id": userID})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, types.NewStoreError("get_user_nodes", userID, err)
	}

	records := result.([]*db.Record)
	nodes := make([]types.Node, 0, len(records))
	for _, record := range records {
		value, _ := record.Get("n")
		dbNode, ok := value.(dbtype.Node)
		if !ok {
			return nil, types.NewStoreError("get_user_nodes", userID,
				fmt.Errorf("unexpected type for node: got %T, expected dbtype.Node", value))
		}
		nodes = append(nodes, nodeFromProps(dbNode.Props))
	}
	return nodes, nil
}

// UpsertNode implements GraphStore. The summary and level rules run inside
// the MERGE so concurrent writers cannot raise a level or drop a summary.
func (s *Neo4jStore) UpsertNode(ctx context.Context, node types.Node) error {
	if err := node.Validate(); err != nil {
		return fmt.Errorf("cannot upsert node: %w", err)
	}
	now := time.Now().UTC()
	if node.CreatedAt.IsZero() {
		node.CreatedAt = now
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MERGE (n:Node {id: $id, user_id: $user_id})
			ON CREATE SET
				n.label = $label,
				n.summary = $summary,
				n.tags = $tags,
				n.knowledge_gaps = $knowledge_gaps,
				n.recommendations = $recommendations,
				n.has_gap = $has_gap,
				n.level = $level,
				n.created_at = $created_at,
				n.updated_at = $updated_at
			ON MATCH SET
				n.summary = CASE
					WHEN coalesce(n.summary, '') = '' OR $summary STARTS WITH n.summary THEN $summary
					ELSE n.summary END,
				n.tags = $tags,
				n.knowledge_gaps = $knowledge_gaps,
				n.recommendations = $recommendations,
				n.has_gap = $has_gap,
				n.level = CASE
					WHEN n.level IS NULL OR $level < n.level THEN $level
					ELSE n.level END,
				n.updated_at = $updated_at
		`, map[string]any{
			"id":              node.ID,
			"user_id":         node.UserID,
			"label":           node.Label,
			"summary":         node.Summary,
			"tags":            nonNil(node.Tags),
			"knowledge_gaps":  nonNil(node.KnowledgeGaps),
			"recommendations": nonNil(node.Recommendations),
			"has_gap":         types.ComputeHasGap(node.KnowledgeGaps, node.Recommendations),
			"level":           int64(node.Level),
			"created_at":      node.CreatedAt.UTC().Format(timeLayout),
			"updated_at":      now.Format(timeLayout),
		})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return types.NewStoreError("upsert_node", node.UserID, err)
	}
	return nil
}

// UpsertEdge implements GraphStore.
func (s *Neo4jStore) UpsertEdge(ctx context.Context, edge types.Edge) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (a:Node {id: $source, user_id: $user_id}), (b:Node {id: $target, user_id: $user_id})
			MERGE (a)-[r:RELATED {relation: $relation}]->(b)
			ON CREATE SET r.description = $description, r.created_at = $created_at
			RETURN count(r) AS matched
		`, map[string]any{
			"source":      edge.Source,
			"target":      edge.Target,
			"user_id":     edge.UserID,
			"relation":    edge.Relation,
			"description": edge.Description,
			"created_at":  time.Now().UTC().Format(timeLayout),
		})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		matched, _ := record.Get("matched")
		return matched, nil
	})
	if err != nil {
		return types.NewStoreError("upsert_edge", edge.UserID, err)
	}
	if n, _ := result.(int64); n == 0 {
		return fmt.Errorf("%w: %s -> %s", types.ErrNodeNotFound, edge.Source, edge.Target)
	}
	return nil
}

// CountEdges implements GraphStore.
func (s *Neo4jStore) CountEdges(ctx context.Context, userID, nodeID string) (int, int, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n:Node {id: $id, user_id: $user_id})
			OPTIONAL MATCH (n)-[r:RELATED]-(m:Node {user_id: $user_id})
			WHERE m.id <> n.id
			WITH n, count(r) AS total
			OPTIONAL MATCH (n)-[o:RELATED]->(m:Node {user_id: $user_id})
			WHERE m.id <> n.id
			RETURN total, count(o) AS outgoing
		`, map[string]any{"id": nodeID, "user_id": userID})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return 0, 0, types.NewStoreError("count_edges", userID, err)
	}

	records := result.([]*db.Record)
	if len(records) == 0 {
		return 0, 0, nil
	}
	total, _ := records[0].Get("total")
	outgoing, _ := records[0].Get("outgoing")
	return int(toInt64(total)), int(toInt64(outgoing)), nil
}

// GetUserEdges implements GraphStore.
func (s *Neo4jStore) GetUserEdges(ctx context.Context, userID string) ([]types.Edge, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (a:Node {user_id: $user_id})-[r:RELATED]->(b:Node {user_id: $user_id})
			RETURN a.id AS source, b.id AS target, r.relation AS relation, r.description AS description
			ORDER BY r.created_at, source, target, relation
		`, map[string]any{"user_id": userID})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, types.NewStoreError("get_user_edges", userID, err)
	}
	return edgesFromRecords(userID, result.([]*db.Record)), nil
}

// GetNeighbors implements GraphStore.
func (s *Neo4jStore) GetNeighbors(ctx context.Context, userID, nodeID string, limit int) (*types.Subgraph, error) {
	if limit <= 0 {
		limit = DefaultNeighborLimit
	}
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (a:Node {id: $id, user_id: $user_id})
			OPTIONAL MATCH (a)-[r:RELATED]-(b:Node {user_id: $user_id})
			WITH a, r, b LIMIT $limit
			RETURN a, b,
				startNode(r).id AS source,
				endNode(r).id AS target,
				r.relation AS relation,
				r.description AS description
		`, map[string]any{"id": nodeID, "user_id": userID, "limit": int64(limit)})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, types.NewStoreError("get_neighbors", userID, err)
	}

	records := result.([]*db.Record)
	if len(records) == 0 {
		return nil, types.ErrNodeNotFound
	}

	sub := &types.Subgraph{Nodes: []types.Node{}, Edges: []types.Edge{}}
	added := make(map[string]struct{})
	for _, record := range records {
		for _, key := range []string{"a", "b"} {
			value, _ := record.Get(key)
			dbNode, ok := value.(dbtype.Node)
			if !ok {
				continue
			}
			node := nodeFromProps(dbNode.Props)
			if _, seen := added[node.ID]; seen {
				continue
			}
			added[node.ID] = struct{}{}
			sub.Nodes = append(sub.Nodes, node)
		}
		if source, _ := record.Get("source"); source != nil {
			sub.Edges = append(sub.Edges, edgeFromRecord(userID, record))
		}
	}
	return sub, nil
}

// DeleteUserGraph implements GraphStore.
func (s *Neo4jStore) DeleteUserGraph(ctx context.Context, userID string) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n:Node {user_id: $user_id})
			DETACH DELETE n
		`, map[string]any{"user_id": userID})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return types.NewStoreError("delete_user_graph", userID, err)
	}
	return nil
}

// CreateIndices implements GraphStore.
func (s *Neo4jStore) CreateIndices(ctx context.Context) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	statements := []string{
		"CREATE CONSTRAINT node_id_unique IF NOT EXISTS FOR (n:Node) REQUIRE n.id IS UNIQUE",
		"CREATE INDEX node_user_id IF NOT EXISTS FOR (n:Node) ON (n.user_id)",
		"CREATE INDEX node_user_label IF NOT EXISTS FOR (n:Node) ON (n.user_id, n.label)",
	}

	for _, statement := range statements {
		if _, err := session.Run(ctx, statement, nil); err != nil {
			if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "An equivalent") {
				continue
			}
			return types.NewStoreError("create_indices", "", err)
		}
	}
	return nil
}

// Close implements GraphStore.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func nodeFromProps(props map[string]any) types.Node {
	node := types.Node{
		ID:              propString(props, "id"),
		UserID:          propString(props, "user_id"),
		Label:           propString(props, "label"),
		Summary:         propString(props, "summary"),
		Tags:            propStrings(props, "tags"),
		KnowledgeGaps:   propStrings(props, "knowledge_gaps"),
		Recommendations: propStrings(props, "recommendations"),
		Level:           int(toInt64(props["level"])),
		CreatedAt:       propTime(props, "created_at"),
		UpdatedAt:       propTime(props, "updated_at"),
	}
	node.HasGap = types.ComputeHasGap(node.KnowledgeGaps, node.Recommendations)
	return node
}

func edgesFromRecords(userID string, records []*db.Record) []types.Edge {
	edges := make([]types.Edge, 0, len(records))
	for _, record := range records {
		edges = append(edges, edgeFromRecord(userID, record))
	}
	return edges
}

func edgeFromRecord(userID string, record *db.Record) types.Edge {
	get := func(key string) string {
		value, _ := record.Get(key)
		s, _ := value.(string)
		return s
	}
	return types.Edge{
		UserID:      userID,
		Source:      get("source"),
		Target:      get("target"),
		Relation:    get("relation"),
		Description: get("description"),
	}
}

func propString(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func propStrings(props map[string]any, key string) []string {
	out := []string{}
	switch values := props[key].(type) {
	case []any:
		for _, v := range values {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, values...)
	}
	return out
}

func propTime(props map[string]any, key string) time.Time {
	switch v := props[key].(type) {
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	case time.Time:
		return v
	}
	return time.Time{}
}

func toInt64(value any) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

var _ GraphStore = (*Neo4jStore)(nil)
var _ GraphStore = (*MemoryStore)(nil)

// IsNotFound reports whether err means a node was missing.
func IsNotFound(err error) bool {
	return errors.Is(err, types.ErrNodeNotFound)
}
