package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// GraphStore provides design-graph operations on top of Neo4j.
type GraphStore struct {
	opener SessionOpener
}

// New creates a GraphStore from a Neo4j driver.
func New(driver neo4j.DriverWithContext) *GraphStore {
	return NewWithOpener(NewDriverOpener(driver))
}

// NewWithOpener creates a GraphStore from any session opener. Tests pass
// tracking fakes here.
func NewWithOpener(opener SessionOpener) *GraphStore {
	return &GraphStore{opener: opener}
}

// SaveComponent creates or updates a component node.
func (g *GraphStore) SaveComponent(ctx context.Context, c Component) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MERGE (n:Component {id: $id}) SET n += $props`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"id":    c.ID,
		"props": componentToMap(c),
	})
	return err
}

// SaveEdge creates or updates a directed edge between two components.
func (g *GraphStore) SaveEdge(ctx context.Context, e Edge) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(
		`MATCH (a:Component {id: $from}), (b:Component {id: $to})
		 MERGE (a)-[r:%s {id: $id}]->(b)
		 SET r.src_port = $srcPort, r.dst_port = $dstPort`,
		sanitizeRelType(e.Type),
	)
	_, err := sess.Run(ctx, cypher, map[string]any{
		"from":    e.From,
		"to":      e.To,
		"id":      e.ID,
		"srcPort": e.SrcPort,
		"dstPort": e.DstPort,
	})
	return err
}

// SaveBatch saves components and edges in a single write transaction.
func (g *GraphStore) SaveBatch(ctx context.Context, components []Component, edges []Edge) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		for _, c := range components {
			cypher := `MERGE (n:Component {id: $id}) SET n += $props`
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"id":    c.ID,
				"props": componentToMap(c),
			}); err != nil {
				return nil, err
			}
		}
		for _, e := range edges {
			cypher := fmt.Sprintf(
				`MATCH (a:Component {id: $from}), (b:Component {id: $to})
				 MERGE (a)-[r:%s {id: $id}]->(b)
				 SET r.src_port = $srcPort, r.dst_port = $dstPort`,
				sanitizeRelType(e.Type),
			)
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"from":    e.From,
				"to":      e.To,
				"id":      e.ID,
				"srcPort": e.SrcPort,
				"dstPort": e.DstPort,
			}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// Neighbors returns components within the given traversal depth from a node.
func (g *GraphStore) Neighbors(ctx context.Context, nodeID string, depth int) ([]Component, error) {
	if depth <= 0 {
		depth = 1
	}
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(
		`MATCH (start:Component {id: $id})-[*1..%d]-(n:Component)
		 WHERE n.id <> $id
		 RETURN DISTINCT n`, depth)
	result, err := sess.Run(ctx, cypher, map[string]any{"id": nodeID})
	if err != nil {
		return nil, err
	}
	return collectComponents(ctx, result)
}

// FindByType returns all components of a given type.
func (g *GraphStore) FindByType(ctx context.Context, componentType string) ([]Component, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:Component {type: $type}) RETURN n`
	result, err := sess.Run(ctx, cypher, map[string]any{"type": componentType})
	if err != nil {
		return nil, err
	}
	return collectComponents(ctx, result)
}

// FindByBoard returns all components mirrored from a specific board design.
func (g *GraphStore) FindByBoard(ctx context.Context, board string) ([]Component, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:Component {board: $board}) RETURN n`
	result, err := sess.Run(ctx, cypher, map[string]any{"board": board})
	if err != nil {
		return nil, err
	}
	return collectComponents(ctx, result)
}

// TracePath finds the shortest electrical path between two components.
func (g *GraphStore) TracePath(ctx context.Context, fromID, toID string) ([]Component, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH p = shortestPath((a:Component {id: $from})-[*]-(b:Component {id: $to}))
				RETURN nodes(p) AS nodes`
	result, err := sess.Run(ctx, cypher, map[string]any{"from": fromID, "to": toID})
	if err != nil {
		return nil, err
	}
	if !result.Next(ctx) {
		return nil, fmt.Errorf("no path from %s to %s", fromID, toID)
	}

	nodesVal, ok := result.Record().Get("nodes")
	if !ok {
		return nil, fmt.Errorf("no nodes in path result")
	}
	nodeList, ok := nodesVal.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected nodes type")
	}

	var components []Component
	for _, raw := range nodeList {
		node, ok := raw.(dbtype.Node)
		if !ok {
			continue
		}
		components = append(components, componentFromProps(node.Props))
	}
	return components, nil
}

// NodeCounts returns node counts grouped by component type.
func (g *GraphStore) NodeCounts(ctx context.Context) (map[string]int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:Component) RETURN n.type AS type, count(*) AS count`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		typ, _ := rec.Get("type")
		cnt, _ := rec.Get("count")
		if t, ok := typ.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[t] = c
			}
		}
	}
	return counts, nil
}

// collectComponents reads all Component nodes from a result set.
func collectComponents(ctx context.Context, result CypherResult) ([]Component, error) {
	var items []Component
	for result.Next(ctx) {
		nVal, ok := result.Record().Get("n")
		if !ok {
			continue
		}
		node, ok := nVal.(dbtype.Node)
		if !ok {
			continue
		}
		items = append(items, componentFromProps(node.Props))
	}
	return items, nil
}
