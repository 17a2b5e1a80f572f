package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agentrunner/internal/logging"
)

// =============================================================================
// MEMORY GRAPH
// =============================================================================

// Node is a memory graph node. Data is an opaque JSON payload.
type Node struct {
	ID        string          `json:"id"`
	NodeType  string          `json:"node_type"`
	Label     string          `json:"label"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Edge is a directed, typed link between two node ids. Either endpoint may
// name a node that does not exist.
type Edge struct {
	SourceID  string          `json:"source_id"`
	TargetID  string          `json:"target_id"`
	EdgeType  string          `json:"edge_type"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Neighbor pairs an outgoing edge with its target node.
type Neighbor struct {
	Edge Edge `json:"edge"`
	Node Node `json:"node"`
}

// Snapshot is a set of nodes plus the edges among them.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

const nodeColumns = "id, node_type, label, data, created_at, updated_at"
const edgeColumns = "source_id, target_id, edge_type, data, created_at"

// UpsertNode creates the node or overwrites its type, label and data.
// updated_at never moves backwards.
func (g *MemoryGraph) UpsertNode(id, nodeType, label string, data json.RawMessage) error {
	timer := logging.StartTimer(logging.CategoryStore, "UpsertNode")
	defer timer.Stop()

	if id == "" {
		return fmt.Errorf("invalid memory node: id must be non-empty")
	}
	payload := encodeData(data)
	ts := now()

	logging.StoreDebug("Upserting node: %s (%s)", id, nodeType)

	_, err := g.db.Exec(
		`INSERT INTO memory_nodes (id, node_type, label, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			node_type = excluded.node_type,
			label = excluded.label,
			data = excluded.data,
			updated_at = MAX(memory_nodes.updated_at, excluded.updated_at)`,
		id, nodeType, label, payload, ts, ts,
	)
	if err != nil {
		logging.StoreError("Failed to upsert node %s: %v", id, err)
		return fmt.Errorf("failed to upsert node: %w", err)
	}
	return nil
}

// AddEdge inserts an edge; a duplicate (source, target, type) is ignored.
func (g *MemoryGraph) AddEdge(sourceID, targetID, edgeType string) error {
	timer := logging.StartTimer(logging.CategoryStore, "AddEdge")
	defer timer.Stop()

	logging.StoreDebug("Adding edge: %s -[%s]-> %s", sourceID, edgeType, targetID)

	_, err := g.db.Exec(
		`INSERT OR IGNORE INTO memory_edges (source_id, target_id, edge_type, created_at)
		 VALUES (?, ?, ?, ?)`,
		sourceID, targetID, edgeType, now(),
	)
	if err != nil {
		logging.StoreError("Failed to add edge %s -[%s]-> %s: %v", sourceID, edgeType, targetID, err)
		return fmt.Errorf("failed to add edge: %w", err)
	}
	return nil
}

// GetNode returns the node with id, or nil when there is none.
func (g *MemoryGraph) GetNode(id string) (*Node, error) {
	row := g.db.QueryRow("SELECT "+nodeColumns+" FROM memory_nodes WHERE id = ?", id)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	return &n, nil
}

// GetNeighbors returns the outgoing edges of id joined to their target
// nodes. Edges whose target does not exist are not returned.
func (g *MemoryGraph) GetNeighbors(id string) ([]Neighbor, error) {
	timer := logging.StartTimer(logging.CategoryStore, "GetNeighbors")
	defer timer.Stop()

	rows, err := g.db.Query(
		`SELECT e.source_id, e.target_id, e.edge_type, e.data, e.created_at,
		        n.id, n.node_type, n.label, n.data, n.created_at, n.updated_at
		 FROM memory_edges e
		 JOIN memory_nodes n ON n.id = e.target_id
		 WHERE e.source_id = ?
		 ORDER BY e.created_at, e.target_id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query neighbors: %w", err)
	}
	defer rows.Close()

	var out []Neighbor
	for rows.Next() {
		var (
			nb                             Neighbor
			edgeData                       sql.NullString
			edgeCreated                    string
			nodeData, nodeCreated, nodeUpd string
		)
		if err := rows.Scan(
			&nb.Edge.SourceID, &nb.Edge.TargetID, &nb.Edge.EdgeType, &edgeData, &edgeCreated,
			&nb.Node.ID, &nb.Node.NodeType, &nb.Node.Label, &nodeData, &nodeCreated, &nodeUpd,
		); err != nil {
			return nil, fmt.Errorf("failed to scan neighbor: %w", err)
		}
		nb.Edge.Data = decodeNullData(edgeData)
		nb.Edge.CreatedAt = parseTime(edgeCreated)
		nb.Node.Data = decodeData(nodeData)
		nb.Node.CreatedAt = parseTime(nodeCreated)
		nb.Node.UpdatedAt = parseTime(nodeUpd)
		out = append(out, nb)
	}
	return out, rows.Err()
}

// SubgraphForContext returns the nodes whose type is in types and only
// those edges whose source and target are both in that node set. This is a
// membership filter, not a traversal: an edge from an included node to an
// excluded one is dropped.
func (g *MemoryGraph) SubgraphForContext(types []string) (*Snapshot, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SubgraphForContext")
	defer timer.Stop()

	snap := &Snapshot{Nodes: []Node{}, Edges: []Edge{}}
	if len(types) == 0 {
		return snap, nil
	}

	args := make([]interface{}, len(types))
	for i, t := range types {
		args[i] = t
	}
	nodes, err := g.queryNodes(
		"SELECT "+nodeColumns+" FROM memory_nodes WHERE node_type IN ("+placeholders(len(types))+") ORDER BY id",
		args...,
	)
	if err != nil {
		return nil, err
	}
	snap.Nodes = nodes

	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	edges, err := g.edgesBetween(ids)
	if err != nil {
		return nil, err
	}
	snap.Edges = edges

	logging.StoreDebug("Subgraph for %v: %d nodes, %d edges", types, len(snap.Nodes), len(snap.Edges))
	return snap, nil
}

func (g *MemoryGraph) edgesBetween(ids []string) ([]Edge, error) {
	if len(ids) == 0 {
		return []Edge{}, nil
	}

	args := make([]interface{}, 0, 2*len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	for _, id := range ids {
		args = append(args, id)
	}
	ph := placeholders(len(ids))
	return g.queryEdges(
		"SELECT "+edgeColumns+" FROM memory_edges WHERE source_id IN ("+ph+") AND target_id IN ("+ph+") ORDER BY source_id, target_id, edge_type",
		args...,
	)
}

// Snapshot returns every node and every edge.
func (g *MemoryGraph) Snapshot() (*Snapshot, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Snapshot")
	defer timer.Stop()

	nodes, err := g.queryNodes("SELECT " + nodeColumns + " FROM memory_nodes ORDER BY id")
	if err != nil {
		return nil, err
	}
	edges, err := g.queryEdges("SELECT " + edgeColumns + " FROM memory_edges ORDER BY source_id, target_id, edge_type")
	if err != nil {
		return nil, err
	}
	return &Snapshot{Nodes: nodes, Edges: edges}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(r rowScanner) (Node, error) {
	var (
		n                  Node
		data, created, upd string
	)
	if err := r.Scan(&n.ID, &n.NodeType, &n.Label, &data, &created, &upd); err != nil {
		return Node{}, err
	}
	n.Data = decodeData(data)
	n.CreatedAt = parseTime(created)
	n.UpdatedAt = parseTime(upd)
	return n, nil
}

func (g *MemoryGraph) queryNodes(query string, args ...interface{}) ([]Node, error) {
	rows, err := g.db.Query(query, args...)
	if err != nil {
		logging.StoreError("Node query failed: %v", err)
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	nodes := []Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (g *MemoryGraph) queryEdges(query string, args ...interface{}) ([]Edge, error) {
	rows, err := g.db.Query(query, args...)
	if err != nil {
		logging.StoreError("Edge query failed: %v", err)
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	edges := []Edge{}
	for rows.Next() {
		var (
			e       Edge
			data    sql.NullString
			created string
		)
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.EdgeType, &data, &created); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Data = decodeNullData(data)
		e.CreatedAt = parseTime(created)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func encodeData(data json.RawMessage) string {
	if len(data) == 0 {
		return "{}"
	}
	return string(data)
}

// decodeData wraps non-JSON payloads as a JSON string so a Node always
// marshals.
func decodeData(s string) json.RawMessage {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	quoted, _ := json.Marshal(s)
	return quoted
}

func decodeNullData(s sql.NullString) json.RawMessage {
	if !s.Valid {
		return nil
	}
	return decodeData(s.String)
}
