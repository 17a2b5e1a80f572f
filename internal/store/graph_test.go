package store_test

import (
	"encoding/json"
	"testing"
	"time"

	"agentrunner/internal/store"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeIDs(nodes []store.Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

type edgeKey struct{ Source, Target, Type string }

func edgeKeys(edges []store.Edge) []edgeKey {
	keys := make([]edgeKey, len(edges))
	for i, e := range edges {
		keys[i] = edgeKey{e.SourceID, e.TargetID, e.EdgeType}
	}
	return keys
}

func TestUpsertNode_Idempotent(t *testing.T) {
	g, _ := openTestGraph(t)

	data := json.RawMessage(`{"path":"/usr/bin/claude"}`)
	require.NoError(t, g.UpsertNode("cli:claude", "cli", "claude", data))
	first, err := g.GetNode("cli:claude")
	require.NoError(t, err)
	require.NotNil(t, first)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, g.UpsertNode("cli:claude", "cli", "claude", data))

	snap, err := g.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"cli:claude"}, nodeIDs(snap.Nodes))

	second, err := g.GetNode("cli:claude")
	require.NoError(t, err)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.JSONEq(t, string(data), string(second.Data))
}

func TestUpsertNode_OverwritesFields(t *testing.T) {
	g, _ := openTestGraph(t)

	require.NoError(t, g.UpsertNode("model:opus", "model", "opus", json.RawMessage(`{"v":1}`)))
	require.NoError(t, g.UpsertNode("model:opus", "preference", "Opus", json.RawMessage(`{"v":2}`)))

	n, err := g.GetNode("model:opus")
	require.NoError(t, err)
	assert.Equal(t, "preference", n.NodeType)
	assert.Equal(t, "Opus", n.Label)
	assert.JSONEq(t, `{"v":2}`, string(n.Data))
}

func TestUpsertNode_EmptyDataDefaultsToObject(t *testing.T) {
	g, _ := openTestGraph(t)

	require.NoError(t, g.UpsertNode("cli:codex", "cli", "codex", nil))
	n, err := g.GetNode("cli:codex")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(n.Data))
}

func TestUpsertNode_RejectsEmptyID(t *testing.T) {
	g, _ := openTestGraph(t)
	assert.Error(t, g.UpsertNode("", "cli", "x", nil))
}

func TestGetNode_Absent(t *testing.T) {
	g, _ := openTestGraph(t)

	n, err := g.GetNode("cli:nope")
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestAddEdge_DuplicateSuppressed(t *testing.T) {
	g, _ := openTestGraph(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, g.AddEdge("cli:claude", "model:opus", "uses_model"))
	}
	// Same endpoints, different type is a distinct edge.
	require.NoError(t, g.AddEdge("cli:claude", "model:opus", "prefers"))

	snap, err := g.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []edgeKey{
		{"cli:claude", "model:opus", "prefers"},
		{"cli:claude", "model:opus", "uses_model"},
	}, edgeKeys(snap.Edges))
}

func TestAddEdge_DanglingEndpointsAllowed(t *testing.T) {
	g, _ := openTestGraph(t)

	require.NoError(t, g.AddEdge("cli:ghost", "model:ghost", "uses_model"))

	snap, err := g.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Edges, 1)
	assert.Empty(t, snap.Nodes)
}

func TestGetNeighbors_OutgoingOnly(t *testing.T) {
	g, _ := openTestGraph(t)

	require.NoError(t, g.UpsertNode("cli:claude", "cli", "claude", nil))
	require.NoError(t, g.UpsertNode("model:opus", "model", "opus", nil))
	require.NoError(t, g.UpsertNode("wrapper:cc", "wrapper", "cc", nil))
	require.NoError(t, g.AddEdge("cli:claude", "model:opus", "uses_model"))
	require.NoError(t, g.AddEdge("wrapper:cc", "cli:claude", "wraps"))
	require.NoError(t, g.AddEdge("cli:claude", "model:missing", "uses_model"))

	neighbors, err := g.GetNeighbors("cli:claude")
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "uses_model", neighbors[0].Edge.EdgeType)
	assert.Equal(t, "opus", neighbors[0].Node.Label)
}

func TestSubgraphForContext_MembershipFilter(t *testing.T) {
	g, _ := openTestGraph(t)

	require.NoError(t, g.UpsertNode("cli:claude", "cli", "claude", nil))
	require.NoError(t, g.UpsertNode("model:opus", "model", "opus", nil))
	require.NoError(t, g.UpsertNode("preference:theme", "preference", "theme", nil))
	require.NoError(t, g.AddEdge("cli:claude", "model:opus", "uses_model"))
	require.NoError(t, g.AddEdge("cli:claude", "preference:theme", "has_preference"))

	snap, err := g.SubgraphForContext([]string{"cli", "model"})
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"cli:claude", "model:opus"}, nodeIDs(snap.Nodes)); diff != "" {
		t.Errorf("nodes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]edgeKey{{"cli:claude", "model:opus", "uses_model"}}, edgeKeys(snap.Edges)); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestSubgraphForContext_NoTransitiveClosure(t *testing.T) {
	g, _ := openTestGraph(t)

	// cli -> preference -> model: both endpoints of neither edge survive a
	// {cli, model} filter, even though cli reaches model through preference.
	require.NoError(t, g.UpsertNode("cli:claude", "cli", "claude", nil))
	require.NoError(t, g.UpsertNode("preference:p", "preference", "p", nil))
	require.NoError(t, g.UpsertNode("model:opus", "model", "opus", nil))
	require.NoError(t, g.AddEdge("cli:claude", "preference:p", "has"))
	require.NoError(t, g.AddEdge("preference:p", "model:opus", "picks"))

	snap, err := g.SubgraphForContext([]string{"cli", "model"})
	require.NoError(t, err)
	assert.Len(t, snap.Nodes, 2)
	assert.Empty(t, snap.Edges)
}

func TestSubgraphForContext_EmptyTypes(t *testing.T) {
	g, _ := openTestGraph(t)
	require.NoError(t, g.UpsertNode("cli:claude", "cli", "claude", nil))

	snap, err := g.SubgraphForContext(nil)
	require.NoError(t, err)
	assert.Empty(t, snap.Nodes)
	assert.Empty(t, snap.Edges)
}

func TestSnapshot_SurvivesReopen(t *testing.T) {
	g, path := openTestGraph(t)
	require.NoError(t, g.UpsertNode("cli:gemini", "cli", "gemini", json.RawMessage(`{"ok":true}`)))
	require.NoError(t, g.AddEdge("cli:gemini", "provider:google", "uses_provider"))
	require.NoError(t, g.Close())

	reopened, err := store.Open(path, "")
	require.NoError(t, err)
	defer reopened.Close()

	snap, err := reopened.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"cli:gemini"}, nodeIDs(snap.Nodes))
	assert.Len(t, snap.Edges, 1)
}

func TestNodeJSONShape(t *testing.T) {
	g, _ := openTestGraph(t)
	require.NoError(t, g.UpsertNode("skill:review", "skill", "review", json.RawMessage(`{"from":"claude"}`)))

	n, err := g.GetNode("skill:review")
	require.NoError(t, err)

	out, err := json.Marshal(n)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "skill", decoded["node_type"])
	assert.Equal(t, map[string]interface{}{"from": "claude"}, decoded["data"])
}
