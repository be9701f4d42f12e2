package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripPreservesOrderAndUnknownFields(t *testing.T) {
	doc := `{
		"name": "demo",
		"viewport": {"zoom": 1.5},
		"nodes": [
			{"id": "a", "type": "gen", "position": {"x": 0, "y": 0}, "params": {"n": 3}, "color": "red"},
			{"id": "b", "type": "double", "position": {"x": 100, "y": 0}}
		],
		"edges": [
			{"id": "e1", "source": "a", "source_port": "out", "target": "b", "target_port": "in", "label": "flow"}
		]
	}`

	var wf Workflow
	require.NoError(t, json.Unmarshal([]byte(doc), &wf))

	require.Len(t, wf.Nodes, 2)
	assert.Equal(t, "a", wf.Nodes[0].ID)
	assert.Equal(t, "b", wf.Nodes[1].ID)
	assert.Contains(t, wf.Extra, "viewport")
	assert.Contains(t, wf.Nodes[0].Extra, "color")
	assert.Contains(t, wf.Edges[0].Extra, "label")

	out, err := json.Marshal(&wf)
	require.NoError(t, err)

	var roundTripped map[string]any
	require.NoError(t, json.Unmarshal(out, &roundTripped))
	assert.Contains(t, roundTripped, "viewport")

	nodes := roundTripped["nodes"].([]any)
	require.Len(t, nodes, 2)
	first := nodes[0].(map[string]any)
	assert.Equal(t, "a", first["id"])
	assert.Equal(t, "red", first["color"])
}

func TestNodeParamsPreserveNumberKind(t *testing.T) {
	var n Node
	require.NoError(t, json.Unmarshal(
		[]byte(`{"id":"a","type":"gen","position":{"x":0,"y":0},"params":{"iterations":5,"ratio":1.5}}`), &n))

	iterations, ok := n.Params["iterations"].(json.Number)
	require.True(t, ok, "integer param must decode as json.Number, not float64")
	assert.Equal(t, "5", iterations.String())

	ratio, ok := n.Params["ratio"].(json.Number)
	require.True(t, ok)
	f, err := ratio.Float64()
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)

	out, err := json.Marshal(&n)
	require.NoError(t, err)
	var roundTripped map[string]any
	require.NoError(t, json.Unmarshal(out, &roundTripped))
	params := roundTripped["params"].(map[string]any)
	assert.Equal(t, float64(5), params["iterations"])
}

func TestNodeParentIDOptional(t *testing.T) {
	var n Node
	require.NoError(t, json.Unmarshal([]byte(`{"id":"c","type":"gen","position":{"x":0,"y":0}}`), &n))
	assert.Nil(t, n.ParentID)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"c","type":"gen","position":{"x":0,"y":0},"parent_id":"L"}`), &n))
	require.NotNil(t, n.ParentID)
	assert.Equal(t, "L", *n.ParentID)
}
