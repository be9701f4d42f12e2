package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/burstflow/internal/registry"
	"github.com/vk/burstflow/internal/workflow"
)

func snapshotWith(specs ...registry.NodeSpec) registry.Snapshot {
	s := registry.Snapshot{Specs: make(map[string]*registry.NodeSpec), Executors: make(map[string]registry.Executor)}
	for i := range specs {
		s.Specs[specs[i].Type] = &specs[i]
	}
	return s
}

func TestUnknownNodeType(t *testing.T) {
	wf := &workflow.Workflow{Nodes: []workflow.Node{{ID: "a", Type: "does_not_exist"}}}
	issues := Validate(wf, snapshotWith())
	require.Len(t, issues, 1)
	assert.Equal(t, LevelError, issues[0].Level)
	assert.Contains(t, issues[0].Message, "unknown node type")
}

func TestBuiltinLoopTypesSkipExistenceCheck(t *testing.T) {
	wf := &workflow.Workflow{Nodes: []workflow.Node{{ID: "l", Type: "loop_group"}}}
	issues := Validate(wf, snapshotWith())
	assert.Empty(t, issues)
}

func TestRequiredInputMissing(t *testing.T) {
	spec := registry.NodeSpec{
		Type:    "double",
		PortsIn: []registry.PortSpec{{Name: "in", Required: true}},
	}
	wf := &workflow.Workflow{Nodes: []workflow.Node{{ID: "b", Type: "double"}}}
	issues := Validate(wf, snapshotWith(spec))
	require.Len(t, issues, 1)
	assert.Equal(t, LevelError, issues[0].Level)
	assert.Equal(t, "b", issues[0].NodeID)
	assert.Contains(t, issues[0].Message, `"in"`)
}

func TestRequiredInputSatisfiedByEdgeParamOrDefault(t *testing.T) {
	spec := registry.NodeSpec{
		Type: "double",
		PortsIn: []registry.PortSpec{
			{Name: "a", Required: true},
			{Name: "b", Required: true},
			{Name: "c", Required: true, Default: 1, HasDefault: true},
		},
	}
	wf := &workflow.Workflow{
		Nodes: []workflow.Node{
			{ID: "src", Type: "double"},
			{ID: "dst", Type: "double", Params: map[string]any{"b": 2}},
		},
		Edges: []workflow.Edge{
			{ID: "e1", Source: "src", SourcePort: "out", Target: "dst", TargetPort: "a"},
		},
	}
	spec.PortsOut = []registry.PortSpec{{Name: "out"}}
	issues := Validate(wf, snapshotWith(spec))
	for _, iss := range issues {
		assert.NotEqual(t, "dst", iss.NodeID, "dst should have no required-input errors: %+v", iss)
	}
}

func TestCycleIgnoringBackEdges(t *testing.T) {
	spec := registry.NodeSpec{Type: "n", PortsIn: []registry.PortSpec{{Name: "in"}}, PortsOut: []registry.PortSpec{{Name: "out"}}}
	wf := &workflow.Workflow{
		Nodes: []workflow.Node{{ID: "A", Type: "n"}, {ID: "B", Type: "n"}, {ID: "C", Type: "n"}},
		Edges: []workflow.Edge{
			{ID: "e1", Source: "A", SourcePort: "out", Target: "B", TargetPort: "in"},
			{ID: "e2", Source: "B", SourcePort: "out", Target: "C", TargetPort: "in"},
			{ID: "e3", Source: "C", SourcePort: "out", Target: "A", TargetPort: "in"},
		},
	}
	issues := Validate(wf, snapshotWith(spec))
	found := false
	for _, iss := range issues {
		if iss.Level == LevelError && contains(iss.Message, "cycle") {
			found = true
		}
	}
	assert.True(t, found, "expected a cycle error, got %+v", issues)

	wf.Edges[2].IsBackEdge = true
	issues = Validate(wf, snapshotWith(spec))
	for _, iss := range issues {
		assert.False(t, iss.Level == LevelError && contains(iss.Message, "cycle"), "back-edge should suppress the cycle error")
	}
}

func TestLoopPairing(t *testing.T) {
	wf := &workflow.Workflow{
		Nodes: []workflow.Node{
			{ID: "S", Type: "loop_start"},
			{ID: "E", Type: "loop_end", Params: map[string]any{"pair_id": "S"}},
			{ID: "S2", Type: "loop_start"},
		},
	}
	issues := Validate(wf, snapshotWith())
	var warnedS2 bool
	for _, iss := range issues {
		if iss.NodeID == "S2" && iss.Level == LevelWarning {
			warnedS2 = true
		}
		assert.NotEqual(t, "S", iss.NodeID, "S is properly paired, should have no issues: %+v", iss)
		assert.NotEqual(t, "E", iss.NodeID, "E is properly paired, should have no issues: %+v", iss)
	}
	assert.True(t, warnedS2)
}

func TestLoopGroupMembership(t *testing.T) {
	parent := "not_a_loop_group"
	wf := &workflow.Workflow{
		Nodes: []workflow.Node{
			{ID: "other", Type: "loop_start"},
			{ID: "child", Type: "loop_start", ParentID: &parent},
		},
	}
	issues := Validate(wf, snapshotWith())
	found := false
	for _, iss := range issues {
		if iss.NodeID == "child" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDeterministicOrdering(t *testing.T) {
	wf := &workflow.Workflow{Nodes: []workflow.Node{
		{ID: "z", Type: "missing1"},
		{ID: "a", Type: "missing2"},
	}}
	first := Validate(wf, snapshotWith())
	second := Validate(wf, snapshotWith())
	require.Equal(t, first, second)
	// Each node gets an unknown-type error and a no-connected-edges warning:
	// both errors come first, then both warnings, each pair ordered by id.
	require.Len(t, first, 4)
	assert.Equal(t, "a", first[0].NodeID)
	assert.Equal(t, "z", first[1].NodeID)
	assert.Equal(t, LevelError, first[1].Level)
	assert.Equal(t, "a", first[2].NodeID)
	assert.Equal(t, LevelWarning, first[2].Level)
	assert.Equal(t, "z", first[3].NodeID)
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
