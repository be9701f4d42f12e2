package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModule struct {
	id       string
	register func(reg *PluginRegistrar)
}

func (m *fakeModule) PluginID() string { return m.id }
func (m *fakeModule) Register(reg *PluginRegistrar) {
	if m.register != nil {
		m.register(reg)
	}
}

func noopRun(x float64) (float64, error) { return x, nil }

func simpleModule(id, nodeType string) *fakeModule {
	return &fakeModule{id: id, register: func(reg *PluginRegistrar) {
		reg.RegisterNode(NodeSpec{
			Type:     nodeType,
			PortsIn:  []PortSpec{{Name: "x"}},
			PortsOut: []PortSpec{{Name: "x"}},
		}, noopRun)
	}}
}

func TestWrapRunFuncRejectsMapReturn(t *testing.T) {
	reg := New("", nil)
	p := &PluginRegistrar{pluginID: "t/p", registry: reg}
	p.RegisterNode(NodeSpec{Type: "bad", PortsOut: []PortSpec{{Name: "m"}}},
		func() (map[string]string, error) { return nil, nil })
	require.Error(t, p.err)
	assert.Contains(t, p.err.Error(), "must not return a mapping")
}

func TestWrapRunFuncRejectsArityMismatch(t *testing.T) {
	reg := New("", nil)
	p := &PluginRegistrar{pluginID: "t/p", registry: reg}
	p.RegisterNode(NodeSpec{Type: "bad", PortsIn: []PortSpec{{Name: "a"}, {Name: "b"}}},
		func(a float64) (float64, error) { return a, nil })
	require.Error(t, p.err)
	assert.Contains(t, p.err.Error(), "one per ports_in")
}

func TestWrapRunFuncPrecedenceEdgeOverParamOverDefault(t *testing.T) {
	reg := New("", nil)
	p := &PluginRegistrar{pluginID: "t/p", registry: reg}
	p.RegisterNode(NodeSpec{
		Type:     "echo",
		PortsIn:  []PortSpec{{Name: "x", HasDefault: true, Default: 9.0}},
		PortsOut: []PortSpec{{Name: "x"}},
	}, noopRun)
	require.NoError(t, p.err)

	exec := reg.executors["echo"]
	require.NotNil(t, exec)

	out, err := exec(context.Background(), map[string]any{"x": 2.0}, map[string]any{"x": 5.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, out["x"], "edge value must win over params")

	out, err = exec(context.Background(), map[string]any{"x": 2.0}, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 2.0, out["x"], "param must win over default when no edge feeds the port")

	out, err = exec(context.Background(), map[string]any{}, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 9.0, out["x"], "default applies when neither edge nor param supplies a value")
}

func TestWrapRunFuncConvertsJSONNumberParams(t *testing.T) {
	reg := New("", nil)
	p := &PluginRegistrar{pluginID: "t/p", registry: reg}
	p.RegisterNode(NodeSpec{
		Type:     "echo",
		PortsIn:  []PortSpec{{Name: "x"}},
		PortsOut: []PortSpec{{Name: "x"}},
	}, noopRun)
	require.NoError(t, p.err)

	exec := reg.executors["echo"]
	require.NotNil(t, exec)

	out, err := exec(context.Background(), map[string]any{"x": json.Number("5")}, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 5.0, out["x"], "a json.Number param decoded with UseNumber must convert to the run function's float64 parameter")
}

func TestActivateDeactivateDeleteLifecycle(t *testing.T) {
	mod := simpleModule("proj/plug", "thing")
	reg := New("", []Module{mod})
	ctx := context.Background()

	require.NoError(t, reg.Discover(ctx))
	snap := reg.Snapshot()
	_, _, ok := snap.Lookup("thing")
	assert.True(t, ok, "module should be active after discovery")

	require.NoError(t, reg.Deactivate(ctx, "proj/plug"))
	snap = reg.Snapshot()
	_, _, ok = snap.Lookup("thing")
	assert.False(t, ok, "type must be gone from specs once deactivated")
	assert.Equal(t, "proj/plug", snap.InactiveTypes["thing"], "deactivated type must report inactive, not unknown")

	require.NoError(t, reg.Activate(ctx, "proj/plug"))
	snap = reg.Snapshot()
	_, _, ok = snap.Lookup("thing")
	assert.True(t, ok, "reactivation must restore the type")

	require.NoError(t, reg.Deactivate(ctx, "proj/plug"))
	require.NoError(t, reg.Delete(ctx, "proj/plug"))
	snap = reg.Snapshot()
	_, stillInactive := snap.InactiveTypes["thing"]
	assert.False(t, stillInactive, "a deleted plugin's types must not report as inactive")

	err := reg.Activate(ctx, "proj/plug")
	require.Error(t, err, "a deleted plugin can never be reactivated")
}

func TestDeleteRequiresInactiveFirst(t *testing.T) {
	mod := simpleModule("proj/plug", "thing")
	reg := New("", []Module{mod})
	ctx := context.Background()
	require.NoError(t, reg.Discover(ctx))

	err := reg.Delete(ctx, "proj/plug")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be inactive")
}

func TestReloadResetsEverKnownType(t *testing.T) {
	mod := simpleModule("proj/plug", "thing")
	reg := New("", []Module{mod})
	ctx := context.Background()
	require.NoError(t, reg.Discover(ctx))
	require.NoError(t, reg.Deactivate(ctx, "proj/plug"))

	snap := reg.Snapshot()
	assert.Contains(t, snap.InactiveTypes, "thing")

	require.NoError(t, reg.Reload(ctx))
	snap = reg.Snapshot()
	_, _, ok := snap.Lookup("thing")
	assert.True(t, ok, "reload re-runs discovery and reactivates compiled modules")
	assert.NotContains(t, snap.InactiveTypes, "thing")
}
