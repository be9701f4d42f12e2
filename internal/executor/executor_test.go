package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/burstflow/internal/pluginlog"
	"github.com/vk/burstflow/internal/registry"
	"github.com/vk/burstflow/internal/workflow"
)

func drain(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func kinds(events []Event) []string {
	ks := make([]string, len(events))
	for i, e := range events {
		ks[i] = e.Kind
	}
	return ks
}

func doubleSpec() (registry.NodeSpec, registry.Executor) {
	spec := registry.NodeSpec{
		Type:     "double",
		PortsIn:  []registry.PortSpec{{Name: "x", Required: true}},
		PortsOut: []registry.PortSpec{{Name: "x"}},
	}
	exec := func(ctx context.Context, params, inputs map[string]any) (map[string]any, error) {
		x, ok := inputs["x"].(float64)
		if !ok {
			x, _ = params["x"].(float64)
		}
		return map[string]any{"x": x * 2}, nil
	}
	return spec, exec
}

func ptr(id, srcPort, tgtPort, src, tgt string) workflow.Edge {
	return workflow.Edge{ID: id, Source: src, SourcePort: srcPort, Target: tgt, TargetPort: tgtPort}
}

func TestExecuteLinearChain(t *testing.T) {
	doubleT, doubleExec := doubleSpec()
	snap := registry.Snapshot{
		Specs:     map[string]*registry.NodeSpec{"double": &doubleT},
		Executors: map[string]registry.Executor{"double": doubleExec},
	}

	wf := &workflow.Workflow{
		Nodes: []workflow.Node{
			{ID: "a", Type: "double", Params: map[string]any{"x": 1.0}},
			{ID: "b", Type: "double"},
		},
		Edges: []workflow.Edge{ptr("e1", "x", "x", "a", "b")},
	}

	events, result := Execute(context.Background(), wf, snap, Options{})
	got := drain(t, events)

	require.NoError(t, result.Err)
	assert.False(t, result.Cancelled)
	assert.Equal(t, 2.0, result.Outputs["a"]["x"])
	assert.Equal(t, 4.0, result.Outputs["b"]["x"])
	assert.Equal(t, "completed", result.Statuses["a"])
	assert.Equal(t, "completed", result.Statuses["b"])
	assert.Equal(t, []string{"start", "node_start", "node_complete", "node_start", "node_complete", "complete"}, kinds(got))
}

func TestExecuteFanInStacking(t *testing.T) {
	sumSpec := registry.NodeSpec{
		Type:     "sum",
		PortsIn:  []registry.PortSpec{{Name: "values"}},
		PortsOut: []registry.PortSpec{{Name: "total"}},
	}
	sumExec := func(ctx context.Context, params, inputs map[string]any) (map[string]any, error) {
		values, ok := inputs["values"].([]any)
		if !ok {
			return map[string]any{"total": inputs["values"]}, nil
		}
		total := 0.0
		for _, v := range values {
			total += v.(float64)
		}
		return map[string]any{"total": total}, nil
	}
	constSpec := registry.NodeSpec{Type: "const", PortsOut: []registry.PortSpec{{Name: "x"}}}
	constExec := func(ctx context.Context, params, inputs map[string]any) (map[string]any, error) {
		return map[string]any{"x": params["x"]}, nil
	}

	snap := registry.Snapshot{
		Specs: map[string]*registry.NodeSpec{"sum": &sumSpec, "const": &constSpec},
		Executors: map[string]registry.Executor{
			"sum": sumExec, "const": constExec,
		},
	}

	wf := &workflow.Workflow{
		Nodes: []workflow.Node{
			{ID: "a", Type: "const", Params: map[string]any{"x": 1.0}},
			{ID: "b", Type: "const", Params: map[string]any{"x": 2.0}},
			{ID: "c", Type: "const", Params: map[string]any{"x": 3.0}},
			{ID: "s", Type: "sum"},
		},
		Edges: []workflow.Edge{
			ptr("e1", "x", "values", "a", "s"),
			ptr("e2", "x", "values", "b", "s"),
			ptr("e3", "x", "values", "c", "s"),
		},
	}

	_, result := Execute(context.Background(), wf, snap, Options{})
	require.NoError(t, result.Err)
	assert.Equal(t, 6.0, result.Outputs["s"]["total"])
}

func TestExecuteUnavailableNode(t *testing.T) {
	snap := registry.Snapshot{Specs: map[string]*registry.NodeSpec{}, Executors: map[string]registry.Executor{}}
	wf := &workflow.Workflow{
		Nodes: []workflow.Node{{ID: "a", Type: "ghost"}},
	}

	events, result := Execute(context.Background(), wf, snap, Options{})
	got := drain(t, events)

	require.Error(t, result.Err)
	var unavail *UnavailableError
	require.ErrorAs(t, result.Err, &unavail)
	assert.Equal(t, "unknown", unavail.Reason)
	assert.Equal(t, "node_error", got[len(got)-1].Kind)
}

func TestExecuteInactivePluginDistinctFromUnknown(t *testing.T) {
	snap := registry.Snapshot{
		Specs:         map[string]*registry.NodeSpec{},
		Executors:     map[string]registry.Executor{},
		InactiveTypes: map[string]string{"bubble_pass": "sorting/bubble"},
	}
	wf := &workflow.Workflow{Nodes: []workflow.Node{{ID: "a", Type: "bubble_pass"}}}

	_, result := Execute(context.Background(), wf, snap, Options{})
	var unavail *UnavailableError
	require.ErrorAs(t, result.Err, &unavail)
	assert.Equal(t, "inactive", unavail.Reason)
}

func TestExecuteMutedNodePassesThrough(t *testing.T) {
	doubleT, doubleExec := doubleSpec()
	snap := registry.Snapshot{
		Specs:     map[string]*registry.NodeSpec{"double": &doubleT},
		Executors: map[string]registry.Executor{"double": doubleExec},
	}
	wf := &workflow.Workflow{
		Nodes: []workflow.Node{
			{ID: "a", Type: "double", Params: map[string]any{"x": 5.0}},
			{ID: "b", Type: "double", Muted: true},
		},
		Edges: []workflow.Edge{ptr("e1", "x", "x", "a", "b")},
	}

	events, result := Execute(context.Background(), wf, snap, Options{})
	got := drain(t, events)
	require.NoError(t, result.Err)
	assert.Equal(t, 10.0, result.Outputs["a"]["x"])
	assert.Equal(t, 10.0, result.Outputs["b"]["x"], "muted node passes its input straight through instead of doubling it")

	var muteLog *Event
	for i := range got {
		if got[i].Kind == "log" && got[i].Fields["node_id"] == "b" {
			muteLog = &got[i]
			break
		}
	}
	require.NotNil(t, muteLog, "muting a node must emit a log event describing the pass-through")
	assert.Equal(t, "info", muteLog.Fields["level"])
	assert.Equal(t, "muted - passing inputs through", muteLog.Fields["message"])
}

func TestExecuteContainerLoop(t *testing.T) {
	doubleT, doubleExec := doubleSpec()
	snap := registry.Snapshot{
		Specs:     map[string]*registry.NodeSpec{"double": &doubleT},
		Executors: map[string]registry.Executor{"double": doubleExec},
	}

	loopID := "L"
	wf := &workflow.Workflow{
		Nodes: []workflow.Node{
			{ID: loopID, Type: "loop_group", Params: map[string]any{"iterations": 3.0, "x": 1.0}},
			{ID: "c", Type: "double", ParentID: &loopID},
		},
		Edges: []workflow.Edge{
			ptr("in", "x", "x", loopID, "c"),
			ptr("back", "x", "x", "c", loopID),
		},
	}

	events, result := Execute(context.Background(), wf, snap, Options{})
	got := drain(t, events)
	require.NoError(t, result.Err)
	assert.Equal(t, 8.0, result.Outputs[loopID]["x"])

	var loopIndices []int
	for _, ev := range got {
		if ev.Kind == "node_start" && ev.Fields["node_id"] == "c" {
			loopIndices = append(loopIndices, ev.Fields["loop_index"].(int))
		}
	}
	assert.Equal(t, []int{0, 1, 2}, loopIndices)
}

func TestExecuteContainerLoopMutedSkipsIterations(t *testing.T) {
	doubleT, doubleExec := doubleSpec()
	snap := registry.Snapshot{
		Specs:     map[string]*registry.NodeSpec{"double": &doubleT},
		Executors: map[string]registry.Executor{"double": doubleExec},
	}
	loopID := "L"
	wf := &workflow.Workflow{
		Nodes: []workflow.Node{
			{ID: loopID, Type: "loop_group", Muted: true, Params: map[string]any{"iterations": 3.0, "x": 1.0}},
			{ID: "c", Type: "double", ParentID: &loopID},
		},
		Edges: []workflow.Edge{
			ptr("in", "x", "x", loopID, "c"),
			ptr("back", "x", "x", "c", loopID),
		},
	}

	_, result := Execute(context.Background(), wf, snap, Options{})
	require.NoError(t, result.Err)
	assert.Equal(t, 1.0, result.Outputs[loopID]["x"])
	assert.Equal(t, "skipped", result.Statuses["c"])
}

func incrementSpec() (registry.NodeSpec, registry.Executor) {
	spec := registry.NodeSpec{
		Type:     "increment",
		PortsIn:  []registry.PortSpec{{Name: "n"}},
		PortsOut: []registry.PortSpec{{Name: "n"}},
	}
	exec := func(ctx context.Context, params, inputs map[string]any) (map[string]any, error) {
		n, _ := inputs["n"].(float64)
		return map[string]any{"n": n + 1}, nil
	}
	return spec, exec
}

func TestExecutePairedLoop(t *testing.T) {
	incT, incExec := incrementSpec()
	snap := registry.Snapshot{
		Specs:     map[string]*registry.NodeSpec{"increment": &incT},
		Executors: map[string]registry.Executor{"increment": incExec},
	}

	wf := &workflow.Workflow{
		Nodes: []workflow.Node{
			{ID: "S", Type: "loop_start", Params: map[string]any{"iterations": 4.0, "in_1": 0.0}},
			{ID: "body", Type: "increment"},
			{ID: "E", Type: "loop_end", Params: map[string]any{"pair_id": "S"}},
		},
		Edges: []workflow.Edge{
			ptr("e1", "out_1", "n", "S", "body"),
			ptr("e2", "n", "in_1", "body", "E"),
		},
	}

	_, result := Execute(context.Background(), wf, snap, Options{})
	require.NoError(t, result.Err)
	assert.Equal(t, 4.0, result.Outputs["E"]["out_1"])
}

func TestExecuteBackEdgeLoop(t *testing.T) {
	incT, incExec := incrementSpec()
	snap := registry.Snapshot{
		Specs:     map[string]*registry.NodeSpec{"increment": &incT},
		Executors: map[string]registry.Executor{"increment": incExec},
	}

	wf := &workflow.Workflow{
		Nodes: []workflow.Node{
			{ID: "LN", Type: "loop_node", Params: map[string]any{"iterations": 5.0, "init_1": 0.0}},
			{ID: "chain", Type: "increment"},
		},
		Edges: []workflow.Edge{
			ptr("fwd", "loop_1", "n", "LN", "chain"),
			{ID: "fb", Source: "chain", SourcePort: "n", Target: "LN", TargetPort: "feedback_1", IsBackEdge: true},
		},
	}

	_, result := Execute(context.Background(), wf, snap, Options{})
	require.NoError(t, result.Err)
	assert.Equal(t, 5.0, result.Outputs["LN"]["done_1"])
	assert.Equal(t, 5.0, result.Outputs["LN"]["loop_1"])
}

func TestExecuteCyclicGraphReportsFatalError(t *testing.T) {
	doubleT, doubleExec := doubleSpec()
	snap := registry.Snapshot{
		Specs:     map[string]*registry.NodeSpec{"double": &doubleT},
		Executors: map[string]registry.Executor{"double": doubleExec},
	}
	wf := &workflow.Workflow{
		Nodes: []workflow.Node{
			{ID: "a", Type: "double"},
			{ID: "b", Type: "double"},
		},
		Edges: []workflow.Edge{
			ptr("e1", "x", "x", "a", "b"),
			ptr("e2", "x", "x", "b", "a"),
		},
	}

	events, result := Execute(context.Background(), wf, snap, Options{})
	got := drain(t, events)

	require.Error(t, result.Err)
	require.NotEmpty(t, got)
	assert.Equal(t, "node_error", got[len(got)-1].Kind)
	assert.Equal(t, "cyclic", got[len(got)-1].Fields["kind"])
}

func TestExecutePanicRecoveredAsRuntimeError(t *testing.T) {
	panicSpec := registry.NodeSpec{
		Type:     "panics",
		PortsOut: []registry.PortSpec{{Name: "x"}},
	}
	panicExec := func(ctx context.Context, params, inputs map[string]any) (map[string]any, error) {
		panic("boom")
	}
	snap := registry.Snapshot{
		Specs:     map[string]*registry.NodeSpec{"panics": &panicSpec},
		Executors: map[string]registry.Executor{"panics": panicExec},
	}
	wf := &workflow.Workflow{Nodes: []workflow.Node{{ID: "a", Type: "panics"}}}

	events, result := Execute(context.Background(), wf, snap, Options{})
	got := drain(t, events)

	require.Error(t, result.Err)
	var re *RuntimeError
	require.ErrorAs(t, result.Err, &re)
	assert.Contains(t, re.Error(), "boom")
	assert.NotEmpty(t, re.StackTrace)
	assert.Equal(t, "errored", result.Statuses["a"])
	assert.Equal(t, "node_error", got[len(got)-1].Kind)
}

func TestExecuteBreakpointBlocksUntilResumed(t *testing.T) {
	doubleT, doubleExec := doubleSpec()
	snap := registry.Snapshot{
		Specs:     map[string]*registry.NodeSpec{"double": &doubleT},
		Executors: map[string]registry.Executor{"double": doubleExec},
	}
	wf := &workflow.Workflow{
		Nodes: []workflow.Node{{ID: "a", Type: "double", Params: map[string]any{"x": 1.0}}},
	}

	resume := make(chan string, 1)
	opts := Options{Breakpoints: map[string]bool{"a": true}, Resume: resume}

	events, result := Execute(context.Background(), wf, snap, opts)

	var got []Event
	for ev := range events {
		got = append(got, ev)
		if ev.Kind == "node_breakpoint" {
			resume <- "a"
		}
	}

	require.NoError(t, result.Err)
	assert.Equal(t, 2.0, result.Outputs["a"]["x"])
	assert.Equal(t, []string{"start", "node_breakpoint", "log", "node_start", "node_complete", "complete"}, kinds(got))

	logEv := got[2]
	assert.Equal(t, "a", logEv.Fields["node_id"])
	assert.Equal(t, "warn", logEv.Fields["level"])
	assert.Equal(t, "breakpoint hit - inspecting node inputs", logEv.Fields["message"])
}

func TestExecutePluginLogRoutesThroughEventStream(t *testing.T) {
	loggingSpec := registry.NodeSpec{
		Type:     "logging",
		PortsOut: []registry.PortSpec{{Name: "x"}},
	}
	loggingExec := func(ctx context.Context, params, inputs map[string]any) (map[string]any, error) {
		pluginlog.Info("hello from plugin")
		return map[string]any{"x": 1.0}, nil
	}
	snap := registry.Snapshot{
		Specs:     map[string]*registry.NodeSpec{"logging": &loggingSpec},
		Executors: map[string]registry.Executor{"logging": loggingExec},
	}
	wf := &workflow.Workflow{Nodes: []workflow.Node{{ID: "a", Type: "logging"}}}

	events, result := Execute(context.Background(), wf, snap, Options{})
	got := drain(t, events)
	require.NoError(t, result.Err)

	var pluginLog *Event
	for i := range got {
		if got[i].Kind == "log" && got[i].Fields["node_id"] == "a" {
			pluginLog = &got[i]
			break
		}
	}
	require.NotNil(t, pluginLog, "a plugin's pluginlog call must surface as a log event tagged with the running node")
	assert.Equal(t, "info", pluginLog.Fields["level"])
	assert.Equal(t, "hello from plugin", pluginLog.Fields["message"])
}

func TestExecuteBreakpointCancelledWithoutResumeChannel(t *testing.T) {
	doubleT, doubleExec := doubleSpec()
	snap := registry.Snapshot{
		Specs:     map[string]*registry.NodeSpec{"double": &doubleT},
		Executors: map[string]registry.Executor{"double": doubleExec},
	}
	wf := &workflow.Workflow{
		Nodes: []workflow.Node{{ID: "a", Type: "double", Params: map[string]any{"x": 1.0}}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	opts := Options{Breakpoints: map[string]bool{"a": true}}

	events, result := Execute(ctx, wf, snap, opts)

	var sawBreakpoint bool
	for ev := range events {
		if ev.Kind == "node_breakpoint" {
			sawBreakpoint = true
			cancel()
		}
	}

	assert.True(t, sawBreakpoint)
	assert.True(t, result.Cancelled)
}

func TestExecuteCancellation(t *testing.T) {
	doubleT, doubleExec := doubleSpec()
	snap := registry.Snapshot{
		Specs:     map[string]*registry.NodeSpec{"double": &doubleT},
		Executors: map[string]registry.Executor{"double": doubleExec},
	}
	wf := &workflow.Workflow{Nodes: []workflow.Node{{ID: "a", Type: "double"}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events, result := Execute(ctx, wf, snap, Options{})
	drain(t, events)
	assert.True(t, result.Cancelled)
}
