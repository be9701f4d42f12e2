package executor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vk/burstflow/internal/node"
	"github.com/vk/burstflow/internal/workflow"
)

// runContainerLoop drives a loop_group node: its child subgraph (nodes whose
// parent_id names it) runs once per iteration, with the loop_group's own
// outputs acting as the state children read from and write back to.
func (r *run) runContainerLoop(l *workflow.Node) error {
	childIDs := r.children[l.ID]
	childSet := toSet(childIDs)
	// Only edges from outside the child subgraph seed the initial state; an
	// edge from a child back into l is the per-iteration feedback wire, not
	// a source of l's starting value.
	externalEdges := excludingSources(r.wf.Edges, childSet)
	state := mergeInitial(gatherInputs(r.outputs, externalEdges, l.ID), l.Params)
	r.outputs[l.ID] = state

	r.tracked[l.ID].SetStatus(node.Running)
	r.emit(nodeStartEvent(time.Now(), l.ID, l.Type, nil))

	if l.Muted {
		// Zero iterations: the loop_group's outputs already equal whatever
		// it received, matching ordinary mute pass-through.
		r.emit(nodeCompleteEvent(time.Now(), l.ID, summarizeMap(state), 0, nil))
		r.tracked[l.ID].SetStatus(node.Completed)
		return nil
	}

	iterations := toInt(l.Params["iterations"])
	childOrder, err := topoOrder(toSet(childIDs), r.wf.Edges)
	if err != nil {
		return fmt.Errorf("loop_group %s: child subgraph: %w", l.ID, err)
	}

	start := time.Now()
	for i := 0; i < iterations; i++ {
		idx := i
		for _, cid := range childOrder {
			if err := r.runNode(r.nodesByID[cid], &idx); err != nil {
				return err
			}
		}
		update := gatherFromSources(r.outputs, r.wf.Edges, l.ID, toSet(childIDs))
		for k, v := range update {
			r.outputs[l.ID][k] = v
		}
	}

	r.emit(nodeCompleteEvent(time.Now(), l.ID, summarizeMap(r.outputs[l.ID]), time.Since(start).Seconds()*1000, nil))
	r.tracked[l.ID].SetStatus(node.Completed)
	return nil
}

// runPairedLoop drives a loop_start / loop_end pair: the subgraph reachable
// from loop_start without passing through loop_end runs once per iteration;
// values arriving at loop_end's in_N ports become loop_start's out_N for the
// next iteration.
func (r *run) runPairedLoop(s *workflow.Node) error {
	endID, ok := r.pairEnd[s.ID]
	if !ok {
		return fmt.Errorf("loop_start %s: no paired loop_end", s.ID)
	}
	e := r.nodesByID[endID]

	bodyIDs := reachableExcluding(r.wf.Edges, s.ID, endID)
	for id := range bodyIDs {
		r.claimed[id] = true
	}
	r.claimed[endID] = true

	sInputs := gatherInputs(r.outputs, r.wf.Edges, s.ID)
	indices := portIndices("in_", sInputs, s.Params)
	for _, edge := range r.wf.Edges {
		if edge.Target == endID && !edge.IsBackEdge && strings.HasPrefix(edge.TargetPort, "in_") {
			indices[strings.TrimPrefix(edge.TargetPort, "in_")] = true
		}
	}

	state := make(map[string]any, len(indices))
	for idx := range indices {
		state["out_"+idx] = resolvePort(sInputs, s.Params, "in_"+idx)
	}
	r.outputs[s.ID] = state

	r.tracked[s.ID].SetStatus(node.Running)
	r.tracked[e.ID].SetStatus(node.Running)
	r.emit(nodeStartEvent(time.Now(), s.ID, s.Type, nil))
	r.emit(nodeStartEvent(time.Now(), e.ID, e.Type, nil))

	if s.Muted {
		// Zero iterations: out_N carries in_N straight through and loop_end
		// publishes the same values, matching ordinary mute pass-through.
		passThrough := make(map[string]any, len(state))
		for k, v := range state {
			passThrough[k] = v
		}
		r.outputs[endID] = passThrough
		r.emit(nodeCompleteEvent(time.Now(), s.ID, summarizeMap(state), 0, nil))
		r.emit(nodeCompleteEvent(time.Now(), e.ID, summarizeMap(passThrough), 0, nil))
		r.tracked[s.ID].SetStatus(node.Completed)
		r.tracked[e.ID].SetStatus(node.Completed)
		return nil
	}

	iterations := toInt(s.Params["iterations"])
	bodyOrder, err := topoOrder(bodyIDs, r.wf.Edges)
	if err != nil {
		return fmt.Errorf("loop_start %s: body subgraph: %w", s.ID, err)
	}

	var feedback map[string]any
	start := time.Now()
	for i := 0; i < iterations; i++ {
		idx := i
		for _, id := range bodyOrder {
			if err := r.runNode(r.nodesByID[id], &idx); err != nil {
				return err
			}
		}
		feedback = gatherFromSources(r.outputs, r.wf.Edges, endID, bodyIDs)

		next := make(map[string]any, len(indices))
		for idx := range indices {
			if v, ok := feedback["in_"+idx]; ok {
				next["out_"+idx] = v
			} else {
				next["out_"+idx] = r.outputs[s.ID]["out_"+idx]
			}
		}
		r.outputs[s.ID] = next
	}

	finalOut := make(map[string]any, len(indices))
	for idx := range indices {
		if feedback != nil {
			if v, ok := feedback["in_"+idx]; ok {
				finalOut["out_"+idx] = v
				continue
			}
		}
		finalOut["out_"+idx] = resolvePort(sInputs, s.Params, "in_"+idx)
	}
	r.outputs[endID] = finalOut

	r.emit(nodeCompleteEvent(time.Now(), s.ID, summarizeMap(r.outputs[s.ID]), time.Since(start).Seconds()*1000, nil))
	r.emit(nodeCompleteEvent(time.Now(), e.ID, summarizeMap(finalOut), time.Since(start).Seconds()*1000, nil))
	r.tracked[s.ID].SetStatus(node.Completed)
	r.tracked[e.ID].SetStatus(node.Completed)
	return nil
}

// runBackEdgeLoop drives a single loop_node: its init_* ports seed the
// loop_* bank, the downstream subgraph (reached by following non-back-edge
// edges out of loop_*) runs once per iteration, and values returning on
// is_back_edge edges targeting feedback_* become the next loop_* bank.
// After the configured iterations, the final values are also published on
// done_* and loop_* stops advancing.
func (r *run) runBackEdgeLoop(ln *workflow.Node) error {
	// Only the chain hanging off the loop_* bank iterates; consumers of
	// done_* are left to the top-level walk, which reaches them once the
	// final values have been published.
	loopEdges := make([]workflow.Edge, 0, len(r.wf.Edges))
	for _, e := range r.wf.Edges {
		if e.Source != ln.ID || strings.HasPrefix(e.SourcePort, "loop_") {
			loopEdges = append(loopEdges, e)
		}
	}
	bodyIDs := reachableFrom(loopEdges, ln.ID)
	for id := range bodyIDs {
		r.claimed[id] = true
	}

	initInputs := gatherInputs(r.outputs, r.wf.Edges, ln.ID)
	indices := portIndices("init_", initInputs, ln.Params)

	state := make(map[string]any, len(indices))
	for idx := range indices {
		state["loop_"+idx] = resolvePort(initInputs, ln.Params, "init_"+idx)
	}
	r.outputs[ln.ID] = state

	r.tracked[ln.ID].SetStatus(node.Running)
	r.emit(nodeStartEvent(time.Now(), ln.ID, ln.Type, nil))

	if ln.Muted {
		final := make(map[string]any, len(indices)*2)
		for idx := range indices {
			v := state["loop_"+idx]
			final["loop_"+idx] = v
			final["done_"+idx] = v
		}
		r.outputs[ln.ID] = final
		r.emit(nodeCompleteEvent(time.Now(), ln.ID, summarizeMap(final), 0, nil))
		r.tracked[ln.ID].SetStatus(node.Completed)
		return nil
	}

	iterations := toInt(ln.Params["iterations"])
	bodyOrder, err := topoOrder(bodyIDs, r.wf.Edges)
	if err != nil {
		return fmt.Errorf("loop_node %s: downstream subgraph: %w", ln.ID, err)
	}

	start := time.Now()
	for i := 0; i < iterations; i++ {
		idx := i
		for _, id := range bodyOrder {
			if err := r.runNode(r.nodesByID[id], &idx); err != nil {
				return err
			}
		}
		feedback := gatherBackEdgeInputs(r.outputs, r.wf.Edges, ln.ID)

		next := make(map[string]any, len(indices))
		for idx := range indices {
			if v, ok := feedback["feedback_"+idx]; ok {
				next["loop_"+idx] = v
			} else {
				next["loop_"+idx] = r.outputs[ln.ID]["loop_"+idx]
			}
		}
		r.outputs[ln.ID] = next
	}

	final := make(map[string]any, len(indices)*2)
	for idx := range indices {
		v := r.outputs[ln.ID]["loop_"+idx]
		final["loop_"+idx] = v
		final["done_"+idx] = v
	}
	r.outputs[ln.ID] = final

	r.emit(nodeCompleteEvent(time.Now(), ln.ID, summarizeMap(final), time.Since(start).Seconds()*1000, nil))
	r.tracked[ln.ID].SetStatus(node.Completed)
	return nil
}

// mergeInitial overlays params onto gathered edge inputs, edge values
// winning, for ports params declares but no edge feeds.
func mergeInitial(inputs map[string]any, params map[string]any) map[string]any {
	state := make(map[string]any, len(inputs)+len(params))
	for k, v := range params {
		if k == "iterations" {
			continue
		}
		state[k] = v
	}
	for k, v := range inputs {
		state[k] = v
	}
	return state
}

// resolvePort applies edge > param > absent precedence for one named port,
// used by the loop drivers that bypass the registry's wrapped-executor
// precedence logic entirely (built-in types have no executor).
func resolvePort(inputs, params map[string]any, name string) any {
	if v, ok := inputs[name]; ok {
		return v
	}
	if v, ok := params[name]; ok {
		return v
	}
	return nil
}

// portIndices collects the distinct numeric suffixes ("1", "2", ...) of
// keys with the given prefix across any number of maps.
func portIndices(prefix string, maps ...map[string]any) map[string]bool {
	indices := make(map[string]bool)
	for _, m := range maps {
		for k := range m {
			if strings.HasPrefix(k, prefix) {
				indices[strings.TrimPrefix(k, prefix)] = true
			}
		}
	}
	return indices
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, _ := n.Float64()
			return int(f)
		}
		return int(i)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}

// excludingSources returns edges whose source is not in excluded, used to
// seed a loop control node's initial state from only its true external
// predecessors, never from the feedback wire running from its own body.
func excludingSources(edges []workflow.Edge, excluded map[string]bool) []workflow.Edge {
	filtered := make([]workflow.Edge, 0, len(edges))
	for _, e := range edges {
		if !excluded[e.Source] {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// gatherFromSources is gatherInputs restricted to edges whose source is in
// allowed, used by loop drivers to update control-node state from only
// their own body/child nodes and not from an unrelated external edge that
// happens to target the same node.
func gatherFromSources(outputs map[string]map[string]any, edges []workflow.Edge, targetNodeID string, allowed map[string]bool) map[string]any {
	filtered := make([]workflow.Edge, 0, len(edges))
	for _, e := range edges {
		if allowed[e.Source] {
			filtered = append(filtered, e)
		}
	}
	return gatherInputs(outputs, filtered, targetNodeID)
}

// gatherBackEdgeInputs is gatherInputs' mirror for is_back_edge edges: the
// feedback_* ports of a loop_node are fed exclusively by edges the
// validator's cycle check ignores.
func gatherBackEdgeInputs(outputs map[string]map[string]any, edges []workflow.Edge, targetNodeID string) map[string]any {
	byPort := make(map[string][]any)
	order := make([]string, 0)
	for _, e := range edges {
		if !e.IsBackEdge || e.Target != targetNodeID {
			continue
		}
		if _, seen := byPort[e.TargetPort]; !seen {
			order = append(order, e.TargetPort)
		}
		var v any
		if srcOut, ok := outputs[e.Source]; ok {
			v = srcOut[e.SourcePort]
		}
		byPort[e.TargetPort] = append(byPort[e.TargetPort], v)
	}
	inputs := make(map[string]any, len(byPort))
	for _, port := range order {
		values := byPort[port]
		if len(values) == 1 {
			inputs[port] = values[0]
		} else {
			inputs[port] = values
		}
	}
	return inputs
}

// reachableExcluding returns the set of node ids forward-reachable from
// startID over non-back-edge edges, stopping expansion at (and excluding)
// stopID.
func reachableExcluding(edges []workflow.Edge, startID, stopID string) map[string]bool {
	visited := make(map[string]bool)
	queue := outgoingTargets(edges, startID)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == stopID || visited[id] {
			continue
		}
		visited[id] = true
		queue = append(queue, outgoingTargets(edges, id)...)
	}
	return visited
}

// reachableFrom returns the set of node ids forward-reachable from startID
// over non-back-edge edges, with no stop node (used for the back-edge
// construct, whose cycle is broken only by the is_back_edge flag).
func reachableFrom(edges []workflow.Edge, startID string) map[string]bool {
	visited := make(map[string]bool)
	queue := outgoingTargets(edges, startID)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		queue = append(queue, outgoingTargets(edges, id)...)
	}
	return visited
}

func outgoingTargets(edges []workflow.Edge, sourceID string) []string {
	targets := make([]string, 0)
	for _, e := range edges {
		if e.Source == sourceID && !e.IsBackEdge {
			targets = append(targets, e.Target)
		}
	}
	return targets
}
