package executor

import (
	"fmt"

	"github.com/vk/burstflow/internal/dag"
	"github.com/vk/burstflow/internal/workflow"
)

// topoOrder computes a deterministic topological order over exactly the
// given node ids, considering only non-back-edge edges whose source and
// target both fall inside that set. It is used both for the top-level
// graph and for a loop construct's own body subgraph.
func topoOrder(ids map[string]bool, edges []workflow.Edge) ([]string, error) {
	g := dag.New()
	for id := range ids {
		g.AddNode(id)
	}
	for _, e := range edges {
		if e.IsBackEdge || !ids[e.Source] || !ids[e.Target] {
			continue
		}
		if err := g.AddEdge(e.Source, e.Target); err != nil {
			return nil, err
		}
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("execution graph is cyclic: %w", err)
	}
	return order, nil
}

// gatherInputs resolves the fan-in stacking rule for one node: for every
// target port with at least one incoming non-back-edge, collect the source
// values in edge-insertion (slice) order. A single edge yields the
// unwrapped value; more than one yields an ordered slice.
func gatherInputs(outputs map[string]map[string]any, edges []workflow.Edge, targetNodeID string) map[string]any {
	byPort := make(map[string][]any)
	order := make([]string, 0)
	for _, e := range edges {
		if e.IsBackEdge || e.Target != targetNodeID {
			continue
		}
		if _, seen := byPort[e.TargetPort]; !seen {
			order = append(order, e.TargetPort)
		}
		srcOut, ok := outputs[e.Source]
		var v any
		if ok {
			v = srcOut[e.SourcePort]
		}
		byPort[e.TargetPort] = append(byPort[e.TargetPort], v)
	}

	inputs := make(map[string]any, len(byPort))
	for port, values := range byPort {
		if len(values) == 1 {
			inputs[port] = values[0]
		} else {
			inputs[port] = values
		}
	}
	return inputs
}

// childrenOf returns, for every loop_group id, the ids of the nodes whose
// parent_id names it, preserving workflow order.
func childrenOf(nodes []workflow.Node) map[string][]string {
	children := make(map[string][]string)
	for _, n := range nodes {
		if n.ParentID != nil {
			children[*n.ParentID] = append(children[*n.ParentID], n.ID)
		}
	}
	return children
}

func toSet(ids []string) map[string]bool {
	s := make(map[string]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}
