package dag

import (
	"fmt"
	"sort"
)

// TopologicalOrder returns the node IDs of the graph in a valid topological
// order: every node appears after all of its dependencies. Ties among nodes
// that are simultaneously ready are broken by ascending ID, so the result is
// deterministic for a given graph.
//
// The graph must be acyclic. Passing a graph with a cycle returns an error
// rather than a partial order.
func (g *Graph) TopologicalOrder() ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	remaining := make(map[string]int, len(g.nodes))
	for id, n := range g.nodes {
		remaining[id] = len(n.deps)
	}

	ready := make([]string, 0, len(g.nodes))
	for id, count := range remaining {
		if count == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		next := make([]string, 0)
		for depID := range g.nodes[id].dependents {
			remaining[depID]--
			if remaining[depID] == 0 {
				next = append(next, depID)
			}
		}
		sort.Strings(next)
		ready = append(ready, next...)
		sort.Strings(ready)
	}

	if len(order) != len(g.nodes) {
		return nil, errCycleDuringSort
	}
	return order, nil
}

var errCycleDuringSort = fmt.Errorf("cannot produce a topological order: graph contains a cycle")
