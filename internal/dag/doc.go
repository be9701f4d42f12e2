// Package dag is a small, dependency-free directed graph: add nodes and
// edges, ask whether it contains a cycle, and compute a deterministic
// topological order over it. It has no notion of a workflow, a plugin, or
// an execution — the validator uses it to check a workflow's edges for
// cycles, and the executor uses it to compute the run order for the
// top-level graph and for each loop construct's body subgraph.
package dag
