// Package executor runs a validated workflow against a registry snapshot.
// A single execution is single-threaded cooperative at the node-boundary
// granularity: exactly one node is active at any instant, and control
// transfers between the executor and a plugin only at node boundaries. The
// executor produces a stream of Events on a bounded channel and, once that
// channel closes, a final Result holding every node's outputs.
package executor
