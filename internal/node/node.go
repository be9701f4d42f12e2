// Package node wraps a workflow.Node with the mutable bookkeeping the
// executor needs while scheduling it: a dependency counter for readiness
// and an atomically-readable status, following the same pattern the
// original worker-pool scheduler used for concurrent dependency tracking,
// retained here even though one execution now runs cooperatively on a
// single goroutine.
package node

import (
	"sync/atomic"

	"github.com/vk/burstflow/internal/workflow"
)

// Status is the execution state of a node within one run.
type Status int32

const (
	Pending Status = iota
	Running
	Completed
	Errored
	Skipped
	Blocked
	Breakpoint
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Errored:
		return "errored"
	case Skipped:
		return "skipped"
	case Blocked:
		return "blocked"
	case Breakpoint:
		return "breakpoint"
	default:
		return "unknown"
	}
}

// Node is one scheduling vertex: the workflow definition plus run-scoped
// state.
type Node struct {
	Def *workflow.Node

	// depCount is the number of not-yet-satisfied predecessor edges
	// (non-back-edge). It only moves when DecrementDepCount is called; the
	// executor sets it once from the incoming-edge count and never
	// decrements it.
	depCount atomic.Int32
	status   atomic.Int32

	Outputs map[string]any
	Err     error
}

// New wraps a workflow node for one execution.
func New(def *workflow.Node) *Node {
	return &Node{Def: def}
}

func (n *Node) ID() string { return n.Def.ID }

func (n *Node) SetDepCount(count int32) { n.depCount.Store(count) }

// DepCount atomically returns the current number of unmet dependencies.
func (n *Node) DepCount() int32 { return n.depCount.Load() }

// DecrementDepCount atomically decrements the dependency counter and
// returns the new value; zero means the node is now ready.
func (n *Node) DecrementDepCount() int32 { return n.depCount.Add(-1) }

// SetStatus atomically sets the node's execution state.
func (n *Node) SetStatus(s Status) { n.status.Store(int32(s)) }

// GetStatus atomically retrieves the node's execution state.
func (n *Node) GetStatus() Status { return Status(n.status.Load()) }
