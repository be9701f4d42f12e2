package executor

import "fmt"

// UnavailableError means a workflow references a node type that is not in
// the active registry snapshot. Reason distinguishes "inactive" (the type
// exists but its plugin is deactivated) from "unknown" (no such type was
// ever registered).
type UnavailableError struct {
	NodeID string
	Reason string // "inactive" | "unknown"
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("node %s: unavailable (%s)", e.NodeID, e.Reason)
}

// RuntimeError wraps a panic or error raised by a plugin's executor
// function during invocation.
type RuntimeError struct {
	NodeID     string
	StackTrace string
	Err        error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.NodeID, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// CancelledError is returned when an execution stops because its context
// was cancelled or its deadline elapsed. It is not a failure: partial
// results remain available on Result.
type CancelledError struct{}

func (e *CancelledError) Error() string { return "execution cancelled" }
