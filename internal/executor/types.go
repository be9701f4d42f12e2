package executor

import "time"

// Options configures one execution. The zero value runs with no
// breakpoints, no profiling, and a small default event buffer.
type Options struct {
	// Breakpoints is the set of node ids that should pause before running.
	Breakpoints map[string]bool
	// Resume receives node ids that have been externally cleared to
	// proceed past a breakpoint. A nil Resume means breakpoints block
	// until the execution's context is cancelled.
	Resume <-chan string
	// Profile enables the profiler_summary event emitted just before
	// complete.
	Profile bool
	// EventBuffer sizes the event channel; emission blocks once full,
	// which is the mechanism backpressure works through. Defaults to 16.
	EventBuffer int
}

func (o Options) bufferSize() int {
	if o.EventBuffer > 0 {
		return o.EventBuffer
	}
	return 16
}

// Result holds the outcome of one execution. Its fields are written only
// by the executor's producer goroutine and only before the event channel
// returned alongside it is closed; a consumer that fully drains that
// channel before reading Result observes a complete, final view (the
// channel close happens-before the drain loop's exit, which happens-before
// any subsequent read).
type Result struct {
	// RunID uniquely identifies this execution, for correlating its event
	// stream and result across process boundaries (logs, a websocket
	// relay, a stored run history).
	RunID string
	// Outputs maps node id to its port-name -> value outputs, for every
	// node that reached node_complete.
	Outputs map[string]map[string]any
	// Cancelled is true if the execution stopped because of cancellation
	// rather than running to completion or halting on an error.
	Cancelled bool
	// Err is the error that halted execution, if any (nil on a clean or
	// cancelled run).
	Err error
	// Started and Finished bound the wall-clock duration of the run.
	Started  time.Time
	Finished time.Time
	// Statuses is the final NodeStatus of every node in the workflow, keyed
	// by id: "pending", "running", "completed", "errored", "skipped",
	// "blocked", or "breakpoint".
	Statuses map[string]string
}
