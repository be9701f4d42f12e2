package executor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vk/burstflow/internal/node"
	"github.com/vk/burstflow/internal/pluginlog"
	"github.com/vk/burstflow/internal/registry"
	"github.com/vk/burstflow/internal/workflow"
)

// run holds all state shared across one execution's node steps and loop
// drivers. It is only ever touched from the single goroutine started by
// Execute, so it carries no locking of its own.
type run struct {
	ctx  context.Context
	wf   *workflow.Workflow
	snap registry.Snapshot
	opts Options

	nodesByID map[string]*workflow.Node
	children  map[string][]string // loop_group id -> child node ids
	pairEnd   map[string]string   // loop_start id -> paired loop_end id

	// outputs is shared with Result.Outputs; entries are added as nodes
	// complete and, for loop control nodes, overwritten each iteration.
	outputs map[string]map[string]any

	// claimed marks node ids a loop driver has already executed, so the
	// top-level topo walk skips their body/child nodes.
	claimed map[string]bool

	// tracked holds one scheduling-status tracker per node, mirroring the
	// dependency-count/status bookkeeping a concurrent scheduler would
	// need; this execution is single-threaded and walks a precomputed
	// topological order, so depCount is informational rather than a
	// readiness gate.
	tracked map[string]*node.Node

	events chan Event
}

// Execute runs wf to completion (or cancellation, or a halting error)
// against snap, streaming observable events on the returned channel. The
// returned *Result is safe to read once the channel is drained: the
// channel's close happens-before the drain loop observes it, which
// happens-before any read of Result.
func Execute(ctx context.Context, wf *workflow.Workflow, snap registry.Snapshot, opts Options) (<-chan Event, *Result) {
	events := make(chan Event, opts.bufferSize())
	result := &Result{RunID: uuid.New().String(), Outputs: make(map[string]map[string]any)}

	r := &run{
		ctx:       ctx,
		wf:        wf,
		snap:      snap,
		opts:      opts,
		nodesByID: make(map[string]*workflow.Node, len(wf.Nodes)),
		children:  childrenOf(wf.Nodes),
		pairEnd:   make(map[string]string),
		outputs:   result.Outputs,
		claimed:   make(map[string]bool),
		tracked:   make(map[string]*node.Node, len(wf.Nodes)),
		events:    events,
	}
	incoming := make(map[string]int32, len(wf.Nodes))
	for _, e := range wf.Edges {
		if !e.IsBackEdge {
			incoming[e.Target]++
		}
	}
	for i := range wf.Nodes {
		n := &wf.Nodes[i]
		r.nodesByID[n.ID] = n
		tracker := node.New(n)
		tracker.SetDepCount(incoming[n.ID])
		r.tracked[n.ID] = tracker
	}
	for _, n := range wf.Nodes {
		if n.Type != "loop_end" {
			continue
		}
		if pairID, ok := n.Params["pair_id"].(string); ok {
			r.pairEnd[pairID] = n.ID
		}
	}

	go r.drive(result)
	return events, result
}

func (r *run) drive(result *Result) {
	result.Started = time.Now()
	defer func() {
		result.Finished = time.Now()
		result.Statuses = make(map[string]string, len(r.tracked))
		for id, tracker := range r.tracked {
			if tracker.GetStatus() == node.Pending {
				tracker.SetStatus(node.Skipped)
			}
			result.Statuses[id] = tracker.GetStatus().String()
		}
		close(r.events)
	}()

	r.emit(startEvent(result.Started, result.RunID, len(r.wf.Nodes)))
	if r.cancelled() {
		r.emit(cancelledEvent(time.Now()))
		result.Cancelled = true
		return
	}

	topLevel := make([]string, 0, len(r.wf.Nodes))
	for _, n := range r.wf.Nodes {
		if n.ParentID == nil {
			topLevel = append(topLevel, n.ID)
		}
	}
	order, err := topoOrder(toSet(topLevel), r.wf.Edges)
	if err != nil {
		r.emit(nodeErrorEvent(time.Now(), "", err.Error(), "", "cyclic"))
		result.Err = err
		return
	}

	for _, id := range order {
		if r.claimed[id] {
			continue
		}
		if r.cancelled() {
			r.emit(cancelledEvent(time.Now()))
			result.Cancelled = true
			return
		}

		n := r.nodesByID[id]
		var stepErr error
		switch n.Type {
		case "loop_group":
			stepErr = r.runContainerLoop(n)
		case "loop_start":
			stepErr = r.runPairedLoop(n)
		case "loop_node":
			stepErr = r.runBackEdgeLoop(n)
		case "loop_end":
			// Reached without ever being claimed by its paired loop_start:
			// either unpaired (a validator-missed case) or its start never
			// ran. Run it as an ordinary node; with no registered type of
			// that name, runNode halts with an "unavailable" error.
			stepErr = r.runNode(n, nil)
		default:
			stepErr = r.runNode(n, nil)
		}

		if stepErr != nil {
			if _, ok := stepErr.(*CancelledError); ok {
				r.emit(cancelledEvent(time.Now()))
				result.Cancelled = true
				return
			}
			result.Err = stepErr
			return
		}
	}

	if r.opts.Profile {
		r.emit(profilerSummaryEvent(time.Now(), time.Since(result.Started).Seconds()*1000, nil, ""))
	}
	r.emit(completeEvent(time.Now(), time.Since(result.Started).Seconds()*1000))
}

// emit sends ev on the event channel, respecting cancellation so a stalled
// or abandoned consumer cannot wedge the producer forever.
func (r *run) emit(ev Event) {
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
	}
}

func (r *run) cancelled() bool {
	select {
	case <-r.ctx.Done():
		return true
	default:
		return false
	}
}

// runNode executes the generic per-node step described for ordinary nodes:
// gather inputs, apply muted / unavailable / breakpoint preconditions in
// that order, invoke the registered executor, and record outputs. loopIndex
// is non-nil when this node is being run as part of a loop construct's body.
func (r *run) runNode(n *workflow.Node, loopIndex *int) error {
	if r.cancelled() {
		return &CancelledError{}
	}

	inputs := gatherInputs(r.outputs, r.wf.Edges, n.ID)

	tracker := r.tracked[n.ID]

	if n.Muted {
		tracker.SetStatus(node.Running)
		outputs := make(map[string]any, len(inputs))
		for k, v := range inputs {
			outputs[k] = v
		}
		r.emit(nodeStartEvent(time.Now(), n.ID, n.Type, loopIndex))
		r.outputs[n.ID] = outputs
		r.emit(nodeCompleteEvent(time.Now(), n.ID, summarizeMap(outputs), 0, loopIndex))
		r.emit(logEvent(time.Now(), n.ID, "info", "muted - passing inputs through"))
		tracker.SetStatus(node.Completed)
		return nil
	}

	_, exec, found := r.snap.Lookup(n.Type)
	if !found {
		reason := "unknown"
		if _, ok := r.snap.InactiveTypes[n.Type]; ok {
			reason = "inactive"
		}
		err := &UnavailableError{NodeID: n.ID, Reason: reason}
		tracker.SetStatus(node.Errored)
		tracker.Err = err
		r.emit(nodeErrorEvent(time.Now(), n.ID, err.Error(), "", "unavailable"))
		return err
	}
	if exec == nil {
		// A container-only spec (e.g. a plugin-declared grouping type with
		// no run function) reached here directly, outside any loop driver.
		// It has no work to do beyond passing through whatever it received.
		tracker.SetStatus(node.Running)
		r.emit(nodeStartEvent(time.Now(), n.ID, n.Type, loopIndex))
		r.outputs[n.ID] = inputs
		r.emit(nodeCompleteEvent(time.Now(), n.ID, summarizeMap(inputs), 0, loopIndex))
		tracker.SetStatus(node.Completed)
		return nil
	}

	if r.opts.Breakpoints[n.ID] {
		tracker.SetStatus(node.Breakpoint)
		r.emit(nodeBreakpointEvent(time.Now(), n.ID, summarizeMap(inputs)))
		r.emit(logEvent(time.Now(), n.ID, "warn", "breakpoint hit - inspecting node inputs"))
		if err := r.waitForResume(n.ID); err != nil {
			return err
		}
	}

	tracker.SetStatus(node.Running)
	start := time.Now()
	r.emit(nodeStartEvent(start, n.ID, n.Type, loopIndex))

	pluginlog.SetContext(n.ID, func(level, id, message string) {
		r.emit(logEvent(time.Now(), id, level, message))
	})
	outputs, err := invoke(r.ctx, n.ID, exec, n.Params, inputs)
	pluginlog.ClearContext()
	if err != nil {
		re := err.(*RuntimeError)
		tracker.SetStatus(node.Errored)
		tracker.Err = re
		r.emit(nodeErrorEvent(time.Now(), n.ID, re.Error(), re.StackTrace, "runtime"))
		return re
	}

	r.outputs[n.ID] = outputs
	tracker.Outputs = outputs
	tracker.SetStatus(node.Completed)
	r.emit(nodeCompleteEvent(time.Now(), n.ID, summarizeMap(outputs), time.Since(start).Seconds()*1000, loopIndex))
	return nil
}

// waitForResume blocks until the resume channel names nodeID or the
// execution's context is cancelled. With no resume channel wired, a
// breakpoint blocks until cancellation, per the "block indefinitely, honor
// cancellation" behavior chosen for a front-end-less executor.
func (r *run) waitForResume(nodeID string) error {
	if r.opts.Resume == nil {
		<-r.ctx.Done()
		return &CancelledError{}
	}
	for {
		select {
		case id, ok := <-r.opts.Resume:
			if !ok {
				<-r.ctx.Done()
				return &CancelledError{}
			}
			if id == nodeID {
				return nil
			}
		case <-r.ctx.Done():
			return &CancelledError{}
		}
	}
}
