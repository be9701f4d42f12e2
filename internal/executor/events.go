package executor

import (
	"encoding/json"
	"time"
)

// Event is one entry in the executor's observable stream. Every event
// carries a Kind discriminator and a Time; Fields holds the kind-specific
// payload described in §4.3 of the workflow specification this package
// implements.
type Event struct {
	Kind   string
	Time   time.Time
	Fields map[string]any
}

// MarshalJSON renders an event as {"event": kind, "timestamp": unix_seconds,
// ...fields}, matching the wire format external consumers (a websocket
// relay, a CLI printer) expect.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+2)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["event"] = e.Kind
	out["timestamp"] = float64(e.Time.UnixNano()) / 1e9
	return json.Marshal(out)
}

func newEvent(now time.Time, kind string, fields map[string]any) Event {
	return Event{Kind: kind, Time: now, Fields: fields}
}

func startEvent(now time.Time, runID string, totalNodes int) Event {
	return newEvent(now, "start", map[string]any{"run_id": runID, "total_nodes": totalNodes})
}

func nodeStartEvent(now time.Time, nodeID, nodeType string, loopIndex *int) Event {
	f := map[string]any{"node_id": nodeID, "node_type": nodeType}
	if loopIndex != nil {
		f["loop_index"] = *loopIndex
	}
	return newEvent(now, "node_start", f)
}

func nodeCompleteEvent(now time.Time, nodeID string, outputsSummary map[string]any, durationMS float64, loopIndex *int) Event {
	f := map[string]any{"node_id": nodeID, "outputs_summary": outputsSummary, "duration_ms": durationMS}
	if loopIndex != nil {
		f["loop_index"] = *loopIndex
	}
	return newEvent(now, "node_complete", f)
}

func nodeErrorEvent(now time.Time, nodeID, errMsg, stackTrace, kind string) Event {
	return newEvent(now, "node_error", map[string]any{
		"node_id": nodeID, "error": errMsg, "stack_trace": stackTrace, "kind": kind,
	})
}

func nodeBreakpointEvent(now time.Time, nodeID string, inputsSummary map[string]any) Event {
	return newEvent(now, "node_breakpoint", map[string]any{
		"node_id": nodeID, "inputs_summary": inputsSummary,
	})
}

func logEvent(now time.Time, nodeID, level, message string) Event {
	f := map[string]any{"level": level, "message": message}
	if nodeID != "" {
		f["node_id"] = nodeID
	}
	return newEvent(now, "log", f)
}

func completeEvent(now time.Time, totalMS float64) Event {
	return newEvent(now, "complete", map[string]any{"total_ms": totalMS})
}

func cancelledEvent(now time.Time) Event {
	return newEvent(now, "cancelled", nil)
}

func profilerSummaryEvent(now time.Time, totalMS float64, timings map[string]float64, slowest string) Event {
	return newEvent(now, "profiler_summary", map[string]any{
		"total_ms": totalMS, "node_timings": timings, "slowest_node": slowest,
	})
}
