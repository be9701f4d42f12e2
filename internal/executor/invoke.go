package executor

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/vk/burstflow/internal/registry"
)

// invoke calls a node's executor, converting both a returned error and a
// panic into a *RuntimeError. Plugins are third-party code by construction;
// one misbehaving node must not take down an execution that other nodes
// could still complete.
func invoke(ctx context.Context, nodeID string, exec registry.Executor, params, inputs map[string]any) (outputs map[string]any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &RuntimeError{NodeID: nodeID, Err: fmt.Errorf("panic: %v", rec), StackTrace: string(debug.Stack())}
		}
	}()
	outputs, runErr := exec(ctx, params, inputs)
	if runErr != nil {
		return nil, &RuntimeError{NodeID: nodeID, Err: runErr}
	}
	return outputs, nil
}
