package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vk/burstflow/internal/ctxlog"
	"github.com/vk/burstflow/internal/executor"
)

// Run loads the workflow at path, executes it against the registry's
// current snapshot, and streams its event feed to the App's output writer
// as newline-delimited JSON as it happens. It returns once the execution's
// event channel closes, at which point Result is safe to inspect.
func (a *App) Run(ctx context.Context, path string, opts executor.Options) (*executor.Result, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "path", path)

	if a.cfg.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.cfg.HealthcheckPort)
	}

	wf, err := LoadWorkflow(path)
	if err != nil {
		return nil, err
	}

	if len(wf.Nodes) == 0 {
		a.logger.Warn("workflow has no nodes, execution not required")
		return &executor.Result{}, nil
	}

	a.logger.Debug("starting execution", "node_count", len(wf.Nodes))
	events, result := executor.Execute(ctx, wf, a.registry.Snapshot(), opts)
	for ev := range events {
		line, err := json.Marshal(ev)
		if err != nil {
			a.logger.Error("failed to marshal event", "error", err)
			continue
		}
		fmt.Fprintln(a.outW, string(line))
	}

	if result.Err != nil {
		return result, fmt.Errorf("execution failed: %w", result.Err)
	}
	if result.Cancelled {
		a.logger.Warn("execution cancelled")
	} else {
		a.logger.Info("execution finished")
	}
	return result, nil
}
