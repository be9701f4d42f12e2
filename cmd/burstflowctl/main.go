package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/burstflow/internal/app"
	"github.com/vk/burstflow/internal/cli"
	"github.com/vk/burstflow/internal/executor"
)

// main is the entrypoint for the burstflowctl binary.
func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling.
func run(outW io.Writer, args []string) error {
	cmd, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	ctx := context.Background()
	if cmd.Action == "run" && cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	a, err := app.NewApp(ctx, outW, cmd.Config)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}

	switch cmd.Action {
	case "validate":
		issues, err := a.Validate(ctx, cmd.WorkflowPath)
		if err != nil {
			return err
		}
		hasError := false
		for _, issue := range issues {
			fmt.Fprintf(outW, "[%s] %s: %s\n", issue.Level, issue.NodeID, issue.Message)
			hasError = hasError || issue.Level == "error"
		}
		if hasError {
			return &cli.ExitError{Code: 1, Message: "workflow has validation errors"}
		}
		return nil

	case "run":
		opts := executor.Options{Breakpoints: breakpointSet(cmd.Breakpoints)}
		_, err := a.Run(ctx, cmd.WorkflowPath, opts)
		return err

	case "plugin":
		switch cmd.PluginAction {
		case "activate":
			return a.ActivatePlugin(ctx, cmd.PluginID)
		case "deactivate":
			return a.DeactivatePlugin(ctx, cmd.PluginID)
		case "delete":
			return a.DeletePlugin(ctx, cmd.PluginID)
		}
	}

	return fmt.Errorf("unhandled command action %q", cmd.Action)
}

func breakpointSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
