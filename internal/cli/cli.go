package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vk/burstflow/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Command is one parsed burstflowctl invocation, ready for cmd/burstflowctl
// to dispatch on Action.
type Command struct {
	Action string // "validate", "run", or "plugin"

	Config *app.Config

	WorkflowPath string
	Breakpoints  []string
	Timeout      time.Duration

	PluginAction string // "activate", "deactivate", or "delete"
	PluginID     string
}

// Parse processes command-line arguments into a Command. It returns a nil
// Command with shouldExit true when help was requested or no subcommand was
// given (usage has already been printed to output in that case).
func Parse(args []string, output io.Writer) (*Command, bool, error) {
	if len(args) == 0 {
		printUsage(output)
		return nil, true, nil
	}

	switch args[0] {
	case "validate":
		return parseValidate(args[1:], output)
	case "run":
		return parseRun(args[1:], output)
	case "plugin":
		return parsePlugin(args[1:], output)
	case "-h", "--help", "help":
		printUsage(output)
		return nil, true, nil
	default:
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unknown subcommand %q", args[0])}
	}
}

func printUsage(output io.Writer) {
	fmt.Fprint(output, `
burstflowctl - validate and run visual workflow graphs.

Usage:
  burstflowctl validate <workflow.json> --plugins <root>
  burstflowctl run      <workflow.json> --plugins <root> [--workers 1] [--breakpoint id,id] [--timeout 30s]
  burstflowctl plugin   activate|deactivate|delete <project/plugin> --plugins <root>
`)
}

func commonFlags(fs *flag.FlagSet) (pluginsRoot, logFormat, logLevel *string, healthPort *int) {
	pluginsRoot = fs.String("plugins", "", "Path to the plugin directory root.")
	logFormat = fs.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevel = fs.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	healthPort = fs.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	return
}

func resolveConfig(pluginsRoot, logFormat, logLevel *string, healthPort *int) (*app.Config, error) {
	format := strings.ToLower(*logFormat)
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("invalid log-format: must be 'text' or 'json'")
	}
	level := strings.ToLower(*logLevel)
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}
	return &app.Config{
		PluginsRoot:     *pluginsRoot,
		HealthcheckPort: *healthPort,
		LogFormat:       format,
		LogLevel:        level,
	}, nil
}

func parseValidate(args []string, output io.Writer) (*Command, bool, error) {
	fs := flag.NewFlagSet("burstflowctl validate", flag.ContinueOnError)
	fs.SetOutput(output)
	pluginsRoot, logFormat, logLevel, healthPort := commonFlags(fs)
	fs.Usage = func() {
		fmt.Fprint(output, "Usage: burstflowctl validate <workflow.json> --plugins <root>\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		shouldExit, exitErr := parseHelpRequested(err)
		return nil, shouldExit, exitErr
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return nil, true, nil
	}

	cfg, err := resolveConfig(pluginsRoot, logFormat, logLevel, healthPort)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	return &Command{Action: "validate", Config: cfg, WorkflowPath: fs.Arg(0)}, false, nil
}

func parseRun(args []string, output io.Writer) (*Command, bool, error) {
	fs := flag.NewFlagSet("burstflowctl run", flag.ContinueOnError)
	fs.SetOutput(output)
	pluginsRoot, logFormat, logLevel, healthPort := commonFlags(fs)
	breakpointFlag := fs.String("breakpoint", "", "Comma-separated node ids to pause before running.")
	timeoutFlag := fs.Duration("timeout", 0, "Maximum run duration. 0 disables the timeout.")
	fs.Int("workers", 1, "Accepted for CLI compatibility; the executor runs one node at a time and ignores this value.")
	fs.Usage = func() {
		fmt.Fprint(output, "Usage: burstflowctl run <workflow.json> --plugins <root> [--workers 1] [--breakpoint id,id] [--timeout 30s]\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		shouldExit, exitErr := parseHelpRequested(err)
		return nil, shouldExit, exitErr
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return nil, true, nil
	}

	cfg, err := resolveConfig(pluginsRoot, logFormat, logLevel, healthPort)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	var breakpoints []string
	if *breakpointFlag != "" {
		breakpoints = strings.Split(*breakpointFlag, ",")
	}

	return &Command{
		Action:       "run",
		Config:       cfg,
		WorkflowPath: fs.Arg(0),
		Breakpoints:  breakpoints,
		Timeout:      *timeoutFlag,
	}, false, nil
}

func parsePlugin(args []string, output io.Writer) (*Command, bool, error) {
	fs := flag.NewFlagSet("burstflowctl plugin", flag.ContinueOnError)
	fs.SetOutput(output)
	pluginsRoot, logFormat, logLevel, healthPort := commonFlags(fs)
	fs.Usage = func() {
		fmt.Fprint(output, "Usage: burstflowctl plugin activate|deactivate|delete <project/plugin> --plugins <root>\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		shouldExit, exitErr := parseHelpRequested(err)
		return nil, shouldExit, exitErr
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return nil, true, nil
	}

	action := fs.Arg(0)
	switch action {
	case "activate", "deactivate", "delete":
	default:
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unknown plugin action %q", action)}
	}

	cfg, err := resolveConfig(pluginsRoot, logFormat, logLevel, healthPort)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return &Command{Action: "plugin", Config: cfg, PluginAction: action, PluginID: fs.Arg(1)}, false, nil
}

func parseHelpRequested(err error) (bool, error) {
	if err == flag.ErrHelp {
		return true, nil
	}
	return false, &ExitError{Code: 2, Message: err.Error()}
}
