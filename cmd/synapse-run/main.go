// Command synapse-run executes one graph file locally and prints its report.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aescanero/synapse/internal/application/orchestrator"
	"github.com/aescanero/synapse/internal/application/steps"
	"github.com/aescanero/synapse/internal/config"
	"github.com/aescanero/synapse/internal/logging"
	"github.com/aescanero/synapse/pkg/adapters/events/memory"
	"github.com/aescanero/synapse/pkg/adapters/llm"
	"github.com/aescanero/synapse/pkg/adapters/metrics/prometheus"
	memorystorage "github.com/aescanero/synapse/pkg/adapters/storage/memory"
	"github.com/aescanero/synapse/pkg/domain"
	"github.com/aescanero/synapse/pkg/graphfile"

	"github.com/caarlos0/env/v10"
	promclient "github.com/prometheus/client_golang/prometheus"
)

// Exit codes
const (
	exitOK       = 0
	exitFailed   = 1
	exitUsage    = 2
	exitInternal = 3
)

// exitError carries the process exit code of a failed invocation.
type exitError struct {
	Code    int
	Message string
}

func (e *exitError) Error() string { return e.Message }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			if exitErr.Message != "" {
				fmt.Fprintln(os.Stderr, exitErr.Message)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitInternal)
	}
}

type options struct {
	logLevel    string
	timeout     time.Duration
	nodeTimeout time.Duration
	fileRoot    string
	planOnly    bool
	path        string
}

func parseArgs(args []string, errW io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("synapse-run", flag.ContinueOnError)
	fs.SetOutput(errW)
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	fs.DurationVar(&opts.timeout, "timeout", 0, "run timeout, 0 for none")
	fs.DurationVar(&opts.nodeTimeout, "node-timeout", 0, "per-node timeout, 0 for none")
	fs.StringVar(&opts.fileRoot, "file-root", "", "confine file steps to this directory")
	fs.BoolVar(&opts.planOnly, "plan", false, "print the execution plan without running")
	fs.Usage = func() {
		fmt.Fprintln(errW, "Usage: synapse-run [flags] GRAPH_FILE")
		fmt.Fprintln(errW, "GRAPH_FILE is a .json or .hcl graph document.")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, &exitError{Code: exitOK}
		}
		return nil, &exitError{Code: exitUsage}
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, &exitError{Code: exitUsage, Message: "exactly one graph file is required"}
	}
	opts.path = fs.Arg(0)
	return opts, nil
}

func run(ctx context.Context, outW, errW io.Writer, args []string) error {
	opts, err := parseArgs(args, errW)
	if err != nil {
		return err
	}

	logger, err := logging.New(opts.logLevel)
	if err != nil {
		return &exitError{Code: exitInternal, Message: err.Error()}
	}
	defer func() { _ = logger.Sync() }()

	graph, err := graphfile.Load(opts.path)
	if err != nil {
		return &exitError{Code: exitUsage, Message: err.Error()}
	}

	llmCfg := config.LLMConfig{}
	if err := env.Parse(&llmCfg); err != nil {
		return &exitError{Code: exitUsage, Message: fmt.Sprintf("failed to parse LLM config: %v", err)}
	}

	metrics := prometheus.NewCollector(promclient.NewRegistry())
	llmClient, err := llm.NewClient(&llm.Config{
		Provider:       llmCfg.Provider,
		APIKey:         llmCfg.APIKey,
		RequestTimeout: llmCfg.RequestTimeout,
		Metrics:        metrics,
		Logger:         logger,
	})
	if err != nil {
		return &exitError{Code: exitUsage, Message: err.Error()}
	}

	registry := steps.NewDefaultRegistry(steps.Options{
		LLM: llmClient,
		Agent: steps.AgentDefaults{
			Model:       llmCfg.DefaultModel,
			MaxTokens:   llmCfg.DefaultMaxTokens,
			Temperature: llmCfg.DefaultTemperature,
		},
		FileRoot: opts.fileRoot,
		Logger:   logger,
	})

	manager := orchestrator.NewManager(
		memory.NewInMemoryEventBus(),
		memorystorage.NewInMemoryRunStorage(),
		metrics,
		registry,
		logger,
		opts.timeout,
		orchestrator.WithNodeTimeout(opts.nodeTimeout),
	)

	if opts.planOnly {
		plan, err := manager.Plan(graph)
		if err != nil {
			return classify(err)
		}
		return writeJSON(outW, plan)
	}

	report, err := manager.Run(ctx, graph)
	if err != nil {
		return classify(err)
	}
	if err := writeJSON(outW, report); err != nil {
		return err
	}
	if !report.Success {
		return &exitError{Code: exitFailed, Message: report.Message}
	}
	return nil
}

// classify maps a rejected graph to its exit code
func classify(err error) error {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		return &exitError{Code: exitUsage, Message: validation.Error()}
	}
	return &exitError{Code: exitInternal, Message: err.Error()}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return &exitError{Code: exitInternal, Message: fmt.Sprintf("failed to write output: %v", err)}
	}
	return nil
}
