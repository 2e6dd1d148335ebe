package steps

import (
	"github.com/aescanero/synapse/pkg/ports"
	"go.uber.org/zap"
)

// Built-in type tags.
const (
	TypeTrigger  = "trigger"
	TypeLog      = "log"
	TypeDelay    = "delay"
	TypeFile     = "file"
	TypeFileMove = "file_move"
	TypeAgent    = "agent"
	TypeEnd      = "end"
)

// Options configures the built-in handlers.
type Options struct {
	// LLM backs the agent step. A nil client makes agent nodes fail with AgentUnavailable.
	LLM ports.LLMClient
	// Agent holds the defaults applied to agent nodes.
	Agent AgentDefaults
	// FileRoot confines file and file_move to a directory when set.
	FileRoot string
	Logger   *zap.Logger
}

// NewDefaultRegistry returns a registry holding every built-in step type.
// The editor's "input" and "output" node types are aliases of trigger and end.
func NewDefaultRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := NewRegistry()
	r.Register(TypeTrigger, HandlerFunc(trigger))
	r.Register(TypeLog, HandlerFunc(logMessage))
	r.Register(TypeDelay, HandlerFunc(delay))
	r.Register(TypeFile, &FileWriter{Root: opts.FileRoot})
	r.Register(TypeFileMove, &FileMover{Root: opts.FileRoot})
	r.Register(TypeAgent, NewAgent(opts.LLM, opts.Agent, logger))
	r.Register(TypeEnd, HandlerFunc(end))

	// Both targets exist at this point.
	_ = r.Alias("input", TypeTrigger)
	_ = r.Alias("output", TypeEnd)
	return r
}
