package steps

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/synapse/pkg/domain"
)

// Upstream maps each direct predecessor's node id to its output.
type Upstream map[string]map[string]interface{}

// Output is what a handler produces. Logs are kept even when the handler fails.
type Output struct {
	Data map[string]interface{}
	Logs []string
}

// Handler is the executable behaviour bound to a type tag.
type Handler interface {
	Execute(ctx context.Context, params map[string]interface{}, upstream Upstream) (Output, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, params map[string]interface{}, upstream Upstream) (Output, error)

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context, params map[string]interface{}, upstream Upstream) (Output, error) {
	return f(ctx, params, upstream)
}

// Registry maps type tags to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a tag, replacing any previous binding.
func (r *Registry) Register(tag string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[tag] = h
}

// Alias binds alias to the handler already registered under tag.
func (r *Registry) Alias(alias, tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handlers[tag]
	if !ok {
		return fmt.Errorf("cannot alias %q: step type %q not registered", alias, tag)
	}
	r.handlers[alias] = h
	return nil
}

// Resolve returns the handler for tag or an UnknownStepType step error.
func (r *Registry) Resolve(tag string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[tag]
	if !ok {
		return nil, domain.NewStepError(domain.StepErrUnknownStepType, "unknown step type %q", tag)
	}
	return h, nil
}

// Types returns the registered tags in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.handlers))
	for tag := range r.handlers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
