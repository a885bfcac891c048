// Package tasks runs named tasks pulled from the broker and lets callers
// submit them and await their results through the result backend.
package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/smukkama/coverage-server/internal/protocol"
)

// Handler executes one task invocation and returns its string result.
type Handler func(ctx context.Context, msg *protocol.TaskMessage) (string, error)

// Registry maps task names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds name to h. Registering a name twice panics.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("tasks: %q registered twice", name))
	}
	r.handlers[name] = h
}

// Lookup returns the handler for name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names lists registered task names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
