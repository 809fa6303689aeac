package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	pkgerrors "github.com/tccoin/museum-agent/pkg/errors"
	"github.com/tccoin/museum-agent/pkg/httputil"
	"github.com/tccoin/museum-agent/runtime/logger"
)

// Registry manages tool descriptors and the handlers that execute them.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]*ToolDescriptor
	handlers  map[string]Handler
	validator *SchemaValidator
	timeout   time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithTimeout bounds every handler invocation. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) { r.timeout = d }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tools:     make(map[string]*ToolDescriptor),
		handlers:  make(map[string]Handler),
		validator: NewSchemaValidator(),
		timeout:   httputil.DefaultToolTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Describe records a descriptor without a handler. Agent configurations
// describe their tools; the application attaches handlers with Handle.
// Describing a name again is a no-op when the schema matches and
// ErrToolConflict otherwise.
func (r *Registry) Describe(descriptor *ToolDescriptor) error {
	if descriptor == nil || descriptor.Name == "" {
		return ErrToolNameRequired
	}
	// Compile early so a broken schema surfaces at load time.
	if len(descriptor.InputSchema) > 0 {
		if _, err := r.validator.getSchema(string(descriptor.InputSchema)); err != nil {
			return fmt.Errorf("invalid input schema for tool %s: %w", descriptor.Name, err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.tools[descriptor.Name]; ok {
		if !SameSchema(existing.InputSchema, descriptor.InputSchema) {
			return fmt.Errorf("%w: %s", ErrToolConflict, descriptor.Name)
		}
		return nil
	}
	r.tools[descriptor.Name] = descriptor
	return nil
}

// SameSchema reports whether two JSON schemas are equal after decoding, so
// key order and whitespace do not matter. Two empty schemas are equal.
func SameSchema(a, b json.RawMessage) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}

// Handle attaches a handler to a tool name.
func (r *Registry) Handle(name string, handler Handler) error {
	if name == "" {
		return ErrToolNameRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
	return nil
}

// Register describes a tool and attaches its handler in one step.
func (r *Registry) Register(descriptor *ToolDescriptor, handler Handler) error {
	if err := r.Describe(descriptor); err != nil {
		return err
	}
	return r.Handle(descriptor.Name, handler)
}

// Get retrieves a tool descriptor by name, or nil.
func (r *Registry) Get(name string) *ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// HasHandler reports whether a handler is attached to name.
func (r *Registry) HasHandler(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// List returns all described or handled tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{}, len(r.tools)+len(r.handlers))
	for name := range r.tools {
		seen[name] = struct{}{}
	}
	for name := range r.handlers {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute validates the call's arguments and runs its handler.
//
// A missing handler is reported as pkgerrors.ErrToolNotRegistered. Argument
// validation failures, handler errors, panics and timeouts are reported inside
// the returned ToolResult so the model can be told what went wrong.
func (r *Registry) Execute(ctx context.Context, call ToolCall) (*ToolResult, error) {
	r.mu.RLock()
	handler, ok := r.handlers[call.Name]
	descriptor := r.tools[call.Name]
	r.mu.RUnlock()

	if !ok {
		return nil, pkgerrors.ErrToolNotRegistered
	}
	if descriptor == nil {
		descriptor = &ToolDescriptor{Name: call.Name}
	}

	result := &ToolResult{Name: call.Name, ID: call.ID}
	if err := r.validator.ValidateArgs(descriptor, call.Args); err != nil {
		result.Error = err.Error()
		return result, nil
	}

	start := time.Now()
	value, err := r.invoke(ctx, handler, call)
	result.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		logger.Warn("tool execution failed", "tool", call.Name, "call_id", call.ID, "error", err)
		return result, nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		result.Error = fmt.Sprintf("marshal result: %v", err)
		return result, nil
	}
	result.Result = data
	return result, nil
}

func (r *Registry) invoke(ctx context.Context, handler Handler, call ToolCall) (any, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("tool %s panicked: %v", call.Name, p)}
			}
		}()
		args := call.Args
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		v, err := handler.Handle(ctx, args)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrToolTimeout
		}
		return nil, ctx.Err()
	}
}
