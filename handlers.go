package statesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrHandlerNotFound is matched by errors.Is for a missing named handler
var ErrHandlerNotFound = errors.New("handler not found")

// HandlerNotFoundError reports a binding that names a handler the target
// does not define at dispatch time.
type HandlerNotFoundError struct {
	Name  string
	Event string
}

func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("statesync: handler %q for event %q not found on target", e.Name, e.Event)
}

func (e *HandlerNotFoundError) Is(target error) bool {
	return target == ErrHandlerNotFound
}

// HandlerFunc handles a synced event. value is the resolved attribute value
// for "change:<attr>" events and nil otherwise.
type HandlerFunc func(entity Entity, value any) error

// HandlerSource looks handlers up by name
type HandlerSource interface {
	Handler(name string) (HandlerFunc, bool)
}

// Handlers is a name to function table. Bindings resolve names through it
// each time they run, so handlers defined after binding are still found.
// The zero value is ready to use.
type Handlers struct {
	funcs map[string]HandlerFunc
	mu    sync.RWMutex
}

// Define registers or replaces the handler called name
func (h *Handlers) Define(name string, fn HandlerFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.funcs == nil {
		h.funcs = make(map[string]HandlerFunc)
	}
	h.funcs[name] = fn
}

// Undefine removes the handler called name
func (h *Handlers) Undefine(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.funcs, name)
}

// Handler implements HandlerSource
func (h *Handlers) Handler(name string) (HandlerFunc, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.funcs[name]
	return fn, ok
}

// dispatch calls every handler of b with (entity, value). Lookup errors and
// handler errors stop the pass and are returned as is.
func dispatch(ctx context.Context, d *dispatcher, source HandlerSource, entity Entity, event string, b Binding, value any) error {
	if b.Func != nil {
		return d.call(ctx, event, "func", func() error { return b.Func(entity, value) })
	}

	for _, name := range b.HandlerNames() {
		fn, ok := source.Handler(name)
		if !ok {
			return &HandlerNotFoundError{Name: name, Event: event}
		}
		if err := d.call(ctx, event, name, func() error { return fn(entity, value) }); err != nil {
			return err
		}
	}
	return nil
}
