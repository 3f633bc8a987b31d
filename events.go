package statesync

import (
	"sync"
	"sync/atomic"
)

// EventAll is delivered for every triggered event, after the event's own listeners.
const EventAll = "all"

// Listener is called with the arguments passed to Trigger
type Listener func(args ...any) error

// ListenerID identifies a subscription so it can be removed later
type ListenerID uint64

// Observable is anything listeners can subscribe to by event name
type Observable interface {
	On(event string, fn Listener) ListenerID
	Off(event string, id ListenerID)
}

// internalListener wraps a listener with metadata
type internalListener struct {
	id       ListenerID
	fn       Listener
	once     bool
	executed int32 // For once listeners, atomically tracks if executed
}

var listenerSeq atomic.Uint64

// Events is a string-keyed event emitter. The zero value is ready to use.
type Events struct {
	listeners map[string][]*internalListener
	mu        sync.RWMutex
}

// On registers fn for event and returns an id for Off
func (e *Events) On(event string, fn Listener) ListenerID {
	return e.add(event, fn, false)
}

// Once registers fn to be called at most once
func (e *Events) Once(event string, fn Listener) ListenerID {
	return e.add(event, fn, true)
}

func (e *Events) add(event string, fn Listener, once bool) ListenerID {
	l := &internalListener{
		id:   ListenerID(listenerSeq.Add(1)),
		fn:   fn,
		once: once,
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[string][]*internalListener)
	}
	e.listeners[event] = append(e.listeners[event], l)
	return l.id
}

// Off removes the listener registered under id. Unknown ids are ignored.
func (e *Events) Off(event string, id ListenerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeLocked(event, id)
}

func (e *Events) removeLocked(event string, id ListenerID) {
	listeners := e.listeners[event]
	for i, l := range listeners {
		if l.id == id {
			// Fresh slice so in-flight Trigger copies stay intact
			next := make([]*internalListener, 0, len(listeners)-1)
			next = append(next, listeners[:i]...)
			next = append(next, listeners[i+1:]...)
			if len(next) == 0 {
				delete(e.listeners, event)
			} else {
				e.listeners[event] = next
			}
			return
		}
	}
}

// Trigger calls the listeners of event in registration order, then the
// listeners of EventAll with the event name prepended to args.
// The first listener error stops delivery and is returned.
func (e *Events) Trigger(event string, args ...any) error {
	if err := e.deliver(event, args); err != nil {
		return err
	}
	if event == EventAll {
		return nil
	}

	allArgs := make([]any, 0, len(args)+1)
	allArgs = append(allArgs, event)
	allArgs = append(allArgs, args...)
	return e.deliver(EventAll, allArgs)
}

func (e *Events) deliver(event string, args []any) error {
	e.mu.RLock()
	listeners, exists := e.listeners[event]
	if !exists {
		e.mu.RUnlock()
		return nil
	}

	// Copy listeners slice to avoid holding lock during execution
	listenersCopy := make([]*internalListener, len(listeners))
	copy(listenersCopy, listeners)
	e.mu.RUnlock()

	for _, l := range listenersCopy {
		if l.once {
			if !atomic.CompareAndSwapInt32(&l.executed, 0, 1) {
				continue
			}
			e.Off(event, l.id)
		}
		if err := l.fn(args...); err != nil {
			return err
		}
	}
	return nil
}

// HasListeners reports whether anything listens to event
func (e *Events) HasListeners(event string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[event]) > 0
}

// ClearAll removes all listeners
func (e *Events) ClearAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = nil
}
