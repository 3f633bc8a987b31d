package statesync

import (
	"sync"
	"sync/atomic"
)

// listening records one subscription made through ListenTo
type listening struct {
	obj   Observable
	event string
	key   string
	id    ListenerID
}

// Listening tracks subscriptions an object made on other observables, so
// they can be removed from the listener's side. The zero value is ready to use.
type Listening struct {
	subs []*listening
	mu   sync.Mutex
}

// ListenTo subscribes fn to event on obj and remembers it under key
func (l *Listening) ListenTo(obj Observable, event, key string, fn Listener) {
	id := obj.On(event, fn)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, &listening{obj: obj, event: event, key: key, id: id})
}

// ListenToOnce is ListenTo for a listener that removes itself after its first call
func (l *Listening) ListenToOnce(obj Observable, event, key string, fn Listener) {
	sub := &listening{obj: obj, event: event, key: key}
	var fired atomic.Bool
	sub.id = obj.On(event, func(args ...any) error {
		if !fired.CompareAndSwap(false, true) {
			return nil
		}
		l.forget(sub)
		obj.Off(event, sub.id)
		return fn(args...)
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, sub)
}

// StopListening removes the matching subscriptions. A nil obj, empty event
// or empty key matches anything.
func (l *Listening) StopListening(obj Observable, event, key string) {
	l.mu.Lock()
	var removed []*listening
	kept := l.subs[:0:0]
	for _, sub := range l.subs {
		if (obj == nil || sub.obj == obj) && (event == "" || sub.event == event) && (key == "" || sub.key == key) {
			removed = append(removed, sub)
			continue
		}
		kept = append(kept, sub)
	}
	l.subs = kept
	l.mu.Unlock()

	for _, sub := range removed {
		sub.obj.Off(sub.event, sub.id)
	}
}

// ListeningCount returns the number of live subscriptions
func (l *Listening) ListeningCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

func (l *Listening) forget(target *listening) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, sub := range l.subs {
		if sub == target {
			l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
			return
		}
	}
}
