package statesync

import (
	"slices"
	"sync"
)

// Target is what bindings are synced onto: an observable that hosts named
// handlers, tracks its own subscriptions, and owns a session registry.
type Target interface {
	Observable
	HandlerSource
	ListenTo(obj Observable, event, key string, fn Listener)
	StopListening(obj Observable, event, key string)
	Sessions() *Sessions
}

// Object is an embeddable Target. The zero value is ready to use.
//
//	type View struct {
//	    statesync.Object
//	}
type Object struct {
	Events
	Listening
	Handlers

	sessions Sessions
}

var _ Target = (*Object)(nil)

// Sessions returns the registry of live syncing sessions owned by o
func (o *Object) Sessions() *Sessions {
	return &o.sessions
}

// Sessions is the registry of syncing sessions that subscribed to a trigger
// event through When. The zero value is ready to use.
type Sessions struct {
	list []*Syncing
	mu   sync.Mutex
}

func (s *Sessions) add(session *Syncing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = append(s.list, session)
}

// Len returns the number of registrations. A session promoted twice is
// counted twice.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list)
}

// All returns the registered sessions in registration order
func (s *Sessions) All() []*Syncing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.list)
}

// StopAll unsubscribes every trigger subscription of every registered
// session and empties the registry. Calling it on an empty registry is a no-op.
func (s *Sessions) StopAll() {
	s.mu.Lock()
	list := s.list
	s.list = nil
	s.mu.Unlock()

	for _, session := range list {
		session.stopTriggers()
	}
}
