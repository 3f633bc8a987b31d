package statesync

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// SessionState is the lifecycle state of a Syncing session
type SessionState int

const (
	// SessionBound means the entity listeners are attached and nothing
	// re-runs the table on a trigger.
	SessionBound SessionState = iota
	// SessionLive means at least one trigger subscription exists. A session
	// never goes back to SessionBound.
	SessionLive
)

func (s SessionState) String() string {
	if s == SessionLive {
		return "live"
	}
	return "bound"
}

// trigger is one subscription created by When
type trigger struct {
	obj   Observable
	event string
	key   string
}

// Syncing joins one binding table to one (target, entity) pair.
type Syncing struct {
	target   Target
	entity   Entity
	bindings Bindings
	d        *dispatcher

	triggers []trigger
	state    SessionState
	mu       sync.Mutex
}

// SyncEntityEvents binds every declared event of bindings on entity to the
// target's handlers and returns a bound session.
//
// Each (entry, event) pair gets its own listener on entity that resolves and
// dispatches that event alone whenever entity emits it. Call Now to run the
// whole table against the current state, or When to re-run it each time a
// trigger event fires.
//
// For a record with foo=1 and bar=2,
//
//	statesync.SyncEntityEvents(view, model, statesync.Bindings{
//	    statesync.Bind("change:foo change:bar", "doA doB"),
//	}).Now()
//
// calls doA(model, 1), doB(model, 1), doA(model, 2), doB(model, 2).
func SyncEntityEvents(target Target, entity Entity, bindings Bindings, opts ...SyncOption) *Syncing {
	cfg := defaultSyncConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Syncing{
		target:   target,
		entity:   entity,
		bindings: bindings,
		d:        &dispatcher{cfg: cfg},
	}

	for _, b := range bindings {
		for _, event := range b.EventNames() {
			target.ListenTo(entity, event, b.key(), func(...any) error {
				return s.d.notify(target, entity, event, b)
			})
		}
	}

	cfg.logger.Debug("bound entity events", "kind", entity.Kind().String(), "bindings", len(bindings))
	return s
}

// StopSyncingEntityEvents removes the entity listeners attached by
// SyncEntityEvents for bindings, then stops every trigger subscription
// registered on target. It is safe to call when nothing is synced.
func StopSyncingEntityEvents(target Target, entity Entity, bindings Bindings) {
	for _, b := range bindings {
		for _, event := range b.EventNames() {
			target.StopListening(entity, event, b.key())
		}
	}
	target.Sessions().StopAll()
}

// Now runs the whole binding table against the current entity state.
// It returns the first handler error; use MustNow or When to chain.
func (s *Syncing) Now() error {
	return s.NowContext(context.Background())
}

// NowContext is Now with a context passed to the observability hooks
func (s *Syncing) NowContext(ctx context.Context) error {
	return s.d.evaluate(ctx, reasonNow, s.target, s.entity, s.bindings)
}

// MustNow is Now for chaining. It panics if a handler fails.
//
//	statesync.SyncEntityEvents(view, model, bindings).MustNow().When("render")
func (s *Syncing) MustNow() *Syncing {
	if err := s.Now(); err != nil {
		panic(err)
	}
	return s
}

// When re-runs the whole binding table every time the target triggers event
func (s *Syncing) When(event string) *Syncing {
	return s.WhenOn(s.target, event)
}

// WhenOn re-runs the whole binding table every time obj triggers event.
//
// Every call adds another subscription: calling it twice with the same
// arguments runs the table twice per trigger.
func (s *Syncing) WhenOn(obj Observable, event string) *Syncing {
	t := trigger{obj: obj, event: event, key: "sync:" + uuid.NewString()}

	s.mu.Lock()
	s.triggers = append(s.triggers, t)
	s.state = SessionLive
	s.mu.Unlock()

	s.target.Sessions().add(s)
	s.target.ListenTo(obj, event, t.key, func(...any) error {
		return s.d.evaluate(context.Background(), reasonTrigger, s.target, s.entity, s.bindings)
	})

	s.d.cfg.logger.Debug("syncing on trigger", "event", event, "subscriptions", len(s.triggers))
	return s
}

// State returns the session's lifecycle state
func (s *Syncing) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Live reports whether When has been called
func (s *Syncing) Live() bool {
	return s.State() == SessionLive
}

// Target returns the session's target
func (s *Syncing) Target() Target {
	return s.target
}

// Entity returns the synced entity
func (s *Syncing) Entity() Entity {
	return s.entity
}

// Bindings returns the binding table
func (s *Syncing) Bindings() Bindings {
	return s.bindings
}

// stopTriggers removes the trigger subscriptions. The session stays live.
func (s *Syncing) stopTriggers() {
	s.mu.Lock()
	triggers := s.triggers
	s.triggers = nil
	s.mu.Unlock()

	for _, t := range triggers {
		s.target.StopListening(t.obj, t.event, t.key)
	}
	if len(triggers) > 0 {
		s.d.cfg.logger.Debug("stopped syncing", "subscriptions", len(triggers))
	}
}
