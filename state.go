package statesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// ErrStateDestroyed is returned when mutating a destroyed State
var ErrStateDestroyed = errors.New("state destroyed")

var stateJSON = jsoniter.ConfigCompatibleWithStandardLibrary

const componentKey = "state:component"

// StateOption configures a State
type StateOption func(*stateConfig)

type stateConfig struct {
	defaults        map[string]any
	initial         map[string]any
	modelFactory    func(attrs map[string]any) *Model
	component       Observable
	componentEvents Bindings
	store           StateStore
	stateID         string
	policy          SnapshotPolicy
	logger          Logger
}

// WithDefaultState sets default attributes. They are applied under the
// initial state on construction and on every ResetState.
func WithDefaultState(attrs map[string]any) StateOption {
	return func(c *stateConfig) {
		c.defaults = attrs
	}
}

// WithInitialState sets attributes applied over the defaults
func WithInitialState(attrs map[string]any) StateOption {
	return func(c *stateConfig) {
		c.initial = attrs
	}
}

// WithModelFactory sets the constructor for the state model
func WithModelFactory(factory func(attrs map[string]any) *Model) StateOption {
	return func(c *stateConfig) {
		c.modelFactory = factory
	}
}

// WithComponent ties the state's lifetime to component: when it triggers
// "destroy", the state is destroyed too.
func WithComponent(component Observable) StateOption {
	return func(c *stateConfig) {
		c.component = component
	}
}

// WithComponentEvents binds component events to handlers defined on the state
func WithComponentEvents(bindings Bindings) StateOption {
	return func(c *stateConfig) {
		c.componentEvents = bindings
	}
}

// WithStore persists the state under stateID. A stored snapshot is restored
// on construction and a new one is saved whenever the snapshot policy agrees.
func WithStore(store StateStore, stateID string) StateOption {
	return func(c *stateConfig) {
		c.store = store
		c.stateID = stateID
	}
}

// WithSnapshotPolicy sets when snapshots are saved. Default is every change.
func WithSnapshotPolicy(policy SnapshotPolicy) StateOption {
	return func(c *stateConfig) {
		c.policy = policy
	}
}

// WithStateLogger sets the logger for the state and its syncing sessions
func WithStateLogger(logger Logger) StateOption {
	return func(c *stateConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// State owns a model of component state. It can reset the model to its
// initial attributes, follow a component's lifetime, and sync entities onto
// its own handlers.
type State struct {
	Object

	cfg       *stateConfig
	model     *Model
	initial   map[string]any
	component Observable
	destroyed atomic.Bool

	// snapshot bookkeeping
	version             int64
	lastSnapshotVersion int64
	lastSnapshotTime    time.Time
	mu                  sync.Mutex
}

// NewState creates a state. Its model starts from the default attributes
// overlaid with the initial ones, or from the stored snapshot when a store
// holds one.
func NewState(opts ...StateOption) (*State, error) {
	cfg := &stateConfig{
		modelFactory: NewModel,
		policy:       EveryNChanges(1),
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &State{cfg: cfg}
	if cfg.component != nil {
		s.SetComponent(cfg.component)
	}

	s.initial = overlay(cfg.defaults, cfg.initial)
	s.model = cfg.modelFactory(s.initial)

	if cfg.store != nil {
		if cfg.stateID == "" {
			return nil, errors.New("statesync: state id is required with a store")
		}
		if err := s.restore(context.Background()); err != nil {
			return nil, err
		}
		s.ListenTo(s.model, EventChange, "state:snapshot", func(...any) error {
			return s.onModelChange(context.Background())
		})
	}

	return s, nil
}

// Model returns the state model
func (s *State) Model() *Model {
	return s.model
}

// InitialState returns a copy of the attributes Reset returns to
func (s *State) InitialState() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.initial)
}

// Get returns a state attribute
func (s *State) Get(attr string) any {
	return s.model.Get(attr)
}

// Set updates state attributes
func (s *State) Set(attrs map[string]any, opts ...SetOption) error {
	if s.destroyed.Load() {
		return ErrStateDestroyed
	}
	return s.model.Set(attrs, opts...)
}

// SetAttr updates a single state attribute
func (s *State) SetAttr(key string, value any, opts ...SetOption) error {
	return s.Set(map[string]any{key: value}, opts...)
}

// Reset sets the initial attributes again. attrs override initial values
// for a partial reset. Attributes absent from the initial state are kept.
func (s *State) Reset(attrs map[string]any, opts ...SetOption) error {
	return s.Set(overlay(s.InitialState(), attrs), opts...)
}

// ResetState recomputes the initial state from the defaults and attrs, then
// resets the model to it.
func (s *State) ResetState(attrs map[string]any, opts ...SetOption) error {
	s.mu.Lock()
	s.initial = overlay(s.cfg.defaults, attrs)
	s.mu.Unlock()
	return s.Reset(nil, opts...)
}

// SetComponent moves the state to a new component. Lifetime and component
// event bindings are removed from the previous one first.
func (s *State) SetComponent(component Observable) {
	if s.component != nil {
		s.StopListening(s.component, EventDestroy, componentKey)
		UnbindEvents(s, s.component, s.cfg.componentEvents)
	}

	s.component = component
	if component == nil {
		return
	}

	s.ListenToOnce(component, EventDestroy, componentKey, func(...any) error {
		return s.Destroy()
	})
	BindEvents(s, component, s.cfg.componentEvents, WithLogger(s.cfg.logger))
}

// Component returns the component the state is bound to
func (s *State) Component() Observable {
	return s.component
}

// SyncEntityEvents syncs entity onto the state's own handlers
func (s *State) SyncEntityEvents(entity Entity, bindings Bindings, opts ...SyncOption) *Syncing {
	opts = append([]SyncOption{WithLogger(s.cfg.logger)}, opts...)
	return SyncEntityEvents(s, entity, bindings, opts...)
}

// IsDestroyed reports whether Destroy has run
func (s *State) IsDestroyed() bool {
	return s.destroyed.Load()
}

// Destroy stops all syncing and listening and triggers "destroy".
// Later calls do nothing.
func (s *State) Destroy() error {
	if !s.destroyed.CompareAndSwap(false, true) {
		return nil
	}
	s.Sessions().StopAll()
	err := s.Trigger(EventDestroy, s)
	s.StopListening(nil, "", "")
	s.component = nil
	s.cfg.logger.Debug("state destroyed", "state_id", s.cfg.stateID)
	return err
}

// SaveSnapshot writes the current attributes to the store
func (s *State) SaveSnapshot(ctx context.Context) error {
	if s.cfg.store == nil {
		return errors.New("statesync: no store configured")
	}

	data, err := stateJSON.Marshal(s.model.Attributes())
	if err != nil {
		return fmt.Errorf("statesync: marshal state: %w", err)
	}

	s.mu.Lock()
	version := s.version
	s.mu.Unlock()

	now := time.Now()
	snapshot := &Snapshot{
		StateID:   s.cfg.stateID,
		Version:   version,
		Data:      data,
		Timestamp: now,
	}
	if err := s.cfg.store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("statesync: save snapshot: %w", err)
	}

	s.mu.Lock()
	s.lastSnapshotVersion = version
	s.lastSnapshotTime = now
	s.mu.Unlock()

	s.cfg.logger.Debug("saved state snapshot", "state_id", s.cfg.stateID, "version", version)
	return nil
}

// Version returns the number of model changes seen, counting from the
// restored snapshot
func (s *State) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *State) onModelChange(ctx context.Context) error {
	s.mu.Lock()
	s.version++
	should := s.cfg.policy.ShouldSnapshot(s.version, s.lastSnapshotVersion, s.lastSnapshotTime)
	s.mu.Unlock()

	if !should {
		return nil
	}
	return s.SaveSnapshot(ctx)
}

// restore loads the stored snapshot into the model without triggering events
func (s *State) restore(ctx context.Context) error {
	snapshot, err := s.cfg.store.Load(ctx, s.cfg.stateID)
	if errors.Is(err, ErrSnapshotNotFound) {
		s.mu.Lock()
		s.lastSnapshotTime = time.Now()
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("statesync: load snapshot: %w", err)
	}

	var attrs map[string]any
	if err := stateJSON.Unmarshal(snapshot.Data, &attrs); err != nil {
		return fmt.Errorf("statesync: unmarshal snapshot: %w", err)
	}
	if err := s.model.Set(attrs, Silent()); err != nil {
		return err
	}

	s.mu.Lock()
	s.version = snapshot.Version
	s.lastSnapshotVersion = snapshot.Version
	s.lastSnapshotTime = snapshot.Timestamp
	s.mu.Unlock()

	s.cfg.logger.Info("restored state snapshot", "state_id", s.cfg.stateID, "version", snapshot.Version)
	return nil
}

// overlay returns a new map with base's entries replaced by over's
func overlay(base, over map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(over))
	maps.Copy(out, base)
	maps.Copy(out, over)
	return out
}
