package statesync

import (
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Event names emitted by Model and Collection
const (
	EventChange = "change"
	EventAdd    = "add"
	EventRemove = "remove"
	EventReset  = "reset"
)

// ChangeEvent returns the attribute-scoped change event name, "change:<attr>"
func ChangeEvent(attr string) string {
	return EventChange + ":" + attr
}

// SetOption configures a Set call
type SetOption func(*setConfig)

type setConfig struct {
	silent bool
	unset  bool
}

// Silent applies the change without triggering events
func Silent() SetOption {
	return func(c *setConfig) {
		c.silent = true
	}
}

// Model is an observable record of named attributes.
//
// Set applies every attribute first and then notifies, so handlers observe
// the complete new state. A handler may call Set again; nothing guards
// against a handler that keeps re-triggering itself.
type Model struct {
	Events

	cid   string
	attrs map[string]any
	mu    sync.RWMutex
}

var _ Record = (*Model)(nil)

// NewModel creates a model holding a copy of attrs
func NewModel(attrs map[string]any) *Model {
	m := &Model{
		cid:   uuid.NewString(),
		attrs: make(map[string]any, len(attrs)),
	}
	maps.Copy(m.attrs, attrs)
	return m
}

// CID returns the client id assigned at construction
func (m *Model) CID() string {
	return m.cid
}

// Kind implements Entity
func (m *Model) Kind() Kind {
	return KindRecord
}

// Get returns the current value of attr, or nil
func (m *Model) Get(attr string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attrs[attr]
}

// Has reports whether attr is set to a non-nil value
func (m *Model) Has(attr string) bool {
	return m.Get(attr) != nil
}

// Attributes returns a copy of all attributes
func (m *Model) Attributes() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.attrs)
}

// Set updates attributes. For each attribute whose value changed it triggers
// "change:<attr>" with (model, value), in attribute name order, followed by
// one "change" with (model).
func (m *Model) Set(attrs map[string]any, opts ...SetOption) error {
	cfg := &setConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	m.mu.Lock()
	var changed []string
	for key, value := range attrs {
		current, exists := m.attrs[key]
		if cfg.unset {
			if exists {
				delete(m.attrs, key)
				changed = append(changed, key)
			}
			continue
		}
		if exists && reflect.DeepEqual(current, value) {
			continue
		}
		m.attrs[key] = value
		changed = append(changed, key)
	}
	m.mu.Unlock()

	if cfg.silent || len(changed) == 0 {
		return nil
	}

	slices.Sort(changed)
	for _, key := range changed {
		if err := m.Trigger(ChangeEvent(key), m, m.Get(key)); err != nil {
			return err
		}
	}
	return m.Trigger(EventChange, m)
}

// SetAttr sets a single attribute
func (m *Model) SetAttr(key string, value any, opts ...SetOption) error {
	return m.Set(map[string]any{key: value}, opts...)
}

// Unset removes attr
func (m *Model) Unset(attr string, opts ...SetOption) error {
	return m.Set(map[string]any{attr: nil}, append(opts, unset())...)
}

// Clear removes every attribute
func (m *Model) Clear(opts ...SetOption) error {
	m.mu.RLock()
	attrs := make(map[string]any, len(m.attrs))
	for key := range m.attrs {
		attrs[key] = nil
	}
	m.mu.RUnlock()
	return m.Set(attrs, append(opts, unset())...)
}

func unset() SetOption {
	return func(c *setConfig) {
		c.unset = true
	}
}
