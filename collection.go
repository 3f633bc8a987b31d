package statesync

import (
	"slices"
	"sync"
)

// Collection is an ordered, observable set of models. Events triggered by
// member models are re-triggered on the collection.
type Collection struct {
	Events

	models  []*Model
	proxies map[*Model]ListenerID
	mu      sync.RWMutex
}

var _ Entity = (*Collection)(nil)

// NewCollection creates a collection holding models, without triggering events
func NewCollection(models ...*Model) *Collection {
	c := &Collection{proxies: make(map[*Model]ListenerID)}
	for _, m := range models {
		c.attach(m)
	}
	return c
}

// Kind implements Entity
func (c *Collection) Kind() Kind {
	return KindCollection
}

// Len returns the number of models
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}

// At returns the model at index i, or nil when out of range
func (c *Collection) At(i int) *Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i < 0 || i >= len(c.models) {
		return nil
	}
	return c.models[i]
}

// Models returns a copy of the model slice
func (c *Collection) Models() []*Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.models)
}

// Get finds a model by client id
func (c *Collection) Get(cid string) (*Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.models {
		if m.CID() == cid {
			return m, true
		}
	}
	return nil, false
}

// Add appends models not already present and triggers "add" for each
func (c *Collection) Add(models ...*Model) error {
	var added []*Model
	for _, m := range models {
		if c.attach(m) {
			added = append(added, m)
		}
	}
	for _, m := range added {
		if err := c.Trigger(EventAdd, m, c); err != nil {
			return err
		}
	}
	return nil
}

// Remove drops models and triggers "remove" for each one that was present
func (c *Collection) Remove(models ...*Model) error {
	var removed []*Model
	for _, m := range models {
		if c.detach(m) {
			removed = append(removed, m)
		}
	}
	for _, m := range removed {
		if err := c.Trigger(EventRemove, m, c); err != nil {
			return err
		}
	}
	return nil
}

// Reset replaces the contents and triggers a single "reset"
func (c *Collection) Reset(models ...*Model) error {
	for _, m := range c.Models() {
		c.detach(m)
	}
	for _, m := range models {
		c.attach(m)
	}
	return c.Trigger(EventReset, c)
}

func (c *Collection) attach(m *Model) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proxies == nil {
		c.proxies = make(map[*Model]ListenerID)
	}
	if _, exists := c.proxies[m]; exists {
		return false
	}
	c.models = append(c.models, m)
	c.proxies[m] = m.On(EventAll, func(args ...any) error {
		if len(args) == 0 {
			return nil
		}
		event, _ := args[0].(string)
		return c.Trigger(event, args[1:]...)
	})
	return true
}

func (c *Collection) detach(m *Model) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, exists := c.proxies[m]
	if !exists {
		return false
	}
	delete(c.proxies, m)
	c.models = slices.DeleteFunc(c.models, func(existing *Model) bool { return existing == m })
	m.Off(EventAll, id)
	return true
}
