package statesync

import "sync/atomic"

// EventDestroy is triggered by Component.Destroy and State.Destroy
const EventDestroy = "destroy"

// Component is a lifecycle host for syncing sessions. Embedding types
// define handlers and trigger their own events ("render", ...); Destroy
// tears down everything the component subscribed to.
type Component struct {
	Object

	destroyed atomic.Bool
}

// NewComponent creates a component
func NewComponent() *Component {
	return &Component{}
}

// IsDestroyed reports whether Destroy has run
func (c *Component) IsDestroyed() bool {
	return c.destroyed.Load()
}

// Destroy triggers "destroy", then stops every syncing session and every
// subscription the component owns. Later calls do nothing.
func (c *Component) Destroy() error {
	if !c.destroyed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.Trigger(EventDestroy, c)
	c.Sessions().StopAll()
	c.StopListening(nil, "", "")
	return err
}
