package statesync

import "context"

// BindEvents wires bindings on obj straight to the target's handlers,
// without the replay semantics of SyncEntityEvents. Handlers receive obj
// as the entity when obj is an Entity (nil otherwise) and the first
// trigger argument as the value.
func BindEvents(target Target, obj Observable, bindings Bindings, opts ...SyncOption) {
	cfg := defaultSyncConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	d := &dispatcher{cfg: cfg}
	entity, _ := obj.(Entity)

	for _, b := range bindings {
		for _, event := range b.EventNames() {
			target.ListenTo(obj, event, b.key(), func(args ...any) error {
				var value any
				if len(args) > 0 {
					value = args[0]
				}
				return dispatch(context.Background(), d, target, entity, event, b, value)
			})
		}
	}
}

// UnbindEvents removes what BindEvents attached for bindings
func UnbindEvents(target Target, obj Observable, bindings Bindings) {
	for _, b := range bindings {
		for _, event := range b.EventNames() {
			target.StopListening(obj, event, b.key())
		}
	}
}
