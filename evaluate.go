package statesync

import (
	"context"
	"time"
)

// Reasons reported to Observability.OnSyncStart
const (
	reasonNow     = "now"
	reasonTrigger = "trigger"
	reasonNotify  = "notify"
)

// dispatcher runs binding tables and reports to the configured hooks
type dispatcher struct {
	cfg *syncConfig
}

// evaluate runs every entry of bindings against the current entity state.
// Entries run in order, events left to right, and irrelevant events are skipped.
func (d *dispatcher) evaluate(ctx context.Context, reason string, source HandlerSource, entity Entity, bindings Bindings) (err error) {
	ctx, done := d.pass(ctx, reason, entity)
	defer func() { done(err) }()

	for _, b := range bindings {
		for _, event := range b.EventNames() {
			if err := d.evaluateEvent(ctx, source, entity, event, b); err != nil {
				return err
			}
		}
	}
	return nil
}

// evaluateEvent resolves a single event and dispatches b's handlers for it
func (d *dispatcher) evaluateEvent(ctx context.Context, source HandlerSource, entity Entity, event string, b Binding) error {
	value, relevant := resolve(entity, event)
	if !relevant {
		return nil
	}
	return dispatch(ctx, d, source, entity, event, b, value)
}

// notify is the path taken by a live entity notification
func (d *dispatcher) notify(source HandlerSource, entity Entity, event string, b Binding) (err error) {
	ctx, done := d.pass(context.Background(), reasonNotify, entity)
	defer func() { done(err) }()
	return d.evaluateEvent(ctx, source, entity, event, b)
}

func (d *dispatcher) pass(ctx context.Context, reason string, entity Entity) (context.Context, func(error)) {
	start := time.Now()
	obs := d.cfg.observability
	if obs != nil {
		ctx = obs.OnSyncStart(ctx, reason, entity.Kind().String())
	}
	return ctx, func(err error) {
		if err != nil {
			d.cfg.logger.Error("sync failed", "reason", reason, "kind", entity.Kind().String(), "error", err)
		}
		if obs != nil {
			obs.OnSyncComplete(ctx, time.Since(start), err)
		}
	}
}

// call runs one handler between the observability hooks
func (d *dispatcher) call(ctx context.Context, event, handler string, fn func() error) error {
	obs := d.cfg.observability
	if obs == nil {
		return fn()
	}

	start := time.Now()
	hctx := obs.OnHandlerStart(ctx, event, handler)
	err := fn()
	obs.OnHandlerComplete(hctx, time.Since(start), err)
	return err
}
