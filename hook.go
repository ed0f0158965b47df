package runhooks

import "context"

// Hook reacts to runner lifecycle events with side effects. Implementations
// embed NopHook to inherit no-ops for the events they do not handle.
//
// Hooks must tolerate missing prior events: a JobEnd without a JobStart, or
// a RunEnd without a RunStart, is a no-op rather than an error.
type Hook interface {
	// Name identifies the hook in logs and dispatch errors.
	Name() string

	OnJobStart(ctx context.Context, e Event) error
	OnRunStart(ctx context.Context, e Event) error
	OnRunEnd(ctx context.Context, e Event) error
	OnJobEnd(ctx context.Context, e Event) error
}

// NopHook implements Hook with no-ops for every event. Embed it to only
// handle the events a hook cares about.
type NopHook struct{}

func (NopHook) Name() string { return "nop" }

func (NopHook) OnJobStart(context.Context, Event) error { return nil }

func (NopHook) OnRunStart(context.Context, Event) error { return nil }

func (NopHook) OnRunEnd(context.Context, Event) error { return nil }

func (NopHook) OnJobEnd(context.Context, Event) error { return nil }
