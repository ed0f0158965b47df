package runhooks

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/marcus/runhooks/internal/logging"
)

// HookError wraps a hook failure with the hook and event that caused it.
type HookError struct {
	Hook string
	Kind Kind
	Err  error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hook %s failed on %s: %v", e.Hook, e.Kind, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// Registry holds an ordered list of hooks and dispatches events to them.
// Hooks are invoked in registration order. The registry is built once at
// process start and not mutated during a run.
type Registry struct {
	hooks  []Hook
	logger *logging.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for teardown-error reporting.
func WithLogger(zl zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logging.Wrap(zl)
	}
}

// NewRegistry creates an empty hook registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		logger: logging.Component("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends a hook. Dispatch order is registration order.
func (r *Registry) Register(h Hook) {
	r.hooks = append(r.hooks, h)
}

// Len returns the number of registered hooks.
func (r *Registry) Len() int { return len(r.hooks) }

// Dispatch invokes every registered hook's handler for the event, in
// registration order.
//
// For start events (JobStart, RunStart) the first hook error aborts
// dispatch: later hooks are not invoked and the error is returned wrapped
// in a HookError. A failed setup step invalidates subsequent setup.
//
// For end events (RunEnd, JobEnd) errors are logged and dispatch
// continues, so one failing hook does not hide others' cleanup. Dispatch
// returns nil for end events.
func (r *Registry) Dispatch(ctx context.Context, e Event) error {
	for _, h := range r.hooks {
		err := r.invoke(ctx, h, e)
		if err == nil {
			continue
		}
		if e.Kind.IsStart() {
			return &HookError{Hook: h.Name(), Kind: e.Kind, Err: err}
		}
		r.logger.Err(err).
			Str("hook", h.Name()).
			Str("event", e.Kind.String()).
			Str("job_id", e.JobID).
			Msg("teardown hook failed")
	}
	return nil
}

func (r *Registry) invoke(ctx context.Context, h Hook, e Event) error {
	switch e.Kind {
	case JobStart:
		return h.OnJobStart(ctx, e)
	case RunStart:
		return h.OnRunStart(ctx, e)
	case RunEnd:
		return h.OnRunEnd(ctx, e)
	case JobEnd:
		return h.OnJobEnd(ctx, e)
	default:
		return fmt.Errorf("unknown event kind %d", e.Kind)
	}
}
