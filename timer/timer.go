// Package timer provides a hook that logs wall-clock job durations.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/marcus/runhooks"
	"github.com/marcus/runhooks/internal/logging"
)

// Hook records a start timestamp on JobStart and logs the elapsed
// duration on JobEnd. A JobEnd without a matching JobStart is a no-op.
type Hook struct {
	runhooks.NopHook

	mu     sync.Mutex
	starts map[string]time.Time // job id -> start time

	logger *logging.Logger
	now    func() time.Time
}

// Option configures a Hook.
type Option func(*Hook)

// WithLogger sets the logger the duration is emitted to.
func WithLogger(zl zerolog.Logger) Option {
	return func(h *Hook) {
		h.logger = logging.Wrap(zl)
	}
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Hook) {
		h.now = now
	}
}

// New creates a timer hook.
func New(opts ...Option) *Hook {
	h := &Hook{
		starts: make(map[string]time.Time),
		logger: logging.Component("timer"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name identifies the hook in logs and dispatch errors.
func (h *Hook) Name() string { return "timer" }

// OnJobStart records the job's start time.
func (h *Hook) OnJobStart(_ context.Context, e runhooks.Event) error {
	h.mu.Lock()
	h.starts[e.JobID] = h.now()
	h.mu.Unlock()
	return nil
}

// OnJobEnd logs the elapsed duration and clears the stored start time.
func (h *Hook) OnJobEnd(_ context.Context, e runhooks.Event) error {
	h.mu.Lock()
	start, ok := h.starts[e.JobID]
	if ok {
		delete(h.starts, e.JobID)
	}
	h.mu.Unlock()

	if !ok {
		h.logger.Debugf("no start time recorded for job %s", e.JobID)
		return nil
	}

	h.logger.InfoEvent().
		Str("job_id", e.JobID).
		Dur("duration", h.now().Sub(start)).
		Msg("job completed")
	return nil
}
