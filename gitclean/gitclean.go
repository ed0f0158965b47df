// Package gitclean provides a hook that refuses to start runs from a
// dirty git working tree, so every tracked run maps to a committed state.
package gitclean

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/marcus/runhooks"
	"github.com/marcus/runhooks/internal/logging"
	"github.com/marcus/runhooks/internal/vcs"
)

// DirtyError reports uncommitted changes in the working tree.
type DirtyError struct {
	Dir   string
	Paths []string
}

func (e *DirtyError) Error() string {
	return fmt.Sprintf("working tree at %s has %d uncommitted changes (%s): commit them before running or set override",
		e.Dir, len(e.Paths), strings.Join(e.Paths, ", "))
}

// NotARepositoryError reports that the working directory is not under
// version control.
type NotARepositoryError struct {
	Dir string
}

func (e *NotARepositoryError) Error() string {
	return fmt.Sprintf("%s is not a git repository: initialize one or set skip_check", e.Dir)
}

// Options control how the hook checks the working tree.
type Options struct {
	// SkipCheck downgrades "not a repository" to a no-op.
	SkipCheck bool
	// Override logs a warning instead of failing when the tree is dirty
	// or the check itself errors.
	Override bool
	// CheckOnJobStart moves the check from RunStart to JobStart, so a
	// multi-run job is checked once instead of once per run.
	CheckOnJobStart bool
}

// Hook checks the working tree before a run starts.
type Hook struct {
	runhooks.NopHook

	opts   Options
	git    vcs.Client
	logger *logging.Logger
}

// Option configures a Hook beyond its Options.
type Option func(*Hook)

// WithLogger sets the hook's logger.
func WithLogger(zl zerolog.Logger) Option {
	return func(h *Hook) {
		h.logger = logging.Wrap(zl)
	}
}

// WithRunner overrides the git command runner, for tests.
func WithRunner(r vcs.Runner) Option {
	return func(h *Hook) {
		h.git = vcs.NewClient(r)
	}
}

// New creates a git clean hook.
func New(opts Options, hookOpts ...Option) *Hook {
	h := &Hook{
		opts:   opts,
		git:    vcs.NewClient(nil),
		logger: logging.Component("gitclean"),
	}
	for _, opt := range hookOpts {
		opt(h)
	}
	return h
}

// Name identifies the hook in logs and dispatch errors.
func (h *Hook) Name() string { return "gitclean" }

// OnJobStart checks the tree when CheckOnJobStart is set.
func (h *Hook) OnJobStart(ctx context.Context, e runhooks.Event) error {
	if !h.opts.CheckOnJobStart {
		return nil
	}
	return h.check(ctx, e.WorkDir)
}

// OnRunStart checks the tree unless the check runs on JobStart instead.
func (h *Hook) OnRunStart(ctx context.Context, e runhooks.Event) error {
	if h.opts.CheckOnJobStart {
		return nil
	}
	return h.check(ctx, e.WorkDir)
}

func (h *Hook) check(ctx context.Context, dir string) error {
	st, err := h.git.Status(ctx, dir)
	if err != nil {
		if errors.Is(err, vcs.ErrNotARepository) {
			if h.opts.SkipCheck {
				h.logger.Debugf("%s not under version control, skipping check", dir)
				return nil
			}
			if h.opts.Override {
				h.logger.Warnf("%s not under version control but override is set, continuing", dir)
				return nil
			}
			return &NotARepositoryError{Dir: dir}
		}
		if h.opts.Override {
			h.logger.Err(err).Msg("git check failed but override is set, continuing")
			return nil
		}
		return err
	}

	if st.Clean {
		h.logger.Debug("working tree clean")
		return nil
	}
	if h.opts.Override {
		h.logger.WarnEvent().
			Strs("modified", st.ModifiedPaths).
			Msg("working tree dirty but override is set, continuing")
		return nil
	}
	return &DirtyError{Dir: dir, Paths: st.ModifiedPaths}
}
