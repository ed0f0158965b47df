package tracking

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/marcus/runhooks"
	"github.com/marcus/runhooks/internal/logging"
)

// DefaultConfigArtifactName is the artifact the resolved configuration is
// logged under.
const DefaultConfigArtifactName = "resolved_config.yaml"

// ChildNamer derives a session name for one run of a multi-run job from
// the parent name and the run's event.
type ChildNamer func(parent string, e runhooks.Event) string

// Config holds tracking hook configuration.
type Config struct {
	TrackingURI    string // http(s):// server, sqlite:// or bare path for a local store
	ExperimentName string // logical grouping on the backend
	RunName        string // base run name; defaults to the job id

	ConfigArtifactName string // defaults to DefaultConfigArtifactName
	SkipConfigArtifact bool   // do not attach the resolved configuration

	LogDir           string   // directory searched for auxiliary log files
	ArtifactPatterns []string // globs within LogDir; defaults to DefaultArtifactPatterns
	WatchLogs        bool     // also fsnotify-watch LogDir during the run

	Nested     bool       // group multi-run jobs under a parent session
	ChildNamer ChildNamer // defaults to "<parent>-<run index>"
}

// Hook mirrors runs to a tracking backend: a session per run with the
// resolved configuration, override parameters, and auxiliary log files
// attached, closed with the run's exit status.
//
// Session state is owned by the hook instance for the duration of one
// run; nothing is stored globally.
type Hook struct {
	runhooks.NopHook

	cfg    Config
	client Client
	logger *logging.Logger
	now    func() time.Time

	mu     sync.Mutex
	parent *Session          // job-level session for nested multi-run jobs
	runs   map[int]*runState // run index -> open session
}

type runState struct {
	session *Session
	watcher *logWatcher
}

// Option configures a Hook.
type Option func(*Hook)

// WithClient overrides the backend client, bypassing TrackingURI.
func WithClient(c Client) Option {
	return func(h *Hook) {
		h.client = c
	}
}

// WithLogger sets the hook's logger.
func WithLogger(zl zerolog.Logger) Option {
	return func(h *Hook) {
		h.logger = logging.Wrap(zl)
	}
}

// WithClock overrides the clock used for run names, for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Hook) {
		h.now = now
	}
}

// New creates a tracking hook. Unless WithClient is given, the backend is
// selected from cfg.TrackingURI.
func New(cfg Config, opts ...Option) (*Hook, error) {
	if cfg.ConfigArtifactName == "" {
		cfg.ConfigArtifactName = DefaultConfigArtifactName
	}
	if cfg.ChildNamer == nil {
		cfg.ChildNamer = func(parent string, e runhooks.Event) string {
			return fmt.Sprintf("%s-%d", parent, e.RunIndex)
		}
	}

	h := &Hook{
		cfg:    cfg,
		logger: logging.Component("tracking"),
		now:    time.Now,
		runs:   make(map[int]*runState),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.client == nil {
		client, err := NewClient(cfg.TrackingURI)
		if err != nil {
			return nil, fmt.Errorf("tracking backend: %w", err)
		}
		h.client = client
	}
	return h, nil
}

// Name identifies the hook in logs and dispatch errors.
func (h *Hook) Name() string { return "tracking" }

// Shutdown releases the backend when the hook owns a local store.
func (h *Hook) Shutdown() error {
	if store, ok := h.client.(*Store); ok {
		return store.CloseStore()
	}
	return nil
}

// OnJobStart opens a parent session for nested multi-run jobs.
func (h *Hook) OnJobStart(ctx context.Context, e runhooks.Event) error {
	if !isPrimaryRank() {
		return nil
	}
	if !h.cfg.Nested || !e.MultiRun {
		return nil
	}

	session, err := h.client.Open(ctx, OpenRequest{
		Name:       h.runName(e),
		Experiment: h.cfg.ExperimentName,
	})
	if err != nil {
		return err
	}
	if err := h.logConfig(ctx, session, e); err != nil {
		return err
	}

	h.mu.Lock()
	h.parent = session
	h.mu.Unlock()

	h.logger.InfoEvent().
		Str("session", session.ID).
		Str("name", session.Name).
		Msg("parent tracking session opened")
	return nil
}

// OnRunStart opens the run's session and attaches the resolved
// configuration and override parameters.
func (h *Hook) OnRunStart(ctx context.Context, e runhooks.Event) error {
	if !isPrimaryRank() {
		return nil
	}

	h.mu.Lock()
	parent := h.parent
	h.mu.Unlock()

	name := h.runName(e)
	req := OpenRequest{Name: name, Experiment: h.cfg.ExperimentName}
	if parent != nil {
		req.Name = h.cfg.ChildNamer(parent.Name, e)
		req.ParentID = parent.ID
	} else if e.MultiRun {
		req.Name = h.cfg.ChildNamer(name, e)
	}

	session, err := h.client.Open(ctx, req)
	if err != nil {
		return err
	}
	if err := h.logConfig(ctx, session, e); err != nil {
		return err
	}
	if params := ParseOverrides(e.Overrides); params != nil {
		if err := h.client.LogParams(ctx, session.ID, params); err != nil {
			return err
		}
	}

	state := &runState{session: session}
	if h.cfg.WatchLogs && h.cfg.LogDir != "" {
		watcher, err := watchDir(h.cfg.LogDir, h.logger)
		if err != nil {
			h.logger.Err(err).Str("dir", h.cfg.LogDir).Msg("log watch unavailable")
		} else {
			state.watcher = watcher
		}
	}

	h.mu.Lock()
	h.runs[e.RunIndex] = state
	h.mu.Unlock()

	h.logger.InfoEvent().
		Str("session", session.ID).
		Str("name", session.Name).
		Msg("tracking session opened")
	return nil
}

// OnRunEnd attaches auxiliary log files, records the exit status, and
// closes the run's session. Without a prior OnRunStart it is a no-op.
func (h *Hook) OnRunEnd(ctx context.Context, e runhooks.Event) error {
	if !isPrimaryRank() {
		return nil
	}

	h.mu.Lock()
	state, ok := h.runs[e.RunIndex]
	if ok {
		delete(h.runs, e.RunIndex)
	}
	h.mu.Unlock()

	if !ok {
		h.logger.Debugf("no open session for run %d", e.RunIndex)
		return nil
	}

	files := collectLogFiles(h.cfg.LogDir, e.JobID, h.cfg.ArtifactPatterns, e.RunIndex)
	if state.watcher != nil {
		files = mergePaths(files, state.watcher.stop())
	}
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			h.logger.Err(err).Str("file", file).Msg("skipping unreadable log file")
			continue
		}
		name := "logs/" + artifactName(file)
		if err := h.client.LogArtifact(ctx, state.session.ID, name, content); err != nil {
			h.logger.Err(err).Str("artifact", name).Msg("attaching log file failed")
		}
	}

	if err := h.client.Close(ctx, state.session.ID, closeRequest(e.Status)); err != nil {
		return err
	}
	h.logger.InfoEvent().
		Str("session", state.session.ID).
		Bool("success", e.Status == nil || e.Status.Success).
		Msg("tracking session closed")
	return nil
}

// OnJobEnd closes the parent session of a nested multi-run job.
func (h *Hook) OnJobEnd(ctx context.Context, e runhooks.Event) error {
	if !isPrimaryRank() {
		return nil
	}

	h.mu.Lock()
	parent := h.parent
	h.parent = nil
	h.mu.Unlock()

	if parent == nil {
		return nil
	}
	if err := h.client.Close(ctx, parent.ID, closeRequest(e.Status)); err != nil {
		return err
	}
	h.logger.InfoEvent().
		Str("session", parent.ID).
		Msg("parent tracking session closed")
	return nil
}

// runName derives the session name from the configured base (or the job
// id) and a UTC timestamp.
func (h *Hook) runName(e runhooks.Event) string {
	base := h.cfg.RunName
	if base == "" {
		base = e.JobID
	}
	if base == "" {
		base = "run"
	}
	return FormatRunName(base, h.now())
}

// FormatRunName joins a base name with a UTC timestamp.
func FormatRunName(base string, now time.Time) string {
	return base + "-" + now.UTC().Format("20060102T150405Z")
}

func (h *Hook) logConfig(ctx context.Context, session *Session, e runhooks.Event) error {
	if h.cfg.SkipConfigArtifact || e.Config == nil {
		return nil
	}
	content, err := e.Config.MarshalText()
	if err != nil {
		return fmt.Errorf("serializing config: %w", err)
	}
	return h.client.LogArtifact(ctx, session.ID, h.cfg.ConfigArtifactName, content)
}

func closeRequest(status *runhooks.ExitStatus) CloseRequest {
	if status == nil {
		return CloseRequest{Success: true}
	}
	return CloseRequest{Success: status.Success, Message: status.Message}
}

func mergePaths(a, b []string) []string {
	seen := make(map[string]struct{}, len(a))
	for _, p := range a {
		seen[p] = struct{}{}
	}
	out := a
	for _, p := range b {
		if _, ok := seen[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}
