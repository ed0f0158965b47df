// Package settings loads runhooks configuration from a YAML file with
// environment overrides and builds a wired hook registry from it, so a
// host enables hooks through its config rather than code.
package settings

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/marcus/runhooks"
	"github.com/marcus/runhooks/gitclean"
	"github.com/marcus/runhooks/internal/logging"
	"github.com/marcus/runhooks/timer"
	"github.com/marcus/runhooks/tracking"
)

// Settings describes which hooks to enable and how.
type Settings struct {
	Logging  Logging  `mapstructure:"logging"`
	Timer    Timer    `mapstructure:"timer"`
	Git      Git      `mapstructure:"git"`
	Tracking Tracking `mapstructure:"tracking"`
}

// Logging configures the process-wide logger.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

// Timer configures the job duration hook.
type Timer struct {
	Enabled bool `mapstructure:"enabled"`
}

// Git configures the clean-working-tree hook.
type Git struct {
	Enabled    bool `mapstructure:"enabled"`
	SkipCheck  bool `mapstructure:"skip_check"`
	Override   bool `mapstructure:"override"`
	OnJobStart bool `mapstructure:"on_job_start"`
}

// Tracking configures the experiment tracking hook.
type Tracking struct {
	Enabled          bool     `mapstructure:"enabled"`
	URI              string   `mapstructure:"uri"`
	Experiment       string   `mapstructure:"experiment"`
	RunName          string   `mapstructure:"run_name"`
	LogDir           string   `mapstructure:"log_dir"`
	ArtifactPatterns []string `mapstructure:"artifact_patterns"`
	WatchLogs        bool     `mapstructure:"watch_logs"`
	Nested           bool     `mapstructure:"nested"`
}

// Default returns settings with the timer enabled and everything else off.
func Default() Settings {
	return Settings{
		Logging: Logging{Level: "info", Format: "json"},
		Timer:   Timer{Enabled: true},
	}
}

// Load reads settings from path. An empty path returns defaults with
// environment overrides applied (RUNHOOKS_ prefix, e.g.
// RUNHOOKS_TRACKING_URI).
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("RUNHOOKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only consults keys viper already knows about, so every
	// settings key needs a default registered for its RUNHOOKS_ variable
	// to be picked up.
	defaults := Default()
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.path", defaults.Logging.Path)
	v.SetDefault("timer.enabled", defaults.Timer.Enabled)
	v.SetDefault("git.enabled", defaults.Git.Enabled)
	v.SetDefault("git.skip_check", defaults.Git.SkipCheck)
	v.SetDefault("git.override", defaults.Git.Override)
	v.SetDefault("git.on_job_start", defaults.Git.OnJobStart)
	v.SetDefault("tracking.enabled", defaults.Tracking.Enabled)
	v.SetDefault("tracking.uri", defaults.Tracking.URI)
	v.SetDefault("tracking.experiment", defaults.Tracking.Experiment)
	v.SetDefault("tracking.run_name", defaults.Tracking.RunName)
	v.SetDefault("tracking.log_dir", defaults.Tracking.LogDir)
	v.SetDefault("tracking.artifact_patterns", defaults.Tracking.ArtifactPatterns)
	v.SetDefault("tracking.watch_logs", defaults.Tracking.WatchLogs)
	v.SetDefault("tracking.nested", defaults.Tracking.Nested)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return &s, nil
}

// Build initializes logging and constructs a registry with the enabled
// hooks in a fixed order: gitclean, timer, tracking. The returned cleanup
// releases backend resources and is safe to call once dispatching is done.
func (s *Settings) Build() (*runhooks.Registry, func() error, error) {
	if err := logging.Init(logging.Config{
		Level:  s.Logging.Level,
		Format: s.Logging.Format,
		Path:   s.Logging.Path,
	}); err != nil {
		return nil, nil, err
	}

	reg := runhooks.NewRegistry()
	cleanup := func() error { return nil }

	// Git first: a dirty tree should abort before any session opens.
	if s.Git.Enabled {
		reg.Register(gitclean.New(gitclean.Options{
			SkipCheck:       s.Git.SkipCheck,
			Override:        s.Git.Override,
			CheckOnJobStart: s.Git.OnJobStart,
		}))
	}
	if s.Timer.Enabled {
		reg.Register(timer.New())
	}
	if s.Tracking.Enabled {
		hook, err := tracking.New(tracking.Config{
			TrackingURI:      s.Tracking.URI,
			ExperimentName:   s.Tracking.Experiment,
			RunName:          s.Tracking.RunName,
			LogDir:           s.Tracking.LogDir,
			ArtifactPatterns: s.Tracking.ArtifactPatterns,
			WatchLogs:        s.Tracking.WatchLogs,
			Nested:           s.Tracking.Nested,
		})
		if err != nil {
			return nil, nil, err
		}
		reg.Register(hook)
		cleanup = hook.Shutdown
	}

	return reg, cleanup, nil
}
