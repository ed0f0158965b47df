package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marcus/runhooks"
	"github.com/marcus/runhooks/configtree"
	"github.com/marcus/runhooks/internal/logging"
	"github.com/marcus/runhooks/settings"
)

var (
	runConfigFlag   string
	runSettingsFlag string
	runJobIDFlag    string
	runWorkDirFlag  string
	runSetFlags     []string
	runScheduleFlag string
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- command [args...]",
	Short: "Execute a command as a job with lifecycle hooks",
	Long: `Run executes the given command once per override combination as runs
within a single job, dispatching job_start, run_start, run_end, and
job_end through the configured hooks.

Comma-separated values in --set sweep: --set lr=0.1,0.01 executes two
runs. With --schedule the whole job repeats on a cron schedule.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runConfigFlag, "config", "", "YAML file with the resolved configuration tree")
	runCmd.Flags().StringVar(&runSettingsFlag, "settings", "", "YAML file with hook settings")
	runCmd.Flags().StringVar(&runJobIDFlag, "job-id", "", "job identifier (default: generated)")
	runCmd.Flags().StringVar(&runWorkDirFlag, "workdir", ".", "working directory for the job")
	runCmd.Flags().StringArrayVar(&runSetFlags, "set", nil, "key=value override; comma-separated values sweep")
	runCmd.Flags().StringVar(&runScheduleFlag, "schedule", "", "cron expression to repeat the job")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	s, err := settings.Load(runSettingsFlag)
	if err != nil {
		return err
	}
	reg, cleanup, err := s.Build()
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	base, err := loadConfigTree(runConfigFlag)
	if err != nil {
		return err
	}

	combos, err := expandOverrides(runSetFlags)
	if err != nil {
		return err
	}

	jobID := runJobIDFlag
	if jobID == "" {
		jobID = "job-" + uuid.NewString()[:8]
	}

	job := func() error {
		return executeJob(cmd.Context(), reg, jobID, runWorkDirFlag, base, combos, args)
	}

	if runScheduleFlag == "" {
		return job()
	}
	return scheduleJob(cmd.Context(), runScheduleFlag, job)
}

// executeJob dispatches the full lifecycle around one execution of the
// command per override combination.
func executeJob(ctx context.Context, reg *runhooks.Registry, jobID, workDir string, base *configtree.Tree, combos [][]string, command []string) error {
	log := logging.Component("runner")
	multi := len(combos) > 1

	err := reg.Dispatch(ctx, runhooks.Event{
		Kind:     runhooks.JobStart,
		Time:     time.Now(),
		JobID:    jobID,
		WorkDir:  workDir,
		Config:   base,
		MultiRun: multi,
	})
	if err != nil {
		return err
	}

	jobStatus := runhooks.ExitStatus{Success: true}
	for i, combo := range combos {
		cfg, err := applyOverrides(base, combo)
		if err != nil {
			jobStatus = runhooks.ExitStatus{Success: false, Message: err.Error()}
			break
		}

		event := runhooks.Event{
			Time:      time.Now(),
			JobID:     jobID,
			RunIndex:  i,
			MultiRun:  multi,
			WorkDir:   workDir,
			Config:    cfg,
			Overrides: combo,
		}

		event.Kind = runhooks.RunStart
		if err := reg.Dispatch(ctx, event); err != nil {
			jobStatus = runhooks.ExitStatus{Success: false, Message: err.Error()}
			_ = reg.Dispatch(ctx, runhooks.Event{
				Kind: runhooks.JobEnd, Time: time.Now(), JobID: jobID,
				WorkDir: workDir, Config: base, MultiRun: multi, Status: &jobStatus,
			})
			return err
		}

		status := executeRun(ctx, workDir, command, combo, log)
		if !status.Success {
			jobStatus = status
		}

		event.Kind = runhooks.RunEnd
		event.Time = time.Now()
		event.Status = &status
		_ = reg.Dispatch(ctx, event)
	}

	_ = reg.Dispatch(ctx, runhooks.Event{
		Kind: runhooks.JobEnd, Time: time.Now(), JobID: jobID,
		WorkDir: workDir, Config: base, MultiRun: multi, Status: &jobStatus,
	})

	if !jobStatus.Success {
		return fmt.Errorf("job %s failed: %s", jobID, jobStatus.Message)
	}
	return nil
}

// executeRun runs the command with the run's overrides appended as args.
func executeRun(ctx context.Context, workDir string, command, overrides []string, log *logging.Logger) runhooks.ExitStatus {
	args := append(append([]string{}, command[1:]...), overrides...)
	cmd := exec.CommandContext(ctx, command[0], args...)
	cmd.Dir = workDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	log.Infof("running: %s", strings.Join(append([]string{command[0]}, args...), " "))
	if err := cmd.Run(); err != nil {
		return runhooks.ExitStatus{Success: false, Message: err.Error()}
	}
	return runhooks.ExitStatus{Success: true}
}

// scheduleJob repeats the job on a cron schedule until interrupted.
func scheduleJob(ctx context.Context, expr string, job func() error) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}

	log := logging.Component("runner")
	c := cron.New()
	if _, err := c.AddFunc(expr, func() {
		if err := job(); err != nil {
			log.Err(err).Msg("scheduled job failed")
		}
	}); err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	log.Infof("scheduled job with %q, waiting (ctrl-c to stop)", expr)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	return nil
}

func loadConfigTree(path string) (*configtree.Tree, error) {
	if path == "" {
		return configtree.FromMap(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	tree, err := configtree.Parse(data)
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// expandOverrides builds the cartesian product of comma-separated
// override values: ["lr=0.1,0.01" "bs=32"] yields two combinations.
func expandOverrides(sets []string) ([][]string, error) {
	combos := [][]string{nil}
	for _, set := range sets {
		key, values, ok := strings.Cut(set, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid override %q, expected key=value", set)
		}
		var next [][]string
		for _, value := range strings.Split(values, ",") {
			override := key + "=" + value
			for _, combo := range combos {
				expanded := append(append([]string{}, combo...), override)
				next = append(next, expanded)
			}
		}
		combos = next
	}
	return combos, nil
}

// applyOverrides returns a copy of the base tree with each key=value
// override set at its dotted path. Values parse as YAML scalars.
func applyOverrides(base *configtree.Tree, overrides []string) (*configtree.Tree, error) {
	if len(overrides) == 0 {
		return base, nil
	}
	root := base.Root()
	merged := deepCopy(root)
	for _, override := range overrides {
		key, raw, ok := strings.Cut(override, "=")
		if !ok {
			return nil, fmt.Errorf("invalid override %q", override)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		setPath(merged, strings.Split(key, "."), value)
	}
	return configtree.FromMap(merged), nil
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if child, ok := v.(map[string]any); ok {
			out[k] = deepCopy(child)
			continue
		}
		out[k] = v
	}
	return out
}

func setPath(m map[string]any, path []string, value any) {
	for i, part := range path {
		if i == len(path)-1 {
			m[part] = value
			return
		}
		child, ok := m[part].(map[string]any)
		if !ok {
			child = make(map[string]any)
			m[part] = child
		}
		m = child
	}
}
