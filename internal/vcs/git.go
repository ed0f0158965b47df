// Package vcs queries git working-tree state for the gitclean hook.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotARepository indicates the directory is not under git control.
var ErrNotARepository = errors.New("not a git repository")

// Status describes the working-tree state of a repository.
type Status struct {
	Clean         bool
	ModifiedPaths []string // staged and unstaged changes, porcelain order
}

// Runner executes git commands. Tests inject fakes.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// execRunner invokes git via the system binary.
type execRunner struct{}

// Run executes a git command and returns trimmed stdout.
func (execRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "no stderr"
		}
		return "", fmt.Errorf("git %s: %w (%s)", strings.Join(args, " "), err, msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Client coordinates git operations and allows dependency injection.
type Client struct {
	runner Runner
}

// NewClient constructs a git client with an optional runner override.
func NewClient(runner Runner) Client {
	if runner == nil {
		runner = execRunner{}
	}
	return Client{runner: runner}
}

// Status reads the working-tree status of the repository containing dir.
// Returns ErrNotARepository (wrapped) when dir is not under git control.
func (c Client) Status(ctx context.Context, dir string) (Status, error) {
	out, err := c.runner.Run(ctx, dir, "status", "--porcelain")
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not a git repository") {
			return Status{}, fmt.Errorf("%s: %w", dir, ErrNotARepository)
		}
		return Status{}, fmt.Errorf("read git status: %w", err)
	}

	paths := parsePorcelain(out)
	return Status{
		Clean:         len(paths) == 0,
		ModifiedPaths: paths,
	}, nil
}

// parsePorcelain extracts paths from `git status --porcelain` output.
// Each line is "XY path"; renames are "XY old -> new" and report the
// new path. The runner trims output, so the first line may have lost a
// leading status space.
func parsePorcelain(out string) []string {
	if strings.TrimSpace(out) == "" {
		return nil
	}
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		var path string
		switch {
		case len(line) > 3 && line[2] == ' ':
			path = line[3:]
		default:
			idx := strings.IndexByte(line, ' ')
			if idx < 0 {
				continue
			}
			path = strings.TrimLeft(line[idx+1:], " ")
		}
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		if path = strings.Trim(path, `"`); path != "" {
			paths = append(paths, path)
		}
	}
	return paths
}
