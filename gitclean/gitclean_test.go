package gitclean

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/marcus/runhooks"
)

// fakeGit returns canned porcelain output or errors.
type fakeGit struct {
	out string
	err error
}

func (f fakeGit) Run(_ context.Context, _ string, _ ...string) (string, error) {
	return f.out, f.err
}

var notARepoErr = errors.New("git status --porcelain: exit status 128 (fatal: not a git repository)")

func newHook(opts Options, git fakeGit) *Hook {
	return New(opts, WithRunner(git), WithLogger(zerolog.Nop()))
}

func TestCleanTreeNoop(t *testing.T) {
	h := newHook(Options{}, fakeGit{out: ""})
	err := h.OnRunStart(context.Background(), runhooks.Event{WorkDir: "/repo"})
	if err != nil {
		t.Fatalf("clean tree should pass: %v", err)
	}
}

func TestDirtyTreeFails(t *testing.T) {
	out := "M  a.go\n?? b.txt\nM  c/d.go"
	h := newHook(Options{}, fakeGit{out: out})

	err := h.OnRunStart(context.Background(), runhooks.Event{WorkDir: "/repo"})
	if err == nil {
		t.Fatal("dirty tree should fail")
	}

	var dirty *DirtyError
	if !errors.As(err, &dirty) {
		t.Fatalf("error type = %T, want *DirtyError", err)
	}
	want := []string{"a.go", "b.txt", "c/d.go"}
	if len(dirty.Paths) != len(want) {
		t.Fatalf("Paths = %v, want %v", dirty.Paths, want)
	}
	for i := range want {
		if dirty.Paths[i] != want[i] {
			t.Errorf("Paths[%d] = %q, want %q", i, dirty.Paths[i], want[i])
		}
	}
	for _, p := range want {
		if !strings.Contains(err.Error(), p) {
			t.Errorf("error message should list %q: %v", p, err)
		}
	}
}

func TestDirtyTreeWithOverride(t *testing.T) {
	h := newHook(Options{Override: true}, fakeGit{out: "M  a.go"})
	if err := h.OnRunStart(context.Background(), runhooks.Event{WorkDir: "/repo"}); err != nil {
		t.Fatalf("override should downgrade dirty tree to a warning: %v", err)
	}
}

func TestNotARepositoryFails(t *testing.T) {
	h := newHook(Options{}, fakeGit{err: notARepoErr})

	err := h.OnRunStart(context.Background(), runhooks.Event{WorkDir: "/tmp/x"})
	var notRepo *NotARepositoryError
	if !errors.As(err, &notRepo) {
		t.Fatalf("error type = %T, want *NotARepositoryError", err)
	}
	if notRepo.Dir != "/tmp/x" {
		t.Errorf("Dir = %q, want /tmp/x", notRepo.Dir)
	}
}

func TestNotARepositoryWithSkipCheck(t *testing.T) {
	h := newHook(Options{SkipCheck: true}, fakeGit{err: notARepoErr})
	if err := h.OnRunStart(context.Background(), runhooks.Event{WorkDir: "/tmp/x"}); err != nil {
		t.Fatalf("skip_check should treat untracked directories as success: %v", err)
	}
}

func TestCheckFailureWithOverride(t *testing.T) {
	h := newHook(Options{Override: true}, fakeGit{err: errors.New("git: boom")})
	if err := h.OnRunStart(context.Background(), runhooks.Event{WorkDir: "/repo"}); err != nil {
		t.Fatalf("override should swallow check failures: %v", err)
	}
}

func TestCheckOnJobStartRouting(t *testing.T) {
	ctx := context.Background()
	dirty := fakeGit{out: "M  a.go"}

	// Default: RunStart checks, JobStart does not.
	h := newHook(Options{}, dirty)
	if err := h.OnJobStart(ctx, runhooks.Event{WorkDir: "/repo"}); err != nil {
		t.Errorf("JobStart checked with default options: %v", err)
	}
	if err := h.OnRunStart(ctx, runhooks.Event{WorkDir: "/repo"}); err == nil {
		t.Error("RunStart should check with default options")
	}

	// CheckOnJobStart flips both.
	h = newHook(Options{CheckOnJobStart: true}, dirty)
	if err := h.OnJobStart(ctx, runhooks.Event{WorkDir: "/repo"}); err == nil {
		t.Error("JobStart should check with CheckOnJobStart")
	}
	if err := h.OnRunStart(ctx, runhooks.Event{WorkDir: "/repo"}); err != nil {
		t.Errorf("RunStart checked with CheckOnJobStart: %v", err)
	}
}
