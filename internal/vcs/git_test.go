package vcs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// fakeRunner returns canned git output or errors.
type fakeRunner struct {
	out string
	err error
}

func (f fakeRunner) Run(_ context.Context, _ string, _ ...string) (string, error) {
	return f.out, f.err
}

func TestStatusClean(t *testing.T) {
	client := NewClient(fakeRunner{out: ""})
	st, err := client.Status(context.Background(), "/repo")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Clean {
		t.Error("empty porcelain output should be clean")
	}
	if len(st.ModifiedPaths) != 0 {
		t.Errorf("ModifiedPaths = %v, want none", st.ModifiedPaths)
	}
}

func TestStatusDirty(t *testing.T) {
	// Output as the runner delivers it: trimmed, so the first line may
	// have lost its leading status space.
	out := strings.Join([]string{
		"M main.go",
		"?? notes.txt",
		"A  added.go",
		"R  old.go -> new.go",
	}, "\n")

	client := NewClient(fakeRunner{out: out})
	st, err := client.Status(context.Background(), "/repo")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Clean {
		t.Error("modified files should report dirty")
	}

	want := []string{"main.go", "notes.txt", "added.go", "new.go"}
	if len(st.ModifiedPaths) != len(want) {
		t.Fatalf("ModifiedPaths = %v, want %v", st.ModifiedPaths, want)
	}
	for i := range want {
		if st.ModifiedPaths[i] != want[i] {
			t.Errorf("ModifiedPaths[%d] = %q, want %q", i, st.ModifiedPaths[i], want[i])
		}
	}
}

func TestStatusNotARepository(t *testing.T) {
	gitErr := fmt.Errorf("git status --porcelain: exit status 128 (fatal: not a git repository (or any of the parent directories): .git)")
	client := NewClient(fakeRunner{err: gitErr})

	_, err := client.Status(context.Background(), "/tmp/elsewhere")
	if !errors.Is(err, ErrNotARepository) {
		t.Fatalf("error = %v, want ErrNotARepository", err)
	}
	if !strings.Contains(err.Error(), "/tmp/elsewhere") {
		t.Errorf("error should name the directory: %v", err)
	}
}

func TestStatusOtherError(t *testing.T) {
	gitErr := fmt.Errorf("git status --porcelain: exit status 1 (some other failure)")
	client := NewClient(fakeRunner{err: gitErr})

	_, err := client.Status(context.Background(), "/repo")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNotARepository) {
		t.Error("generic git failure must not map to ErrNotARepository")
	}
}

func TestParsePorcelain(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace", "  \n", nil},
		{"single staged", "M  file.go", []string{"file.go"}},
		{"untracked", "?? new.txt", []string{"new.txt"}},
		{"quoted path", `?? "has space.txt"`, []string{"has space.txt"}},
		{"rename", "R  a.go -> b.go", []string{"b.go"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parsePorcelain(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("parsePorcelain(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("parsePorcelain(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
				}
			}
		})
	}
}
