package tracking

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultArtifactPatterns are the log-file globs attached on run end.
var DefaultArtifactPatterns = []string{"*.log", "*.out", "*.err"}

// launcherDirName is the subdirectory distributed launchers write
// per-run stdout/stderr into, one folder per run index.
const launcherDirName = "launcher"

// collectLogFiles finds auxiliary log files for a finished run: files
// under logDir matching the patterns and the job id, plus everything the
// launcher wrote for this run index. A missing logDir yields nothing.
func collectLogFiles(logDir, jobID string, patterns []string, runIndex int) []string {
	if logDir == "" {
		return nil
	}
	if _, err := os.Stat(logDir); err != nil {
		return nil
	}
	if len(patterns) == 0 {
		patterns = DefaultArtifactPatterns
	}

	seen := make(map[string]struct{})
	var files []string
	add := func(path string) {
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(logDir, pattern))
		if err != nil {
			continue
		}
		for _, m := range matches {
			if jobID != "" && !strings.Contains(filepath.Base(m), jobID) {
				continue
			}
			add(m)
		}
	}

	// Launcher output is already scoped per run, no job-id filter.
	launcherGlob := filepath.Join(logDir, launcherDirName, "*_"+strconv.Itoa(runIndex), "*")
	if matches, err := filepath.Glob(launcherGlob); err == nil {
		for _, m := range matches {
			add(m)
		}
	}

	sort.Strings(files)
	return files
}

// artifactName maps a log file path to its artifact name, renaming the
// launcher's raw extensions so they read as logs in a tracking UI.
func artifactName(path string) string {
	name := filepath.Base(path)
	name = strings.ReplaceAll(name, ".out", ".stdout.log")
	name = strings.ReplaceAll(name, ".err", ".stderr.log")
	return name
}
