package tracking

import (
	"os"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/marcus/runhooks/internal/logging"
)

// logWatcher records files created or written under a directory while a
// run executes, so launcher output that appears mid-run is attached even
// when it does not match the job-id globs.
type logWatcher struct {
	watcher *fsnotify.Watcher
	logger  *logging.Logger

	mu   sync.Mutex
	seen map[string]struct{}
	done chan struct{}
}

// watchDir starts watching dir. The caller must call stop.
func watchDir(dir string, logger *logging.Logger) (*logWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	w := &logWatcher{
		watcher: watcher,
		logger:  logger,
		seen:    make(map[string]struct{}),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *logWatcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
				continue
			}
			w.mu.Lock()
			w.seen[event.Name] = struct{}{}
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Err(err).Msg("log watcher error")
		}
	}
}

// stop ends the watch and returns the sorted set of observed files.
func (w *logWatcher) stop() []string {
	_ = w.watcher.Close()
	<-w.done

	w.mu.Lock()
	defer w.mu.Unlock()
	files := make([]string, 0, len(w.seen))
	for f := range w.seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}
