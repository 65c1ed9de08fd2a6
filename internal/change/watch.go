package change

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
)

// Watcher watches a codebase root for filesystem activity and debounces
// bursts of events into a single trigger, grounded on the remembrances-mcp
// CodeWatcher's event-loop/debounce idiom. Unlike that watcher, which
// reindexes the single changed file, Detect already re-walks the whole tree
// per call, so the debounced signal here just asks the caller to re-run
// Detect rather than naming which file changed.
type Watcher struct {
	fw       *fsnotify.Watcher
	debounce time.Duration
}

// NewWatcher creates a Watcher rooted at root. Ignored paths (per ignore)
// are never added, so events under vendor/node_modules/.git/etc. never
// trigger a debounce cycle.
func NewWatcher(root string, ignore IgnoreSet, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{fw: fw, debounce: debounce}
	if err := w.addTree(root, ignore); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(root string, ignore IgnoreSet) error {
	return godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de == nil || !de.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = path
			}
			if rel != "." && ignore.Matches(rel) {
				return filepath.SkipDir
			}
			return w.fw.Add(path)
		},
	})
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fw.Close()
}

// Run blocks until ctx is cancelled, calling onChange at most once per
// debounce window after the first filesystem event in that window.
func (w *Watcher) Run(ctx context.Context, onChange func()) {
	var pending bool
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !pending {
				pending = true
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("watch: fsnotify error")
		case <-timer.C:
			if pending {
				pending = false
				onChange()
			}
		}
	}
}
