package rules

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jianlins/FastContext/types"
)

// DefaultDebounce collapses the bursts of events an editor emits on save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads registries whose rule file changed on disk.
type Watcher struct {
	fw       *fsnotify.Watcher
	debounce time.Duration
	byPath   map[string][]*Registry

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
	// reloads counts scheduled and running reload callbacks.
	reloads sync.WaitGroup
}

// NewWatcher watches the rule files of registries. Registries with the
// embedded or an S3 rule source are ignored.
func NewWatcher(debounce time.Duration, registries ...*Registry) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fw:       fw,
		debounce: debounce,
		byPath:   make(map[string][]*Registry),
		pending:  make(map[string]*time.Timer),
	}

	dirs := make(map[string]bool)
	for _, registry := range registries {
		location := registry.Location()
		if location == "" || location == DefaultLocation || strings.HasPrefix(location, types.S3Prefix) {
			continue
		}
		path, err := filepath.Abs(location)
		if err != nil {
			fw.Close()
			return nil, err
		}
		w.byPath[path] = append(w.byPath[path], registry)
		dirs[filepath.Dir(path)] = true
	}
	// Directories rather than files, so that atomic renames are seen.
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Files returns the number of watched rule files.
func (w *Watcher) Files() int {
	return len(w.byPath)
}

// Run processes events until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			path, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, watched := w.byPath[path]; watched {
				w.schedule(path)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			loaderLogger.Warn().Err(err).Msg("Rule watcher error")
		case <-ctx.Done():
			return nil
		}
	}
}

// schedule reloads the registries of path once no event arrived for the
// debounce delay.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if timer, ok := w.pending[path]; ok && timer.Stop() {
		w.reloads.Done()
	}
	w.reloads.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		defer w.reloads.Done()
		w.mu.Lock()
		// A timer that fired while being replaced or stopped is stale.
		if w.stopped || w.pending[path] != timer {
			w.mu.Unlock()
			return
		}
		delete(w.pending, path)
		w.mu.Unlock()
		for _, registry := range w.byPath[path] {
			loaderLogger.Info().Str("config", registry.Name()).Str("location", path).Msg("Rule file changed, reloading")
			// Failures are logged by Reload and the previous rules stay active.
			_ = registry.Reload()
		}
	})
	w.pending[path] = timer
}

// stop cancels pending reloads and waits for running ones before closing
// the watcher.
func (w *Watcher) stop() {
	w.mu.Lock()
	w.stopped = true
	for path, timer := range w.pending {
		if timer.Stop() {
			w.reloads.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.reloads.Wait()
	_ = w.fw.Close()
}
