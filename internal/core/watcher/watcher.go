// Package watcher reports changed Java sources under the project roots,
// debounced into batches.
package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"bindkey/internal/shared/observability"
	"bindkey/internal/shared/util"
)

type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	matcher    *Matcher
	debounce   time.Duration
	onChange   func([]string)
	callbackMu sync.Mutex

	rootsMu sync.RWMutex
	roots   []string

	pending   map[string]struct{}
	pendingMu sync.Mutex
	timer     *time.Timer
	done      chan struct{}
}

func NewWatcher(debounce time.Duration, matcher *Matcher, onChange func([]string)) (*Watcher, error) {
	if onChange == nil || matcher == nil {
		return nil, os.ErrInvalid
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsWatcher: fsw,
		matcher:   matcher,
		debounce:  debounce,
		onChange:  onChange,
		pending:   make(map[string]struct{}),
		done:      make(chan struct{}),
	}, nil
}

func (w *Watcher) SetDebounce(debounce time.Duration) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.debounce = debounce
}

// Watch registers every non-excluded directory under roots and starts
// delivering changes.
func (w *Watcher) Watch(roots []string) error {
	w.rootsMu.Lock()
	for _, r := range roots {
		w.roots = append(w.roots, filepath.Clean(r))
	}
	w.rootsMu.Unlock()
	for _, root := range roots {
		if err := w.watchRecursive(root); err != nil {
			return err
		}
	}
	go w.run()
	return nil
}

// relative returns path relative to the root containing it.
func (w *Watcher) relative(path string) (string, bool) {
	w.rootsMu.RLock()
	defer w.rootsMu.RUnlock()
	for _, root := range w.roots {
		if rel, ok := util.RelSlash(root, path); ok {
			return rel, true
		}
	}
	return "", false
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if rel, ok := w.relative(path); ok && w.matcher.ExcludeDir(rel) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if rel, ok := w.relative(event.Name); ok && w.matcher.ExcludeDir(rel) {
						continue
					}
					if err := w.watchRecursive(event.Name); err != nil {
						slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
					} else {
						w.enqueueExistingFiles(event.Name)
					}
					continue
				}
			}

			rel, ok := w.relative(event.Name)
			if !ok || !w.matcher.IncludeFile(rel) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.scheduleChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	if len(paths) > 0 {
		w.callbackMu.Lock()
		defer w.callbackMu.Unlock()
		w.onChange(paths)
	}
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if rel, ok := w.relative(path); ok && w.matcher.IncludeFile(rel) {
			w.scheduleChange(path)
		}
		return nil
	})
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	return w.fsWatcher.Close()
}
