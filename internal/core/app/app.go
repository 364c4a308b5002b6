package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"bindkey/internal/core/config"
	"bindkey/internal/core/ports"
	"bindkey/internal/core/watcher"
	"bindkey/internal/engine/parser"
	"bindkey/internal/engine/resolver"
	"bindkey/internal/engine/symbols"
	"bindkey/internal/shared/util"
)

// App owns the project index of one bindkey invocation: the in-memory table,
// the optional SQLite store and the resolver reading from them.
type App struct {
	Config  *config.Config
	Paths   config.ResolvedPaths
	Project config.ActiveProject
	Table   *symbols.MemoryTable

	cwd        string
	codeParser ports.CodeParser
	matcher    *watcher.Matcher
	store      *symbols.SQLiteStore
	resolver   *resolver.Resolver

	indexMu sync.Mutex
	hashes  *contentCache

	watchMu       sync.Mutex
	activeWatcher *watcher.Watcher
	configWatcher *config.Watcher
	onUpdate      func(ports.IndexResult)
}

func New(cfg *config.Config, cwd string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	project, err := config.ResolveActiveProject(cfg, cwd)
	if err != nil {
		return nil, err
	}
	matcher, err := watcher.NewMatcher(cfg.Sources.Include, cfg.Sources.Exclude.Dirs, cfg.Sources.Exclude.Files)
	if err != nil {
		return nil, fmt.Errorf("compile source patterns: %w", err)
	}

	a := &App{
		Config:     cfg,
		Paths:      paths,
		Project:    project,
		Table:      symbols.NewMemoryTable(),
		cwd:        cwd,
		codeParser: parser.NewParser(),
		matcher:    matcher,
		hashes:     newContentCache(),
	}
	a.initSymbolStore()
	a.resolver = a.newResolver()
	return a, nil
}

func (a *App) newResolver() *resolver.Resolver {
	opts := resolver.Options{
		LookupTimeout:    a.Config.Resolver.LookupTimeout,
		LookupsPerSecond: a.Config.Resolver.LookupsPerSecond,
		Burst:            a.Config.Resolver.Burst,
	}
	if a.store != nil {
		return resolver.NewResolverWithRecorder(a.store, opts, a.store)
	}
	return resolver.NewResolver(a.Table, opts)
}

// Resolver returns the resolver bound to the project index.
func (a *App) Resolver() *resolver.Resolver { return a.resolver }

// HasStore reports whether the index is persisted.
func (a *App) HasStore() bool { return a.store != nil }

func (a *App) SetUpdateHandler(handler func(ports.IndexResult)) {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	a.onUpdate = handler
}

func (a *App) emitUpdate(update ports.IndexResult) {
	a.watchMu.Lock()
	handler := a.onUpdate
	a.watchMu.Unlock()
	if handler != nil {
		handler(update)
	}
}

// indexPath maps a file system path to the slash separated path the index
// records, relative to the project root.
func (a *App) indexPath(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(a.cwd, path)
	}
	if rel, ok := util.RelSlash(a.Paths.ProjectRoot, path); ok {
		return rel
	}
	return filepath.ToSlash(filepath.Clean(path))
}

// diskPath is the inverse of indexPath.
func (a *App) diskPath(indexPath string) string {
	p := filepath.FromSlash(indexPath)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.Paths.ProjectRoot, p)
}

func (a *App) Close(ctx context.Context) error {
	a.watchMu.Lock()
	w, cw := a.activeWatcher, a.configWatcher
	a.activeWatcher, a.configWatcher = nil, nil
	a.watchMu.Unlock()

	var firstErr error
	if cw != nil {
		cw.Stop()
	}
	if w != nil {
		if err := w.Close(); err != nil {
			firstErr = err
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.store = nil
	}
	if firstErr != nil {
		slog.Warn("app close", "error", firstErr)
	}
	return firstErr
}
