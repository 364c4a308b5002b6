package app

import (
	"context"
	"log/slog"

	"bindkey/internal/core/config"
	"bindkey/internal/core/ports"
	"bindkey/internal/core/watcher"
)

// StartWatcher re-indexes changed sources under the source roots until Close.
func (a *App) StartWatcher() error {
	a.watchMu.Lock()
	w, err := watcher.NewWatcher(a.Config.Watch.Debounce, a.matcher, a.HandleChanges)
	if err != nil {
		a.watchMu.Unlock()
		return err
	}
	a.activeWatcher = w
	a.watchMu.Unlock()
	return w.Watch(a.Paths.SourceRoots)
}

// WatchConfig follows the configuration file at path. Only the debounce
// applies to a running watcher; other settings take effect on restart.
func (a *App) WatchConfig(ctx context.Context, path string) error {
	cw := config.NewWatcher(path, a.applyConfig)
	if err := cw.Start(ctx); err != nil {
		return err
	}
	a.watchMu.Lock()
	a.configWatcher = cw
	a.watchMu.Unlock()
	return nil
}

func (a *App) applyConfig(cfg *config.Config) {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	if cfg.Watch.Debounce == a.Config.Watch.Debounce {
		return
	}
	a.Config.Watch.Debounce = cfg.Watch.Debounce
	if a.activeWatcher != nil {
		a.activeWatcher.SetDebounce(cfg.Watch.Debounce)
		slog.Info("watch debounce updated", "debounce", cfg.Watch.Debounce)
	}
}

// HandleChanges is the watcher callback.
func (a *App) HandleChanges(paths []string) {
	res, err := a.Refresh(context.Background(), paths)
	if err != nil {
		slog.Warn("refresh failed", "files", len(paths), "error", err)
		return
	}
	for _, w := range res.Warnings {
		slog.Warn("refresh warning", "detail", w)
	}
	slog.Info("index refreshed", "changed", res.FilesChanged, "removed", res.FilesRemoved, "types", res.Types)
	a.emitUpdate(res)
}

type watchService struct {
	app *App
}

var _ ports.WatchService = (*watchService)(nil)

func (a *App) WatchService() ports.WatchService {
	return &watchService{app: a}
}

func (s *watchService) Start(ctx context.Context, configPath string) error {
	if err := s.app.StartWatcher(); err != nil {
		return err
	}
	if configPath == "" {
		return nil
	}
	return s.app.WatchConfig(ctx, configPath)
}

func (s *watchService) SetUpdateHandler(handler func(ports.IndexResult)) {
	s.app.SetUpdateHandler(handler)
}
