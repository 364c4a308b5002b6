package app

import (
	"context"
	"fmt"
	"log/slog"

	"bindkey/internal/engine/symbols"
)

// initSymbolStore opens the persisted index. A store that cannot be opened is
// logged and the app keeps working in memory.
func (a *App) initSymbolStore() {
	if a == nil || a.Config == nil || !a.Config.DB.Enabled {
		return
	}
	store, err := symbols.OpenSQLiteStore(a.Paths.DBPath, symbols.StoreOptions{
		ProjectKey:  a.Project.Key,
		CacheSize:   a.Config.Resolver.CacheSize,
		BusyTimeout: a.Config.DB.BusyTimeout,
	})
	if err != nil {
		slog.Warn("index store unavailable, indexing in memory", "path", a.Paths.DBPath, "error", err)
		return
	}
	a.store = store
}

// persistFiles writes files to the store and drops removed ones. When
// prune is set every path missing from files is dropped as well.
func (a *App) persistFiles(ctx context.Context, files []*symbols.File, removed []string, prune bool) (err error) {
	if a == nil || a.store == nil {
		return nil
	}
	batch, err := a.store.BeginBatch(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := batch.Rollback(); rbErr != nil {
				slog.Warn("failed to roll back index batch", "error", rbErr)
			}
		}
	}()
	for _, f := range files {
		if err = batch.UpsertFile(f); err != nil {
			return err
		}
	}
	for _, path := range removed {
		if err = batch.DeleteFile(path); err != nil {
			return err
		}
	}
	if prune {
		paths := make([]string, 0, len(files))
		for _, f := range files {
			paths = append(paths, f.Path)
		}
		if err = batch.PruneToPaths(paths); err != nil {
			return fmt.Errorf("prune index store: %w", err)
		}
	}
	return batch.Commit()
}

// storedPaths lists the files the store holds, nil without a store.
func (a *App) storedPaths(ctx context.Context) ([]string, error) {
	if a == nil || a.store == nil {
		return nil, nil
	}
	return a.store.Paths(ctx)
}
