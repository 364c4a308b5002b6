package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	coreerrors "bindkey/internal/core/errors"
	"bindkey/internal/core/ports"
	"bindkey/internal/engine/symbols"
	"bindkey/internal/shared/observability"
	"bindkey/internal/shared/util"
)

// ScanSources lists the Java files under the configured source roots that
// the include and exclude patterns admit, sorted and without duplicates.
func (a *App) ScanSources() ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, root := range a.Paths.SourceRoots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return relErr
			}
			rel = filepath.ToSlash(rel)
			if d.IsDir() {
				if rel != "." && a.matcher.ExcludeDir(rel) {
					return filepath.SkipDir
				}
				return nil
			}
			if !a.codeParser.IsSupportedPath(path) || !a.matcher.IncludeFile(rel) {
				return nil
			}
			if !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan source root %s: %w", root, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// sourceFile is one file moving through the two indexing passes.
type sourceFile struct {
	path     string
	rel      string
	content  []byte
	declared []string
	parsed   *symbols.File
	err      error
}

// IndexAll rebuilds the index from the source roots. The first pass collects
// the declared type names of every file, the second parses each file with
// those names known so references across files resolve to the right package.
func (a *App) IndexAll(ctx context.Context) (ports.IndexResult, error) {
	a.indexMu.Lock()
	defer a.indexMu.Unlock()

	ctx, span := observability.Tracer.Start(ctx, "app.IndexAll")
	defer span.End()
	start := time.Now()
	heapBefore := util.HeapMB()

	paths, err := a.ScanSources()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return ports.IndexResult{}, coreerrors.AddContext(err, coreerrors.CtxOperation, "scan_sources")
	}
	files := make([]*sourceFile, len(paths))
	for i, p := range paths {
		files[i] = &sourceFile{path: p, rel: a.indexPath(p)}
	}

	declared, err := a.declarePass(ctx, files)
	if err != nil {
		span.SetStatus(codes.Error, "cancelled")
		return ports.IndexResult{FilesScanned: len(files)}, err
	}
	known := func(qn string) bool { return declared[qn] }
	if err := a.parsePass(ctx, files, known); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		return ports.IndexResult{FilesScanned: len(files)}, err
	}

	res := ports.IndexResult{FilesScanned: len(files)}
	current := make(map[string]bool, len(files))
	parsed := make([]*symbols.File, 0, len(files))
	for _, f := range files {
		if f.err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("index %s: %v", f.rel, f.err))
			continue
		}
		current[f.rel] = true
		if a.hashes.changed(f.rel, f.content) {
			res.FilesChanged++
		}
		parsed = append(parsed, f.parsed)
	}

	stale := make(map[string]bool)
	for _, f := range a.Table.Files() {
		if !current[f.Path] {
			stale[f.Path] = true
		}
	}
	stored, err := a.storedPaths(ctx)
	if err != nil {
		slog.Warn("failed to list persisted index paths", "error", err)
	}
	for _, p := range stored {
		if !current[p] {
			stale[p] = true
		}
	}
	for _, p := range util.SortedStringKeys(stale) {
		a.Table.RemoveFile(p)
		a.hashes.drop(p)
	}
	res.FilesRemoved = len(stale)
	for _, f := range parsed {
		a.Table.AddFile(f)
	}
	if err := a.persistFiles(ctx, parsed, nil, true); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("persist index: %v", err))
		slog.Warn("failed to persist index", "error", err)
	}

	res.Types = a.Table.Len()
	a.updateIndexGauges()
	span.SetAttributes(
		attribute.Int("files", res.FilesScanned),
		attribute.Int("types", res.Types),
		attribute.Int("warnings", len(res.Warnings)),
	)
	slog.Info("index built",
		"files", res.FilesScanned,
		"changed", res.FilesChanged,
		"removed", res.FilesRemoved,
		"types", res.Types,
		"duration", time.Since(start),
		"heap_growth_mb", fmt.Sprintf("%.1f", util.HeapMB()-heapBefore),
	)
	return res, nil
}

// Refresh re-indexes the given files. Files that no longer exist are dropped;
// files whose content did not change are skipped.
func (a *App) Refresh(ctx context.Context, paths []string) (ports.IndexResult, error) {
	a.indexMu.Lock()
	defer a.indexMu.Unlock()

	ctx, span := observability.Tracer.Start(ctx, "app.Refresh")
	defer span.End()

	res := ports.IndexResult{FilesScanned: len(paths)}
	var removed []string
	var changed []*sourceFile
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		rel := a.indexPath(p)
		if seen[rel] {
			continue
		}
		seen[rel] = true
		disk := a.diskPath(rel)
		content, err := os.ReadFile(disk)
		if os.IsNotExist(err) {
			a.Table.RemoveFile(rel)
			a.hashes.drop(rel)
			removed = append(removed, rel)
			continue
		}
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("read %s: %v", rel, err))
			continue
		}
		if !a.codeParser.IsSupportedPath(disk) || !a.hashes.changed(rel, content) {
			continue
		}
		changed = append(changed, &sourceFile{path: disk, rel: rel, content: content})
	}
	res.FilesRemoved = len(removed)

	declared := make(map[string]bool)
	for _, f := range changed {
		names, err := a.codeParser.DeclaredTypes(f.rel, f.content)
		if err != nil {
			f.err = err
			continue
		}
		for _, n := range names {
			declared[n] = true
		}
	}
	known := func(qn string) bool {
		if declared[qn] {
			return true
		}
		_, ok, _ := a.Table.Lookup(ctx, qn)
		return ok
	}
	if err := a.parsePass(ctx, changed, known); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		return res, err
	}

	parsed := make([]*symbols.File, 0, len(changed))
	for _, f := range changed {
		if f.err != nil {
			a.hashes.drop(f.rel)
			res.Warnings = append(res.Warnings, fmt.Sprintf("index %s: %v", f.rel, f.err))
			continue
		}
		a.Table.AddFile(f.parsed)
		parsed = append(parsed, f.parsed)
	}
	res.FilesChanged = len(parsed)
	if err := a.persistFiles(ctx, parsed, removed, false); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("persist index: %v", err))
		slog.Warn("failed to persist refreshed files", "error", err)
	}
	res.Types = a.Table.Len()
	a.updateIndexGauges()
	span.SetAttributes(attribute.Int("changed", res.FilesChanged), attribute.Int("removed", res.FilesRemoved))
	return res, nil
}

// declarePass reads every file and collects the type names it declares.
func (a *App) declarePass(ctx context.Context, files []*sourceFile) (map[string]bool, error) {
	var mu sync.Mutex
	declared := make(map[string]bool)
	err := a.forEachFile(ctx, files, func(f *sourceFile) {
		content, err := os.ReadFile(f.path)
		if err != nil {
			f.err = err
			return
		}
		f.content = content
		names, err := a.codeParser.DeclaredTypes(f.rel, content)
		if err != nil {
			f.err = err
			return
		}
		f.declared = names
		mu.Lock()
		for _, n := range names {
			declared[n] = true
		}
		mu.Unlock()
	})
	return declared, err
}

func (a *App) parsePass(ctx context.Context, files []*sourceFile, known func(string) bool) error {
	return a.forEachFile(ctx, files, func(f *sourceFile) {
		if f.err != nil {
			return
		}
		f.parsed, f.err = a.codeParser.ParseFile(f.rel, f.content, known)
	})
}

// forEachFile runs fn over files on the configured number of workers. It
// stops handing out files once ctx is done and reports a CANCELLED error.
func (a *App) forEachFile(ctx context.Context, files []*sourceFile, fn func(*sourceFile)) error {
	workers := a.Config.Resolver.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(files) {
		workers = len(files)
	}
	jobs := make(chan *sourceFile)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				fn(f)
			}
		}()
	}

	var err error
feed:
	for _, f := range files {
		select {
		case jobs <- f:
		case <-ctx.Done():
			err = coreerrors.Wrap(ctx.Err(), coreerrors.CodeCancelled, "indexing cancelled")
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return err
}

func (a *App) updateIndexGauges() {
	observability.IndexedFiles.Set(float64(len(a.Table.Files())))
	observability.IndexedTypes.Set(float64(a.Table.Len()))
}

// ensureIndexed builds the index when nothing has been indexed yet, in memory
// or in the store.
func (a *App) ensureIndexed(ctx context.Context) error {
	if a.Table.Len() > 0 {
		return nil
	}
	if a.store != nil {
		stored, err := a.store.Paths(ctx)
		if err == nil && len(stored) > 0 {
			return nil
		}
	}
	_, err := a.IndexAll(ctx)
	return err
}
