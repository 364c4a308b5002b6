package symbols

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"bindkey/internal/shared/observability"
)

const (
	sqliteDriverName   = "sqlite"
	defaultBusyTimeout = 5 * time.Second
)

type StoreOptions struct {
	ProjectKey  string
	CacheSize   int
	BusyTimeout time.Duration
}

// SQLiteStore persists the index and the keys resolved against it. Lookups go
// through an LRU so a batch that references the same supertypes over and over
// hits the database once per name.
type SQLiteStore struct {
	db         *sql.DB
	projectKey string
	lookupStmt *sql.Stmt
	elemStmt   *sql.Stmt
	cache      *lookupCache
}

// KeyRecord is a key persisted after resolution.
type KeyRecord struct {
	Key       string
	Kind      string
	Recovered bool
	Session   string
}

func OpenSQLiteStore(path string, opts StoreOptions) (*SQLiteStore, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("index store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("index store path %q is a directory, expected file", cleanPath)
	}
	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index store directory %q: %w", dir, err)
		}
	}

	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath, busy.Milliseconds())
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite index store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite index store %q: %w", cleanPath, err)
	}
	if err := migrateIndexSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	key := strings.TrimSpace(opts.ProjectKey)
	if key == "" {
		key = "default"
	}
	lookupStmt, err := db.Prepare(`SELECT blob FROM type_decls WHERE project_key = ? AND qualified_name = ?`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare lookup stmt: %w", err)
	}
	elemStmt, err := db.Prepare(`SELECT
  file_path, start_line, start_column, end_line, end_column, qualified_name, member, member_index
FROM elements
WHERE project_key = ? AND file_path = ? AND start_line <= ? AND end_line >= ?`)
	if err != nil {
		_ = lookupStmt.Close()
		_ = db.Close()
		return nil, fmt.Errorf("prepare element stmt: %w", err)
	}
	size := opts.CacheSize
	if size <= 0 {
		size = 1024
	}
	return &SQLiteStore{
		db:         db,
		projectKey: key,
		lookupStmt: lookupStmt,
		elemStmt:   elemStmt,
		cache:      newLookupCache(size),
	}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if s.lookupStmt != nil {
		_ = s.lookupStmt.Close()
	}
	if s.elemStmt != nil {
		_ = s.elemStmt.Close()
	}
	return s.db.Close()
}

func (s *SQLiteStore) Lookup(ctx context.Context, qualifiedName string) (*TypeDecl, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("store not initialized")
	}
	if hit, ok := s.cache.get(qualifiedName); ok {
		observability.LookupCacheHits.Inc()
		return hit.decl, hit.found, nil
	}
	observability.LookupCacheMisses.Inc()

	var blob []byte
	err := s.lookupStmt.QueryRowContext(ctx, s.projectKey, qualifiedName).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		s.cache.put(qualifiedName, nil, false)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup %q: %w", qualifiedName, err)
	}
	var decl TypeDecl
	if err := json.Unmarshal(blob, &decl); err != nil {
		return nil, false, fmt.Errorf("unmarshal declaration %q: %w", qualifiedName, err)
	}
	s.cache.put(qualifiedName, &decl, true)
	return &decl, true, nil
}

func (s *SQLiteStore) ElementAt(ctx context.Context, path string, line, column int) (*Element, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("store not initialized")
	}
	rows, err := s.elemStmt.QueryContext(ctx, s.projectKey, path, line, line)
	if err != nil {
		return nil, false, fmt.Errorf("query elements of %q: %w", path, err)
	}
	defer rows.Close()
	var elements []Element
	for rows.Next() {
		var (
			el     Element
			member string
		)
		if err := rows.Scan(&el.Path, &el.StartLine, &el.StartColumn, &el.EndLine, &el.EndColumn, &el.QualifiedName, &member, &el.Index); err != nil {
			return nil, false, fmt.Errorf("scan element: %w", err)
		}
		el.Member = MemberKind(member)
		elements = append(elements, el)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate elements: %w", err)
	}
	el, ok := innermost(elements, line, column)
	return el, ok, nil
}

// Search finds qualified names matching name regardless of case and
// separators.
func (s *SQLiteStore) Search(ctx context.Context, name string) ([]string, error) {
	key := canonicalSymbol(name)
	if key == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT qualified_name FROM type_decls WHERE project_key = ? AND canonical_name = ? ORDER BY qualified_name`, s.projectKey, key)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", name, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var qn string
		if err := rows.Scan(&qn); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		out = append(out, qn)
	}
	return out, rows.Err()
}

// Paths lists the indexed file paths.
func (s *SQLiteStore) Paths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT file_path FROM type_decls WHERE project_key = ? ORDER BY file_path`, s.projectKey)
	if err != nil {
		return nil, fmt.Errorf("list indexed paths: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan path row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecordKeys persists resolved keys, replacing earlier records of the same key.
func (s *SQLiteStore) RecordKeys(ctx context.Context, records []KeyRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin key record tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO resolved_keys (project_key, binding_key, kind, recovered, session, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare key insert: %w", err)
	}
	defer stmt.Close()
	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, s.projectKey, r.Key, r.Kind, boolToInt(r.Recovered), r.Session, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert key %q: %w", r.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit key record tx: %w", err)
	}
	return nil
}

// Keys returns the persisted keys ordered by key.
func (s *SQLiteStore) Keys(ctx context.Context) ([]KeyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT binding_key, kind, recovered, session FROM resolved_keys WHERE project_key = ? ORDER BY binding_key`, s.projectKey)
	if err != nil {
		return nil, fmt.Errorf("list resolved keys: %w", err)
	}
	defer rows.Close()
	var out []KeyRecord
	for rows.Next() {
		var r KeyRecord
		if err := rows.Scan(&r.Key, &r.Kind, &r.Recovered, &r.Session); err != nil {
			return nil, fmt.Errorf("scan key row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Batch groups index writes in one transaction.
type Batch struct {
	tx      *sql.Tx
	store   *SQLiteStore
	touched []string
}

func (s *SQLiteStore) BeginBatch(ctx context.Context) (*Batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin index batch: %w", err)
	}
	return &Batch{tx: tx, store: s}, nil
}

// UpsertFile replaces everything the file contributed before.
func (b *Batch) UpsertFile(f *File) error {
	if err := b.DeleteFile(f.Path); err != nil {
		return err
	}
	declStmt, err := b.tx.Prepare(`INSERT OR REPLACE INTO type_decls (project_key, qualified_name, canonical_name, file_path, kind, blob) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare declaration insert: %w", err)
	}
	defer declStmt.Close()
	for i := range f.Types {
		decl := &f.Types[i]
		blob, err := json.Marshal(decl)
		if err != nil {
			return fmt.Errorf("marshal declaration %q: %w", decl.QualifiedName, err)
		}
		if _, err := declStmt.Exec(b.store.projectKey, decl.QualifiedName, canonicalSymbol(decl.QualifiedName), f.Path, decl.Kind, blob); err != nil {
			return fmt.Errorf("insert declaration %q: %w", decl.QualifiedName, err)
		}
		b.touched = append(b.touched, decl.QualifiedName)
	}
	elemStmt, err := b.tx.Prepare(`INSERT INTO elements (project_key, file_path, start_line, start_column, end_line, end_column, qualified_name, member, member_index) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare element insert: %w", err)
	}
	defer elemStmt.Close()
	for _, el := range f.Elements {
		if _, err := elemStmt.Exec(b.store.projectKey, f.Path, el.StartLine, el.StartColumn, el.EndLine, el.EndColumn, el.QualifiedName, string(el.Member), el.Index); err != nil {
			return fmt.Errorf("insert element %s:%d: %w", f.Path, el.StartLine, err)
		}
	}
	return nil
}

func (b *Batch) DeleteFile(path string) error {
	rows, err := b.tx.Query(`SELECT qualified_name FROM type_decls WHERE project_key = ? AND file_path = ?`, b.store.projectKey, path)
	if err != nil {
		return fmt.Errorf("list declarations of %q: %w", path, err)
	}
	for rows.Next() {
		var qn string
		if err := rows.Scan(&qn); err != nil {
			rows.Close()
			return fmt.Errorf("scan declaration name: %w", err)
		}
		b.touched = append(b.touched, qn)
	}
	rows.Close()
	if _, err := b.tx.Exec(`DELETE FROM type_decls WHERE project_key = ? AND file_path = ?`, b.store.projectKey, path); err != nil {
		return fmt.Errorf("delete declarations of %q: %w", path, err)
	}
	if _, err := b.tx.Exec(`DELETE FROM elements WHERE project_key = ? AND file_path = ?`, b.store.projectKey, path); err != nil {
		return fmt.Errorf("delete elements of %q: %w", path, err)
	}
	return nil
}

// PruneToPaths drops every file not listed.
func (b *Batch) PruneToPaths(paths []string) error {
	if _, err := b.tx.Exec(`CREATE TEMP TABLE IF NOT EXISTS current_paths (file_path TEXT PRIMARY KEY)`); err != nil {
		return fmt.Errorf("create temp paths table: %w", err)
	}
	if _, err := b.tx.Exec(`DELETE FROM current_paths`); err != nil {
		return fmt.Errorf("clear temp paths table: %w", err)
	}
	stmt, err := b.tx.Prepare(`INSERT OR REPLACE INTO current_paths (file_path) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("prepare temp path insert: %w", err)
	}
	defer stmt.Close()
	for _, p := range paths {
		if _, err := stmt.Exec(p); err != nil {
			return fmt.Errorf("insert temp path: %w", err)
		}
	}
	if _, err := b.tx.Exec(`DELETE FROM type_decls WHERE project_key = ? AND file_path NOT IN (SELECT file_path FROM current_paths)`, b.store.projectKey); err != nil {
		return fmt.Errorf("delete stale declarations: %w", err)
	}
	if _, err := b.tx.Exec(`DELETE FROM elements WHERE project_key = ? AND file_path NOT IN (SELECT file_path FROM current_paths)`, b.store.projectKey); err != nil {
		return fmt.Errorf("delete stale elements: %w", err)
	}
	b.touched = nil
	b.store.cache.evict()
	return nil
}

func (b *Batch) Commit() error {
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("commit index batch: %w", err)
	}
	b.store.cache.evict(b.touched...)
	return nil
}

func (b *Batch) Rollback() error {
	if err := b.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback index batch: %w", err)
	}
	return nil
}

// migrateIndexSchema creates or migrates the index tables to the current
// version.
func migrateIndexSchema(db *sql.DB) error {
	var version int
	_ = db.QueryRow(`PRAGMA user_version`).Scan(&version)
	if version == 0 {
		_, err := db.Exec(`
CREATE TABLE type_decls (
  project_key TEXT NOT NULL,
  qualified_name TEXT NOT NULL,
  canonical_name TEXT NOT NULL,
  file_path TEXT NOT NULL,
  kind TEXT NOT NULL DEFAULT 'class',
  blob BLOB NOT NULL,
  PRIMARY KEY (project_key, qualified_name)
);
CREATE INDEX idx_type_decls_file ON type_decls(project_key, file_path);
CREATE INDEX idx_type_decls_canonical ON type_decls(project_key, canonical_name);
CREATE TABLE elements (
  project_key TEXT NOT NULL,
  file_path TEXT NOT NULL,
  start_line INTEGER NOT NULL,
  start_column INTEGER NOT NULL,
  end_line INTEGER NOT NULL,
  end_column INTEGER NOT NULL,
  qualified_name TEXT NOT NULL,
  member TEXT NOT NULL,
  member_index INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_elements_file_line ON elements(project_key, file_path, start_line);
PRAGMA user_version = 1;
`)
		if err != nil {
			return fmt.Errorf("create v1 schema: %w", err)
		}
		version = 1
	}
	if version < 2 {
		_, err := db.Exec(`
CREATE TABLE resolved_keys (
  project_key TEXT NOT NULL,
  binding_key TEXT NOT NULL,
  kind TEXT NOT NULL,
  recovered INTEGER NOT NULL DEFAULT 0,
  session TEXT NOT NULL DEFAULT '',
  recorded_at TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (project_key, binding_key)
);
PRAGMA user_version = 2;
`)
		if err != nil {
			return fmt.Errorf("schema v2 migration: %w", err)
		}
	}
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
