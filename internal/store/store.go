package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite index of extracted declarations. Each file's
// entities are stored as encoded records so an unchanged file never has to
// be parsed again.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  hash            TEXT NOT NULL,
  core            BOOLEAN NOT NULL DEFAULT FALSE,
  entity_count    INTEGER NOT NULL DEFAULT 0,
  error_count     INTEGER NOT NULL DEFAULT 0,
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS entities (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
  hash            TEXT NOT NULL UNIQUE,
  kind            TEXT NOT NULL,
  fqid            TEXT NOT NULL,
  name            TEXT NOT NULL,
  owner_hash      TEXT,
  line            INTEGER,
  payload         BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_file ON entities(file_id);
CREATE INDEX IF NOT EXISTS idx_entities_fqid ON entities(fqid);
CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);
`

// --- File operations ---

func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	var last sql.NullTime
	err := s.db.QueryRow(
		"SELECT id, path, hash, core, entity_count, error_count, last_indexed FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Hash, &f.Core, &f.EntityCount, &f.ErrorCount, &last)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	f.LastIndexed = last.Time
	return f, nil
}

// Files returns every indexed file ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query(
		"SELECT id, path, hash, core, entity_count, error_count, last_indexed FROM files ORDER BY path",
	)
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		var last sql.NullTime
		if err := rows.Scan(&f.ID, &f.Path, &f.Hash, &f.Core, &f.EntityCount, &f.ErrorCount, &last); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.LastIndexed = last.Time
		files = append(files, f)
	}
	return files, rows.Err()
}

// PruneFiles deletes every indexed file whose path is not in keep and
// returns the removed paths.
func (s *Store) PruneFiles(keep map[string]bool) ([]string, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}
	var stale []string
	for _, f := range files {
		if !keep[f.Path] {
			stale = append(stale, f.Path)
		}
	}
	if len(stale) == 0 {
		return nil, nil
	}
	args := make([]any, len(stale))
	for i, p := range stale {
		args[i] = p
	}
	if _, err := s.db.Exec("DELETE FROM files WHERE path IN ("+placeholderList(len(stale))+")", args...); err != nil {
		return nil, fmt.Errorf("prune files: %w", err)
	}
	return stale, nil
}

// --- Metadata ---

// SetMeta stores a key/value pair, replacing any previous value.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}

// Meta returns the value stored for key, or "" when unset.
func (s *Store) Meta(key string) (string, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("meta %q: %w", key, err)
	}
	return v, nil
}
