package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

func init() {
	// modernc registers as "sqlite", which sqlx doesn't know out of the box.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// ErrWriteFailed marks a local durability failure. Callers must not assume
// the write took effect when an error wraps this sentinel.
var ErrWriteFailed = errors.New("store: write failed")

// Store is the durable event store: an embedded SQLite database holding the
// interaction log and the singleton sync checkpoint. It has no network
// awareness; the sync engine and the recorder are its only writers.
type Store struct {
	db *sqlx.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS interactions (
	id                 TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL,
	skill_id           TEXT NOT NULL,
	subject            TEXT NOT NULL,
	topic              TEXT NOT NULL DEFAULT '',
	question_id        TEXT NOT NULL,
	session_id         TEXT NOT NULL,
	correct            INTEGER NOT NULL,
	confidence         TEXT NOT NULL DEFAULT 'medium',
	time_spent_seconds INTEGER NOT NULL DEFAULT 0,
	hints_used         INTEGER NOT NULL DEFAULT 0,
	created_at         TIMESTAMP NOT NULL,
	sync_status        TEXT NOT NULL DEFAULT 'pending'
);
CREATE INDEX IF NOT EXISTS idx_interactions_sync_status ON interactions (sync_status);
CREATE INDEX IF NOT EXISTS idx_interactions_created_at ON interactions (created_at);
CREATE INDEX IF NOT EXISTS idx_interactions_skill_id ON interactions (skill_id);

CREATE TABLE IF NOT EXISTS sync_checkpoint (
	id             INTEGER PRIMARY KEY CHECK (id = 1),
	last_pulled_at TEXT NOT NULL DEFAULT '',
	schema_version INTEGER NOT NULL
);
`

// Open creates a new Store connected to the SQLite database at dsn.
// It applies recommended pragmas, creates the schema, and seeds the
// singleton checkpoint row with the given schema version.
func Open(dsn string, schemaVersion int) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	_, err = db.Exec(
		`INSERT OR IGNORE INTO sync_checkpoint (id, last_pulled_at, schema_version) VALUES (1, '', ?)`,
		schemaVersion,
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("seed checkpoint: %w", err)
	}

	return &Store{db: db}, nil
}

// DB returns the underlying *sqlx.DB for raw queries.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// applyPragmas configures SQLite for single-user durability. WAL keeps
// the recorder's appends from blocking behind a sync cycle's reads.
func applyPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. SKILLTRACK_DB environment variable
// 2. $XDG_DATA_HOME/skilltrack/skilltrack.db
// 3. ~/.local/share/skilltrack/skilltrack.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("SKILLTRACK_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "skilltrack", "skilltrack.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
