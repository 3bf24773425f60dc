package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// SQLiteStorage implements the storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS proposals (
	id            TEXT PRIMARY KEY,
	ai_type       TEXT NOT NULL,
	file_path     TEXT NOT NULL,
	code_before   TEXT NOT NULL,
	code_after    TEXT NOT NULL,
	code_hash     TEXT NOT NULL,
	semantic_hash TEXT NOT NULL,
	duplicate_of  TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_proposals_code_hash
	ON proposals(ai_type, file_path, code_hash);
CREATE INDEX IF NOT EXISTS idx_proposals_semantic_hash
	ON proposals(ai_type, file_path, semantic_hash);
CREATE INDEX IF NOT EXISTS idx_proposals_recent
	ON proposals(ai_type, file_path, created_at DESC);

CREATE TABLE IF NOT EXISTS approvals (
	id               TEXT PRIMARY KEY,
	ai_type          TEXT NOT NULL,
	proposal_id      TEXT NOT NULL,
	pr_url           TEXT NOT NULL DEFAULT '',
	pr_number        INTEGER NOT NULL DEFAULT 0,
	branch           TEXT NOT NULL DEFAULT '',
	updates          TEXT NOT NULL DEFAULT '',
	learning_data    TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	submitted_at     INTEGER NOT NULL,
	file_path        TEXT NOT NULL DEFAULT '',
	is_new_file      INTEGER NOT NULL DEFAULT 0,
	commit_message   TEXT NOT NULL DEFAULT '',
	approved_by      TEXT NOT NULL DEFAULT '',
	approved_at      INTEGER,
	comments         TEXT NOT NULL DEFAULT '',
	rejected_by      TEXT NOT NULL DEFAULT '',
	rejected_at      INTEGER,
	rejection_reason TEXT NOT NULL DEFAULT '',
	build_result     TEXT NOT NULL DEFAULT '',
	error            TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_approvals_status ON approvals(status);
`

// New creates a new SQLite storage backend at the given path.
// The special path ":memory:" creates an in-memory database.
func New(path string) (*SQLiteStorage, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps :memory: databases coherent and serializes
	// writers; this workload is low-volume metadata, not a hot path.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the underlying database
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
