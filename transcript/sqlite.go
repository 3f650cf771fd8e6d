package transcript

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hupe1980/patientsim/core"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		identity TEXT NOT NULL UNIQUE,
		created_at_ns INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		identity TEXT NOT NULL,
		sender_role TEXT NOT NULL,
		sender_label TEXT NOT NULL,
		recipient_label TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at_ns INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, id);`,
	`CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		identity TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at_ns INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_results_session ON results(session_id, id);`,
}

// SQLiteStore implements core.TranscriptStore on a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the database at path and
// applies the schema. Parent directories are created as required.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create transcript dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open transcript database: %w", err)
	}

	// Keep sqlite responsive under concurrent sessions.
	_, _ = db.Exec("PRAGMA busy_timeout = 5000;")
	_, _ = db.Exec("PRAGMA journal_mode = WAL;")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL;")

	store, err := NewSQLiteStoreFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// NewSQLiteStoreFromDB wraps an existing database handle and applies the
// schema. The caller keeps ownership of the handle unless Close is used.
func NewSQLiteStoreFromDB(db *sql.DB) (*SQLiteStore, error) {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply transcript schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// SaveUser implements the core.TranscriptStore interface. Saving a known
// identity returns the stored record unchanged; the first write wins.
func (s *SQLiteStore) SaveUser(ctx context.Context, name, identity string) (core.User, error) {
	name = strings.TrimSpace(name)
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return core.User{}, &StoreError{Op: "save user", Err: errors.New("empty identity")}
	}
	if name == "" {
		name = identity
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(name, identity, created_at_ns) VALUES(?, ?, ?)
		 ON CONFLICT(identity) DO NOTHING`,
		name, identity, time.Now().UnixNano(),
	)
	if err != nil {
		return core.User{}, &StoreError{Op: "save user", Err: err}
	}

	var user core.User
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, identity FROM users WHERE identity = ?`, identity,
	).Scan(&user.ID, &user.Name, &user.Identity)
	if err != nil {
		return core.User{}, &StoreError{Op: "load user", Err: err}
	}

	return user, nil
}

// SaveTurn implements the core.TranscriptStore interface.
func (s *SQLiteStore) SaveTurn(ctx context.Context, rec core.TurnRecord) error {
	if strings.TrimSpace(rec.SessionID) == "" {
		return &StoreError{Op: "save turn", Err: errors.New("missing session id")}
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns(session_id, identity, sender_role, sender_label, recipient_label, content, created_at_ns)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Identity, string(rec.SenderRole), rec.SenderLabel, rec.RecipientLabel, rec.Content, rec.Timestamp.UnixNano(),
	)
	if err != nil {
		return &StoreError{Op: "save turn", Err: err}
	}

	return nil
}

// SaveResult implements the core.TranscriptStore interface.
func (s *SQLiteStore) SaveResult(ctx context.Context, rec core.ResultRecord) error {
	if strings.TrimSpace(rec.SessionID) == "" {
		return &StoreError{Op: "save result", Err: errors.New("missing session id")}
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results(session_id, identity, content, created_at_ns)
		 VALUES(?, ?, ?, ?)`,
		rec.SessionID, rec.Identity, rec.Content, rec.Timestamp.UnixNano(),
	)
	if err != nil {
		return &StoreError{Op: "save result", Err: err}
	}

	return nil
}

// Turns returns the stored turns of a session in insertion order.
func (s *SQLiteStore) Turns(ctx context.Context, sessionID string) ([]core.TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, identity, sender_role, sender_label, recipient_label, content, created_at_ns
		 FROM turns WHERE session_id = ? ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, &StoreError{Op: "load turns", Err: err}
	}
	defer rows.Close()

	var out []core.TurnRecord
	for rows.Next() {
		var rec core.TurnRecord
		var role string
		var createdNS int64
		if err := rows.Scan(&rec.SessionID, &rec.Identity, &role, &rec.SenderLabel, &rec.RecipientLabel, &rec.Content, &createdNS); err != nil {
			return nil, &StoreError{Op: "scan turn", Err: err}
		}
		rec.SenderRole = core.Speaker(role)
		rec.Timestamp = time.Unix(0, createdNS).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "load turns", Err: err}
	}

	return out, nil
}

// Results returns the stored debrief results of a session in insertion order.
func (s *SQLiteStore) Results(ctx context.Context, sessionID string) ([]core.ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, identity, content, created_at_ns
		 FROM results WHERE session_id = ? ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, &StoreError{Op: "load results", Err: err}
	}
	defer rows.Close()

	var out []core.ResultRecord
	for rows.Next() {
		var rec core.ResultRecord
		var createdNS int64
		if err := rows.Scan(&rec.SessionID, &rec.Identity, &rec.Content, &createdNS); err != nil {
			return nil, &StoreError{Op: "scan result", Err: err}
		}
		rec.Timestamp = time.Unix(0, createdNS).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "load results", Err: err}
	}

	return out, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
