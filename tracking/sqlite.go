package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is a local tracking backend on a sqlite file. It stands in for a
// tracking server when runs only need file-backed bookkeeping.
type Store struct {
	sql  *sql.DB
	path string
}

// ErrSessionNotFound is returned when a session id does not exist.
var ErrSessionNotFound = errors.New("session not found")

// OpenStore opens or creates the sqlite store at path, applies pragmas,
// and runs migrations.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}
	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{sql: db, path: path}, nil
}

// CloseStore closes the underlying database.
func (s *Store) CloseStore() error {
	if s == nil || s.sql == nil {
		return nil
	}
	return s.sql.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			experiment TEXT NOT NULL,
			parent_id  TEXT,
			status     TEXT NOT NULL DEFAULT 'open',
			message    TEXT,
			created_at TIMESTAMP NOT NULL,
			closed_at  TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			name       TEXT NOT NULL,
			content    BLOB NOT NULL,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS params (
			session_id TEXT NOT NULL REFERENCES sessions(id),
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			PRIMARY KEY (session_id, key)
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrating store: %w", err)
		}
	}
	return nil
}

// Open creates a session row.
func (s *Store) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	id := uuid.NewString()
	var parent any
	if req.ParentID != "" {
		parent = req.ParentID
	}
	_, err := s.sql.ExecContext(ctx,
		`INSERT INTO sessions (id, name, experiment, parent_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, req.Name, req.Experiment, parent, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return &Session{ID: id, Name: req.Name}, nil
}

// LogArtifact stores a named artifact for the session.
func (s *Store) LogArtifact(ctx context.Context, sessionID, name string, content []byte) error {
	if err := s.exists(ctx, sessionID); err != nil {
		return err
	}
	_, err := s.sql.ExecContext(ctx,
		`INSERT INTO artifacts (session_id, name, content, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, name, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("log artifact: %w", err)
	}
	return nil
}

// LogParams stores key-value parameters for the session, replacing
// existing keys.
func (s *Store) LogParams(ctx context.Context, sessionID string, params map[string]string) error {
	if err := s.exists(ctx, sessionID); err != nil {
		return err
	}
	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("log params: %w", err)
	}
	defer tx.Rollback()

	for k, v := range params {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO params (session_id, key, value) VALUES (?, ?, ?)`,
			sessionID, k, v); err != nil {
			return fmt.Errorf("log param %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// Close marks the session finished.
func (s *Store) Close(ctx context.Context, sessionID string, req CloseRequest) error {
	status := "finished"
	if !req.Success {
		status = "failed"
	}
	res, err := s.sql.ExecContext(ctx,
		`UPDATE sessions SET status = ?, message = ?, closed_at = ? WHERE id = ?`,
		status, req.Message, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", sessionID, ErrSessionNotFound)
	}
	return nil
}

// SessionRecord is a stored session row.
type SessionRecord struct {
	ID         string
	Name       string
	Experiment string
	ParentID   string
	Status     string
	Message    string
}

// ArtifactRecord is a stored artifact row.
type ArtifactRecord struct {
	Name    string
	Content []byte
}

// GetSession reads a stored session by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	row := s.sql.QueryRowContext(ctx,
		`SELECT id, name, experiment, COALESCE(parent_id, ''), status, COALESCE(message, '')
		 FROM sessions WHERE id = ?`, sessionID)
	var rec SessionRecord
	err := row.Scan(&rec.ID, &rec.Name, &rec.Experiment, &rec.ParentID, &rec.Status, &rec.Message)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", sessionID, ErrSessionNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListArtifacts reads the session's artifacts in insertion order.
func (s *Store) ListArtifacts(ctx context.Context, sessionID string) ([]ArtifactRecord, error) {
	rows, err := s.sql.QueryContext(ctx,
		`SELECT name, content FROM artifacts WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArtifactRecord
	for rows.Next() {
		var rec ArtifactRecord
		if err := rows.Scan(&rec.Name, &rec.Content); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListSessions reads all stored sessions in creation order.
func (s *Store) ListSessions(ctx context.Context) ([]SessionRecord, error) {
	rows, err := s.sql.QueryContext(ctx,
		`SELECT id, name, experiment, COALESCE(parent_id, ''), status, COALESCE(message, '')
		 FROM sessions ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Experiment, &rec.ParentID, &rec.Status, &rec.Message); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetParams reads the session's parameters.
func (s *Store) GetParams(ctx context.Context, sessionID string) (map[string]string, error) {
	rows, err := s.sql.QueryContext(ctx,
		`SELECT key, value FROM params WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *Store) exists(ctx context.Context, sessionID string) error {
	var one int
	err := s.sql.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", sessionID, ErrSessionNotFound)
	}
	return err
}
