package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/levenlabs/go-lflag"
	_ "modernc.org/sqlite"
)

// SQLiteProvider implements Database on a local SQLite file.
type SQLiteProvider struct {
	path string
	conn *sql.DB
}

var _ Database = (*SQLiteProvider)(nil)

func configuredSQLite() *SQLiteProvider {
	path := lflag.String("sqlite-path", "wattwise.db", "Path to the SQLite database file")

	s := &SQLiteProvider{}
	lflag.Do(func() {
		s.path = *path
	})
	return s
}

// NewSQLite returns an uninitialized provider for path. Call Init before use.
func NewSQLite(path string) *SQLiteProvider {
	return &SQLiteProvider{path: path}
}

// Init opens the database and creates the schema.
func (s *SQLiteProvider) Init(ctx context.Context) error {
	if s.path != ":memory:" {
		if dir := filepath.Dir(s.path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("creating database directory: %w", err)
			}
		}
	}

	conn, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	// sqlite allows a single writer, and an in-memory database only exists
	// on the connection that created it
	conn.SetMaxOpenConns(1)

	_, err = conn.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS session_values (
		session_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (session_id, key)
	);
	`)
	if err != nil {
		conn.Close()
		return fmt.Errorf("initializing schema: %w", err)
	}
	s.conn = conn
	return nil
}

// Close closes the database connection.
func (s *SQLiteProvider) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// GetValue implements Database.
func (s *SQLiteProvider) GetValue(ctx context.Context, sessionID, key string) (string, error) {
	if err := validateKey(sessionID, key); err != nil {
		return "", err
	}
	var value string
	err := s.conn.QueryRowContext(ctx,
		`SELECT value FROM session_values WHERE session_id = ? AND key = ?`,
		sessionID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying session value: %w", err)
	}
	return value, nil
}

// SetValue implements Database.
func (s *SQLiteProvider) SetValue(ctx context.Context, sessionID, key, value string) error {
	if err := validateKey(sessionID, key); err != nil {
		return err
	}
	_, err := s.conn.ExecContext(ctx, `
	INSERT INTO session_values (session_id, key, value, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, sessionID, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving session value: %w", err)
	}
	return nil
}

// DeleteValue implements Database.
func (s *SQLiteProvider) DeleteValue(ctx context.Context, sessionID, key string) error {
	if err := validateKey(sessionID, key); err != nil {
		return err
	}
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM session_values WHERE session_id = ? AND key = ?`,
		sessionID, key,
	)
	if err != nil {
		return fmt.Errorf("deleting session value: %w", err)
	}
	return nil
}
