// Package store keeps named snapshots of encoded configuration documents
// in a sqlite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no snapshot matches.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is one saved document.
type Snapshot struct {
	ID        int64
	Name      string
	Format    string
	Data      []byte
	CreatedAt time.Time
}

// Store is a sqlite-backed snapshot store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps an in-memory database alive and in one piece.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %s: %w", p, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			format TEXT NOT NULL,
			data BLOB NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_snapshots_name ON snapshots(name, id)`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Save stores a new snapshot under name.
func (s *Store) Save(ctx context.Context, name, format string, data []byte) (Snapshot, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, format, data, created_at) VALUES (?, ?, ?, ?)
	`, name, format, data, now.UnixMilli())
	if err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot %s: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{ID: id, Name: name, Format: format, Data: data, CreatedAt: now}, nil
}

// Get returns the snapshot with id.
func (s *Store) Get(ctx context.Context, id int64) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, format, data, created_at FROM snapshots WHERE id = ?
	`, id)
	return scan(row)
}

// Latest returns the newest snapshot saved under name.
func (s *Store) Latest(ctx context.Context, name string) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, format, data, created_at FROM snapshots
		WHERE name = ? ORDER BY id DESC LIMIT 1
	`, name)
	return scan(row)
}

// List returns the snapshots saved under name, newest first, without their
// data. An empty name lists every snapshot.
func (s *Store) List(ctx context.Context, name string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, format, created_at FROM snapshots
		WHERE ? = '' OR name = ? ORDER BY id DESC
	`, name, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var created int64
		if err := rows.Scan(&snap.ID, &snap.Name, &snap.Format, &created); err != nil {
			return nil, err
		}
		snap.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Delete removes the snapshot with id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scan(row *sql.Row) (Snapshot, error) {
	var snap Snapshot
	var created int64
	err := row.Scan(&snap.ID, &snap.Name, &snap.Format, &snap.Data, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	snap.CreatedAt = time.UnixMilli(created).UTC()
	return snap, nil
}
