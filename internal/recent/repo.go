package recent

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/verbas/internal/apperr"
)

// DefaultLimit bounds List when no limit is given.
const DefaultLimit = 20

// Entry is one recently opened project.
type Entry struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	OpenedAt time.Time `json:"opened_at"`
}

// List is the recent-projects interface consumed by workflows and surfaces.
type List interface {
	Touch(path, name string, at time.Time) error
	List(limit int) ([]Entry, error)
	Forget(path string) error
}

var _ List = (*DB)(nil)

// Touch records path as opened at at, inserting or refreshing it.
func (db *DB) Touch(path, name string, at time.Time) error {
	_, err := db.conn.Exec(`
		INSERT INTO recent_projects (path, name, opened_at)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name      = excluded.name,
			opened_at = excluded.opened_at
	`, path, name, at.UTC())
	if err != nil {
		return fmt.Errorf("recent: touch: %w", err)
	}
	return nil
}

// List returns the most recently opened projects first.
func (db *DB) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := db.conn.Query(`
		SELECT path, name, opened_at FROM recent_projects
		ORDER BY opened_at DESC, path ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent: list: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Path, &e.Name, &e.OpenedAt); err != nil {
			return nil, fmt.Errorf("recent: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns one entry.
func (db *DB) Get(path string) (*Entry, error) {
	var e Entry
	err := db.conn.QueryRow(`SELECT path, name, opened_at FROM recent_projects WHERE path = ?`, path).
		Scan(&e.Path, &e.Name, &e.OpenedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recent %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("recent: get: %w", err)
	}
	return &e, nil
}

// Forget removes path from the list. Forgetting an unknown path is a no-op.
func (db *DB) Forget(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM recent_projects WHERE path = ?`, path); err != nil {
		return fmt.Errorf("recent: forget: %w", err)
	}
	return nil
}
