package registry

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"alkitab/internal/domain"
)

// SQLiteRecorder stores the guest log in a SQLite database. The UNIQUE key
// on the username makes RecordIfNew atomic without any application-level
// locking.
type SQLiteRecorder struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRecorder opens (creating if needed) the database at path.
func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open guest db: %w", err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS guests (
		username  TEXT PRIMARY KEY,
		joined_at TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init guest db: %w", err)
	}
	return &SQLiteRecorder{db: db, now: time.Now}, nil
}

func (r *SQLiteRecorder) RecordIfNew(username string) (bool, error) {
	res, err := r.db.Exec(
		`INSERT OR IGNORE INTO guests (username, joined_at) VALUES (?, ?)`,
		username, r.now().Format(timeFormat),
	)
	if err != nil {
		return false, fmt.Errorf("record guest: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record guest: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRecorder) List() ([]domain.RegistryEntry, error) {
	rows, err := r.db.Query(`SELECT username, joined_at FROM guests ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}
	defer rows.Close()
	var entries []domain.RegistryEntry
	for rows.Next() {
		var e domain.RegistryEntry
		if err := rows.Scan(&e.Username, &e.JoinedAt); err != nil {
			return nil, fmt.Errorf("list guests: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the database handle.
func (r *SQLiteRecorder) Close() error { return r.db.Close() }
