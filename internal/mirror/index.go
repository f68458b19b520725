package mirror

import (
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/dpedu/b2mirror/internal/db"
	"github.com/jmoiron/sqlx"
)

const indexSchema = `
CREATE TABLE IF NOT EXISTS files (
    path VARCHAR(1024) PRIMARY KEY,
    mtime INTEGER NOT NULL,
    size INTEGER NOT NULL,
    seen INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_files_seen ON files(seen);
`

// Index is the persistent mark-and-sweep state of a mirror: one row per
// mirrored object with the size and mtime it was last transferred with.
//
// Row operations are safe for concurrent use. ResetSeen is meant to run
// before any work unit starts.
type Index struct {
	db       *sqlx.DB
	dbPath   string
	readOnly bool
}

// NewIndex creates an index backed by the SQLite file at dbPath. Use
// ":memory:" for a throwaway index.
func NewIndex(dbPath string) *Index {
	return &Index{dbPath: dbPath}
}

// Open opens the database, creating an empty index if none exists.
func (idx *Index) Open() error {
	if idx.db != nil {
		return fmt.Errorf("index already open")
	}

	// a single connection serializes concurrent work units and keeps an
	// in-memory database alive
	conn, err := db.NewSqliteDB(db.WithPath(idx.dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return indexErr("open", err)
	}

	if _, err := conn.Exec(indexSchema); err != nil {
		conn.Close()
		return indexErr("init schema", err)
	}

	idx.db = conn
	return nil
}

// OpenReadOnly opens an existing index for listing. The schema is not
// applied and writes fail.
func (idx *Index) OpenReadOnly() error {
	if idx.db != nil {
		return fmt.Errorf("index already open")
	}

	conn, err := db.NewSqliteDB(db.WithPath(idx.dbPath), db.WithReadOnly(), db.WithMaxOpenConns(1))
	if err != nil {
		return indexErr("open", err)
	}

	idx.db = conn
	idx.readOnly = true
	return nil
}

// Close checkpoints and closes the database. The file is complete on disk
// once Close returns.
func (idx *Index) Close() error {
	if idx.db == nil {
		return fmt.Errorf("index not open")
	}
	if !idx.readOnly {
		if _, err := idx.db.Exec("PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
			slog.Warn("index checkpoint", "error", err)
		}
	}
	err := idx.db.Close()
	idx.db = nil
	idx.readOnly = false
	if err != nil {
		return indexErr("close", err)
	}
	slog.Debug("index closed", "path", idx.dbPath)
	return nil
}

// Path returns the database file backing the index.
func (idx *Index) Path() string {
	return idx.dbPath
}

// ResetSeen marks every row unseen.
func (idx *Index) ResetSeen() error {
	if _, err := idx.db.Exec("UPDATE files SET seen = 0"); err != nil {
		return indexErr("reset seen", err)
	}
	return nil
}

// Get returns the entry for path, or nil if the path is not tracked.
func (idx *Index) Get(path string) (*Entry, error) {
	var entry Entry
	err := idx.db.Get(&entry, "SELECT path, mtime, size, seen FROM files WHERE path = ?", path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, indexErr("get "+path, err)
	}
	return &entry, nil
}

// Upsert records a successful transfer and marks the row seen.
func (idx *Index) Upsert(path string, modTime, size int64) error {
	_, err := idx.db.Exec(
		"INSERT OR REPLACE INTO files (path, mtime, size, seen) VALUES (?, ?, ?, 1)",
		path, modTime, size,
	)
	if err != nil {
		return indexErr("upsert "+path, err)
	}
	return nil
}

// MarkSeen flags an existing row as present in this run.
func (idx *Index) MarkSeen(path string) error {
	if _, err := idx.db.Exec("UPDATE files SET seen = 1 WHERE path = ?", path); err != nil {
		return indexErr("mark seen "+path, err)
	}
	return nil
}

// Unseen returns every path not marked seen since the last ResetSeen.
func (idx *Index) Unseen() ([]string, error) {
	var paths []string
	if err := idx.db.Select(&paths, "SELECT path FROM files WHERE seen = 0 ORDER BY path"); err != nil {
		return nil, indexErr("list unseen", err)
	}
	return paths, nil
}

// Delete removes the row for path.
func (idx *Index) Delete(path string) error {
	if _, err := idx.db.Exec("DELETE FROM files WHERE path = ?", path); err != nil {
		return indexErr("delete "+path, err)
	}
	return nil
}

// Count returns the number of tracked paths.
func (idx *Index) Count() (int, error) {
	var count int
	if err := idx.db.Get(&count, "SELECT COUNT(*) FROM files"); err != nil {
		return 0, indexErr("count", err)
	}
	return count, nil
}

// Entries iterates all rows ordered by path. The iteration holds the only
// connection, so callers must not use the index from inside the loop.
func (idx *Index) Entries() iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		rows, err := idx.db.Queryx("SELECT path, mtime, size, seen FROM files ORDER BY path")
		if err != nil {
			yield(nil, indexErr("list", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var entry Entry
			if err := rows.StructScan(&entry); err != nil {
				yield(nil, indexErr("scan", err))
				return
			}
			if !yield(&entry, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, indexErr("list", err))
		}
	}
}
