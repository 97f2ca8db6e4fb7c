package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// IndexFile is the name of the SQLite index inside a store directory.
const IndexFile = "index.db"

// SQLiteIndex persists entries in a SQLite database so that several
// processes sharing a store see the same index.
type SQLiteIndex struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the index database at path.
func OpenSQLite(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite index: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	const schema = `CREATE TABLE IF NOT EXISTS entries (
		fingerprint TEXT PRIMARY KEY,
		scene       TEXT NOT NULL,
		object      TEXT NOT NULL,
		size        INTEGER NOT NULL,
		width       INTEGER NOT NULL,
		height      INTEGER NOT NULL,
		duration    REAL NOT NULL,
		created_at  TEXT NOT NULL,
		last_used   TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite index schema: %w", err)
	}
	return &SQLiteIndex{db: db, path: path}, nil
}

// Path returns the database file.
func (s *SQLiteIndex) Path() string { return s.path }

const entryColumns = `fingerprint, scene, object, size, width, height, duration, created_at, last_used`

func (s *SQLiteIndex) Get(ctx context.Context, fp string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE fingerprint = ?`, fp)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get cache entry: %w", err)
	}
	return e, true, nil
}

func (s *SQLiteIndex) Put(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			scene = excluded.scene, object = excluded.object, size = excluded.size,
			width = excluded.width, height = excluded.height, duration = excluded.duration,
			created_at = excluded.created_at, last_used = excluded.last_used`,
		e.Fingerprint, e.Scene, e.Object, e.Size, e.Width, e.Height, e.Duration,
		formatTime(e.Created), formatTime(e.LastUsed),
	)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) Touch(ctx context.Context, fp string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE entries SET last_used = ? WHERE fingerprint = ?`, formatTime(at), fp); err != nil {
		return fmt.Errorf("touch cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) Delete(ctx context.Context, fp string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE fingerprint = ?`, fp); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM entries`)
	if err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	// timestamps are stored as text; order in Go to keep ties deterministic
	sortLRU(out)
	return out, nil
}

func (s *SQLiteIndex) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries`)
	if err != nil {
		return 0, fmt.Errorf("clear cache index: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear cache index: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying database connection.
func (s *SQLiteIndex) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(r scanner) (Entry, error) {
	var e Entry
	var created, used string
	if err := r.Scan(&e.Fingerprint, &e.Scene, &e.Object, &e.Size, &e.Width, &e.Height, &e.Duration, &created, &used); err != nil {
		return Entry{}, err
	}
	e.Created = parseTime(created)
	e.LastUsed = parseTime(used)
	return e, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

var _ Index = (*SQLiteIndex)(nil)
