package capture

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore keeps exchanges in a SQLite database, so they survive the
// proxy and can be inspected with `cuse captures list` or any SQLite tool.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	max       int
	mu        sync.Mutex
	closeOnce sync.Once
	closed    bool

	insertStmt *sql.Stmt
	pruneStmt  *sql.Stmt
	countStmt  *sql.Stmt
}

// NewSQLiteStore opens or creates the database at path. At most maxEntries
// exchanges are kept; zero or less means unbounded.
func NewSQLiteStore(path string, maxEntries int) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db, path: path, max: maxEntries}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS exchanges (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		time INTEGER NOT NULL,
		route TEXT NOT NULL,
		method TEXT NOT NULL,
		path TEXT NOT NULL,
		request BLOB,
		response BLOB,
		duration_ns INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_exchanges_route ON exchanges(route);
	CREATE INDEX IF NOT EXISTS idx_exchanges_time ON exchanges(time);
	`)
	return err
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertStmt, err = s.db.Prepare(`
		INSERT INTO exchanges (id, time, route, method, path, request, response, duration_ns, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	s.pruneStmt, err = s.db.Prepare(`
		DELETE FROM exchanges
		WHERE seq <= (SELECT MAX(seq) FROM exchanges) - ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare prune statement: %w", err)
	}

	s.countStmt, err = s.db.Prepare(`SELECT COUNT(*) FROM exchanges`)
	if err != nil {
		return fmt.Errorf("failed to prepare count statement: %w", err)
	}
	return nil
}

// Record inserts e and prunes the oldest rows beyond the entry limit.
func (s *SQLiteStore) Record(ctx context.Context, e *Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	res, err := s.insertStmt.ExecContext(ctx,
		e.ID,
		e.Time.UnixNano(),
		e.Route,
		e.Method,
		e.Path,
		e.Request,
		e.Response,
		int64(e.Duration),
		e.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert exchange: %w", err)
	}
	if seq, err := res.LastInsertId(); err == nil {
		e.Seq = seq
	}

	if s.max > 0 {
		if _, err := s.pruneStmt.ExecContext(ctx, s.max); err != nil {
			return fmt.Errorf("failed to prune exchanges: %w", err)
		}
	}
	return nil
}

// List returns stored exchanges, newest first.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]*Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	query := `SELECT seq, id, time, route, method, path, request, response, duration_ns, error FROM exchanges`
	var args []any
	if opts.Route != "" {
		query += ` WHERE route = ?`
		args = append(args, opts.Route)
	}
	query += ` ORDER BY seq DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}
	defer rows.Close()

	var out []*Exchange
	for rows.Next() {
		var (
			e       Exchange
			ts, dur int64
		)
		if err := rows.Scan(&e.Seq, &e.ID, &ts, &e.Route, &e.Method, &e.Path, &e.Request, &e.Response, &dur, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		e.Time = time.Unix(0, ts)
		e.Duration = time.Duration(dur)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Count returns the number of stored exchanges.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	var n int
	if err := s.countStmt.QueryRowContext(ctx).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count exchanges: %w", err)
	}
	return n, nil
}

// DeleteBefore removes exchanges recorded before cutoff.
func (s *SQLiteStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM exchanges WHERE time < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete exchanges: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete exchanges: %w", err)
	}
	return int(n), nil
}

// Ping checks the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database. It is idempotent.
func (s *SQLiteStore) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		for _, stmt := range []*sql.Stmt{s.insertStmt, s.pruneStmt, s.countStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		closeErr = s.db.Close()
	})
	return closeErr
}
