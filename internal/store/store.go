// Package store persists sessions and their accepted definitions in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/funvibe/lispjit/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	session_id TEXT    NOT NULL REFERENCES sessions(id),
	seq        INTEGER NOT NULL,
	source     TEXT    NOT NULL,
	kind       TEXT    NOT NULL,
	PRIMARY KEY (session_id, seq)
);`

// ErrUnknownSession is returned when a session id has no row.
var ErrUnknownSession = errors.New("unknown session")

// Store is a SQLite database of sessions.
type Store struct {
	db *sql.DB
}

// SessionInfo describes one stored session.
type SessionInfo struct {
	ID        string
	CreatedAt time.Time
	Records   int
}

// Open opens (creating if needed) the database at path. ":memory:" works
// for throwaway stores.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection keeps in-memory databases shared and writes serialized.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema in %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session with a random id.
func (s *Store) CreateSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := s.EnsureSession(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// EnsureSession inserts id if it is not stored yet.
func (s *Store) EnsureSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, created_at) VALUES (?, ?)`,
		id, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("create session %s: %w", id, err)
	}
	return nil
}

// HasSession reports whether id is stored.
func (s *Store) HasSession(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AppendRecord stores one accepted definition. It implements session.Recorder.
func (s *Store) AppendRecord(ctx context.Context, sessionID string, rec session.Record) error {
	ok, err := s.HasSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (session_id, seq, source, kind) VALUES (?, ?, ?, ?)`,
		sessionID, rec.Seq, rec.Source, rec.Form.String())
	if err != nil {
		return fmt.Errorf("append record %d to %s: %w", rec.Seq, sessionID, err)
	}
	return nil
}

// LoadSources returns the stored definitions of a session in order.
func (s *Store) LoadSources(ctx context.Context, sessionID string) ([]string, error) {
	ok, err := s.HasSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source FROM records WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// Sessions lists stored sessions, oldest first.
func (s *Store) Sessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.created_at, COUNT(r.seq)
		FROM sessions s LEFT JOIN records r ON r.session_id = s.id
		GROUP BY s.id, s.created_at
		ORDER BY s.created_at, s.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var created int64
		if err := rows.Scan(&info.ID, &created, &info.Records); err != nil {
			return nil, err
		}
		info.CreatedAt = time.Unix(created, 0)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Attach restores sess from the records stored under its ID, creating the
// row if the id is new, and makes the store its Recorder.
func (s *Store) Attach(ctx context.Context, sess *session.Session) error {
	if err := s.EnsureSession(ctx, sess.ID); err != nil {
		return err
	}
	sources, err := s.LoadSources(ctx, sess.ID)
	if err != nil {
		return err
	}
	if len(sources) > 0 {
		if err := sess.Restore(ctx, sources); err != nil {
			return fmt.Errorf("restore session %s: %w", sess.ID, err)
		}
	}
	sess.Recorder = s
	return nil
}
