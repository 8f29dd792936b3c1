package session

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

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoSessions      = errors.New("no sessions exist")
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    name TEXT PRIMARY KEY,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    last_image_path TEXT
);

CREATE TABLE IF NOT EXISTS turns (
    id TEXT PRIMARY KEY,
    session_name TEXT NOT NULL,
    seq INTEGER NOT NULL,
    prompt TEXT NOT NULL,
    image_path TEXT NOT NULL,
    model TEXT NOT NULL,
    aspect_ratio TEXT,
    image_size TEXT,
    created_at DATETIME NOT NULL,
    FOREIGN KEY (session_name) REFERENCES sessions(name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_turns_session_seq ON turns(session_name, seq);
CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
`

// Store persists sessions in sqlite. Commits go through transactions, so a
// reader never observes a partially written record. Session-local image
// copies live under imageRoot, one directory per session.
type Store struct {
	db        *sql.DB
	imageRoot string
}

func NewStore() (*Store, error) {
	dbPath, err := DefaultDBPath()
	if err != nil {
		return nil, err
	}
	return NewStoreWithPath(dbPath)
}

func NewStoreWithPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &Store{
		db:        db,
		imageRoot: filepath.Join(filepath.Dir(dbPath), "sessions"),
	}, nil
}

// DefaultDBPath places the database under the XDG state directory.
func DefaultDBPath() (string, error) {
	dir, err := stateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sessions.db"), nil
}

func stateDir() (string, error) {
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		return filepath.Join(v, "orimg"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", "orimg"), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ImageDir returns the session-local image directory for a session name.
func (s *Store) ImageDir(name string) string {
	return filepath.Join(s.imageRoot, name)
}

func (s *Store) EnsureImageDir(name string) (string, error) {
	dir := s.ImageDir(name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create session image directory: %w", err)
	}
	return dir, nil
}

// Load returns the named session with its full turn history, oldest first.
func (s *Store) Load(ctx context.Context, name string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, created_at, updated_at FROM sessions WHERE name = ?`, name)

	sess := &Session{}
	err := row.Scan(&sess.Name, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	turns, err := s.loadTurns(ctx, name)
	if err != nil {
		return nil, err
	}
	sess.Turns = turns
	return sess, nil
}

// LoadMostRecent selects by updated_at, ties broken by name ascending so the
// choice is deterministic.
func (s *Store) LoadMostRecent(ctx context.Context) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name FROM sessions ORDER BY updated_at DESC, name ASC LIMIT 1`)

	var name string
	err := row.Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSessions
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find most recent session: %w", err)
	}
	return s.Load(ctx, name)
}

func (s *Store) loadTurns(ctx context.Context, name string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_name, seq, prompt, image_path, model, aspect_ratio, image_size, created_at
		 FROM turns WHERE session_name = ? ORDER BY seq ASC`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var ratio, size sql.NullString
		if err := rows.Scan(&t.ID, &t.SessionName, &t.Seq, &t.Prompt, &t.ImagePath,
			&t.Params.Model, &ratio, &size, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Params.AspectRatio = ratio.String
		t.Params.Size = size.String
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// AppendTurn commits a new turn and the session row it belongs to in one
// transaction. The session row is created on the first turn, so a session
// that never generates anything leaves no record behind. On success the
// in-memory session is updated to match.
func (s *Store) AppendTurn(ctx context.Context, sess *Session, turn *Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	turn.SessionName = sess.Name
	turn.Seq = len(sess.Turns) + 1
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = now
	}

	createdAt := sess.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (name, created_at, updated_at, last_image_path)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   updated_at = excluded.updated_at,
		   last_image_path = excluded.last_image_path`,
		sess.Name, createdAt, now, turn.ImagePath)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (id, session_name, seq, prompt, image_path, model, aspect_ratio, image_size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.SessionName, turn.Seq, turn.Prompt, turn.ImagePath,
		turn.Params.Model, nullString(turn.Params.AspectRatio), nullString(turn.Params.Size), turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save turn: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turn: %w", err)
	}

	sess.CreatedAt = createdAt
	sess.UpdatedAt = now
	sess.Turns = append(sess.Turns, *turn)
	return nil
}

// List returns session summaries ordered by updated_at descending, name
// ascending on ties.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.name, s.updated_at,
		        (SELECT COUNT(*) FROM turns t WHERE t.session_name = s.name),
		        (SELECT t.model FROM turns t WHERE t.session_name = s.name ORDER BY t.seq DESC LIMIT 1)
		 FROM sessions s ORDER BY s.updated_at DESC, s.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		var lastModel sql.NullString
		if err := rows.Scan(&sum.Name, &sum.UpdatedAt, &sum.TurnCount, &lastModel); err != nil {
			return nil, fmt.Errorf("failed to scan session summary: %w", err)
		}
		sum.LastModel = lastModel.String
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// Delete removes the session record and its image directory. The directory
// is renamed aside first and restored if the record delete fails, so a
// failed delete leaves the session fully usable and a successful one leaves
// nothing behind.
func (s *Store) Delete(ctx context.Context, name string) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sessions WHERE name = ?`, name).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}

	imgDir := s.ImageDir(name)
	trashDir := imgDir + ".deleting"
	moved := false
	if _, err := os.Stat(imgDir); err == nil {
		if err := os.Rename(imgDir, trashDir); err != nil {
			return fmt.Errorf("failed to remove session images: %w", err)
		}
		moved = true
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE name = ?`, name); err != nil {
		if moved {
			os.Rename(trashDir, imgDir)
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if moved {
		os.RemoveAll(trashDir)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
