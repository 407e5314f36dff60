package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on an embedded sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "scribe.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			text TEXT NOT NULL,
			duration REAL NOT NULL,
			script TEXT NOT NULL DEFAULT 'lat',
			audio_url TEXT NOT NULL DEFAULT '',
			audio_size INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id, created_at)"); err != nil {
		return fmt.Errorf("create sessions index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Insert(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.Script == "" {
		sess.Script = DefaultScript
	}

	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(id, user_id, text, duration, script, audio_url, audio_size, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.UserID,
		sess.Text,
		sess.Duration,
		string(sess.Script),
		sess.AudioURL,
		sess.AudioSize,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, text, duration, script, audio_url, audio_size, created_at, updated_at
		 FROM sessions WHERE id = ?`,
		id,
	)

	sess, err := scanSession(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return Session{}, fmt.Errorf("query session %s: %w", id, err)
	}
	return sess, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, fields UpdateFields) (Session, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Format(time.RFC3339Nano)}

	if fields.Text != nil {
		sets = append(sets, "text = ?")
		args = append(args, *fields.Text)
	}
	if fields.Script != nil {
		sets = append(sets, "script = ?")
		args = append(args, string(*fields.Script))
	}
	if fields.AudioURL != nil {
		sets = append(sets, "audio_url = ?")
		args = append(args, *fields.AudioURL)
	}
	if fields.AudioSize != nil {
		sets = append(sets, "audio_size = ?")
		args = append(args, *fields.AudioSize)
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET "+strings.Join(sets, ", ")+" WHERE id = ?",
		args...,
	)
	if err != nil {
		return Session{}, fmt.Errorf("update session %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return Session{}, fmt.Errorf("update session rows affected: %w", err)
	}
	if rows == 0 {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	return s.Get(ctx, id)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, userID int64, opts ListOptions) ([]Session, error) {
	limit := opts.Take
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, text, duration, script, audio_url, audio_size, created_at, updated_at
		 FROM sessions WHERE user_id = ?
		 ORDER BY `+orderClause(opts.SortBy, opts.Order)+`
		 LIMIT ? OFFSET ?`,
		userID,
		limit,
		opts.Skip,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions for user %d: %w", userID, err)
	}
	defer func() { _ = rows.Close() }()

	sessions := make([]Session, 0, 16)
	for rows.Next() {
		sess, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan session for user %d: %w", userID, err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}

	return sessions, nil
}

func (s *SQLiteStore) Count(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id = ?`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count sessions for user %d: %w", userID, err)
	}
	return count, nil
}

// orderClause maps the caller-facing sort field and order onto column SQL.
// Both values are whitelisted here; anything else falls back to the default
// so no query interpolates caller input.
func orderClause(field SortField, order SortOrder) string {
	col := "created_at"
	switch field {
	case SortByUpdatedAt:
		col = "updated_at"
	case SortByDuration:
		col = "duration"
	}

	dir := "DESC"
	if order == OrderAsc {
		dir = "ASC"
	}

	return col + " " + dir
}

func scanSession(scan func(dest ...any) error) (Session, error) {
	var sess Session
	var script, createdAt, updatedAt string

	if err := scan(
		&sess.ID,
		&sess.UserID,
		&sess.Text,
		&sess.Duration,
		&script,
		&sess.AudioURL,
		&sess.AudioSize,
		&createdAt,
		&updatedAt,
	); err != nil {
		return Session{}, err
	}
	sess.Script = Script(script)

	parsedCreated, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Session{}, fmt.Errorf("parse created_at: %w", err)
	}
	sess.CreatedAt = parsedCreated

	parsedUpdated, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return Session{}, fmt.Errorf("parse updated_at: %w", err)
	}
	sess.UpdatedAt = parsedUpdated

	return sess, nil
}
