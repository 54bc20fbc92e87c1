package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/arcadehub/internal/domain/model"
	"github.com/okian/arcadehub/pkg/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS scores (
	id           TEXT PRIMARY KEY,
	principal    TEXT NOT NULL,
	game_id      TEXT NOT NULL,
	score        INTEGER NOT NULL,
	submitted_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS scores_rank ON scores (game_id, score DESC, submitted_at ASC, id ASC);
CREATE INDEX IF NOT EXISTS scores_player ON scores (game_id, principal);
CREATE TABLE IF NOT EXISTS profiles (
	principal    TEXT PRIMARY KEY,
	display_name TEXT NOT NULL
);`

// SQLiteStore persists scores and profiles in a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

func toMicros(t time.Time) int64 { return t.UTC().UnixMicro() }

func fromMicros(v int64) time.Time { return time.UnixMicro(v).UTC() }

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append implements Store.Append.
func (s *SQLiteStore) Append(ctx context.Context, sc Score) error {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("append", time.Since(start)) }()

	if err := prepare(&sc); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (id, principal, game_id, score, submitted_at) VALUES (?, ?, ?, ?, ?)`,
		sc.ID, sc.Principal, sc.GameID, sc.Score, toMicros(sc.SubmittedAt),
	)
	if err != nil {
		return fmt.Errorf("append score: %w", err)
	}
	metrics.RecordStoredScore(sc.GameID)
	return nil
}

// Top implements Store.Top.
func (s *SQLiteStore) Top(ctx context.Context, gameID string, n int) ([]Score, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("top", time.Since(start)) }()

	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, principal, game_id, score, submitted_at FROM scores
		 WHERE game_id = ?
		 ORDER BY score DESC, submitted_at ASC, id ASC
		 LIMIT ?`,
		gameID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("top scores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]Score, 0, n)
	for rows.Next() {
		sc, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("top scores: %w", err)
	}
	return out, nil
}

// Best implements Store.Best.
func (s *SQLiteStore) Best(ctx context.Context, gameID, principal string) (Score, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("best", time.Since(start)) }()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, principal, game_id, score, submitted_at FROM scores
		 WHERE game_id = ? AND principal = ?
		 ORDER BY score DESC, submitted_at ASC, id ASC
		 LIMIT 1`,
		gameID, principal,
	)
	sc, err := scanScore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Score{}, ErrNotFound
	}
	return sc, err
}

// GetProfile implements Store.GetProfile.
func (s *SQLiteStore) GetProfile(ctx context.Context, principal string) (model.Profile, error) {
	var p model.Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT display_name FROM profiles WHERE principal = ?`, principal,
	).Scan(&p.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, ErrNotFound
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// PutProfile implements Store.PutProfile.
func (s *SQLiteStore) PutProfile(ctx context.Context, principal string, p model.Profile) error {
	if principal == "" {
		return fmt.Errorf("%w: empty principal", ErrInvalidScore)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (principal, display_name) VALUES (?, ?)
		 ON CONFLICT(principal) DO UPDATE SET display_name = excluded.display_name`,
		principal, p.DisplayName,
	)
	if err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	return nil
}

// Count returns the number of stored scores, or 0 if the query fails.
func (s *SQLiteStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scores`).Scan(&n); err != nil {
		return 0
	}
	return n
}

type scanner interface {
	Scan(dest ...any) error
}

func scanScore(r scanner) (Score, error) {
	var (
		sc Score
		at int64
	)
	if err := r.Scan(&sc.ID, &sc.Principal, &sc.GameID, &sc.Score, &at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Score{}, err
		}
		return Score{}, fmt.Errorf("scan score: %w", err)
	}
	sc.SubmittedAt = fromMicros(at)
	return sc, nil
}
