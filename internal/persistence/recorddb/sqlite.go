// Package recorddb stores spawn records in SQLite, one row per player.
package recorddb

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

	"safespawn.ai/internal/spawn/model"
	"safespawn.ai/internal/spawn/record"
)

type SQLiteStore struct {
	db *sql.DB
}

// Row is a stored record as the admin surface lists it.
type Row struct {
	Player    uuid.UUID
	Raw       string
	UpdatedAt time.Time
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	// Records are written rarely and must survive a crash right after Put.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS spawn_records (
			player_id TEXT PRIMARY KEY,
			record TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`INSERT OR IGNORE INTO meta(key, value) VALUES ('schema_version', '1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Get decodes the player's record. Undecodable rows return an error wrapping
// record.ErrMalformed.
func (s *SQLiteStore) Get(ctx context.Context, player uuid.UUID) (model.Coordinate, bool, error) {
	raw, ok, err := s.GetRaw(ctx, player)
	if err != nil || !ok {
		return model.Coordinate{}, false, err
	}
	c, err := record.Decode(raw)
	if err != nil {
		return model.Coordinate{}, false, fmt.Errorf("player %s: %w", player, err)
	}
	return c, true, nil
}

func (s *SQLiteStore) GetRaw(ctx context.Context, player uuid.UUID) (string, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM spawn_records WHERE player_id=?`, player.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select record: %w", err)
	}
	return raw, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, player uuid.UUID, c model.Coordinate) error {
	return s.PutRaw(ctx, player, record.Encode(c))
}

func (s *SQLiteStore) PutRaw(ctx context.Context, player uuid.UUID, raw string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spawn_records(player_id, record, updated_at) VALUES(?,?,?)
		 ON CONFLICT(player_id) DO UPDATE SET record=excluded.record, updated_at=excluded.updated_at`,
		player.String(), raw, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// Delete removes the player's record. It reports whether a row existed.
func (s *SQLiteStore) Delete(ctx context.Context, player uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM spawn_records WHERE player_id=?`, player.String())
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// List returns up to limit rows ordered by player id.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT player_id, record, updated_at FROM spawn_records ORDER BY player_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var id, raw, ts string
		if err := rows.Scan(&id, &raw, &ts); err != nil {
			return nil, err
		}
		pid, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		t, _ := time.Parse(time.RFC3339Nano, ts)
		out = append(out, Row{Player: pid, Raw: raw, UpdatedAt: t})
	}
	return out, rows.Err()
}
