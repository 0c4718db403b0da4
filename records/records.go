// Package records keeps the leaderboard: one row per retired player,
// ordered by score. It is the only part of the server that touches the
// database, through the DSN given in GAME_DB_URL.
package records

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/dogwalk/gameserver/game/model"
)

const (
	createTableSQL = `
CREATE TABLE IF NOT EXISTS retired_players (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	score        INTEGER NOT NULL,
	play_time_ms INTEGER NOT NULL
)`

	createIndexSQL = `
CREATE INDEX IF NOT EXISTS retired_players_rating
	ON retired_players (score DESC, play_time_ms, name)`

	upsertSQL = `
INSERT INTO retired_players (id, name, score, play_time_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	name = excluded.name,
	score = excluded.score,
	play_time_ms = excluded.play_time_ms`

	selectSQL = `
SELECT id, name, score, play_time_ms
FROM retired_players
ORDER BY score DESC, play_time_ms, name
LIMIT ? OFFSET ?`
)

// Store is the leaderboard database. Its pool is capped, so concurrent
// writers queue on a free connection instead of racing.
type Store struct {
	db *sql.DB
}

var _ model.RecordSink = (*Store)(nil)

// Open connects to the database behind the DSN and caps the pool at
// maxConns connections.
func Open(dsn string, maxConns int) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Initialize creates the leaderboard schema. It is idempotent and runs
// on every startup.
func (s *Store) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create retired_players table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createIndexSQL); err != nil {
		return fmt.Errorf("failed to create rating index: %w", err)
	}
	return nil
}

// SaveRecord upserts the player's row, so re-retiring under the same
// UUID overwrites the previous result.
func (s *Store) SaveRecord(ctx context.Context, rec model.PlayerRecord) error {
	_, err := s.db.ExecContext(ctx, upsertSQL,
		rec.UUID.String(), rec.Name, rec.Score, rec.PlayTimeMS)
	if err != nil {
		return fmt.Errorf("failed to save record for %s: %w", rec.UUID, err)
	}
	return nil
}

// Records returns one leaderboard page: maxItems rows starting at
// offset start, best score first. Ties break by shorter play time, then
// by name.
func (s *Store) Records(ctx context.Context, start, maxItems int) ([]model.PlayerRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectSQL, maxItems, start)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []model.PlayerRecord
	for rows.Next() {
		var (
			id  string
			rec model.PlayerRecord
		)
		if err := rows.Scan(&id, &rec.Name, &rec.Score, &rec.PlayTimeMS); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.UUID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("failed to parse record id %q: %w", id, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return out, nil
}
