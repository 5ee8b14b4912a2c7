// Package savedgames keeps a local sqlite index of the player's game
// sessions, mirrored from the list/new/load resource endpoints so the login
// screen works offline and loads fast.
package savedgames

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"gridlink.io/internal/restapi"
)

type Index struct {
	mu sync.Mutex
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS saved_games (
  id         TEXT PRIMARY KEY,
  name       TEXT NOT NULL,
  last_tick  INTEGER NOT NULL DEFAULT 0,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_saved_games_updated ON saved_games(updated_at DESC);
`

func Open(dataDir string) (*Index, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dataDir, "games.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Index{db: db}, nil
}

func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.db.Close()
}

// Sync replaces the local index with the server's list.
func (ix *Index) Sync(games []restapi.GameRef) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	tx, err := ix.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM saved_games`); err != nil {
		return err
	}
	for _, g := range games {
		at := g.SavedAt
		if at == "" {
			at = time.Now().UTC().Format(time.RFC3339)
		}
		if _, err := tx.Exec(
			`INSERT INTO saved_games (id, name, last_tick, updated_at) VALUES (?, ?, ?, ?)`,
			g.ID, g.Name, int64(g.LastTick), at,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Touch upserts one game after a save or load.
func (ix *Index) Touch(g restapi.GameRef) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	_, err := ix.db.Exec(
		`INSERT INTO saved_games (id, name, last_tick, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, last_tick=excluded.last_tick,
		   updated_at=excluded.updated_at`,
		g.ID, g.Name, int64(g.LastTick), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// List returns all known games, most recently touched first.
func (ix *Index) List() ([]restapi.GameRef, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	rows, err := ix.db.Query(
		`SELECT id, name, last_tick, updated_at FROM saved_games ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []restapi.GameRef
	for rows.Next() {
		var g restapi.GameRef
		var tick int64
		if err := rows.Scan(&g.ID, &g.Name, &tick, &g.SavedAt); err != nil {
			return nil, err
		}
		g.LastTick = uint64(tick)
		out = append(out, g)
	}
	return out, rows.Err()
}
