package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dots-server/internal/dots"
)

// PersistenceManager stores room snapshots in Postgres, one JSON payload
// per room code. It implements the Gateway contract of the directory.
type PersistenceManager struct {
	pool *pgxpool.Pool
}

func NewPersistenceManager(pool *pgxpool.Pool) *PersistenceManager {
	return &PersistenceManager{pool: pool}
}

// InitSchema creates the snapshot table if it does not exist yet.
// Idempotent; runs at startup.
func (pm *PersistenceManager) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS game_room_states (
			room_code  TEXT PRIMARY KEY,
			status     TEXT NOT NULL,
			payload    JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := pm.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create game_room_states table: %w", err)
	}
	return nil
}

// SaveRoom upserts the snapshot for its room code.
func (pm *PersistenceManager) SaveRoom(ctx context.Context, snap dots.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to serialize room %s: %w", snap.RoomCode, err)
	}

	query := `
		INSERT INTO game_room_states (room_code, status, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_code) DO UPDATE
		SET status = EXCLUDED.status, payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`
	_, err = pm.pool.Exec(ctx, query, snap.RoomCode, string(snap.Status), payload, snap.CreatedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save room %s: %w", snap.RoomCode, err)
	}
	return nil
}

// LoadRoom fetches the snapshot for a room code, or (nil, nil) when no
// snapshot exists.
func (pm *PersistenceManager) LoadRoom(ctx context.Context, code string) (*dots.Snapshot, error) {
	var payload []byte
	err := pm.pool.QueryRow(ctx, `SELECT payload FROM game_room_states WHERE room_code = $1`, code).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room %s: %w", code, err)
	}

	var snap dots.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to deserialize room %s: %w", code, err)
	}
	return &snap, nil
}

// LoadActiveRooms returns every snapshot whose game has not finished.
// Used on startup to restore in-memory state.
func (pm *PersistenceManager) LoadActiveRooms(ctx context.Context) ([]dots.Snapshot, error) {
	query := `
		SELECT payload FROM game_room_states
		WHERE status != $1
		ORDER BY updated_at DESC
	`
	rows, err := pm.pool.Query(ctx, query, string(dots.PhaseFinished))
	if err != nil {
		return nil, fmt.Errorf("failed to query active rooms: %w", err)
	}
	defer rows.Close()

	var snaps []dots.Snapshot
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan room row: %w", err)
		}
		var snap dots.Snapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			// Keep restoring the rest.
			log.Printf("Warning: skipping undecodable room snapshot: %v", err)
			continue
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating room rows: %w", err)
	}
	return snaps, nil
}

func (pm *PersistenceManager) DeleteRoom(ctx context.Context, code string) error {
	tag, err := pm.pool.Exec(ctx, `DELETE FROM game_room_states WHERE room_code = $1`, code)
	if err != nil {
		return fmt.Errorf("failed to delete room %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("room not found: %s", code)
	}
	return nil
}

// CleanupOldRooms deletes finished rooms that have not been touched for
// olderThan and returns how many were removed.
func (pm *PersistenceManager) CleanupOldRooms(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	query := `DELETE FROM game_room_states WHERE status = $1 AND updated_at < $2`
	tag, err := pm.pool.Exec(ctx, query, string(dots.PhaseFinished), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up old rooms: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
