package server

import (
	"context"
	"fmt"
	"log"
	"sync"

	"dots-server/internal/dots"
)

// Gateway is the persistence contract the directory depends on. LoadRoom
// returns (nil, nil) when no snapshot exists for the code.
type Gateway interface {
	LoadRoom(ctx context.Context, code string) (*dots.Snapshot, error)
	SaveRoom(ctx context.Context, snap dots.Snapshot) error
}

// RoomDirectory maps room codes to live rooms. Each entry carries its
// own mutex, so mutations on one room serialize while other rooms stay
// independent; the directory lock only guards the map itself.
type RoomDirectory struct {
	rooms   map[string]*roomEntry
	gateway Gateway
	opts    []dots.Option
	mu      sync.RWMutex
}

type roomEntry struct {
	room *dots.Room
	mu   sync.Mutex
}

// NewRoomDirectory creates a directory backed by the given gateway.
// Options (e.g. a seeded rng) are applied to every room it creates or
// rehydrates.
func NewRoomDirectory(gw Gateway, opts ...dots.Option) *RoomDirectory {
	return &RoomDirectory{
		rooms:   make(map[string]*roomEntry),
		gateway: gw,
		opts:    opts,
	}
}

const maxCodeAttempts = 10

// CreateRoom generates a unique code, creates the room with the caller
// as host, persists the initial snapshot and returns it together with
// the creator's player id.
func (d *RoomDirectory) CreateRoom(ctx context.Context, nickname string, boardSize, maxPlayers int) (dots.Snapshot, string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := GenerateRoomCode()

		d.mu.RLock()
		_, exists := d.rooms[code]
		d.mu.RUnlock()
		if exists {
			continue
		}

		// A dormant room may live only in the gateway.
		if snap, err := d.gateway.LoadRoom(ctx, code); err != nil {
			return dots.Snapshot{}, "", fmt.Errorf("probe room code %s: %w", code, err)
		} else if snap != nil {
			continue
		}

		room := dots.NewRoom(code, nickname, boardSize, maxPlayers, d.opts...)

		d.mu.Lock()
		if _, raced := d.rooms[code]; raced {
			d.mu.Unlock()
			continue
		}
		d.rooms[code] = &roomEntry{room: room}
		d.mu.Unlock()

		snap := room.Snapshot()
		d.persist(ctx, snap)
		return snap, room.HostPlayerID, nil
	}
	return dots.Snapshot{}, "", fmt.Errorf("could not allocate a unique room code after %d attempts", maxCodeAttempts)
}

// Update runs fn against the room under its entry lock, then persists
// and returns the resulting snapshot. If fn fails the room is left
// untouched and nothing is persisted or returned.
func (d *RoomDirectory) Update(ctx context.Context, code string, fn func(*dots.Room) error) (dots.Snapshot, error) {
	entry, err := d.entry(ctx, code)
	if err != nil {
		return dots.Snapshot{}, err
	}

	entry.mu.Lock()
	if err := fn(entry.room); err != nil {
		entry.mu.Unlock()
		return dots.Snapshot{}, err
	}
	snap := entry.room.Snapshot()
	entry.mu.Unlock()

	d.persist(ctx, snap)
	return snap, nil
}

// Snapshot returns a consistent point-in-time view of the room.
func (d *RoomDirectory) Snapshot(ctx context.Context, code string) (dots.Snapshot, error) {
	entry, err := d.entry(ctx, code)
	if err != nil {
		return dots.Snapshot{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.room.Snapshot(), nil
}

// Restore seeds the directory from persisted snapshots at boot.
func (d *RoomDirectory) Restore(snaps []dots.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, snap := range snaps {
		code := NormalizeRoomCode(snap.RoomCode)
		if _, ok := d.rooms[code]; ok {
			continue
		}
		d.rooms[code] = &roomEntry{room: dots.RoomFromSnapshot(snap, d.opts...)}
		log.Printf("Restored room %s (status: %s, %d players)", code, snap.Status, len(snap.Players))
	}
}

// Each visits a snapshot of every live room; used by the periodic save
// task and shutdown.
func (d *RoomDirectory) Each(fn func(snap dots.Snapshot)) {
	d.mu.RLock()
	entries := make([]*roomEntry, 0, len(d.rooms))
	for _, e := range d.rooms {
		entries = append(entries, e)
	}
	d.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		snap := e.room.Snapshot()
		e.mu.Unlock()
		fn(snap)
	}
}

func (d *RoomDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// entry returns the live entry for a code, rehydrating it from the
// gateway on first reference.
func (d *RoomDirectory) entry(ctx context.Context, code string) (*roomEntry, error) {
	code = NormalizeRoomCode(code)

	d.mu.RLock()
	entry, ok := d.rooms[code]
	d.mu.RUnlock()
	if ok {
		return entry, nil
	}

	snap, err := d.gateway.LoadRoom(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", code, err)
	}
	if snap == nil {
		return nil, dots.Errorf(dots.KindNotFound, "room not found")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if entry, ok := d.rooms[code]; ok {
		// Another request rehydrated it first.
		return entry, nil
	}
	entry = &roomEntry{room: dots.RoomFromSnapshot(*snap, d.opts...)}
	d.rooms[code] = entry
	return entry, nil
}

// persist is best-effort: the in-memory room stays authoritative and a
// failed save is retried on the next mutation.
func (d *RoomDirectory) persist(ctx context.Context, snap dots.Snapshot) {
	if err := d.gateway.SaveRoom(ctx, snap); err != nil {
		log.Printf("Failed to persist room %s: %v", snap.RoomCode, err)
	}
}
