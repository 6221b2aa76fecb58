package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
)

// Pusher is the transport-side handle for one subscriber. The registry
// only pushes bytes; it knows nothing about game semantics.
type Pusher interface {
	Push(ctx context.Context, data []byte) error
}

// ConnectionRegistry tracks live subscribers per room code and fans out
// state updates to all of them. A handle must only be registered after
// its transport handshake has completed.
type ConnectionRegistry struct {
	rooms map[string]map[Pusher]struct{}
	mu    sync.RWMutex
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		rooms: make(map[string]map[Pusher]struct{}),
	}
}

func (cr *ConnectionRegistry) Register(code string, p Pusher) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	subs, ok := cr.rooms[code]
	if !ok {
		subs = make(map[Pusher]struct{})
		cr.rooms[code] = subs
	}
	subs[p] = struct{}{}
}

// Unregister removes a handle; the room entry is dropped once empty.
// Room state itself is independent of subscriber presence.
func (cr *ConnectionRegistry) Unregister(code string, p Pusher) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	subs, ok := cr.rooms[code]
	if !ok {
		return
	}
	delete(subs, p)
	if len(subs) == 0 {
		delete(cr.rooms, code)
	}
}

func (cr *ConnectionRegistry) Subscribers(code string) int {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	return len(cr.rooms[code])
}

// Broadcast delivers msg to every current subscriber of the room. The
// subscriber set is snapshotted under the lock and delivery happens
// outside it; a failing handle is unregistered without affecting
// delivery to the rest. Broadcast never reports an error to the caller.
func (cr *ConnectionRegistry) Broadcast(code string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Broadcast marshal failed for room %s: %v", code, err)
		return
	}

	cr.mu.RLock()
	subs := make([]Pusher, 0, len(cr.rooms[code]))
	for p := range cr.rooms[code] {
		subs = append(subs, p)
	}
	cr.mu.RUnlock()

	for _, p := range subs {
		if err := p.Push(context.Background(), data); err != nil {
			log.Printf("Dropping subscriber of room %s: %v", code, err)
			cr.Unregister(code, p)
		}
	}
}
