package server

import (
	"encoding/json"

	"dots-server/internal/dots"
)

type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is the push envelope. Kinds: "room_state" (Room always
// set, Event set after a move), "pong", and "error" (Message set; sent
// only to the originating connection, never broadcast).
type ServerMessage struct {
	Type    string          `json:"type"`
	Room    *dots.Snapshot  `json:"room,omitempty"`
	Event   *dots.MoveEvent `json:"event,omitempty"`
	Message string          `json:"message,omitempty"`
}
