package server

import "dots-server/internal/dots"

// ============================================================================
// ERROR RESPONSES
// ============================================================================
type ErrorResponse struct {
	Error string `json:"error"`
}

// ============================================================================
// CREATE ROOM (POST /rooms)
// ============================================================================
type CreateRoomRequest struct {
	Nickname   string `json:"nickname"`
	BoardSize  int    `json:"boardSize"`
	MaxPlayers int    `json:"maxPlayers"`
}

type CreateRoomResponse struct {
	Room     dots.Snapshot `json:"room"`
	PlayerID string        `json:"playerId"`
}

// ============================================================================
// JOIN ROOM (POST /rooms/{code}/join)
// ============================================================================
type JoinRoomRequest struct {
	Nickname string `json:"nickname"`
}

type JoinRoomResponse struct {
	PlayerID string `json:"playerId"`
}

// ============================================================================
// LEAVE ROOM (POST /rooms/{code}/leave)
// ============================================================================
type LeaveRoomRequest struct {
	PlayerID string `json:"playerId"`
}

// ============================================================================
// READY (POST /rooms/{code}/ready)
// ============================================================================
type ReadyRequest struct {
	PlayerID string `json:"playerId"`
	// Ready defaults to true when omitted.
	Ready *bool `json:"ready"`
}

// ============================================================================
// START (POST /rooms/{code}/start)
// ============================================================================
type StartGameRequest struct {
	PlayerID string `json:"playerId"`
}

// ============================================================================
// MOVE (POST /rooms/{code}/move and ws "move")
// ============================================================================
type MoveRequest struct {
	PlayerID string    `json:"playerId"`
	Edge     dots.Edge `json:"edge"`
}

type MoveResponse struct {
	OK    bool            `json:"ok"`
	Event *dots.MoveEvent `json:"event,omitempty"`
	Room  dots.Snapshot   `json:"room"`
}

// ============================================================================
// REMATCH (POST /rooms/{code}/rematch)
// ============================================================================
type RematchRequest struct {
	PlayerID string `json:"playerId"`
}

// RoomResponse is the generic lifecycle response carrying the updated
// authoritative room state.
type RoomResponse struct {
	OK   bool          `json:"ok"`
	Room dots.Snapshot `json:"room"`
}
