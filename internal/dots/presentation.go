package dots

import (
	"math/rand"
	"time"
)

// Snapshot is the public, JSON-serializable view of a room. It is what
// gets broadcast to subscribers and persisted, and it is sufficient to
// rehydrate the room. Field names match the frontend contract.
type Snapshot struct {
	RoomCode        string    `json:"roomCode"`
	CreatedAt       time.Time `json:"createdAt"`
	Status          Phase     `json:"status"`
	HostPlayerID    string    `json:"hostPlayerId"`
	BoardSize       int       `json:"boardSize"`
	MaxPlayers      int       `json:"maxPlayers"`
	Players         []Player  `json:"players"`
	Board           Board     `json:"board"`
	TurnIndex       int       `json:"turnIndex"`
	CurrentPlayerID string    `json:"currentPlayerId,omitempty"`
	LastEventID     int       `json:"lastEventId"`
	Winner          *Winner   `json:"winner,omitempty"`
}

// Snapshot captures a deep copy of the room's public state. The copy
// stays coherent while the room mutates underneath a later operation,
// so a broadcast of the previous snapshot can overlap the next move.
func (r *Room) Snapshot() Snapshot {
	players := make([]Player, len(r.Players))
	copy(players, r.Players)

	var winner *Winner
	if r.Winner != nil {
		w := Winner{
			WinnerPlayerIDs: append([]string(nil), r.Winner.WinnerPlayerIDs...),
			MaxScore:        r.Winner.MaxScore,
			IsTie:           r.Winner.IsTie,
		}
		winner = &w
	}

	return Snapshot{
		RoomCode:        r.Code,
		CreatedAt:       r.CreatedAt,
		Status:          r.Phase,
		HostPlayerID:    r.HostPlayerID,
		BoardSize:       r.BoardSize,
		MaxPlayers:      r.MaxPlayers,
		Players:         players,
		Board:           r.Board.clone(),
		TurnIndex:       r.TurnIndex,
		CurrentPlayerID: r.CurrentPlayerID(),
		LastEventID:     r.LastEventID,
		Winner:          winner,
	}
}

// RoomFromSnapshot rehydrates a room from a persisted snapshot.
func RoomFromSnapshot(s Snapshot, opts ...Option) *Room {
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	board := s.Board
	if board.Size == 0 {
		board = NewBoard(s.BoardSize)
	}

	r := &Room{
		Code:         s.RoomCode,
		CreatedAt:    createdAt,
		Phase:        s.Status,
		HostPlayerID: s.HostPlayerID,
		BoardSize:    ClampBoardSize(s.BoardSize),
		MaxPlayers:   s.MaxPlayers,
		Players:      append([]Player(nil), s.Players...),
		Board:        board,
		TurnIndex:    s.TurnIndex,
		LastEventID:  s.LastEventID,
		Winner:       s.Winner,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return r
}
