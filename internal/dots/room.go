package dots

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

const (
	MinPlayers = 2
	MaxPlayers = 4
)

type Player struct {
	ID       string `json:"playerId"`
	Nickname string `json:"nickname"`
	Ready    bool   `json:"ready"`
	Score    int    `json:"score"`
	IsHost   bool   `json:"isHost"`
}

type Winner struct {
	WinnerPlayerIDs []string `json:"winnerPlayerIds"`
	MaxScore        int      `json:"maxScore"`
	IsTie           bool     `json:"isTie"`
}

// MoveEvent records one successful move for broadcast alongside the
// updated room snapshot.
type MoveEvent struct {
	EventID        int      `json:"eventId"`
	PlayerID       string   `json:"playerId"`
	Edge           Edge     `json:"edge"`
	CompletedBoxes []BoxRef `json:"completedBoxes"`
	Scored         bool     `json:"scored"`
}

// Room is the authoritative state of one game session. It is not safe
// for concurrent use; callers serialize access per room (the directory
// holds one mutex per entry).
type Room struct {
	Code         string
	CreatedAt    time.Time
	Phase        Phase
	HostPlayerID string
	BoardSize    int
	MaxPlayers   int
	Players      []Player // slice order is turn order
	Board        Board
	TurnIndex    int
	LastEventID  int
	Winner       *Winner

	rng *rand.Rand
}

type Option func(*Room)

// WithRand injects the random source used for the start-of-game shuffle,
// so tests can assert deterministic turn orders.
func WithRand(rng *rand.Rand) Option {
	return func(r *Room) {
		r.rng = rng
	}
}

// NewRoom creates a lobby room with the creator as its pre-ready host.
// Board size is clamped to [2,12] and maxPlayers to [2,4].
func NewRoom(code, nickname string, boardSize, maxPlayers int, opts ...Option) *Room {
	if maxPlayers < MinPlayers {
		maxPlayers = MinPlayers
	}
	if maxPlayers > MaxPlayers {
		maxPlayers = MaxPlayers
	}
	size := ClampBoardSize(boardSize)

	host := Player{
		ID:       NewPlayerID(),
		Nickname: defaultNickname(nickname, 1),
		Ready:    true,
		Score:    0,
		IsHost:   true,
	}

	r := &Room{
		Code:         code,
		CreatedAt:    time.Now().UTC(),
		Phase:        PhaseLobby,
		HostPlayerID: host.ID,
		BoardSize:    size,
		MaxPlayers:   maxPlayers,
		Players:      []Player{host},
		Board:        NewBoard(size),
		TurnIndex:    0,
		LastEventID:  0,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return r
}

// NewPlayerID returns an opaque, unguessable player identifier.
func NewPlayerID() string {
	return uuid.New().String()
}

func defaultNickname(nickname string, seat int) string {
	if nickname == "" {
		return fmt.Sprintf("Player %d", seat)
	}
	return nickname
}

// Join appends a new not-ready player and returns its id.
func (r *Room) Join(nickname string) (string, error) {
	if r.Phase != PhaseLobby {
		return "", Errorf(KindLifecycle, "cannot join after game start")
	}
	if len(r.Players) >= r.MaxPlayers {
		return "", Errorf(KindCapacity, "room is full (%d/%d players)", len(r.Players), r.MaxPlayers)
	}

	p := Player{
		ID:       NewPlayerID(),
		Nickname: defaultNickname(nickname, len(r.Players)+1),
	}
	r.Players = append(r.Players, p)
	return p.ID, nil
}

// Leave removes the player if present. Removing an unknown player is a
// no-op so a departed client can retry safely. When the host leaves,
// host status transfers to the new first player in turn order.
func (r *Room) Leave(playerID string) {
	idx := r.playerIndex(playerID)
	if idx < 0 {
		return
	}
	wasHost := r.Players[idx].IsHost
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)

	if r.TurnIndex >= len(r.Players) {
		r.TurnIndex = 0
	}

	if wasHost && len(r.Players) > 0 {
		r.Players[0].IsHost = true
		r.HostPlayerID = r.Players[0].ID
	}
}

// SetReady flags a player ready or not. Valid in every phase; rematch
// opt-in reuses the same flag.
func (r *Room) SetReady(playerID string, ready bool) error {
	idx := r.playerIndex(playerID)
	if idx < 0 {
		return Errorf(KindNotFound, "unknown player")
	}
	r.Players[idx].Ready = ready
	return nil
}

// Start moves the room from lobby to playing: host-only, needs at least
// two players, all ready. Turn order is shuffled so the host has no
// fixed first-move advantage; the host flag follows the original host id.
func (r *Room) Start(requesterID string) error {
	if r.Phase != PhaseLobby {
		return Errorf(KindLifecycle, "game already started")
	}
	if requesterID != r.HostPlayerID {
		return Errorf(KindAuthorization, "only the host can start the game")
	}
	if len(r.Players) < MinPlayers {
		return Errorf(KindCapacity, "need at least %d players", MinPlayers)
	}
	for _, p := range r.Players {
		if !p.Ready {
			return Errorf(KindValidation, "all players must be ready")
		}
	}

	r.rng.Shuffle(len(r.Players), func(i, j int) {
		r.Players[i], r.Players[j] = r.Players[j], r.Players[i]
	})
	for i := range r.Players {
		r.Players[i].IsHost = r.Players[i].ID == r.HostPlayerID
	}

	r.reset()
	return nil
}

// ApplyMove validates and applies one edge for playerID. Completing a
// box scores and grants an extra turn; a full board finishes the game.
func (r *Room) ApplyMove(playerID string, e Edge) (*MoveEvent, error) {
	if r.Phase != PhasePlaying {
		return nil, Errorf(KindLifecycle, "game is not in playing state")
	}
	idx := r.playerIndex(playerID)
	if idx < 0 {
		return nil, Errorf(KindNotFound, "unknown player")
	}
	if idx != r.TurnIndex {
		return nil, Errorf(KindAuthorization, "not your turn")
	}
	if !r.Board.EdgeInBounds(e) {
		return nil, Errorf(KindValidation, "edge out of bounds")
	}
	if r.Board.EdgeTaken(e) {
		return nil, Errorf(KindValidation, "edge already taken")
	}

	next, completed := r.Board.Apply(e, playerID)
	r.Board = next

	scored := len(completed) > 0
	if scored {
		r.Players[idx].Score += len(completed)
		// Extra turn: the mover keeps the turn index.
	} else {
		r.TurnIndex = (r.TurnIndex + 1) % len(r.Players)
	}

	if r.Board.Full() {
		r.Phase = PhaseFinished
		r.Winner = r.computeWinner()
	}

	r.LastEventID++
	return &MoveEvent{
		EventID:        r.LastEventID,
		PlayerID:       playerID,
		Edge:           e,
		CompletedBoxes: completed,
		Scored:         scored,
	}, nil
}

// RequestRematch marks the player ready. On a finished room with every
// player ready the game restarts in place: same membership, same turn
// order, same host, fresh board and scores. Returns whether it restarted.
func (r *Room) RequestRematch(playerID string) (bool, error) {
	idx := r.playerIndex(playerID)
	if idx < 0 {
		return false, Errorf(KindNotFound, "unknown player")
	}
	r.Players[idx].Ready = true

	if r.Phase != PhaseFinished {
		return false, nil
	}
	for _, p := range r.Players {
		if !p.Ready {
			return false, nil
		}
	}

	r.reset()
	r.LastEventID++
	return true, nil
}

// reset puts the room into a fresh playing state at its board size.
func (r *Room) reset() {
	r.Phase = PhasePlaying
	r.Board = NewBoard(r.BoardSize)
	r.TurnIndex = 0
	r.Winner = nil
	for i := range r.Players {
		r.Players[i].Score = 0
	}
}

func (r *Room) computeWinner() *Winner {
	maxScore := 0
	for _, p := range r.Players {
		if p.Score > maxScore {
			maxScore = p.Score
		}
	}
	var ids []string
	for _, p := range r.Players {
		if p.Score == maxScore {
			ids = append(ids, p.ID)
		}
	}
	return &Winner{
		WinnerPlayerIDs: ids,
		MaxScore:        maxScore,
		IsTie:           len(ids) > 1,
	}
}

// CurrentPlayerID returns the id of the player holding the turn, or ""
// for an empty room.
func (r *Room) CurrentPlayerID() string {
	if len(r.Players) == 0 || r.TurnIndex >= len(r.Players) {
		return ""
	}
	return r.Players[r.TurnIndex].ID
}

func (r *Room) playerIndex(playerID string) int {
	for i, p := range r.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}
