package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"dots-server/internal/dots"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.rootHandler)
	mux.HandleFunc("GET /health", s.healthHandler)

	// Room lifecycle (REST).
	mux.HandleFunc("POST /rooms", s.createRoomHandler)
	mux.HandleFunc("GET /rooms/{code}", s.getRoomHandler)
	mux.HandleFunc("POST /rooms/{code}/join", s.joinRoomHandler)
	mux.HandleFunc("POST /rooms/{code}/leave", s.leaveRoomHandler)
	mux.HandleFunc("POST /rooms/{code}/ready", s.readyHandler)
	mux.HandleFunc("POST /rooms/{code}/start", s.startGameHandler)
	mux.HandleFunc("POST /rooms/{code}/move", s.moveHandler)
	mux.HandleFunc("POST /rooms/{code}/rematch", s.rematchHandler)

	// Real-time channel.
	mux.HandleFunc("/ws/rooms/{code}", s.websocketHandler)

	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // Replace "*" with specific origins if needed
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Healthy"})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.db.Health(r.Context()))
}

// writeJSON marshals v; failures are logged, the status line has
// already been sent by then.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// writeError maps rule-error kinds to HTTP statuses; anything else is
// an infrastructure failure.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch dots.KindOf(err) {
	case dots.KindValidation:
		status = http.StatusBadRequest
	case dots.KindAuthorization:
		status = http.StatusForbidden
	case dots.KindLifecycle, dots.KindCapacity:
		status = http.StatusConflict
	case dots.KindNotFound:
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		log.Printf("Internal error: %v", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, dots.Errorf(dots.KindValidation, "invalid JSON body"))
		return false
	}
	return true
}

// broadcastRoom pushes the authoritative snapshot (plus an optional
// move event) to every subscriber of the room.
func (s *Server) broadcastRoom(snap dots.Snapshot, event *dots.MoveEvent) {
	s.registry.Broadcast(snap.RoomCode, ServerMessage{
		Type:  "room_state",
		Room:  &snap,
		Event: event,
	})
}

func (s *Server) createRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if !decodeBody(w, r, &req) {
		return
	}

	snap, playerID, err := s.directory.CreateRoom(r.Context(), req.Nickname, req.BoardSize, req.MaxPlayers)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Printf("Room %s created by %s", snap.RoomCode, playerID)
	s.broadcastRoom(snap, nil)
	writeJSON(w, http.StatusCreated, CreateRoomResponse{Room: snap, PlayerID: playerID})
}

func (s *Server) getRoomHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := s.directory.Snapshot(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RoomResponse{OK: true, Room: snap})
}

func (s *Server) joinRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req JoinRoomRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var playerID string
	snap, err := s.directory.Update(r.Context(), r.PathValue("code"), func(room *dots.Room) error {
		var err error
		playerID, err = room.Join(req.Nickname)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.broadcastRoom(snap, nil)
	writeJSON(w, http.StatusOK, JoinRoomResponse{PlayerID: playerID})
}

func (s *Server) leaveRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req LeaveRoomRequest
	if !decodeBody(w, r, &req) {
		return
	}

	snap, err := s.directory.Update(r.Context(), r.PathValue("code"), func(room *dots.Room) error {
		room.Leave(req.PlayerID)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.broadcastRoom(snap, nil)
	writeJSON(w, http.StatusOK, RoomResponse{OK: true, Room: snap})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	var req ReadyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ready := true
	if req.Ready != nil {
		ready = *req.Ready
	}

	snap, err := s.directory.Update(r.Context(), r.PathValue("code"), func(room *dots.Room) error {
		return room.SetReady(req.PlayerID, ready)
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.broadcastRoom(snap, nil)
	writeJSON(w, http.StatusOK, RoomResponse{OK: true, Room: snap})
}

func (s *Server) startGameHandler(w http.ResponseWriter, r *http.Request) {
	var req StartGameRequest
	if !decodeBody(w, r, &req) {
		return
	}

	snap, err := s.directory.Update(r.Context(), r.PathValue("code"), func(room *dots.Room) error {
		return room.Start(req.PlayerID)
	})
	if err != nil {
		writeError(w, err)
		return
	}

	log.Printf("Room %s started with %d players", snap.RoomCode, len(snap.Players))
	s.broadcastRoom(snap, nil)
	writeJSON(w, http.StatusOK, RoomResponse{OK: true, Room: snap})
}

func (s *Server) moveHandler(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var event *dots.MoveEvent
	snap, err := s.directory.Update(r.Context(), r.PathValue("code"), func(room *dots.Room) error {
		var err error
		event, err = room.ApplyMove(req.PlayerID, req.Edge)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.broadcastRoom(snap, event)
	writeJSON(w, http.StatusOK, MoveResponse{OK: true, Event: event, Room: snap})
}

func (s *Server) rematchHandler(w http.ResponseWriter, r *http.Request) {
	var req RematchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	snap, err := s.directory.Update(r.Context(), r.PathValue("code"), func(room *dots.Room) error {
		_, err := room.RequestRematch(req.PlayerID)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.broadcastRoom(snap, nil)
	writeJSON(w, http.StatusOK, RoomResponse{OK: true, Room: snap})
}

// wsSubscriber adapts a websocket connection to the registry's Pusher.
type wsSubscriber struct {
	conn *websocket.Conn
}

func (ws *wsSubscriber) Push(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return ws.conn.Write(ctx, websocket.MessageText, data)
}

func (ws *wsSubscriber) send(ctx context.Context, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	return ws.Push(ctx, data)
}

func (ws *wsSubscriber) sendError(ctx context.Context, message string) {
	if err := ws.send(ctx, ServerMessage{Type: "error", Message: message}); err != nil {
		log.Printf("Failed to send error message: %v", err)
	}
}

// websocketHandler serves the per-room realtime channel: it pushes the
// current snapshot on connect, then answers pings and accepts moves.
// Validation failures go only to this connection; successful moves are
// broadcast to the whole room.
func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	code := NormalizeRoomCode(r.PathValue("code"))
	if err := ValidateRoomCode(code); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // TODO: make environment-specific
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer conn.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()
	sub := &wsSubscriber{conn: conn}

	// The room must exist before we subscribe this connection.
	snap, err := s.directory.Snapshot(ctx, code)
	if err != nil {
		sub.sendError(ctx, err.Error())
		conn.Close(websocket.StatusPolicyViolation, "room not found")
		return
	}

	connectionID := uuid.New().String()
	log.Printf("New subscriber %s for room %s", connectionID, code)

	// Handshake is complete; register for fan-out.
	s.registry.Register(code, sub)
	s.connectionHealth.Track(connectionID, func() {
		conn.Close(websocket.StatusNormalClosure, "idle timeout")
	})
	defer func() {
		s.registry.Unregister(code, sub)
		s.connectionHealth.RemoveConnection(connectionID)
		s.rateLimiter.RemoveConnection(connectionID)
		log.Printf("Subscriber %s left room %s", connectionID, code)
	}()

	if err := sub.send(ctx, ServerMessage{Type: "room_state", Room: &snap}); err != nil {
		log.Printf("Failed to send initial snapshot to %s: %v", connectionID, err)
		return
	}

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			// Normal closure or dropped subscriber; never aborts room state.
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		s.connectionHealth.UpdateActivity(connectionID)
		if !s.rateLimiter.Allow(connectionID) {
			sub.sendError(ctx, "rate limit exceeded, slow down")
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sub.sendError(ctx, "invalid JSON")
			continue
		}

		switch msg.Type {
		case "ping":
			if err := sub.send(ctx, ServerMessage{Type: "pong"}); err != nil {
				log.Printf("Failed to send pong to %s: %v", connectionID, err)
			}

		case "move":
			s.handleWsMove(ctx, sub, code, msg.Data)

		default:
			sub.sendError(ctx, fmt.Sprintf("unknown message type: %s", msg.Type))
		}
	}
}

func (s *Server) handleWsMove(ctx context.Context, sub *wsSubscriber, code string, data json.RawMessage) {
	var req MoveRequest
	if err := json.Unmarshal(data, &req); err != nil || req.PlayerID == "" {
		sub.sendError(ctx, "invalid move payload")
		return
	}

	var event *dots.MoveEvent
	snap, err := s.directory.Update(ctx, code, func(room *dots.Room) error {
		var err error
		event, err = room.ApplyMove(req.PlayerID, req.Edge)
		return err
	})
	if err != nil {
		// Rejections go only to the mover's connection.
		sub.sendError(ctx, err.Error())
		return
	}

	s.broadcastRoom(snap, event)
}
