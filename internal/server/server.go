package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"dots-server/internal/database"
	"dots-server/internal/dots"
)

type Server struct {
	port             int
	db               database.Service
	registry         *ConnectionRegistry
	directory        *RoomDirectory
	persistence      *PersistenceManager
	rateLimiter      *RateLimiter
	connectionHealth *ConnectionHealth
}

const (
	// Websocket clients may send at most this many messages per window.
	rateLimitMaxRequests = 30
	rateLimitWindow      = 10 * time.Second

	// Connections with no traffic for this long get closed.
	idleConnectionTimeout = 10 * time.Minute
)

func NewServer() (*Server, *http.Server) {
	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}

	// Initialize database
	dbService := database.New()

	// Initialize persistence manager and schema
	persistence := NewPersistenceManager(dbService.Pool())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := persistence.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	directory := NewRoomDirectory(persistence)

	// Load persisted state from database
	if err := loadPersistedState(ctx, persistence, directory); err != nil {
		log.Printf("Warning: Failed to load persisted state: %v", err)
		// Don't fatal - allow server to start with empty state
	}

	srv := &Server{
		port:             port,
		db:               dbService,
		registry:         NewConnectionRegistry(),
		directory:        directory,
		persistence:      persistence,
		rateLimiter:      NewRateLimiter(rateLimitMaxRequests, rateLimitWindow),
		connectionHealth: NewConnectionHealth(),
	}

	// Start background tasks
	go srv.periodicSaveTask()
	go srv.cleanupTask()
	go srv.maintenanceTask()

	// Declare Server config
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", srv.port),
		Handler:      srv.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return srv, httpServer
}

// loadPersistedState restores unfinished rooms from the database
func loadPersistedState(ctx context.Context, pm *PersistenceManager, dir *RoomDirectory) error {
	snaps, err := pm.LoadActiveRooms(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rooms: %w", err)
	}

	dir.Restore(snaps)
	log.Printf("Loaded %d rooms", len(snaps))
	return nil
}

// Shutdown persists every live room before the process exits.
func (s *Server) Shutdown(ctx context.Context) error {
	saved := 0
	s.directory.Each(func(snap dots.Snapshot) {
		if err := s.persistence.SaveRoom(ctx, snap); err != nil {
			log.Printf("Shutdown save failed for room %s: %v", snap.RoomCode, err)
			return
		}
		saved++
	})
	log.Printf("Shutdown: %d rooms persisted", saved)

	s.db.Close()
	return nil
}

// periodicSaveTask runs every 30 seconds and persists all live rooms,
// catching state the per-mutation saves might have missed.
func (s *Server) periodicSaveTask() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)

		savedCount := 0
		s.directory.Each(func(snap dots.Snapshot) {
			if err := s.persistence.SaveRoom(ctx, snap); err != nil {
				log.Printf("Periodic save failed for room %s: %v", snap.RoomCode, err)
				return
			}
			savedCount++
		})
		cancel()

		log.Printf("Periodic save completed: %d rooms persisted", savedCount)
	}
}

// cleanupTask runs every hour and deletes finished rooms older than 24
// hours, so players can still review final scores for a while.
func (s *Server) cleanupTask() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		deleted, err := s.persistence.CleanupOldRooms(ctx, 24*time.Hour)
		cancel()
		if err != nil {
			log.Printf("Cleanup task failed: %v", err)
			continue
		}

		if deleted > 0 {
			log.Printf("Cleanup task: deleted %d old finished rooms", deleted)
		}
	}
}

// maintenanceTask reaps idle websocket connections and stale rate limit
// entries.
func (s *Server) maintenanceTask() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.rateLimiter.Cleanup()
		if closed := s.connectionHealth.CloseInactive(idleConnectionTimeout); closed > 0 {
			log.Printf("Closed %d idle connections", closed)
		}
	}
}
