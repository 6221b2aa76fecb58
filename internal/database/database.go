package database

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
)

// Service wraps the Postgres connection pool consumed by the server.
type Service interface {
	// Health reports connectivity status for the health endpoint.
	Health(ctx context.Context) map[string]string

	// Pool exposes the underlying pgx pool for the persistence manager.
	Pool() *pgxpool.Pool

	Close()
}

type service struct {
	pool *pgxpool.Pool
}

var dbURL = os.Getenv("DATABASE_URL")

func New() Service {
	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		log.Fatalf("Failed to create database pool: %v", err)
	}
	return &service{pool: pool}
}

func (s *service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.pool.Ping(ctx); err != nil {
		return map[string]string{
			"status": "down",
			"error":  err.Error(),
		}
	}

	stats := s.pool.Stat()
	return map[string]string{
		"status":            "up",
		"total_connections": strconv.Itoa(int(stats.TotalConns())),
		"idle_connections":  strconv.Itoa(int(stats.IdleConns())),
	}
}

func (s *service) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *service) Close() {
	s.pool.Close()
}
