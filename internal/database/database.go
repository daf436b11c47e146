package database

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"
)

// Service is the Postgres connection pool backing the game result log.
type Service interface {
	Health() map[string]string
	Pool() *pgxpool.Pool
	Close() error
}

type service struct {
	pool *pgxpool.Pool
}

var (
	database = os.Getenv("BLUEPRINT_DB_DATABASE")
	password = os.Getenv("BLUEPRINT_DB_PASSWORD")
	username = os.Getenv("BLUEPRINT_DB_USERNAME")
	port     = os.Getenv("BLUEPRINT_DB_PORT")
	host     = os.Getenv("BLUEPRINT_DB_HOST")
	schema   = os.Getenv("BLUEPRINT_DB_SCHEMA")
)

// DSN builds the connection string from the BLUEPRINT_DB_* settings.
func DSN() string {
	s := schema
	if s == "" {
		s = "public"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		username, password, host, port, database, s)
}

// Configured reports whether a database host has been set at all.
func Configured() bool {
	return host != "" && database != ""
}

func New(ctx context.Context) (Service, error) {
	cfg, err := pgxpool.ParseConfig(DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s:%s: %w", host, port, err)
	}

	log.Info().Str("host", host).Str("database", database).Msg("postgres connected")
	return &service{pool: pool}, nil
}

func (s *service) Pool() *pgxpool.Pool {
	return s.pool
}

// Health checks the pool and reports its statistics.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	st := s.pool.Stat()
	stats["total_conns"] = strconv.Itoa(int(st.TotalConns()))
	stats["idle_conns"] = strconv.Itoa(int(st.IdleConns()))
	stats["acquired_conns"] = strconv.Itoa(int(st.AcquiredConns()))
	stats["acquire_count"] = strconv.FormatInt(st.AcquireCount(), 10)
	stats["empty_acquire_count"] = strconv.FormatInt(st.EmptyAcquireCount(), 10)
	stats["acquire_duration"] = st.AcquireDuration().String()

	if st.EmptyAcquireCount() > 1000 {
		stats["message"] = "The database is experiencing heavy load."
	}
	if st.TotalConns() >= st.MaxConns() {
		stats["message"] = "The pool is at its connection limit."
	}

	return stats
}

func (s *service) Close() error {
	log.Info().Str("database", database).Msg("disconnected from database")
	s.pool.Close()
	return nil
}
