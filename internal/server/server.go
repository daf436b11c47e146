package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"crashcasino/internal/cache"
	"crashcasino/internal/config"
	"crashcasino/internal/database"
	"crashcasino/internal/game"
	"crashcasino/internal/store"
)

// ResultLog records settled bets and serves them back to players.
type ResultLog interface {
	game.ResultRecorder
	game.ResultReader
}

type FiberServer struct {
	*fiber.App

	cfg    config.Config
	logger zerolog.Logger
	now    func() time.Time

	db      database.Service
	cache   cache.Service
	wallet  game.Wallet
	results ResultLog

	gameManager *game.Manager
	gameHub     *game.Hub
}

// Deps are the settlement sinks the server runs on. Nil services mean the
// corresponding infrastructure is not in use.
type Deps struct {
	DB       database.Service
	Cache    cache.Service
	Wallet   game.Wallet
	Results  ResultLog
	Outcomes game.CrashPointSource
	Clock    func() time.Time
}

// New connects to Redis and Postgres. Either one being unreachable moves that
// concern onto the in-process store so the game still runs.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) *FiberServer {
	memory := store.NewMemory(cfg.Game.StartingBalance)
	deps := Deps{Wallet: memory, Results: memory}

	redisService, err := cache.New(ctx, cache.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("balances kept in memory")
	} else {
		deps.Cache = redisService
		deps.Wallet = cache.NewWallet(redisService.GetClient(), cfg.Game.StartingBalance)
	}

	if database.Configured() {
		db, err := database.New(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("game results kept in memory")
		} else if err := database.MigratePool(db.Pool(), cfg.MigrationsPath); err != nil {
			logger.Error().Err(err).Msg("migrations failed, game results kept in memory")
			db.Close()
		} else {
			deps.DB = db
			deps.Results = database.NewResultStore(db.Pool())
		}
	} else {
		logger.Info().Msg("no database configured, game results kept in memory")
	}

	return NewWithDeps(cfg, logger, deps)
}

// NewWithDeps wires the game and the HTTP app without touching the network.
func NewWithDeps(cfg config.Config, logger zerolog.Logger, deps Deps) *FiberServer {
	hub := game.NewHub(logger.With().Str("component", "hub").Logger())

	outcomes := deps.Outcomes
	if outcomes == nil {
		outcomes = game.NewOutcomeGenerator(cfg.Game.Rate, cfg.Game.Ceiling)
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	opts := []game.Option{
		game.WithClock(now),
		game.WithOutcomes(outcomes),
		game.WithBroadcaster(hub),
		game.WithLogger(logger.With().Str("component", "game").Logger()),
	}
	manager := game.NewManager(cfg.Game.Manager(), deps.Wallet, deps.Results, opts...)

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "crashcasino",
			AppName:       "crashcasino",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
			ErrorHandler:  errorHandler,
		}),

		cfg:         cfg,
		logger:      logger,
		now:         now,
		db:          deps.DB,
		cache:       deps.Cache,
		wallet:      deps.Wallet,
		results:     deps.Results,
		gameManager: manager,
		gameHub:     hub,
	}

	server.RegisterFiberRoutes()
	return server
}

// Start launches the hub and the round scheduler.
func (s *FiberServer) Start() {
	go s.gameHub.Run()
	s.gameManager.Start()
	s.logger.Info().Msg("game manager started")
}

// Shutdown stops accepting requests, halts the game and closes connections.
func (s *FiberServer) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down")

	err := s.App.ShutdownWithContext(ctx)

	s.gameManager.Stop()
	s.gameHub.Stop()

	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	return err
}

func (s *FiberServer) Manager() *game.Manager {
	return s.gameManager
}
