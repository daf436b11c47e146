package server

import (
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Use(recover.New())
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))
	s.App.Use(limiter.New(limiter.Config{
		Max:        s.cfg.RateLimitMax,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return unlimitedPath(c.Path())
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests",
			})
		},
	}))

	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")

	crash := api.Group("/crash")
	crash.Get("/status", s.statusHandler)
	crash.Post("/bet", s.placeBetHandler)
	crash.Post("/cashout", s.cashoutHandler)
	crash.Get("/history", s.historyHandler)
	crash.Get("/results", s.recentResultsHandler)
	crash.Get("/stats", s.statsHandler)

	api.Get("/user/:userId/balance", s.getUserBalanceHandler)
	api.Post("/user/:userId/balance", s.setUserBalanceHandler)
	api.Get("/user/:userId/results", s.getUserResultsHandler)

	s.App.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}

// unlimitedPath lists the routes the limiter skips: status is polled every
// 50-100ms, and a throttled cash-out would turn into a swept loss.
func unlimitedPath(path string) bool {
	switch path {
	case "/health", "/api/v1/crash/status", "/api/v1/crash/cashout":
		return true
	}
	return strings.HasPrefix(path, "/ws")
}
