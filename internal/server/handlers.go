package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"crashcasino/internal/game"
)

const (
	DEFAULT_RESULTS_LIMIT = 20
	MAX_RESULTS_LIMIT     = 100
	STATS_SAMPLE_SIZE     = 1000
)

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"database": fiber.Map{"status": "not configured"},
		"cache":    fiber.Map{"status": "not configured"},
	}
	if s.db != nil {
		health["database"] = s.db.Health()
	}
	if s.cache != nil {
		health["cache"] = s.cache.Health()
	}

	gameStatus := "stopped"
	if s.gameManager.Running() {
		gameStatus = "running"
	}
	health["game"] = fiber.Map{
		"status":            gameStatus,
		"connected_clients": s.gameHub.GetClientCount(),
	}
	return c.JSON(health)
}

func (s *FiberServer) statusHandler(c *fiber.Ctx) error {
	status, err := s.gameManager.GetStatus(c.Query("user_id"))
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": publicMessage(err),
		})
	}
	return c.JSON(status)
}

func (s *FiberServer) placeBetHandler(c *fiber.Ctx) error {
	var req game.BetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := s.placeBet(c.UserContext(), req)
	if err != nil {
		return c.Status(statusFor(err)).JSON(resp)
	}
	return c.JSON(resp)
}

func (s *FiberServer) cashoutHandler(c *fiber.Ctx) error {
	var req game.CashoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := s.cashout(c.UserContext(), req.UserID)
	if err != nil {
		return c.Status(statusFor(err)).JSON(resp)
	}
	return c.JSON(resp)
}

func (s *FiberServer) historyHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"rounds": s.gameManager.History(),
	})
}

func (s *FiberServer) getUserBalanceHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")

	balance, err := s.wallet.Balance(c.UserContext(), userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("balance lookup failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Failed to read balance",
		})
	}

	return c.JSON(fiber.Map{
		"user_id": userID,
		"balance": balance,
	})
}

// setUserBalanceHandler sets a user's balance (for testing/admin)
func (s *FiberServer) setUserBalanceHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")

	var body struct {
		Balance float64 `json:"balance"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := s.wallet.SetBalance(c.UserContext(), userID, body.Balance); err != nil {
		if errors.Is(err, game.ErrNegativeBalance) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		s.logger.Error().Err(err).Str("user_id", userID).Msg("balance update failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Failed to set balance",
		})
	}

	return c.JSON(fiber.Map{
		"user_id": userID,
		"balance": body.Balance,
		"message": "Balance updated successfully",
	})
}

func (s *FiberServer) getUserResultsHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")

	results, err := s.results.RecentResults(c.UserContext(), userID, resultsLimit(c))
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("results lookup failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Failed to load results",
		})
	}
	if results == nil {
		results = []game.GameResult{}
	}

	return c.JSON(fiber.Map{
		"user_id": userID,
		"results": results,
	})
}

// recentResultsHandler is the public feed of settled bets across all players.
func (s *FiberServer) recentResultsHandler(c *fiber.Ctx) error {
	results, err := s.results.RecentResults(c.UserContext(), "", resultsLimit(c))
	if err != nil {
		s.logger.Error().Err(err).Msg("recent results lookup failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Failed to load results",
		})
	}
	if results == nil {
		results = []game.GameResult{}
	}
	return c.JSON(fiber.Map{"results": results})
}

func (s *FiberServer) statsHandler(c *fiber.Ctx) error {
	results, err := s.results.RecentResults(c.UserContext(), "", STATS_SAMPLE_SIZE)
	if err != nil {
		s.logger.Error().Err(err).Msg("stats lookup failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Failed to load statistics",
		})
	}

	stats := summarize(results, s.now())

	var lastMultiplier float64
	if history := s.gameManager.History(); len(history) > 0 {
		lastMultiplier = history[0].CrashPoint
	}
	var roundPlayers int
	if status, err := s.gameManager.GetStatus(""); err == nil {
		roundPlayers = status.Players
	}

	return c.JSON(fiber.Map{
		"total_won_today": stats.wonToday,
		"active_players":  stats.activePlayers,
		"crash": fiber.Map{
			"last_multiplier": lastMultiplier,
			"round_players":   roundPlayers,
			"bets_24h":        stats.bets,
		},
	})
}

type resultStats struct {
	wonToday      float64
	activePlayers int
	bets          int
}

// summarize totals today's winnings (since UTC midnight) and counts the
// players and bets of the last 24 hours.
func summarize(results []game.GameResult, now time.Time) resultStats {
	midnight := now.UTC().Truncate(24 * time.Hour)
	dayAgo := now.Add(-24 * time.Hour)

	won := decimal.Zero
	players := make(map[string]struct{})
	var stats resultStats
	for _, r := range results {
		if r.Outcome == game.OutcomeWin && !r.Timestamp.Before(midnight) {
			won = won.Add(decimal.NewFromFloat(r.Payout))
		}
		if r.Timestamp.After(dayAgo) {
			players[r.ParticipantID] = struct{}{}
			stats.bets++
		}
	}
	stats.wonToday = won.InexactFloat64()
	stats.activePlayers = len(players)
	return stats
}

func resultsLimit(c *fiber.Ctx) int {
	limit := c.QueryInt("limit", DEFAULT_RESULTS_LIMIT)
	if limit <= 0 {
		return DEFAULT_RESULTS_LIMIT
	}
	if limit > MAX_RESULTS_LIMIT {
		return MAX_RESULTS_LIMIT
	}
	return limit
}

func cashoutMessage(res game.CashoutResult) string {
	if res.Outcome == game.OutcomeWin {
		return fmt.Sprintf("Cashed out at %.2fx", res.Multiplier)
	}
	return fmt.Sprintf("Too late, round crashed at %.2fx", res.CrashPoint)
}
