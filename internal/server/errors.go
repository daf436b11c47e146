package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"crashcasino/internal/game"
)

// statusFor maps a game error onto an HTTP status code.
func statusFor(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, game.ErrNoBet):
		return fiber.StatusNotFound
	case errors.Is(err, game.ErrSettlement), errors.Is(err, game.ErrNotRunning):
		return fiber.StatusServiceUnavailable
	case game.IsRejection(err):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

// publicMessage hides dependency details from the caller.
func publicMessage(err error) string {
	switch statusFor(err) {
	case fiber.StatusServiceUnavailable:
		return "Service temporarily unavailable, please retry"
	case fiber.StatusInternalServerError:
		return "Internal server error"
	}
	return err.Error()
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": message})
}
