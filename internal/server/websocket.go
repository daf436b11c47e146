package server

import (
	"context"
	"encoding/json"

	"github.com/gofiber/contrib/websocket"

	"crashcasino/internal/game"
)

type clientCommand struct {
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	AutoCashout float64 `json:"auto_cashout"`
}

func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	userID := conn.Query("user_id", "")
	logger := s.logger.With().Str("user_id", userID).Logger()

	client := s.gameHub.RegisterClient(conn, userID)
	defer s.gameHub.UnregisterClient(client)

	if status, err := s.gameManager.GetStatus(userID); err == nil {
		client.Send(game.WSMessage{Type: "status", Data: status})
	}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			logger.Debug().Err(err).Msg("websocket closed")
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		reply, ok := s.handleCommand(context.Background(), userID, message)
		if !ok {
			continue
		}
		if err := client.Send(reply); err != nil {
			logger.Debug().Err(err).Msg("reply dropped")
		}
	}
}

// handleCommand executes one client command and returns the reply to send.
// Unparseable or unknown messages are ignored.
func (s *FiberServer) handleCommand(ctx context.Context, userID string, raw []byte) (game.WSMessage, bool) {
	var cmd clientCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return game.WSMessage{}, false
	}

	switch cmd.Type {
	case "place_bet":
		resp, _ := s.placeBet(ctx, game.BetRequest{
			UserID:      userID,
			Amount:      cmd.Amount,
			AutoCashout: cmd.AutoCashout,
		})
		return game.WSMessage{Type: "bet_result", Data: resp}, true

	case "cashout":
		resp, _ := s.cashout(ctx, userID)
		return game.WSMessage{Type: "cashout_result", Data: resp}, true

	case "status":
		status, err := s.gameManager.GetStatus(userID)
		if err != nil {
			return game.WSMessage{Type: "error", Data: publicMessage(err)}, true
		}
		return game.WSMessage{Type: "status", Data: status}, true

	case "ping":
		return game.WSMessage{Type: "pong"}, true
	}
	return game.WSMessage{}, false
}
