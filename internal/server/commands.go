package server

import (
	"context"
	"errors"

	"crashcasino/internal/game"
)

// placeBet runs a bet through the manager and shapes the reply shared by the
// HTTP and websocket transports.
func (s *FiberServer) placeBet(ctx context.Context, req game.BetRequest) (game.BetResponse, error) {
	receipt, err := s.gameManager.PlaceBet(ctx, req)
	if err != nil {
		resp := game.BetResponse{
			Success: false,
			Message: publicMessage(err),
		}
		if errors.Is(err, game.ErrInsufficientFunds) {
			resp.Balance = receipt.Balance
		}
		if statusFor(err) >= 500 {
			s.logger.Error().Err(err).Str("user_id", req.UserID).Msg("bet failed")
		}
		return resp, err
	}

	return game.BetResponse{
		Success: true,
		Message: "Bet placed",
		RoundID: receipt.RoundID,
		BetID:   receipt.BetID,
		Phase:   receipt.Phase,
		Balance: receipt.Balance,
	}, nil
}

// cashout reports a race lost to the crash as a normal "lose" result.
func (s *FiberServer) cashout(ctx context.Context, userID string) (game.CashoutResponse, error) {
	res, err := s.gameManager.Cashout(ctx, userID)
	if err != nil {
		if statusFor(err) >= 500 {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("cashout failed")
		}
		return game.CashoutResponse{
			Success: false,
			Message: publicMessage(err),
			RoundID: res.RoundID,
		}, err
	}

	resp := game.CashoutResponse{
		Success:    res.Outcome == game.OutcomeWin,
		Result:     "win",
		Message:    cashoutMessage(res),
		RoundID:    res.RoundID,
		Multiplier: res.Multiplier,
		Payout:     res.Payout,
		CrashPoint: res.CrashPoint,
		Balance:    res.Balance,
	}
	if res.Outcome != game.OutcomeWin {
		resp.Result = "lose"
	}
	return resp, nil
}
