package game

import (
	"time"
)

type Phase string

const (
	PhaseCountdown Phase = "countdown"
	PhaseActive    Phase = "active"
	PhaseCrashed   Phase = "crashed"
)

type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
)

const GameTypeCrash = "crash"

type BetRequest struct {
	UserID      string  `json:"user_id"`
	Amount      float64 `json:"amount"`
	AutoCashout float64 `json:"auto_cashout,omitempty"`
}

type BetResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	RoundID string  `json:"round_id,omitempty"`
	BetID   string  `json:"bet_id,omitempty"`
	Phase   Phase   `json:"phase,omitempty"`
	Balance float64 `json:"balance,omitempty"`
}

type CashoutRequest struct {
	UserID string `json:"user_id"`
}

// CashoutResponse is the result of a cash-out attempt. Result is "win" when the
// bet was paid or "lose" when the round crashed before the request was served.
type CashoutResponse struct {
	Success    bool    `json:"success"`
	Result     string  `json:"result"`
	Message    string  `json:"message"`
	RoundID    string  `json:"round_id,omitempty"`
	Multiplier float64 `json:"multiplier,omitempty"`
	Payout     float64 `json:"payout"`
	CrashPoint float64 `json:"crash_point,omitempty"`
	Balance    float64 `json:"balance,omitempty"`
}

// Status is a point-in-time view of the global round for one participant.
// CrashPoint is only set once the round has crashed.
type Status struct {
	RoundID           string     `json:"round_id"`
	Phase             Phase      `json:"phase"`
	CurrentMultiplier float64    `json:"current_multiplier"`
	CrashPoint        *float64   `json:"crash_point,omitempty"`
	HasBet            bool       `json:"has_bet"`
	Stake             float64    `json:"stake,omitempty"`
	AutoCashout       float64    `json:"auto_cashout,omitempty"`
	CashedOut         bool       `json:"cashed_out"`
	CashedOutAt       *float64   `json:"cashed_out_at"`
	CountdownStart    time.Time  `json:"countdown_start"`
	ActiveStart       time.Time  `json:"active_start"`
	NextRoundAt       *time.Time `json:"next_round_at,omitempty"`
	ServerTime        time.Time  `json:"server_time"`
	Players           int        `json:"players"`
}

// GameResult is one settled bet as handed to the result log.
type GameResult struct {
	ParticipantID string    `json:"user_id"`
	GameType      string    `json:"game_type"`
	RoundID       string    `json:"round_id"`
	BetID         string    `json:"bet_id"`
	Stake         float64   `json:"bet_amount"`
	Multiplier    float64   `json:"multiplier"`
	Payout        float64   `json:"payout"`
	Outcome       Outcome   `json:"result"`
	Timestamp     time.Time `json:"timestamp"`
}

// RoundSummary describes a finished round for the history feed.
type RoundSummary struct {
	RoundID     string    `json:"round_id"`
	CrashPoint  float64   `json:"crash_point"`
	CrashedAt   time.Time `json:"crashed_at"`
	Players     int       `json:"players"`
	TotalStaked float64   `json:"total_staked"`
	TotalPaid   float64   `json:"total_paid"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type BetPlacedMessage struct {
	RoundID string  `json:"round_id"`
	UserID  string  `json:"user_id"`
	Amount  float64 `json:"amount"`
	BetID   string  `json:"bet_id"`
}

type CashoutMessage struct {
	RoundID    string  `json:"round_id"`
	UserID     string  `json:"user_id"`
	BetID      string  `json:"bet_id"`
	Multiplier float64 `json:"multiplier"`
	Payout     float64 `json:"payout"`
	Auto       bool    `json:"auto,omitempty"`
}

type RoundStartMessage struct {
	RoundID        string    `json:"round_id"`
	CountdownStart time.Time `json:"countdown_start"`
	ActiveStart    time.Time `json:"active_start"`
	TimeLeft       float64   `json:"time_left"`
}

type MultiplierMessage struct {
	RoundID    string  `json:"round_id"`
	Multiplier float64 `json:"multiplier"`
}

type CrashMessage struct {
	RoundID    string    `json:"round_id"`
	CrashPoint float64   `json:"crash_point"`
	CrashedAt  time.Time `json:"crashed_at"`
	Losers     int       `json:"losers"`
}
