package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Bet struct {
	BetID               string    `json:"bet_id"`
	UserID              string    `json:"user_id"`
	Amount              float64   `json:"amount"`
	AutoCashout         float64   `json:"auto_cashout,omitempty"`
	PlacedAt            time.Time `json:"placed_at"`
	CashedOut           bool      `json:"cashed_out"`
	CashedOutMultiplier float64   `json:"cashed_out_multiplier,omitempty"`
	Payout              float64   `json:"payout,omitempty"`
	CashedOutAt         time.Time `json:"cashed_out_at,omitempty"`
	Settled             bool      `json:"-"`
}

// Ledger holds one round's bets, keyed by participant. A new ledger is
// allocated for every round; callers must hold the manager lock.
type Ledger struct {
	bets  map[string]*Bet
	order []string
}

func newLedger() *Ledger {
	return &Ledger{bets: make(map[string]*Bet)}
}

func (l *Ledger) Get(userID string) (*Bet, bool) {
	b, ok := l.bets[userID]
	return b, ok
}

func (l *Ledger) Len() int {
	return len(l.bets)
}

func (l *Ledger) place(userID string, amount, autoCashout float64, now time.Time) (*Bet, error) {
	if _, exists := l.bets[userID]; exists {
		return nil, ErrDuplicateBet
	}
	bet := &Bet{
		BetID:       uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		AutoCashout: autoCashout,
		PlacedAt:    now,
	}
	l.bets[userID] = bet
	l.order = append(l.order, userID)
	return bet, nil
}

// cashOut marks the bet paid. A cashed-out bet never changes again.
func (l *Ledger) cashOut(bet *Bet, multiplier, payout float64, now time.Time) error {
	if bet.CashedOut || bet.Settled {
		return ErrAlreadyCashedOut
	}
	bet.CashedOut = true
	bet.CashedOutMultiplier = multiplier
	bet.Payout = payout
	bet.CashedOutAt = now
	bet.Settled = true
	return nil
}

// pendingAutoCashouts lists open bets whose target lies below limit and has
// been reached by multiplier, in placement order.
func (l *Ledger) pendingAutoCashouts(multiplier, limit float64) []*Bet {
	var due []*Bet
	for _, id := range l.order {
		bet := l.bets[id]
		if bet.Settled || bet.AutoCashout <= 0 {
			continue
		}
		if bet.AutoCashout < limit && multiplier >= bet.AutoCashout {
			due = append(due, bet)
		}
	}
	return due
}

// sweep settles every bet that never cashed out as a loss and returns them.
// Settled bets are skipped, so a second sweep returns nothing.
func (l *Ledger) sweep() []*Bet {
	var lost []*Bet
	for _, id := range l.order {
		bet := l.bets[id]
		if bet.Settled {
			continue
		}
		bet.Settled = true
		lost = append(lost, bet)
	}
	return lost
}

// Totals returns the staked and paid-out sums of the round.
func (l *Ledger) Totals() (staked, paid float64) {
	s, p := decimal.Zero, decimal.Zero
	for _, bet := range l.bets {
		s = s.Add(decimal.NewFromFloat(bet.Amount))
		if bet.CashedOut {
			p = p.Add(decimal.NewFromFloat(bet.Payout))
		}
	}
	return s.InexactFloat64(), p.InexactFloat64()
}

// Payout is stake × multiplier rounded to cents.
func Payout(stake, multiplier float64) float64 {
	return decimal.NewFromFloat(stake).
		Mul(decimal.NewFromFloat(multiplier)).
		Round(2).
		InexactFloat64()
}
