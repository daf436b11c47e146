package store

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"crashcasino/internal/game"
)

// Memory keeps balances and the game result log in process memory. It serves
// as the settlement sink when Redis or Postgres are not configured.
type Memory struct {
	balances       map[string]decimal.Decimal
	results        []game.GameResult
	recorded       map[string]struct{}
	startingAmount decimal.Decimal
	mu             sync.RWMutex
}

// NewMemory returns a store where unknown users start with startingBalance.
func NewMemory(startingBalance float64) *Memory {
	return &Memory{
		balances:       make(map[string]decimal.Decimal),
		recorded:       make(map[string]struct{}),
		startingAmount: decimal.NewFromFloat(startingBalance),
	}
}

func (s *Memory) balanceLocked(userID string) decimal.Decimal {
	if bal, ok := s.balances[userID]; ok {
		return bal
	}
	return s.startingAmount
}

func (s *Memory) Debit(_ context.Context, userID string, amount float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bal := s.balanceLocked(userID)
	amt := decimal.NewFromFloat(amount)
	if bal.LessThan(amt) {
		return bal.InexactFloat64(), game.ErrInsufficientFunds
	}
	bal = bal.Sub(amt)
	s.balances[userID] = bal
	return bal.InexactFloat64(), nil
}

func (s *Memory) Credit(_ context.Context, userID string, amount float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bal := s.balanceLocked(userID).Add(decimal.NewFromFloat(amount))
	s.balances[userID] = bal
	return bal.InexactFloat64(), nil
}

func (s *Memory) Balance(_ context.Context, userID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balanceLocked(userID).InexactFloat64(), nil
}

func (s *Memory) SetBalance(_ context.Context, userID string, amount float64) error {
	if amount < 0 {
		return game.ErrNegativeBalance
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] = decimal.NewFromFloat(amount)
	return nil
}

// RecordResult appends to the log. A bet is recorded at most once, so a
// retried write is harmless.
func (s *Memory) RecordResult(_ context.Context, result game.GameResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if result.BetID != "" {
		if _, seen := s.recorded[result.BetID]; seen {
			return nil
		}
		s.recorded[result.BetID] = struct{}{}
	}
	s.results = append(s.results, result)
	return nil
}

// RecentResults returns up to limit results, newest first. An empty userID
// returns results across all users.
func (s *Memory) RecentResults(_ context.Context, userID string, limit int) ([]game.GameResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []game.GameResult
	for i := len(s.results) - 1; i >= 0; i-- {
		if userID != "" && s.results[i].ParticipantID != userID {
			continue
		}
		out = append(out, s.results[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
