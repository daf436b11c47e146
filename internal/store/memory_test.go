package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"crashcasino/internal/game"
)

func TestMemory_DebitCredit(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(100)

	bal, err := s.Debit(ctx, "alice", 30.10)
	if err != nil {
		t.Fatalf("Debit() error = %v", err)
	}
	if bal != 69.90 {
		t.Errorf("Debit() balance = %v, want 69.90", bal)
	}

	bal, err = s.Credit(ctx, "alice", 0.20)
	if err != nil {
		t.Fatalf("Credit() error = %v", err)
	}
	if bal != 70.10 {
		t.Errorf("Credit() balance = %v, want 70.10", bal)
	}
}

func TestMemory_DebitInsufficient(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(10)

	bal, err := s.Debit(ctx, "bob", 10.01)
	if !errors.Is(err, game.ErrInsufficientFunds) {
		t.Fatalf("Debit() error = %v, want ErrInsufficientFunds", err)
	}
	if bal != 10 {
		t.Errorf("balance after rejected debit = %v, want 10", bal)
	}

	if got, _ := s.Balance(ctx, "bob"); got != 10 {
		t.Errorf("Balance() = %v, want 10", got)
	}
}

func TestMemory_SetBalance(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(0)

	if err := s.SetBalance(ctx, "carol", -1); !errors.Is(err, game.ErrNegativeBalance) {
		t.Errorf("SetBalance(-1) error = %v, want ErrNegativeBalance", err)
	}
	if err := s.SetBalance(ctx, "carol", 1247.50); err != nil {
		t.Fatalf("SetBalance() error = %v", err)
	}
	if got, _ := s.Balance(ctx, "carol"); got != 1247.50 {
		t.Errorf("Balance() = %v, want 1247.50", got)
	}
}

func TestMemory_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Debit(ctx, "dave", 10); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 10 {
		t.Errorf("accepted debits = %d, want 10", accepted)
	}
	if got, _ := s.Balance(ctx, "dave"); got != 0 {
		t.Errorf("Balance() = %v, want 0", got)
	}
}

func TestMemory_Results(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(0)
	now := time.Now()

	results := []game.GameResult{
		{ParticipantID: "alice", BetID: "b1", Outcome: game.OutcomeLoss, Timestamp: now},
		{ParticipantID: "bob", BetID: "b2", Outcome: game.OutcomeWin, Timestamp: now},
		{ParticipantID: "alice", BetID: "b3", Outcome: game.OutcomeWin, Timestamp: now},
	}
	for _, r := range results {
		if err := s.RecordResult(ctx, r); err != nil {
			t.Fatalf("RecordResult() error = %v", err)
		}
	}

	t.Run("duplicate bet is ignored", func(t *testing.T) {
		if err := s.RecordResult(ctx, results[0]); err != nil {
			t.Fatalf("RecordResult() error = %v", err)
		}
		all, _ := s.RecentResults(ctx, "", 0)
		if len(all) != 3 {
			t.Errorf("len(results) = %d, want 3", len(all))
		}
	})

	t.Run("filter by user newest first", func(t *testing.T) {
		got, _ := s.RecentResults(ctx, "alice", 10)
		if len(got) != 2 {
			t.Fatalf("len(results) = %d, want 2", len(got))
		}
		if got[0].BetID != "b3" || got[1].BetID != "b1" {
			t.Errorf("order = %s,%s, want b3,b1", got[0].BetID, got[1].BetID)
		}
	})

	t.Run("limit", func(t *testing.T) {
		got, _ := s.RecentResults(ctx, "", 1)
		if len(got) != 1 || got[0].BetID != "b3" {
			t.Errorf("RecentResults(limit 1) = %+v", got)
		}
	})
}

func TestMemory_RecordResultRetries(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(0)

	for i := 0; i < 1000; i++ {
		res := game.GameResult{ParticipantID: "alice", BetID: fmt.Sprintf("bet-%d", i)}
		for attempt := 0; attempt < 3; attempt++ {
			if err := s.RecordResult(ctx, res); err != nil {
				t.Fatalf("RecordResult() error = %v", err)
			}
		}
	}
	// Results without a bet id are never collapsed.
	s.RecordResult(ctx, game.GameResult{ParticipantID: "bob"})
	s.RecordResult(ctx, game.GameResult{ParticipantID: "bob"})

	if got, _ := s.RecentResults(ctx, "alice", 0); len(got) != 1000 {
		t.Errorf("alice results = %d, want 1000", len(got))
	}
	if got, _ := s.RecentResults(ctx, "bob", 0); len(got) != 2 {
		t.Errorf("bob results = %d, want 2", len(got))
	}
}
