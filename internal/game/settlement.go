package game

import "context"

// Wallet owns participant balances. Debit must fail with ErrInsufficientFunds
// instead of letting a balance go negative.
type Wallet interface {
	Debit(ctx context.Context, userID string, amount float64) (float64, error)
	Credit(ctx context.Context, userID string, amount float64) (float64, error)
	Balance(ctx context.Context, userID string) (float64, error)
	SetBalance(ctx context.Context, userID string, amount float64) error
}

// ResultRecorder is the append-only game result log.
type ResultRecorder interface {
	RecordResult(ctx context.Context, result GameResult) error
}

type ResultReader interface {
	RecentResults(ctx context.Context, userID string, limit int) ([]GameResult, error)
}

// Broadcaster fans round events out to connected clients.
type Broadcaster interface {
	Broadcast(message interface{})
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(interface{}) {}
