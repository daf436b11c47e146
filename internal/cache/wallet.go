package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"crashcasino/internal/game"
)

const BALANCE_KEY_PREFIX = "crash:balance:"

// Balances are stored as integer cents. A missing key means the user has the
// starting balance.
var debitScript = redis.NewScript(`
local bal = redis.call('GET', KEYS[1])
if not bal then
	bal = ARGV[2]
end
bal = tonumber(bal)
local amount = tonumber(ARGV[1])
if bal < amount then
	return {0, bal}
end
bal = bal - amount
redis.call('SET', KEYS[1], bal)
return {1, bal}
`)

// Wallet keeps player balances in Redis so they outlive the process.
type Wallet struct {
	client        *redis.Client
	prefix        string
	startingCents int64
}

func NewWallet(client *redis.Client, startingBalance float64) *Wallet {
	return &Wallet{
		client:        client,
		prefix:        BALANCE_KEY_PREFIX,
		startingCents: toCents(startingBalance),
	}
}

func (w *Wallet) key(userID string) string {
	return w.prefix + userID
}

// Debit removes amount atomically, refusing when the balance is too low.
func (w *Wallet) Debit(ctx context.Context, userID string, amount float64) (float64, error) {
	res, err := debitScript.Run(ctx, w.client, []string{w.key(userID)}, toCents(amount), w.startingCents).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("debit %s: %w", userID, err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("debit %s: unexpected script reply %v", userID, res)
	}
	balance := fromCents(res[1])
	if res[0] == 0 {
		return balance, game.ErrInsufficientFunds
	}
	return balance, nil
}

func (w *Wallet) Credit(ctx context.Context, userID string, amount float64) (float64, error) {
	key := w.key(userID)

	var incr *redis.IntCmd
	_, err := w.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, w.startingCents, 0)
		incr = pipe.IncrBy(ctx, key, toCents(amount))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("credit %s: %w", userID, err)
	}
	return fromCents(incr.Val()), nil
}

func (w *Wallet) Balance(ctx context.Context, userID string) (float64, error) {
	cents, err := w.client.Get(ctx, w.key(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return fromCents(w.startingCents), nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance %s: %w", userID, err)
	}
	return fromCents(cents), nil
}

func (w *Wallet) SetBalance(ctx context.Context, userID string, amount float64) error {
	if amount < 0 {
		return game.ErrNegativeBalance
	}
	if err := w.client.Set(ctx, w.key(userID), toCents(amount), 0).Err(); err != nil {
		return fmt.Errorf("set balance %s: %w", userID, err)
	}
	return nil
}

func toCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
}

func fromCents(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}
