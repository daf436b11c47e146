package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var errUnavailable = errors.New("store unavailable")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixedOutcomes struct {
	mu     sync.Mutex
	points []float64
	next   int
}

func (f *fixedOutcomes) Next() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := f.points[f.next%len(f.points)]
	f.next++
	return cp
}

type testWallet struct {
	mu         sync.Mutex
	balances   map[string]decimal.Decimal
	failDebit  bool
	failCredit bool
	credits    int
}

func newTestWallet(balances map[string]float64) *testWallet {
	w := &testWallet{balances: make(map[string]decimal.Decimal)}
	for id, bal := range balances {
		w.balances[id] = decimal.NewFromFloat(bal)
	}
	return w
}

func (w *testWallet) Debit(_ context.Context, userID string, amount float64) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failDebit {
		return 0, errUnavailable
	}
	bal := w.balances[userID]
	amt := decimal.NewFromFloat(amount)
	if bal.LessThan(amt) {
		return bal.InexactFloat64(), ErrInsufficientFunds
	}
	w.balances[userID] = bal.Sub(amt)
	return w.balances[userID].InexactFloat64(), nil
}

func (w *testWallet) Credit(_ context.Context, userID string, amount float64) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failCredit {
		return 0, errUnavailable
	}
	w.credits++
	w.balances[userID] = w.balances[userID].Add(decimal.NewFromFloat(amount))
	return w.balances[userID].InexactFloat64(), nil
}

func (w *testWallet) Balance(_ context.Context, userID string) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[userID].InexactFloat64(), nil
}

func (w *testWallet) SetBalance(_ context.Context, userID string, amount float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[userID] = decimal.NewFromFloat(amount)
	return nil
}

func (w *testWallet) setFailCredit(fail bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failCredit = fail
}

func (w *testWallet) balance(userID string) float64 {
	bal, _ := w.Balance(context.Background(), userID)
	return bal
}

type testResults struct {
	mu      sync.Mutex
	records []GameResult
	failFor map[string]bool
}

func newTestResults() *testResults {
	return &testResults{failFor: make(map[string]bool)}
}

func (r *testResults) RecordResult(_ context.Context, res GameResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[res.ParticipantID] {
		return errUnavailable
	}
	r.records = append(r.records, res)
	return nil
}

func (r *testResults) setFail(userID string, fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failFor[userID] = fail
}

func (r *testResults) forUser(userID string) []GameResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []GameResult
	for _, rec := range r.records {
		if rec.ParticipantID == userID {
			out = append(out, rec)
		}
	}
	return out
}

func (r *testResults) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []WSMessage
}

func (b *recordingBroadcaster) Broadcast(message interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if msg, ok := message.(WSMessage); ok {
		b.messages = append(b.messages, msg)
	}
}

func (b *recordingBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.messages))
	for _, msg := range b.messages {
		out = append(out, msg.Type)
	}
	return out
}

type harness struct {
	clock   *fakeClock
	wallet  *testWallet
	results *testResults
	hub     *recordingBroadcaster
	manager *Manager
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CountdownDuration = 5 * time.Second
	cfg.CooldownDuration = 3 * time.Second
	return cfg
}

// newHarness builds a manager with an open first round whose crash points
// cycle through points.
func newHarness(t *testing.T, balances map[string]float64, points ...float64) *harness {
	t.Helper()
	if len(points) == 0 {
		points = []float64{2.00}
	}
	h := &harness{
		clock:   newFakeClock(),
		wallet:  newTestWallet(balances),
		results: newTestResults(),
		hub:     &recordingBroadcaster{},
	}
	h.manager = NewManager(testConfig(), h.wallet, h.results,
		WithClock(h.clock.Now),
		WithOutcomes(&fixedOutcomes{points: points}),
		WithBroadcaster(h.hub),
	)
	h.manager.tick()
	return h
}

// advance moves the clock and runs one scheduler tick.
func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.manager.tick()
}

func (h *harness) status(t *testing.T, userID string) Status {
	t.Helper()
	st, err := h.manager.GetStatus(userID)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	return st
}
