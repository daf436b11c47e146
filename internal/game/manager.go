package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	TICK_INTERVAL       = 50 * time.Millisecond
	BETTING_TIME        = 5 * time.Second
	COOLDOWN_TIME       = 3 * time.Second
	MAX_BET_AMOUNT      = 10000.0
	SETTLEMENT_TIMEOUT  = 2 * time.Second
	HISTORY_SIZE        = 20
	MAX_RECORD_ATTEMPTS = 5
)

type Config struct {
	CountdownDuration time.Duration
	CooldownDuration  time.Duration
	TickInterval      time.Duration
	Curve             Curve
	// MinBet and MaxBet bound a stake; zero disables the bound.
	MinBet            float64
	MaxBet            float64
	SettlementTimeout time.Duration
	HistorySize       int
	MaxRecordAttempts int
}

func DefaultConfig() Config {
	return Config{
		CountdownDuration: BETTING_TIME,
		CooldownDuration:  COOLDOWN_TIME,
		TickInterval:      TICK_INTERVAL,
		Curve:             DefaultCurve(),
		MaxBet:            MAX_BET_AMOUNT,
		SettlementTimeout: SETTLEMENT_TIMEOUT,
		HistorySize:       HISTORY_SIZE,
		MaxRecordAttempts: MAX_RECORD_ATTEMPTS,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.CountdownDuration <= 0 {
		c.CountdownDuration = def.CountdownDuration
	}
	if c.CooldownDuration < 0 {
		c.CooldownDuration = def.CooldownDuration
	}
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.Curve.Step <= 0 {
		c.Curve.Step = def.Curve.Step
	}
	if c.Curve.Growth <= 0 {
		c.Curve.Growth = def.Curve.Growth
	}
	if c.Curve.Ceiling < MIN_MULTIPLIER {
		c.Curve.Ceiling = def.Curve.Ceiling
	}
	if c.SettlementTimeout <= 0 {
		c.SettlementTimeout = def.SettlementTimeout
	}
	if c.HistorySize <= 0 {
		c.HistorySize = def.HistorySize
	}
	if c.MaxRecordAttempts <= 0 {
		c.MaxRecordAttempts = def.MaxRecordAttempts
	}
	return c
}

type BetReceipt struct {
	RoundID string
	BetID   string
	Phase   Phase
	Balance float64
}

type CashoutResult struct {
	RoundID    string
	Outcome    Outcome
	Multiplier float64
	Payout     float64
	CrashPoint float64
	Balance    float64
}

type pendingResult struct {
	result   GameResult
	attempts int
}

// Manager runs the global crash round. A single lock serializes bet
// placement, cash-out, phase transitions and the crash sweep, so a bet is
// either paid by a cash-out or lost by the sweep, never both.
type Manager struct {
	cfg      Config
	wallet   Wallet
	results  ResultRecorder
	outcomes CrashPointSource
	hub      Broadcaster
	logger   zerolog.Logger
	now      func() time.Time

	stateMutex   sync.RWMutex
	currentRound *Round
	roundSeq     uint64
	history      []RoundSummary

	retryMutex sync.Mutex
	retries    []pendingResult

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stopChan  chan struct{}
	done      chan struct{}
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithOutcomes(src CrashPointSource) Option {
	return func(m *Manager) { m.outcomes = src }
}

func WithBroadcaster(b Broadcaster) Option {
	return func(m *Manager) {
		if b != nil {
			m.hub = b
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func NewManager(cfg Config, wallet Wallet, results ResultRecorder, opts ...Option) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg:      cfg,
		wallet:   wallet,
		results:  results,
		hub:      nopBroadcaster{},
		logger:   zerolog.Nop(),
		now:      time.Now,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.outcomes == nil {
		m.outcomes = NewOutcomeGenerator(DEFAULT_CRASH_RATE, cfg.Curve.Ceiling)
	}
	return m
}

// Start opens the first round and runs the scheduler until Stop.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		m.stateMutex.Lock()
		if m.currentRound == nil {
			m.currentRound = m.openRound(m.now())
		}
		m.stateMutex.Unlock()

		m.started.Store(true)
		go m.gameLoop()
	})
}

// Stop halts the scheduler and waits for the loop to exit.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	if m.started.Load() {
		<-m.done
	}
}

func (m *Manager) Running() bool {
	if !m.started.Load() {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

func (m *Manager) gameLoop() {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			m.logger.Info().Msg("game loop stopped")
			return
		case <-ticker.C:
			m.safeTick()
		}
	}
}

func (m *Manager) safeTick() {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Msg("tick panicked")
		}
	}()
	m.tick()
}

// tick advances the current round once. Result records are written after the
// lock is released; failed writes from earlier ticks are retried first.
func (m *Manager) tick() {
	m.retryResults()

	records := m.advance(m.now())
	for _, rec := range records {
		m.record(rec)
	}
}

func (m *Manager) advance(now time.Time) []GameResult {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()

	round := m.currentRound
	if round == nil {
		m.currentRound = m.openRound(now)
		return nil
	}

	if round.activate(now) {
		m.logger.Info().Str("round_id", round.ID).Int("players", round.ledger.Len()).Msg("round running")
		m.hub.Broadcast(WSMessage{
			Type: "round_running",
			Data: MultiplierMessage{RoundID: round.ID, Multiplier: MIN_MULTIPLIER},
		})
	}

	var records []GameResult
	switch round.Phase() {
	case PhaseActive:
		records = append(records, m.processAutoCashouts(round, now)...)
		if round.crash(now, m.cfg.CooldownDuration) {
			records = append(records, m.processRoundEnd(round)...)
			break
		}
		m.hub.Broadcast(WSMessage{
			Type: "update",
			Data: MultiplierMessage{RoundID: round.ID, Multiplier: round.MultiplierAt(now)},
		})
	case PhaseCrashed:
		if !now.Before(round.NextRoundAt) {
			m.currentRound = m.openRound(now)
		}
	}
	return records
}

func (m *Manager) openRound(now time.Time) *Round {
	m.roundSeq++
	round := newRound(m.roundSeq, m.outcomes.Next(), now, m.cfg.CountdownDuration, m.cfg.Curve)

	m.logger.Info().Str("round_id", round.ID).Time("active_start", round.ActiveStart).Msg("round open for bets")
	m.logger.Debug().Str("round_id", round.ID).Float64("crash_point", round.CrashPoint).Msg("crash point drawn")

	m.hub.Broadcast(WSMessage{
		Type: "round_start",
		Data: RoundStartMessage{
			RoundID:        round.ID,
			CountdownStart: round.CountdownStart,
			ActiveStart:    round.ActiveStart,
			TimeLeft:       m.cfg.CountdownDuration.Seconds(),
		},
	})
	return round
}

// processAutoCashouts pays every open bet whose target was reached before the
// crash point, at exactly the target multiplier.
func (m *Manager) processAutoCashouts(round *Round, now time.Time) []GameResult {
	due := round.ledger.pendingAutoCashouts(round.MultiplierAt(now), round.CrashPoint)
	if len(due) == 0 {
		return nil
	}

	var records []GameResult
	for _, bet := range due {
		payout := Payout(bet.Amount, bet.AutoCashout)

		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SettlementTimeout)
		_, err := m.wallet.Credit(ctx, bet.UserID, payout)
		cancel()
		if err != nil {
			m.logger.Warn().Err(err).Str("round_id", round.ID).Str("user_id", bet.UserID).Msg("auto cashout credit failed")
			continue
		}

		reachedAt := round.ReachedAt(bet.AutoCashout)
		if err := round.ledger.cashOut(bet, bet.AutoCashout, payout, reachedAt); err != nil {
			continue
		}
		m.hub.Broadcast(WSMessage{
			Type: "cashout",
			Data: CashoutMessage{
				RoundID:    round.ID,
				UserID:     bet.UserID,
				BetID:      bet.BetID,
				Multiplier: bet.AutoCashout,
				Payout:     payout,
				Auto:       true,
			},
		})
		m.logger.Info().Str("round_id", round.ID).Str("user_id", bet.UserID).
			Float64("multiplier", bet.AutoCashout).Float64("payout", payout).Msg("auto cashout")
		records = append(records, resultFor(round, bet, OutcomeWin, reachedAt))
	}
	return records
}

// processRoundEnd sweeps the ledger after the crash and files the round in
// the history.
func (m *Manager) processRoundEnd(round *Round) []GameResult {
	lost := round.ledger.sweep()

	records := make([]GameResult, 0, len(lost))
	for _, bet := range lost {
		records = append(records, resultFor(round, bet, OutcomeLoss, round.CrashedAt))
	}

	staked, paid := round.ledger.Totals()
	summary := RoundSummary{
		RoundID:     round.ID,
		CrashPoint:  round.CrashPoint,
		CrashedAt:   round.CrashedAt,
		Players:     round.ledger.Len(),
		TotalStaked: staked,
		TotalPaid:   paid,
	}
	m.history = append([]RoundSummary{summary}, m.history...)
	if len(m.history) > m.cfg.HistorySize {
		m.history = m.history[:m.cfg.HistorySize]
	}

	m.hub.Broadcast(WSMessage{
		Type: "crash",
		Data: CrashMessage{
			RoundID:    round.ID,
			CrashPoint: round.CrashPoint,
			CrashedAt:  round.CrashedAt,
			Losers:     len(lost),
		},
	})
	m.logger.Info().Str("round_id", round.ID).Float64("crash_point", round.CrashPoint).
		Int("players", summary.Players).Int("losers", len(lost)).
		Float64("staked", staked).Float64("paid", paid).Msg("round crashed")
	return records
}

func resultFor(round *Round, bet *Bet, outcome Outcome, at time.Time) GameResult {
	res := GameResult{
		ParticipantID: bet.UserID,
		GameType:      GameTypeCrash,
		RoundID:       round.ID,
		BetID:         bet.BetID,
		Stake:         bet.Amount,
		Outcome:       outcome,
		Timestamp:     at,
	}
	if outcome == OutcomeWin {
		res.Multiplier = bet.CashedOutMultiplier
		res.Payout = bet.Payout
	}
	return res
}

func (m *Manager) record(res GameResult) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SettlementTimeout)
	defer cancel()

	if err := m.results.RecordResult(ctx, res); err != nil {
		m.logger.Warn().Err(err).Str("bet_id", res.BetID).Str("user_id", res.ParticipantID).Msg("result record failed, queued for retry")
		m.retryMutex.Lock()
		m.retries = append(m.retries, pendingResult{result: res, attempts: 1})
		m.retryMutex.Unlock()
	}
}

func (m *Manager) retryResults() {
	m.retryMutex.Lock()
	pending := m.retries
	m.retries = nil
	m.retryMutex.Unlock()

	var keep []pendingResult
	for _, p := range pending {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SettlementTimeout)
		err := m.results.RecordResult(ctx, p.result)
		cancel()
		if err == nil {
			continue
		}
		p.attempts++
		if p.attempts >= m.cfg.MaxRecordAttempts {
			m.logger.Error().Err(err).Str("bet_id", p.result.BetID).Int("attempts", p.attempts).Msg("dropping game result")
			continue
		}
		keep = append(keep, p)
	}

	if len(keep) > 0 {
		m.retryMutex.Lock()
		m.retries = append(keep, m.retries...)
		m.retryMutex.Unlock()
	}
}

func (m *Manager) pendingRetries() int {
	m.retryMutex.Lock()
	defer m.retryMutex.Unlock()
	return len(m.retries)
}

func (m *Manager) validateBet(req BetRequest) error {
	if req.UserID == "" {
		return ErrMissingUser
	}
	if req.Amount <= 0 {
		return ErrInvalidStake
	}
	if m.cfg.MinBet > 0 && req.Amount < m.cfg.MinBet {
		return fmt.Errorf("%w: minimum is %.2f", ErrInvalidStake, m.cfg.MinBet)
	}
	if m.cfg.MaxBet > 0 && req.Amount > m.cfg.MaxBet {
		return fmt.Errorf("%w: maximum is %.2f", ErrInvalidStake, m.cfg.MaxBet)
	}
	if !wholeCents(req.Amount) {
		return fmt.Errorf("%w: at most two decimal places", ErrInvalidStake)
	}
	if req.AutoCashout != 0 && (req.AutoCashout <= MIN_MULTIPLIER || !wholeCents(req.AutoCashout)) {
		return ErrInvalidTarget
	}
	return nil
}

// wholeCents reports whether v has no more than two decimal places. Wallets,
// payouts and the result log all settle in cents.
func wholeCents(v float64) bool {
	d := decimal.NewFromFloat(v)
	return d.Equal(d.Round(2))
}

// PlaceBet debits the stake and enters the participant in the current round.
// Bets are only accepted during the countdown.
func (m *Manager) PlaceBet(ctx context.Context, req BetRequest) (BetReceipt, error) {
	if err := m.validateBet(req); err != nil {
		return BetReceipt{}, err
	}

	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()

	round := m.currentRound
	if round == nil || round.PhaseAt(m.now()) != PhaseCountdown {
		return BetReceipt{}, ErrBettingClosed
	}
	if _, exists := round.ledger.Get(req.UserID); exists {
		return BetReceipt{}, ErrDuplicateBet
	}

	debitCtx, cancel := context.WithTimeout(ctx, m.cfg.SettlementTimeout)
	balance, err := m.wallet.Debit(debitCtx, req.UserID, req.Amount)
	cancel()
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return BetReceipt{Balance: balance}, err
		}
		return BetReceipt{}, fmt.Errorf("%w: debit: %w", ErrSettlement, err)
	}

	now := m.now()
	if round.PhaseAt(now) != PhaseCountdown {
		// The countdown ran out while the debit was in flight.
		m.refund(round, req.UserID, req.Amount)
		return BetReceipt{}, ErrBettingClosed
	}

	bet, err := round.ledger.place(req.UserID, req.Amount, req.AutoCashout, now)
	if err != nil {
		m.refund(round, req.UserID, req.Amount)
		return BetReceipt{}, err
	}

	m.hub.Broadcast(WSMessage{
		Type: "bet_placed",
		Data: BetPlacedMessage{
			RoundID: round.ID,
			UserID:  req.UserID,
			Amount:  req.Amount,
			BetID:   bet.BetID,
		},
	})
	m.logger.Info().Str("round_id", round.ID).Str("user_id", req.UserID).
		Float64("amount", req.Amount).Str("bet_id", bet.BetID).Msg("bet placed")

	return BetReceipt{
		RoundID: round.ID,
		BetID:   bet.BetID,
		Phase:   PhaseCountdown,
		Balance: balance,
	}, nil
}

func (m *Manager) refund(round *Round, userID string, amount float64) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SettlementTimeout)
	defer cancel()
	if _, err := m.wallet.Credit(ctx, userID, amount); err != nil {
		m.logger.Error().Err(err).Str("round_id", round.ID).Str("user_id", userID).
			Float64("amount", amount).Msg("refund of rejected bet failed")
	}
}

// Cashout locks in the current multiplier for the participant's bet. A request
// served at or after the crash instant is a loss, not an error.
func (m *Manager) Cashout(ctx context.Context, userID string) (CashoutResult, error) {
	res, rec, err := m.cashout(ctx, userID)
	if rec != nil {
		m.record(*rec)
	}
	return res, err
}

func (m *Manager) cashout(ctx context.Context, userID string) (CashoutResult, *GameResult, error) {
	if userID == "" {
		return CashoutResult{}, nil, ErrMissingUser
	}

	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()

	round := m.currentRound
	if round == nil {
		return CashoutResult{}, nil, ErrNoBet
	}
	bet, ok := round.ledger.Get(userID)
	if !ok {
		return CashoutResult{RoundID: round.ID}, nil, ErrNoBet
	}
	if bet.CashedOut {
		return CashoutResult{RoundID: round.ID}, nil, ErrAlreadyCashedOut
	}

	now := m.now()
	switch round.PhaseAt(now) {
	case PhaseCountdown:
		return CashoutResult{RoundID: round.ID}, nil, ErrRoundNotActive
	case PhaseCrashed:
		// Too late: the sweep owns this bet.
		return CashoutResult{
			RoundID:    round.ID,
			Outcome:    OutcomeLoss,
			Multiplier: 0,
			CrashPoint: round.CrashPoint,
		}, nil, nil
	}

	multiplier := round.MultiplierAt(now)
	settledAt := now
	auto := false
	if bet.AutoCashout > 0 && multiplier >= bet.AutoCashout {
		// The target passed between ticks; the bet was already due at it.
		multiplier = bet.AutoCashout
		settledAt = round.ReachedAt(bet.AutoCashout)
		auto = true
	}
	payout := Payout(bet.Amount, multiplier)

	creditCtx, cancel := context.WithTimeout(ctx, m.cfg.SettlementTimeout)
	balance, err := m.wallet.Credit(creditCtx, userID, payout)
	cancel()
	if err != nil {
		return CashoutResult{RoundID: round.ID}, nil, fmt.Errorf("%w: credit: %w", ErrSettlement, err)
	}

	if err := round.ledger.cashOut(bet, multiplier, payout, settledAt); err != nil {
		return CashoutResult{RoundID: round.ID}, nil, err
	}

	m.hub.Broadcast(WSMessage{
		Type: "cashout",
		Data: CashoutMessage{
			RoundID:    round.ID,
			UserID:     userID,
			BetID:      bet.BetID,
			Multiplier: multiplier,
			Payout:     payout,
			Auto:       auto,
		},
	})
	m.logger.Info().Str("round_id", round.ID).Str("user_id", userID).
		Float64("multiplier", multiplier).Float64("payout", payout).Msg("cashout")

	rec := resultFor(round, bet, OutcomeWin, settledAt)
	return CashoutResult{
		RoundID:    round.ID,
		Outcome:    OutcomeWin,
		Multiplier: multiplier,
		Payout:     payout,
		Balance:    balance,
	}, &rec, nil
}

// GetStatus reports the round as seen at this instant. It has no side effects.
func (m *Manager) GetStatus(userID string) (Status, error) {
	m.stateMutex.RLock()
	defer m.stateMutex.RUnlock()

	round := m.currentRound
	if round == nil {
		return Status{}, ErrNotRunning
	}

	now := m.now()
	phase := round.PhaseAt(now)
	st := Status{
		RoundID:           round.ID,
		Phase:             phase,
		CurrentMultiplier: round.MultiplierAt(now),
		CountdownStart:    round.CountdownStart,
		ActiveStart:       round.ActiveStart,
		ServerTime:        now,
		Players:           round.ledger.Len(),
	}
	if phase == PhaseCrashed {
		cp := round.CrashPoint
		st.CrashPoint = &cp
		if !round.NextRoundAt.IsZero() {
			next := round.NextRoundAt
			st.NextRoundAt = &next
		}
	}
	if bet, ok := round.ledger.Get(userID); ok {
		st.HasBet = true
		st.Stake = bet.Amount
		st.AutoCashout = bet.AutoCashout
		st.CashedOut = bet.CashedOut
		if bet.CashedOut {
			at := bet.CashedOutMultiplier
			st.CashedOutAt = &at
		}
	}
	return st, nil
}

// History returns the most recent crashed rounds, newest first.
func (m *Manager) History() []RoundSummary {
	m.stateMutex.RLock()
	defer m.stateMutex.RUnlock()

	out := make([]RoundSummary, len(m.history))
	copy(out, m.history)
	return out
}
