package game

import (
	"fmt"
	"time"
)

// Round is one countdown → active → crashed lifecycle. CrashPoint, the
// timestamps and the curve never change after creation; only the scheduler
// commits phase transitions.
type Round struct {
	ID             string
	CrashPoint     float64
	CountdownStart time.Time
	ActiveStart    time.Time
	CrashedAt      time.Time
	NextRoundAt    time.Time

	phase  Phase
	curve  Curve
	ledger *Ledger
}

func newRound(number uint64, crashPoint float64, now time.Time, countdown time.Duration, curve Curve) *Round {
	return &Round{
		ID:             fmt.Sprintf("crash_%d", number),
		CrashPoint:     curve.limit(crashPoint),
		CountdownStart: now,
		ActiveStart:    now.Add(countdown),
		phase:          PhaseCountdown,
		curve:          curve,
		ledger:         newLedger(),
	}
}

// Phase is the last phase committed by the scheduler.
func (r *Round) Phase() Phase {
	return r.phase
}

// PhaseAt derives the phase at now. It can run ahead of Phase between ticks
// and is what bet placement, cash-out and status reads go by.
func (r *Round) PhaseAt(now time.Time) Phase {
	if r.phase == PhaseCrashed {
		return PhaseCrashed
	}
	if now.Before(r.ActiveStart) {
		return PhaseCountdown
	}
	if r.curve.Multiplier(now.Sub(r.ActiveStart), r.CrashPoint) >= r.CrashPoint {
		return PhaseCrashed
	}
	return PhaseActive
}

// MultiplierAt is 1 during the countdown and frozen at CrashPoint once crashed.
func (r *Round) MultiplierAt(now time.Time) float64 {
	switch r.PhaseAt(now) {
	case PhaseCountdown:
		return MIN_MULTIPLIER
	case PhaseCrashed:
		return r.CrashPoint
	}
	return r.curve.Multiplier(now.Sub(r.ActiveStart), r.CrashPoint)
}

// CrashInstant is when the multiplier reaches the crash point.
func (r *Round) CrashInstant() time.Time {
	return r.ActiveStart.Add(r.curve.TimeToReach(r.CrashPoint))
}

// ReachedAt is when the multiplier first reached m in this round.
func (r *Round) ReachedAt(m float64) time.Time {
	return r.ActiveStart.Add(r.curve.TimeToReach(m))
}

// activate commits countdown → active once the scheduled boundary passed.
func (r *Round) activate(now time.Time) bool {
	if r.phase != PhaseCountdown || now.Before(r.ActiveStart) {
		return false
	}
	r.phase = PhaseActive
	return true
}

// crash commits active → crashed when the multiplier at now has reached the
// crash point. The recorded instant is the exact crossing, not now.
func (r *Round) crash(now time.Time, cooldown time.Duration) bool {
	if r.phase != PhaseActive || r.PhaseAt(now) != PhaseCrashed {
		return false
	}
	r.phase = PhaseCrashed
	r.CrashedAt = r.CrashInstant()
	r.NextRoundAt = now.Add(cooldown)
	return true
}
