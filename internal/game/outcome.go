package game

import (
	crand "crypto/rand"
	"encoding/binary"
	"math"
	"math/rand/v2"
)

const (
	MIN_MULTIPLIER = 1.00

	DEFAULT_CRASH_RATE    = 0.5
	DEFAULT_CRASH_CEILING = 5.86
)

// CrashPointSource hands out one crash point per round.
type CrashPointSource interface {
	Next() float64
}

// OutcomeGenerator draws crash points from an exponential distribution with
// rate Rate, rounded to cents and clamped to [1, Ceiling]. It is not safe for
// concurrent use; the manager only draws from its tick goroutine.
type OutcomeGenerator struct {
	Rate    float64
	Ceiling float64
	rng     *rand.Rand
}

// NewOutcomeGenerator returns a generator seeded from crypto/rand.
func NewOutcomeGenerator(rate, ceiling float64) *OutcomeGenerator {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		binary.LittleEndian.PutUint64(seed[:], rand.Uint64())
	}
	return NewSeededOutcomeGenerator(rate, ceiling, rand.NewChaCha8(seed))
}

func NewSeededOutcomeGenerator(rate, ceiling float64, src rand.Source) *OutcomeGenerator {
	if rate <= 0 {
		rate = DEFAULT_CRASH_RATE
	}
	if ceiling < MIN_MULTIPLIER {
		ceiling = DEFAULT_CRASH_CEILING
	}
	return &OutcomeGenerator{
		Rate:    rate,
		Ceiling: ceiling,
		rng:     rand.New(src),
	}
}

func (g *OutcomeGenerator) Next() float64 {
	// Float64 is in [0,1); flip it so ln never sees zero.
	u := 1 - g.rng.Float64()
	return g.crashPointFor(u)
}

func (g *OutcomeGenerator) crashPointFor(u float64) float64 {
	x := -math.Log(u) / g.Rate
	cp := math.Max(MIN_MULTIPLIER, roundCents(x))
	return math.Min(cp, g.Ceiling)
}

// SurvivalProbability is P(crashPoint > m): the chance a player cashing out
// at m gets paid. A crash point rounds above m once x >= m + 0.005.
func (g *OutcomeGenerator) SurvivalProbability(m float64) float64 {
	if m < MIN_MULTIPLIER {
		return 1
	}
	if m >= g.Ceiling {
		return 0
	}
	return math.Exp(-g.Rate * (m + 0.005))
}

// ExpectedReturn is the long-run payout per unit staked for a player who
// always cashes out at m. One minus this is the house edge at that target.
func (g *OutcomeGenerator) ExpectedReturn(m float64) float64 {
	return m * g.SurvivalProbability(m)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
