// Package crash implements the crash game: a multiplier climbs from 1.00x
// until it crashes, and the player wins when their cash-out target is at or
// below the crash point.
package crash

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"skin-casino/internal/game"
	"skin-casino/internal/model"
)

// ParamCashOutAt is the bet parameter holding the target multiplier.
const ParamCashOutAt = "cashOutAt"

// DefaultGrowthRate drives the live multiplier curve m(t) = e^(rate*t).
const DefaultGrowthRate = 0.06

// MinCashOut is the smallest target a player may choose.
var MinCashOut = decimal.RequireFromString("1.01")

var ErrInvalidCashOut = errors.New("cashOutAt must be a number of at least 1.01")

// tier is a half-open range [lo, hi) of crash points, selected when the
// tier draw falls below the cumulative bound.
type tier struct {
	below  float64
	lo, hi float64
}

// 50% [1,3), 30% [3,10), 20% [10,50)
var tiers = []tier{
	{below: 0.5, lo: 1, hi: 3},
	{below: 0.8, lo: 3, hi: 10},
	{below: 1, lo: 10, hi: 50},
}

// Synthetic target range used when the player sets no cash-out.
const (
	autoTargetLo = 1.5
	autoTargetHi = 3.5
)

// Config holds configuration for the crash game.
type Config struct {
	MaxBet     decimal.Decimal
	GrowthRate float64
}

// CrashGame implements game.Game for single-shot crash bets.
type CrashGame struct {
	maxBet     decimal.Decimal
	growthRate float64
}

// New creates a new CrashGame with the given configuration.
func New(cfg *Config) *CrashGame {
	g := &CrashGame{growthRate: DefaultGrowthRate}
	if cfg != nil {
		if cfg.MaxBet.IsPositive() {
			g.maxBet = cfg.MaxBet
		}
		if cfg.GrowthRate > 0 {
			g.growthRate = cfg.GrowthRate
		}
	}
	return g
}

func (g *CrashGame) Type() model.GameType { return model.GameCrash }

func (g *CrashGame) Name() string { return "Crash" }

func (g *CrashGame) MaxBet() decimal.Decimal { return g.maxBet }

// GrowthRate returns the exponent of the live multiplier curve.
func (g *CrashGame) GrowthRate() float64 { return g.growthRate }

// ValidateParams accepts a missing target or one of at least 1.01.
func (g *CrashGame) ValidateParams(params map[string]any) error {
	_, _, err := cashOutFrom(params)
	return err
}

// Play draws a crash point and settles it against the target.
func (g *CrashGame) Play(src game.Source, _ decimal.Decimal, params map[string]any) (model.Outcome, error) {
	target, ok, err := cashOutFrom(params)
	if err != nil {
		return nil, err
	}
	if !ok {
		return Draw(src, nil), nil
	}
	return Draw(src, &target), nil
}

// Payout calculates the payout for a crash outcome.
func (g *CrashGame) Payout(bet decimal.Decimal, outcome model.Outcome) (model.Payout, error) {
	o, ok := outcome.(model.CrashOutcome)
	if !ok {
		return model.Payout{}, fmt.Errorf("%w: got %s", game.ErrOutcomeMismatch, outcome.GameType())
	}
	return CalculatePayout(bet, o), nil
}

// ReplayParams returns the explicit target, or no params when the target
// was synthetic or the round was live. Both paths draw the crash point first.
func (g *CrashGame) ReplayParams(outcome model.Outcome) map[string]any {
	o, ok := outcome.(model.CrashOutcome)
	if !ok || o.AutoTarget || o.Live {
		return map[string]any{}
	}
	return map[string]any{ParamCashOutAt: o.CashOutAt}
}

// GenerateCrashPoint draws a tier and then a point uniformly inside it,
// floored to two decimals.
func GenerateCrashPoint(src game.Source) decimal.Decimal {
	pick := src.Float64()
	u := src.Float64()

	t := tiers[len(tiers)-1]
	for _, candidate := range tiers {
		if pick < candidate.below {
			t = candidate
			break
		}
	}
	return game.Floor2(uniform(u, t.lo, t.hi))
}

// Draw produces a crash outcome. A nil target is replaced with a synthetic
// one drawn uniformly from [1.5, 3.5).
func Draw(src game.Source, cashOutAt *decimal.Decimal) model.CrashOutcome {
	crashPoint := GenerateCrashPoint(src)

	o := model.CrashOutcome{CrashPoint: crashPoint}
	if cashOutAt != nil {
		o.CashOutAt = *cashOutAt
	} else {
		o.CashOutAt = game.Floor2(uniform(src.Float64(), autoTargetLo, autoTargetHi))
		o.AutoTarget = true
	}
	o.Won = crashPoint.GreaterThanOrEqual(o.CashOutAt)
	return o
}

// CalculatePayout pays bet x cashOutAt on a win.
func CalculatePayout(bet decimal.Decimal, o model.CrashOutcome) model.Payout {
	return game.Settle(bet, o.Won, bet.Mul(o.CashOutAt))
}

// MultiplierAt returns the live multiplier after elapsed time, floored to two decimals.
func MultiplierAt(elapsed time.Duration, growthRate float64) decimal.Decimal {
	if elapsed <= 0 {
		return decimal.NewFromInt(1)
	}
	m := game.Floor2(math.Exp(growthRate * elapsed.Seconds()))
	if m.LessThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return m
}

// ParseCashOut validates a user supplied target.
func ParseCashOut(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidCashOut, s)
	}
	return checkCashOut(d)
}

func cashOutFrom(params map[string]any) (decimal.Decimal, bool, error) {
	d, ok, err := game.DecimalParam(params, ParamCashOutAt)
	if err != nil {
		return decimal.Zero, true, fmt.Errorf("%w: %v", ErrInvalidCashOut, err)
	}
	if !ok {
		return decimal.Zero, false, nil
	}
	d, err = checkCashOut(d)
	return d, true, err
}

func checkCashOut(d decimal.Decimal) (decimal.Decimal, error) {
	if d.LessThan(MinCashOut) {
		return decimal.Zero, fmt.Errorf("%w: got %s", ErrInvalidCashOut, d)
	}
	return d, nil
}

// uniform maps u in [0,1) onto [lo, hi), keeping the upper bound exclusive
// after float rounding.
func uniform(u, lo, hi float64) float64 {
	v := lo + u*(hi-lo)
	if v >= hi {
		v = math.Nextafter(hi, lo)
	}
	return v
}
