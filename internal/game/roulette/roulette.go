// Package roulette implements single-zero roulette with colour bets.
package roulette

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"skin-casino/internal/game"
	"skin-casino/internal/model"
)

// ParamBetType is the bet parameter holding the chosen colour.
const ParamBetType = "betType"

// Pocket count on a single-zero wheel and the probability of zero.
const (
	Pockets   = 37
	greenProb = 1.0 / 19.0
)

var (
	DefaultColorMultiplier = decimal.RequireFromString("1.98")
	DefaultGreenMultiplier = decimal.NewFromInt(14)
)

var ErrInvalidBetType = errors.New("betType must be red, black or green")

// redNumbers is the standard red set of a single-zero wheel.
var redNumbers = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true,
	14: true, 16: true, 18: true, 19: true, 21: true, 23: true,
	25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

// Config holds configuration for the roulette game.
type Config struct {
	ColorMultiplier decimal.Decimal
	GreenMultiplier decimal.Decimal
	MaxBet          decimal.Decimal
}

// RouletteGame implements game.Game for colour bets.
type RouletteGame struct {
	colorMultiplier decimal.Decimal
	greenMultiplier decimal.Decimal
	maxBet          decimal.Decimal
}

// New creates a new RouletteGame with the given configuration.
func New(cfg *Config) *RouletteGame {
	g := &RouletteGame{
		colorMultiplier: DefaultColorMultiplier,
		greenMultiplier: DefaultGreenMultiplier,
	}
	if cfg != nil {
		if cfg.ColorMultiplier.IsPositive() {
			g.colorMultiplier = cfg.ColorMultiplier
		}
		if cfg.GreenMultiplier.IsPositive() {
			g.greenMultiplier = cfg.GreenMultiplier
		}
		if cfg.MaxBet.IsPositive() {
			g.maxBet = cfg.MaxBet
		}
	}
	return g
}

func (g *RouletteGame) Type() model.GameType { return model.GameRoulette }

func (g *RouletteGame) Name() string { return "Roulette" }

func (g *RouletteGame) MaxBet() decimal.Decimal { return g.maxBet }

func (g *RouletteGame) ValidateParams(params map[string]any) error {
	_, err := betTypeFrom(params)
	return err
}

// Play spins the wheel.
func (g *RouletteGame) Play(src game.Source, _ decimal.Decimal, params map[string]any) (model.Outcome, error) {
	betType, err := betTypeFrom(params)
	if err != nil {
		return nil, err
	}
	return Spin(src, betType), nil
}

// Payout calculates the payout for a roulette outcome.
func (g *RouletteGame) Payout(bet decimal.Decimal, outcome model.Outcome) (model.Payout, error) {
	o, ok := outcome.(model.RouletteOutcome)
	if !ok {
		return model.Payout{}, fmt.Errorf("%w: got %s", game.ErrOutcomeMismatch, outcome.GameType())
	}
	return CalculatePayout(bet, o, g.colorMultiplier, g.greenMultiplier), nil
}

func (g *RouletteGame) ReplayParams(outcome model.Outcome) map[string]any {
	o, ok := outcome.(model.RouletteOutcome)
	if !ok {
		return nil
	}
	return map[string]any{ParamBetType: string(o.BetType)}
}

// Spin draws a pocket. Zero takes 1/19 of the mass; the remainder is split
// evenly over numbers 1..36.
func Spin(src game.Source, betType model.RouletteColor) model.RouletteOutcome {
	number := 0
	if u := src.Float64(); u >= greenProb {
		v := (u - greenProb) / (1 - greenProb)
		number = int(math.Min(math.Floor(v*36), 35)) + 1
	}
	color := ColorOf(number)
	return model.RouletteOutcome{
		BetType: betType,
		Number:  number,
		Color:   color,
		Won:     color == betType,
	}
}

// ColorOf returns the pocket colour of a number.
func ColorOf(number int) model.RouletteColor {
	switch {
	case number == 0:
		return model.Green
	case redNumbers[number]:
		return model.Red
	default:
		return model.Black
	}
}

// CalculatePayout pays bet x 14 on green and bet x 1.98 on red or black.
func CalculatePayout(bet decimal.Decimal, o model.RouletteOutcome, colorMultiplier, greenMultiplier decimal.Decimal) model.Payout {
	multiplier := colorMultiplier
	if o.BetType == model.Green {
		multiplier = greenMultiplier
	}
	return game.Settle(bet, o.Won, bet.Mul(multiplier))
}

// ParseBetType converts user input to a colour bet.
func ParseBetType(s string) (model.RouletteColor, error) {
	switch c := model.RouletteColor(s); c {
	case model.Red, model.Black, model.Green:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBetType, s)
}

func betTypeFrom(params map[string]any) (model.RouletteColor, error) {
	raw, ok := game.StringParam(params, ParamBetType)
	if !ok {
		return "", fmt.Errorf("%w: %s", game.ErrMissingParam, ParamBetType)
	}
	return ParseBetType(raw)
}
