// Package coinflip implements the coin flip game.
package coinflip

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"skin-casino/internal/game"
	"skin-casino/internal/model"
)

// ParamChoice is the bet parameter holding the chosen side.
const ParamChoice = "choice"

// DefaultMultiplier pays 1.98x, a 1% house edge on a fair coin.
var DefaultMultiplier = decimal.RequireFromString("1.98")

var ErrInvalidChoice = errors.New("choice must be heads or tails")

// Config holds configuration for the coin flip game.
type Config struct {
	Multiplier decimal.Decimal
	MaxBet     decimal.Decimal
}

// CoinflipGame implements game.Game for coin flips.
type CoinflipGame struct {
	multiplier decimal.Decimal
	maxBet     decimal.Decimal
}

// New creates a new CoinflipGame with the given configuration.
func New(cfg *Config) *CoinflipGame {
	g := &CoinflipGame{multiplier: DefaultMultiplier}
	if cfg != nil {
		if cfg.Multiplier.IsPositive() {
			g.multiplier = cfg.Multiplier
		}
		if cfg.MaxBet.IsPositive() {
			g.maxBet = cfg.MaxBet
		}
	}
	return g
}

func (g *CoinflipGame) Type() model.GameType { return model.GameCoinflip }

func (g *CoinflipGame) Name() string { return "Coin Flip" }

func (g *CoinflipGame) MaxBet() decimal.Decimal { return g.maxBet }

// ValidateParams requires a choice of heads or tails.
func (g *CoinflipGame) ValidateParams(params map[string]any) error {
	_, err := choiceFrom(params)
	return err
}

// Play flips the coin.
func (g *CoinflipGame) Play(src game.Source, _ decimal.Decimal, params map[string]any) (model.Outcome, error) {
	choice, err := choiceFrom(params)
	if err != nil {
		return nil, err
	}
	return Flip(src, choice), nil
}

// Payout calculates the payout for a coin flip outcome.
func (g *CoinflipGame) Payout(bet decimal.Decimal, outcome model.Outcome) (model.Payout, error) {
	o, ok := outcome.(model.CoinflipOutcome)
	if !ok {
		return model.Payout{}, fmt.Errorf("%w: got %s", game.ErrOutcomeMismatch, outcome.GameType())
	}
	return CalculatePayout(bet, o, g.multiplier), nil
}

func (g *CoinflipGame) ReplayParams(outcome model.Outcome) map[string]any {
	o, ok := outcome.(model.CoinflipOutcome)
	if !ok {
		return nil
	}
	return map[string]any{ParamChoice: string(o.Choice)}
}

// Flip draws heads when the source yields a value below one half.
func Flip(src game.Source, choice model.CoinSide) model.CoinflipOutcome {
	result := model.Tails
	if src.Float64() < 0.5 {
		result = model.Heads
	}
	return model.CoinflipOutcome{
		Choice: choice,
		Result: result,
		Won:    result == choice,
	}
}

// CalculatePayout pays bet x multiplier on a win.
func CalculatePayout(bet decimal.Decimal, o model.CoinflipOutcome, multiplier decimal.Decimal) model.Payout {
	return game.Settle(bet, o.Won, bet.Mul(multiplier))
}

// ParseChoice converts user input to a coin side.
func ParseChoice(s string) (model.CoinSide, error) {
	switch side := model.CoinSide(s); side {
	case model.Heads, model.Tails:
		return side, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidChoice, s)
}

func choiceFrom(params map[string]any) (model.CoinSide, error) {
	raw, ok := game.StringParam(params, ParamChoice)
	if !ok {
		return "", fmt.Errorf("%w: %s", game.ErrMissingParam, ParamChoice)
	}
	return ParseChoice(raw)
}
