// Package jackpot implements a simulated jackpot pot: the player's stake is
// matched by a random number of equal stakes and one winner takes the pot
// minus the rake.
package jackpot

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"skin-casino/internal/game"
	"skin-casino/internal/model"
)

// Participant bounds, inclusive.
const (
	MinParticipants = 2
	MaxParticipants = 9
)

// DefaultPotShare is the winner's share of the pot, a 5% rake.
var DefaultPotShare = decimal.RequireFromString("0.95")

// Config holds configuration for the jackpot game.
type Config struct {
	PotShare decimal.Decimal
	MaxBet   decimal.Decimal
}

// JackpotGame implements game.Game for the simulated jackpot.
type JackpotGame struct {
	potShare decimal.Decimal
	maxBet   decimal.Decimal
}

// New creates a new JackpotGame with the given configuration.
func New(cfg *Config) *JackpotGame {
	g := &JackpotGame{potShare: DefaultPotShare}
	if cfg != nil {
		if cfg.PotShare.IsPositive() {
			g.potShare = cfg.PotShare
		}
		if cfg.MaxBet.IsPositive() {
			g.maxBet = cfg.MaxBet
		}
	}
	return g
}

func (g *JackpotGame) Type() model.GameType { return model.GameJackpot }

func (g *JackpotGame) Name() string { return "Jackpot" }

func (g *JackpotGame) MaxBet() decimal.Decimal { return g.maxBet }

// ValidateParams accepts anything; the jackpot has no player choice.
func (g *JackpotGame) ValidateParams(map[string]any) error { return nil }

func (g *JackpotGame) Play(src game.Source, bet decimal.Decimal, _ map[string]any) (model.Outcome, error) {
	return Draw(src, bet), nil
}

// Payout calculates the payout for a jackpot outcome.
func (g *JackpotGame) Payout(bet decimal.Decimal, outcome model.Outcome) (model.Payout, error) {
	o, ok := outcome.(model.JackpotOutcome)
	if !ok {
		return model.Payout{}, fmt.Errorf("%w: got %s", game.ErrOutcomeMismatch, outcome.GameType())
	}
	return CalculatePayout(bet, o, g.potShare), nil
}

func (g *JackpotGame) ReplayParams(model.Outcome) map[string]any { return map[string]any{} }

// Draw picks the participant count and then the winner. The player wins
// with probability bet / totalPot.
func Draw(src game.Source, bet decimal.Decimal) model.JackpotOutcome {
	span := MaxParticipants - MinParticipants + 1
	participants := MinParticipants + int(math.Floor(src.Float64()*float64(span)))
	if participants > MaxParticipants {
		participants = MaxParticipants
	}

	totalPot := bet.Mul(decimal.NewFromInt(int64(participants)))
	winChance := 1 / float64(participants)
	if totalPot.IsPositive() {
		winChance = bet.Div(totalPot).InexactFloat64()
	}

	return model.JackpotOutcome{
		Participants: participants,
		TotalPot:     totalPot,
		WinChance:    winChance,
		Won:          src.Float64() < winChance,
	}
}

// CalculatePayout pays totalPot x share to the winner.
func CalculatePayout(bet decimal.Decimal, o model.JackpotOutcome, potShare decimal.Decimal) model.Payout {
	return game.Settle(bet, o.Won, o.TotalPot.Mul(potShare))
}
