// Package game defines the single-shot game contract and registry used by
// the settlement service. Each game lives in its own subpackage and is a pure
// function of an injected random source and the bet parameters.
package game

import (
	"errors"

	"github.com/shopspring/decimal"

	"skin-casino/internal/model"
)

// Source yields uniformly distributed floats in [0, 1).
// Given the same seed a Source must yield the same sequence.
type Source interface {
	Float64() float64
}

// ErrOutcomeMismatch is returned when a payout is requested for an outcome
// that belongs to a different game.
var ErrOutcomeMismatch = errors.New("outcome does not belong to this game")

// Game defines the interface that all single-shot games implement.
type Game interface {
	// Type returns the game type this implementation settles.
	Type() model.GameType

	// Name returns the game's display name.
	Name() string

	// MaxBet returns the maximum allowed bet, zero when unlimited.
	MaxBet() decimal.Decimal

	// ValidateParams checks the game-specific parameters without drawing.
	ValidateParams(params map[string]any) error

	// Play draws an outcome from src. Params must have passed ValidateParams.
	Play(src Source, bet decimal.Decimal, params map[string]any) (model.Outcome, error)

	// Payout maps an outcome to its win and loss amounts.
	Payout(bet decimal.Decimal, outcome model.Outcome) (model.Payout, error)

	// ReplayParams recovers the parameters that produced outcome, so that a
	// revealed seed can reproduce it.
	ReplayParams(outcome model.Outcome) map[string]any
}
