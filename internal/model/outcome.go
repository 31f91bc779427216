package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// GameType identifies a game.
type GameType string

const (
	GameCoinflip  GameType = "coinflip"
	GameCrash     GameType = "crash"
	GameRoulette  GameType = "roulette"
	GameJackpot   GameType = "jackpot"
	GameBlackjack GameType = "blackjack"
)

// ErrUnknownGameType is returned when a game type string is not recognised.
var ErrUnknownGameType = errors.New("unknown game type")

// ParseGameType converts a raw string to a GameType.
// Blackjack is a known type even though it has no single-shot settlement.
func ParseGameType(s string) (GameType, error) {
	switch gt := GameType(s); gt {
	case GameCoinflip, GameCrash, GameRoulette, GameJackpot, GameBlackjack:
		return gt, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGameType, s)
}

// Outcome is the sealed union of per-game results.
type Outcome interface {
	GameType() GameType
	IsWin() bool
	isOutcome()
}

// CoinSide is one face of the coin.
type CoinSide string

const (
	Heads CoinSide = "heads"
	Tails CoinSide = "tails"
)

// CoinflipOutcome is the result of a coin flip.
type CoinflipOutcome struct {
	Choice CoinSide `json:"choice"`
	Result CoinSide `json:"result"`
	Won    bool     `json:"won"`
}

func (CoinflipOutcome) GameType() GameType { return GameCoinflip }
func (o CoinflipOutcome) IsWin() bool { return o.Won }
func (CoinflipOutcome) isOutcome() {}

// CrashOutcome is the result of a crash game. AutoTarget is set when the
// cash-out target was drawn by the server instead of chosen by the player.
// Live is set for rounds resolved by a timed cash-out; there CashOutAt is
// the multiplier at cash-out time, or the crash point for a bust.
type CrashOutcome struct {
	CrashPoint decimal.Decimal `json:"crashPoint"`
	CashOutAt  decimal.Decimal `json:"cashOutAt"`
	AutoTarget bool            `json:"autoTarget"`
	Live       bool            `json:"live,omitempty"`
	Won        bool            `json:"won"`
}

func (CrashOutcome) GameType() GameType { return GameCrash }
func (o CrashOutcome) IsWin() bool { return o.Won }
func (CrashOutcome) isOutcome() {}

// RouletteColor is a roulette pocket colour and also a bet type.
type RouletteColor string

const (
	Red   RouletteColor = "red"
	Black RouletteColor = "black"
	Green RouletteColor = "green"
)

// RouletteOutcome is the result of a roulette spin.
type RouletteOutcome struct {
	BetType RouletteColor `json:"betType"`
	Number  int           `json:"number"`
	Color   RouletteColor `json:"color"`
	Won     bool          `json:"won"`
}

func (RouletteOutcome) GameType() GameType { return GameRoulette }
func (o RouletteOutcome) IsWin() bool { return o.Won }
func (RouletteOutcome) isOutcome() {}

// JackpotOutcome is the result of a simulated jackpot pot.
type JackpotOutcome struct {
	Participants int             `json:"participants"`
	TotalPot     decimal.Decimal `json:"totalPot"`
	WinChance    float64         `json:"winChance"`
	Won          bool            `json:"won"`
}

func (JackpotOutcome) GameType() GameType { return GameJackpot }
func (o JackpotOutcome) IsWin() bool { return o.Won }
func (JackpotOutcome) isOutcome() {}

type outcomeEnvelope struct {
	Type GameType        `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeOutcome serialises an outcome together with its type discriminator.
func EncodeOutcome(o Outcome) ([]byte, error) {
	if o == nil {
		return nil, errors.New("nil outcome")
	}
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outcome: %w", err)
	}
	return json.Marshal(outcomeEnvelope{Type: o.GameType(), Data: data})
}

// DecodeOutcome restores the outcome variant written by EncodeOutcome.
func DecodeOutcome(payload []byte) (Outcome, error) {
	var env outcomeEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outcome envelope: %w", err)
	}

	var (
		out Outcome
		err error
	)
	switch env.Type {
	case GameCoinflip:
		var o CoinflipOutcome
		err = json.Unmarshal(env.Data, &o)
		out = o
	case GameCrash:
		var o CrashOutcome
		err = json.Unmarshal(env.Data, &o)
		out = o
	case GameRoulette:
		var o RouletteOutcome
		err = json.Unmarshal(env.Data, &o)
		out = o
	case GameJackpot:
		var o JackpotOutcome
		err = json.Unmarshal(env.Data, &o)
		out = o
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGameType, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s outcome: %w", env.Type, err)
	}
	return out, nil
}
