// Package model defines the data models for the skin casino settlement engine.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a player account. Balance is never negative.
type User struct {
	ID           string          `db:"id" json:"id"`
	Username     string          `db:"username" json:"username"`
	Balance      decimal.Decimal `db:"balance" json:"balance"`
	TotalWagered decimal.Decimal `db:"total_wagered" json:"totalWagered"`
	TotalWon     decimal.Decimal `db:"total_won" json:"totalWon"`
	TotalLost    decimal.Decimal `db:"total_lost" json:"totalLost"`
	GamesPlayed  int64           `db:"games_played" json:"gamesPlayed"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

// Bet is a settlement request. It is never persisted on its own.
type Bet struct {
	UserID         string
	GameType       GameType
	BetAmount      decimal.Decimal
	Params         map[string]any
	IdempotencyKey string
	ClientSeed     string
}

// Payout is the monetary result of a settled bet.
// For a positive bet exactly one of the two amounts is non-zero.
type Payout struct {
	WinAmount  decimal.Decimal `json:"winAmount"`
	LossAmount decimal.Decimal `json:"lossAmount"`
}

// Net returns the balance delta of the payout relative to keeping the stake.
func (p Payout) Net() decimal.Decimal {
	return p.WinAmount.Sub(p.LossAmount)
}

// Fairness carries the provably-fair commitment of a single game.
type Fairness struct {
	ServerSeed     string `json:"serverSeed,omitempty"`
	ServerSeedHash string `json:"serverSeedHash"`
	ClientSeed     string `json:"clientSeed"`
	Nonce          int64  `json:"nonce"`
	FairnessHash   string `json:"fairnessHash"`
	GameHash       string `json:"gameHash"`
}

// GameRecord is the immutable history row written once per settled bet.
type GameRecord struct {
	ID             int64           `json:"id"`
	UserID         string          `json:"userId"`
	GameType       GameType        `json:"gameType"`
	BetAmount      decimal.Decimal `json:"betAmount"`
	WinAmount      decimal.Decimal `json:"winAmount"`
	LossAmount     decimal.Decimal `json:"lossAmount"`
	Outcome        Outcome         `json:"outcome"`
	IdempotencyKey string          `json:"idempotencyKey"`
	Fairness       Fairness        `json:"fairness"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Payout returns the win/loss pair stored on the record.
func (r *GameRecord) Payout() Payout {
	return Payout{WinAmount: r.WinAmount, LossAmount: r.LossAmount}
}

// SettlementReceipt is returned to the caller of a settlement.
type SettlementReceipt struct {
	Record     *GameRecord     `json:"record"`
	NewBalance decimal.Decimal `json:"newBalance"`
	Replayed   bool            `json:"replayed"`
}

// Ledger entry kinds.
const (
	EntryKindSettlement = "settlement"
	EntryKindAdjustment = "adjustment"
)

// Settlement is a single atomic balance mutation request for the ledger.
type Settlement struct {
	Key        string
	UserID     string
	BetAmount  decimal.Decimal
	WinAmount  decimal.Decimal
	LossAmount decimal.Decimal
}

// LedgerEntry is written in the same atomic unit as the balance change it describes.
type LedgerEntry struct {
	IdempotencyKey string          `json:"idempotencyKey"`
	UserID         string          `json:"userId"`
	Kind           string          `json:"kind"`
	BetAmount      decimal.Decimal `json:"betAmount"`
	WinAmount      decimal.Decimal `json:"winAmount"`
	BalanceBefore  decimal.Decimal `json:"balanceBefore"`
	BalanceAfter   decimal.Decimal `json:"balanceAfter"`
	Reason         string          `json:"reason,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// LeaderboardEntry is one row of the winners board.
type LeaderboardEntry struct {
	UserID       string          `json:"userId"`
	Username     string          `json:"username"`
	TotalWon     decimal.Decimal `json:"totalWon"`
	TotalWagered decimal.Decimal `json:"totalWagered"`
	GamesPlayed  int64           `json:"gamesPlayed"`
}

// CrashRoundStatus is the lifecycle state of a live crash round.
type CrashRoundStatus string

const (
	CrashRoundOpen      CrashRoundStatus = "open"
	CrashRoundCashedOut CrashRoundStatus = "cashed_out"
	CrashRoundBusted    CrashRoundStatus = "busted"
)

// CrashRound is a live crash bet. CrashPoint and the server seed stay
// server side until the round is resolved.
type CrashRound struct {
	ID             string           `json:"id"`
	UserID         string           `json:"userId"`
	BetAmount      decimal.Decimal  `json:"betAmount"`
	CrashPoint     decimal.Decimal  `json:"-"`
	Fairness       Fairness         `json:"-"`
	IdempotencyKey string           `json:"-"`
	Status         CrashRoundStatus `json:"status"`
	CashOutAt      decimal.Decimal  `json:"cashOutAt"`
	StartedAt      time.Time        `json:"startedAt"`
	ResolvedAt     *time.Time       `json:"resolvedAt,omitempty"`
}

// IsOpen reports whether the round still accepts a cash-out.
func (r *CrashRound) IsOpen() bool {
	return r.Status == CrashRoundOpen
}
