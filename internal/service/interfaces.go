// Package service provides the business logic of the casino: bet
// settlement, live crash rounds, accounts, rankings, verification and
// consistency audits.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"skin-casino/internal/model"
)

// UserRepository is the user store used by the services. NextNonce hands
// out the user's provably-fair nonces; each call returns a value never
// returned before for that user.
type UserRepository interface {
	Create(ctx context.Context, id, username string, initialBalance decimal.Decimal) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetOrCreate(ctx context.Context, id, username string, initialBalance decimal.Decimal) (*model.User, bool, error)
	NextNonce(ctx context.Context, id string) (int64, error)
}

// Ledger owns balance mutations. DebitAndCredit returns
// repository.ErrDuplicateSettlement with the prior entry when the key was
// already applied.
type Ledger interface {
	DebitAndCredit(ctx context.Context, s model.Settlement) (*model.LedgerEntry, error)
	Entry(ctx context.Context, key string) (*model.LedgerEntry, error)
	Adjust(ctx context.Context, userID string, delta decimal.Decimal, reason string) (*model.User, error)
	CountSettlements(ctx context.Context, userID string) (int64, error)
}

// GameRecordStore is the append-only game history.
type GameRecordStore interface {
	Append(ctx context.Context, rec *model.GameRecord) (int64, error)
	Get(ctx context.Context, id int64) (*model.GameRecord, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*model.GameRecord, error)
	RecentByUser(ctx context.Context, userID string, limit int) ([]*model.GameRecord, error)
	RecentGlobal(ctx context.Context, limit int) ([]*model.GameRecord, error)
	Leaderboard(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}

// CrashRoundStore persists live crash rounds.
type CrashRoundStore interface {
	Create(ctx context.Context, round *model.CrashRound) error
	Get(ctx context.Context, id string) (*model.CrashRound, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*model.CrashRound, error)
	Resolve(ctx context.Context, id string, status model.CrashRoundStatus, cashOutAt decimal.Decimal, at time.Time) (*model.CrashRound, error)
	CountOpen(ctx context.Context, userID string) (int64, error)
}

// Publisher announces settled games. Publishing is best effort.
type Publisher interface {
	PublishSettled(ctx context.Context, rec *model.GameRecord, newBalance decimal.Decimal) error
}
