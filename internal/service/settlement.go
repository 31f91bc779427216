package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"skin-casino/internal/fairness"
	"skin-casino/internal/game"
	"skin-casino/internal/model"
	"skin-casino/internal/repository"
)

// SourceFactory builds the random source for a committed set of seeds.
type SourceFactory func(fairness.Seeds) game.Source

// DefaultSourceFactory draws from the provably-fair HMAC stream.
func DefaultSourceFactory(s fairness.Seeds) game.Source {
	return fairness.NewSource(s)
}

// SettlementConfig holds optional collaborators of the settlement service.
type SettlementConfig struct {
	Publisher Publisher
	Sources   SourceFactory
	Retry     RetryPolicy
}

// SettlementService settles single-shot bets: it validates the bet, draws
// the outcome, computes the payout, applies it to the ledger and appends
// the game record. Only the ledger mutation runs under the user's lock.
type SettlementService struct {
	users     UserRepository
	ledger    Ledger
	records   GameRecordStore
	games     *game.Registry
	publisher Publisher
	sources   SourceFactory
	retry     RetryPolicy
}

// NewSettlementService creates a new SettlementService instance.
func NewSettlementService(
	users UserRepository,
	ledger Ledger,
	records GameRecordStore,
	games *game.Registry,
	cfg *SettlementConfig,
) *SettlementService {
	if cfg == nil {
		cfg = &SettlementConfig{}
	}
	s := &SettlementService{
		users:     users,
		ledger:    ledger,
		records:   records,
		games:     games,
		publisher: cfg.Publisher,
		sources:   cfg.Sources,
		retry:     cfg.Retry.withDefaults(),
	}
	if s.sources == nil {
		s.sources = DefaultSourceFactory
	}
	return s
}

// Settle runs a bet through to a receipt. A bet whose idempotency key has
// already been settled returns the original receipt with Replayed set and
// does not touch the balance again.
func (s *SettlementService) Settle(ctx context.Context, bet *model.Bet) (*model.SettlementReceipt, error) {
	if bet == nil {
		return nil, invalidInput("missing bet")
	}
	g, err := s.validate(bet)
	if err != nil {
		return nil, err
	}

	key := strings.TrimSpace(bet.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	} else {
		receipt, err := s.replay(ctx, bet.UserID, key)
		if err != nil || receipt != nil {
			return receipt, err
		}
	}

	user, err := s.users.GetByID(ctx, bet.UserID)
	if err != nil {
		return nil, translate(err)
	}
	if bet.BetAmount.GreaterThan(user.Balance) {
		return nil, ErrInsufficientBalance
	}

	nonce, err := s.users.NextNonce(ctx, bet.UserID)
	if err != nil {
		return nil, translate(err)
	}
	commit, err := fairness.Commit(bet.ClientSeed, nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to commit seeds: %w", err)
	}

	outcome, err := g.Play(s.sources(commit.Seeds), bet.BetAmount, bet.Params)
	if err != nil {
		return nil, invalidInput("%v", err)
	}
	payout, err := g.Payout(bet.BetAmount, outcome)
	if err != nil {
		return nil, fmt.Errorf("failed to compute payout: %w", err)
	}

	entry, err := s.ledger.DebitAndCredit(ctx, model.Settlement{
		Key:        key,
		UserID:     bet.UserID,
		BetAmount:  bet.BetAmount,
		WinAmount:  payout.WinAmount,
		LossAmount: payout.LossAmount,
	})
	if errors.Is(err, repository.ErrDuplicateSettlement) {
		// a concurrent request with the same key won the ledger write
		return s.awaitReplay(ctx, bet.UserID, key, entry)
	}
	if err != nil {
		return nil, translate(err)
	}

	rec := &model.GameRecord{
		UserID:         bet.UserID,
		GameType:       g.Type(),
		BetAmount:      bet.BetAmount,
		WinAmount:      payout.WinAmount,
		LossAmount:     payout.LossAmount,
		Outcome:        outcome,
		IdempotencyKey: key,
		Fairness:       commit.Fairness(g.Type(), bet.BetAmount),
	}
	stored, err := appendRecord(ctx, s.records, s.retry, rec)
	if err != nil {
		consistencyWarning(err, bet.UserID, key, "Balance settled but game record append failed")
		return nil, storageUnavailable(err)
	}

	log.Info().
		Str("user_id", bet.UserID).
		Str("game", string(g.Type())).
		Str("bet", bet.BetAmount.String()).
		Str("win", payout.WinAmount.String()).
		Str("balance", entry.BalanceAfter.String()).
		Int64("record_id", stored.ID).
		Msg("Bet settled")

	publish(ctx, s.publisher, stored, entry.BalanceAfter)

	return &model.SettlementReceipt{Record: stored, NewBalance: entry.BalanceAfter}, nil
}

func (s *SettlementService) validate(bet *model.Bet) (game.Game, error) {
	if strings.TrimSpace(bet.UserID) == "" {
		return nil, invalidInput("user id is required")
	}
	if _, err := model.ParseGameType(string(bet.GameType)); err != nil {
		return nil, invalidInput("%v", err)
	}
	g, ok := s.games.Get(bet.GameType)
	if !ok {
		return nil, invalidInput("game %s is not available", bet.GameType)
	}
	if err := validateAmount(bet.BetAmount, g.MaxBet()); err != nil {
		return nil, err
	}
	if err := g.ValidateParams(bet.Params); err != nil {
		return nil, invalidInput("%v", err)
	}
	return g, nil
}

// replay returns the prior receipt for key, or nil when the key is unused.
func (s *SettlementService) replay(ctx context.Context, userID, key string) (*model.SettlementReceipt, error) {
	rec, err := s.records.GetByIdempotencyKey(ctx, key)
	if err == nil {
		if rec.UserID != userID {
			return nil, invalidInput("idempotency key belongs to another user")
		}
		return s.receiptFor(ctx, rec)
	}
	if !errors.Is(err, repository.ErrRecordNotFound) {
		return nil, storageUnavailable(err)
	}

	entry, err := s.ledger.Entry(ctx, key)
	switch {
	case errors.Is(err, repository.ErrEntryNotFound):
		return nil, nil
	case err != nil:
		return nil, storageUnavailable(err)
	}
	return s.awaitReplay(ctx, userID, key, entry)
}

// awaitReplay waits for the winner of a same-key race to append its record.
func (s *SettlementService) awaitReplay(ctx context.Context, userID, key string, prior *model.LedgerEntry) (*model.SettlementReceipt, error) {
	if prior != nil && prior.UserID != userID {
		return nil, invalidInput("idempotency key belongs to another user")
	}

	var rec *model.GameRecord
	err := s.retry.do(ctx, "await settlement record", func() error {
		var err error
		rec, err = s.records.GetByIdempotencyKey(ctx, key)
		return err
	})
	if err != nil {
		// money moved under this key but its record never showed up
		consistencyWarning(err, userID, key, "Ledger entry without game record")
		return nil, storageUnavailable(err)
	}
	return s.receiptFor(ctx, rec)
}

func (s *SettlementService) receiptFor(ctx context.Context, rec *model.GameRecord) (*model.SettlementReceipt, error) {
	balance, err := balanceAfter(ctx, s.ledger, s.users, rec.IdempotencyKey, rec.UserID)
	if err != nil {
		return nil, err
	}
	return &model.SettlementReceipt{Record: rec, NewBalance: balance, Replayed: true}, nil
}

// balanceAfter returns the balance recorded by the ledger entry for key,
// falling back to the user's current balance.
func balanceAfter(ctx context.Context, ledger Ledger, users UserRepository, key, userID string) (decimal.Decimal, error) {
	entry, err := ledger.Entry(ctx, key)
	if err == nil {
		return entry.BalanceAfter, nil
	}
	if !errors.Is(err, repository.ErrEntryNotFound) {
		return decimal.Zero, storageUnavailable(err)
	}
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return decimal.Zero, translate(err)
	}
	return user.Balance, nil
}

// appendRecord appends rec with retries and returns the stored copy.
func appendRecord(ctx context.Context, records GameRecordStore, retry RetryPolicy, rec *model.GameRecord) (*model.GameRecord, error) {
	var id int64
	err := retry.do(ctx, "append game record", func() error {
		var err error
		id, err = records.Append(ctx, rec)
		return err
	})
	if err != nil {
		return nil, err
	}

	stored, err := records.Get(ctx, id)
	if err != nil {
		log.Warn().Err(err).Int64("record_id", id).Msg("Failed to read back game record")
		cp := *rec
		cp.ID = id
		return &cp, nil
	}
	return stored, nil
}

func publish(ctx context.Context, p Publisher, rec *model.GameRecord, balance decimal.Decimal) {
	if p == nil {
		return
	}
	if err := p.PublishSettled(ctx, rec, balance); err != nil {
		log.Warn().Err(err).Int64("record_id", rec.ID).Msg("Failed to publish settled event")
	}
}

// permanent stops a retry loop on errors that will not go away.
func permanent(err error, stop ...error) error {
	for _, s := range stop {
		if errors.Is(err, s) {
			return backoff.Permanent(err)
		}
	}
	return err
}
