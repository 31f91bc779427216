package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"skin-casino/internal/fairness"
	"skin-casino/internal/game/crash"
	"skin-casino/internal/model"
	"skin-casino/internal/repository"
)

// CrashBet is a request to open a live crash round.
type CrashBet struct {
	UserID         string
	BetAmount      decimal.Decimal
	ClientSeed     string
	IdempotencyKey string
}

// CrashTicket is handed out when a round opens. The crash point stays hidden;
// ServerSeedHash commits to it.
type CrashTicket struct {
	Round          *model.CrashRound
	ServerSeedHash string
	NewBalance     decimal.Decimal
	Replayed       bool
}

// CrashResult describes a round after cash-out or bust. Record is nil while
// the round is open.
type CrashResult struct {
	Round      *model.CrashRound
	Record     *model.GameRecord
	Multiplier decimal.Decimal
	NewBalance decimal.Decimal
}

// CrashRoundConfig holds optional collaborators of the crash round service.
type CrashRoundConfig struct {
	Publisher Publisher
	Sources   SourceFactory
	Retry     RetryPolicy
	Now       func() time.Time
}

// CrashRoundService runs live crash rounds. The stake is debited when the
// round opens; the multiplier grows with server time and the round pays
// out bet x multiplier if cashed out before the committed crash point.
// Rounds are resolved on request only, there is no background ticker.
type CrashRoundService struct {
	users     UserRepository
	ledger    Ledger
	records   GameRecordStore
	rounds    CrashRoundStore
	game      *crash.CrashGame
	publisher Publisher
	sources   SourceFactory
	retry     RetryPolicy
	now       func() time.Time
}

// NewCrashRoundService creates a new CrashRoundService instance.
func NewCrashRoundService(
	users UserRepository,
	ledger Ledger,
	records GameRecordStore,
	rounds CrashRoundStore,
	g *crash.CrashGame,
	cfg *CrashRoundConfig,
) *CrashRoundService {
	if cfg == nil {
		cfg = &CrashRoundConfig{}
	}
	s := &CrashRoundService{
		users:     users,
		ledger:    ledger,
		records:   records,
		rounds:    rounds,
		game:      g,
		publisher: cfg.Publisher,
		sources:   cfg.Sources,
		retry:     cfg.Retry.withDefaults(),
		now:       cfg.Now,
	}
	if s.sources == nil {
		s.sources = DefaultSourceFactory
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// PlaceBet debits the stake and opens a round with a committed crash point.
func (s *CrashRoundService) PlaceBet(ctx context.Context, bet CrashBet) (*CrashTicket, error) {
	if strings.TrimSpace(bet.UserID) == "" {
		return nil, invalidInput("user id is required")
	}
	if err := validateAmount(bet.BetAmount, s.game.MaxBet()); err != nil {
		return nil, err
	}

	key := strings.TrimSpace(bet.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	} else {
		ticket, err := s.replayBet(ctx, bet.UserID, key)
		if err != nil || ticket != nil {
			return ticket, err
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
	crashPoint := crash.GenerateCrashPoint(s.sources(commit.Seeds))

	entry, err := s.ledger.DebitAndCredit(ctx, model.Settlement{
		Key:       key,
		UserID:    bet.UserID,
		BetAmount: bet.BetAmount,
		WinAmount: decimal.Zero,
	})
	if errors.Is(err, repository.ErrDuplicateSettlement) {
		return s.awaitRound(ctx, bet.UserID, key, entry)
	}
	if err != nil {
		return nil, translate(err)
	}

	round := &model.CrashRound{
		ID:             uuid.NewString(),
		UserID:         bet.UserID,
		BetAmount:      bet.BetAmount,
		CrashPoint:     crashPoint,
		Fairness:       commit.Fairness(model.GameCrash, bet.BetAmount),
		IdempotencyKey: key,
		Status:         model.CrashRoundOpen,
		CashOutAt:      decimal.Zero,
		StartedAt:      s.now(),
	}
	err = s.retry.do(ctx, "create crash round", func() error {
		return permanent(s.rounds.Create(ctx, round), repository.ErrRoundExists)
	})
	if err != nil {
		consistencyWarning(err, bet.UserID, key, "Stake debited but crash round was not stored")
		return nil, storageUnavailable(err)
	}

	log.Info().
		Str("user_id", bet.UserID).
		Str("round_id", round.ID).
		Str("bet", bet.BetAmount.String()).
		Msg("Crash round opened")

	return &CrashTicket{Round: round, ServerSeedHash: commit.ServerSeedHash, NewBalance: entry.BalanceAfter}, nil
}

// CashOut resolves an open round at the current multiplier. When the
// multiplier has already reached the crash point the round is busted
// instead. userID must own the round.
func (s *CrashRoundService) CashOut(ctx context.Context, roundID, userID string) (*CrashResult, error) {
	round, err := s.rounds.Get(ctx, roundID)
	if err != nil {
		return nil, translate(err)
	}
	if round.UserID != userID {
		return nil, ErrRoundNotFound
	}

	if !round.IsOpen() {
		// finish a resolution that stopped half way, otherwise report it closed
		if _, err := s.records.GetByIdempotencyKey(ctx, round.IdempotencyKey); errors.Is(err, repository.ErrRecordNotFound) {
			return s.settle(ctx, round)
		}
		return nil, ErrRoundClosed
	}

	now := s.now()
	m := s.Multiplier(round, now)
	if m.LessThan(round.CrashPoint) {
		return s.resolve(ctx, round, model.CrashRoundCashedOut, m, now)
	}
	return s.resolve(ctx, round, model.CrashRoundBusted, round.CrashPoint, now)
}

// Round returns the current state of a round, busting it when the
// multiplier has passed the crash point.
func (s *CrashRoundService) Round(ctx context.Context, roundID string) (*CrashResult, error) {
	round, err := s.rounds.Get(ctx, roundID)
	if err != nil {
		return nil, translate(err)
	}

	now := s.now()
	if round.IsOpen() {
		m := s.Multiplier(round, now)
		if m.LessThan(round.CrashPoint) {
			return &CrashResult{Round: round, Multiplier: m}, nil
		}
		res, err := s.resolve(ctx, round, model.CrashRoundBusted, round.CrashPoint, now)
		if !errors.Is(err, ErrRoundClosed) {
			return res, err
		}
		// resolved concurrently
		if round, err = s.rounds.Get(ctx, roundID); err != nil {
			return nil, translate(err)
		}
	}

	rec, err := s.records.GetByIdempotencyKey(ctx, round.IdempotencyKey)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return s.settle(ctx, round)
	}
	if err != nil {
		return nil, storageUnavailable(err)
	}
	balance, err := balanceAfter(ctx, s.ledger, s.users, resolutionKey(round), round.UserID)
	if err != nil {
		return nil, err
	}
	return &CrashResult{Round: round, Record: rec, Multiplier: round.CashOutAt, NewBalance: balance}, nil
}

// Multiplier is the live multiplier of round at now.
func (s *CrashRoundService) Multiplier(round *model.CrashRound, now time.Time) decimal.Decimal {
	return crash.MultiplierAt(now.Sub(round.StartedAt), s.game.GrowthRate())
}

// replayBet returns the round already opened under key, or nil when the key is unused.
func (s *CrashRoundService) replayBet(ctx context.Context, userID, key string) (*CrashTicket, error) {
	round, err := s.rounds.GetByIdempotencyKey(ctx, key)
	if err == nil {
		return s.ticketFor(ctx, userID, round)
	}
	if !errors.Is(err, repository.ErrRoundNotFound) {
		return nil, storageUnavailable(err)
	}

	entry, err := s.ledger.Entry(ctx, key)
	switch {
	case errors.Is(err, repository.ErrEntryNotFound):
		return nil, nil
	case err != nil:
		return nil, storageUnavailable(err)
	}
	return s.awaitRound(ctx, userID, key, entry)
}

func (s *CrashRoundService) awaitRound(ctx context.Context, userID, key string, prior *model.LedgerEntry) (*CrashTicket, error) {
	if prior != nil && prior.UserID != userID {
		return nil, invalidInput("idempotency key belongs to another user")
	}

	var round *model.CrashRound
	err := s.retry.do(ctx, "await crash round", func() error {
		var err error
		round, err = s.rounds.GetByIdempotencyKey(ctx, key)
		return err
	})
	if err != nil {
		consistencyWarning(err, userID, key, "Stake debited without crash round")
		return nil, storageUnavailable(err)
	}
	return s.ticketFor(ctx, userID, round)
}

func (s *CrashRoundService) ticketFor(ctx context.Context, userID string, round *model.CrashRound) (*CrashTicket, error) {
	if round.UserID != userID {
		return nil, invalidInput("idempotency key belongs to another user")
	}
	balance, err := balanceAfter(ctx, s.ledger, s.users, round.IdempotencyKey, userID)
	if err != nil {
		return nil, err
	}
	return &CrashTicket{
		Round:          round,
		ServerSeedHash: round.Fairness.ServerSeedHash,
		NewBalance:     balance,
		Replayed:       true,
	}, nil
}

// resolve claims the round and settles it. Only the first caller wins the claim.
func (s *CrashRoundService) resolve(ctx context.Context, round *model.CrashRound, status model.CrashRoundStatus, at decimal.Decimal, now time.Time) (*CrashResult, error) {
	resolved, err := s.rounds.Resolve(ctx, round.ID, status, at, now)
	if err != nil {
		return nil, translate(err)
	}
	return s.settle(ctx, resolved)
}

// settle credits a resolved round and appends its record. Both writes are
// keyed, so running it again after a partial failure is safe.
func (s *CrashRoundService) settle(ctx context.Context, round *model.CrashRound) (*CrashResult, error) {
	outcome := model.CrashOutcome{
		CrashPoint: round.CrashPoint,
		CashOutAt:  round.CashOutAt,
		Live:       true,
		Won:        round.Status == model.CrashRoundCashedOut,
	}
	payout := crash.CalculatePayout(round.BetAmount, outcome)

	key := resolutionKey(round)
	var entry *model.LedgerEntry
	err := s.retry.do(ctx, "settle crash round", func() error {
		var err error
		entry, err = s.ledger.DebitAndCredit(ctx, model.Settlement{
			Key:        key,
			UserID:     round.UserID,
			BetAmount:  decimal.Zero,
			WinAmount:  payout.WinAmount,
			LossAmount: payout.LossAmount,
		})
		if errors.Is(err, repository.ErrDuplicateSettlement) {
			return nil
		}
		return permanent(err, repository.ErrUserNotFound)
	})
	if err != nil {
		consistencyWarning(err, round.UserID, key, "Crash round resolved but payout was not applied")
		return nil, storageUnavailable(err)
	}

	rec := &model.GameRecord{
		UserID:         round.UserID,
		GameType:       model.GameCrash,
		BetAmount:      round.BetAmount,
		WinAmount:      payout.WinAmount,
		LossAmount:     payout.LossAmount,
		Outcome:        outcome,
		IdempotencyKey: round.IdempotencyKey,
		Fairness:       round.Fairness,
	}
	stored, err := appendRecord(ctx, s.records, s.retry, rec)
	if err != nil {
		consistencyWarning(err, round.UserID, round.IdempotencyKey, "Crash round settled but game record append failed")
		return nil, storageUnavailable(err)
	}

	log.Info().
		Str("user_id", round.UserID).
		Str("round_id", round.ID).
		Str("status", string(round.Status)).
		Str("multiplier", round.CashOutAt.String()).
		Str("win", payout.WinAmount.String()).
		Msg("Crash round resolved")

	publish(ctx, s.publisher, stored, entry.BalanceAfter)

	return &CrashResult{Round: round, Record: stored, Multiplier: round.CashOutAt, NewBalance: entry.BalanceAfter}, nil
}

// resolutionKey is the ledger key of a round's payout entry.
func resolutionKey(round *model.CrashRound) string {
	if round.Status == model.CrashRoundCashedOut {
		return round.ID + ":cashout"
	}
	return round.ID + ":bust"
}
