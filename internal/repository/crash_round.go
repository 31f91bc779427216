package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"skin-casino/internal/model"
)

const crashRoundColumns = `id, user_id, bet_amount, crash_point, server_seed, server_seed_hash, client_seed, nonce,
	fairness_hash, game_hash, idempotency_key, status, cash_out_at, started_at, resolved_at`

// CrashRoundRepository persists live crash rounds in PostgreSQL.
type CrashRoundRepository struct {
	pool *pgxpool.Pool
}

// NewCrashRoundRepository creates a new CrashRoundRepository instance.
func NewCrashRoundRepository(pool *pgxpool.Pool) *CrashRoundRepository {
	return &CrashRoundRepository{pool: pool}
}

// Create stores a new open round.
func (r *CrashRoundRepository) Create(ctx context.Context, round *model.CrashRound) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO crash_rounds (id, user_id, bet_amount, crash_point, server_seed, server_seed_hash, client_seed,
			nonce, fairness_hash, game_hash, idempotency_key, status, cash_out_at, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		round.ID, round.UserID, round.BetAmount, round.CrashPoint,
		round.Fairness.ServerSeed, round.Fairness.ServerSeedHash, round.Fairness.ClientSeed, round.Fairness.Nonce,
		round.Fairness.FairnessHash, round.Fairness.GameHash, round.IdempotencyKey,
		string(round.Status), round.CashOutAt, round.StartedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRoundExists
		}
		return fmt.Errorf("failed to create crash round: %w", err)
	}
	return nil
}

// Get retrieves a round by id.
func (r *CrashRoundRepository) Get(ctx context.Context, id string) (*model.CrashRound, error) {
	return r.getOne(ctx, `SELECT `+crashRoundColumns+` FROM crash_rounds WHERE id = $1`, id)
}

// GetByIdempotencyKey retrieves the round placed under key.
func (r *CrashRoundRepository) GetByIdempotencyKey(ctx context.Context, key string) (*model.CrashRound, error) {
	return r.getOne(ctx, `SELECT `+crashRoundColumns+` FROM crash_rounds WHERE idempotency_key = $1`, key)
}

// Resolve moves an open round to status. Only the first resolution wins;
// later calls get ErrRoundNotOpen.
func (r *CrashRoundRepository) Resolve(ctx context.Context, id string, status model.CrashRoundStatus, cashOutAt decimal.Decimal, at time.Time) (*model.CrashRound, error) {
	round, err := scanCrashRound(r.pool.QueryRow(ctx, `
		UPDATE crash_rounds
		SET status = $2, cash_out_at = $3, resolved_at = $4
		WHERE id = $1 AND status = 'open'
		RETURNING `+crashRoundColumns, id, string(status), cashOutAt, at))
	if err == nil {
		return round, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to resolve crash round: %w", err)
	}

	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrRoundNotOpen
}

// CountOpen counts a user's unresolved rounds.
func (r *CrashRoundRepository) CountOpen(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM crash_rounds WHERE user_id = $1 AND status = 'open'`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count open crash rounds: %w", err)
	}
	return n, nil
}

func (r *CrashRoundRepository) getOne(ctx context.Context, query string, arg any) (*model.CrashRound, error) {
	round, err := scanCrashRound(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to get crash round: %w", err)
	}
	return round, nil
}

func scanCrashRound(row pgx.Row) (*model.CrashRound, error) {
	var (
		round  model.CrashRound
		status string
	)
	err := row.Scan(
		&round.ID,
		&round.UserID,
		&round.BetAmount,
		&round.CrashPoint,
		&round.Fairness.ServerSeed,
		&round.Fairness.ServerSeedHash,
		&round.Fairness.ClientSeed,
		&round.Fairness.Nonce,
		&round.Fairness.FairnessHash,
		&round.Fairness.GameHash,
		&round.IdempotencyKey,
		&status,
		&round.CashOutAt,
		&round.StartedAt,
		&round.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	round.Status = model.CrashRoundStatus(status)
	return &round, nil
}
