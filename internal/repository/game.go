package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"skin-casino/internal/model"
)

const gameColumns = `id, user_id, game_type, bet_amount, win_amount, loss_amount, outcome, idempotency_key,
	server_seed, server_seed_hash, client_seed, nonce, fairness_hash, game_hash, created_at`

// GameRepository is the append-only game history in PostgreSQL.
type GameRepository struct {
	pool *pgxpool.Pool
}

// NewGameRepository creates a new GameRepository instance.
func NewGameRepository(pool *pgxpool.Pool) *GameRepository {
	return &GameRepository{pool: pool}
}

// Append inserts a record and returns its id. Appending a record whose
// idempotency key already exists returns the existing id.
func (r *GameRepository) Append(ctx context.Context, rec *model.GameRecord) (int64, error) {
	payload, err := model.EncodeOutcome(rec.Outcome)
	if err != nil {
		return 0, err
	}

	var id int64
	err = r.pool.QueryRow(ctx, `
		INSERT INTO games (user_id, game_type, bet_amount, win_amount, loss_amount, outcome, idempotency_key,
			server_seed, server_seed_hash, client_seed, nonce, fairness_hash, game_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, clock_timestamp())
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id
	`,
		rec.UserID, string(rec.GameType), rec.BetAmount, rec.WinAmount, rec.LossAmount, payload, rec.IdempotencyKey,
		rec.Fairness.ServerSeed, rec.Fairness.ServerSeedHash, rec.Fairness.ClientSeed, rec.Fairness.Nonce,
		rec.Fairness.FairnessHash, rec.Fairness.GameHash,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to append game record: %w", err)
	}

	err = r.pool.QueryRow(ctx, `SELECT id FROM games WHERE idempotency_key = $1`, rec.IdempotencyKey).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to load existing game record: %w", err)
	}
	return id, nil
}

// Get retrieves a record by id.
func (r *GameRepository) Get(ctx context.Context, id int64) (*model.GameRecord, error) {
	return r.getOne(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id)
}

// GetByIdempotencyKey retrieves the record settled under key.
func (r *GameRepository) GetByIdempotencyKey(ctx context.Context, key string) (*model.GameRecord, error) {
	return r.getOne(ctx, `SELECT `+gameColumns+` FROM games WHERE idempotency_key = $1`, key)
}

// RecentByUser returns a user's most recent records, newest first.
// A non-positive limit yields no records.
func (r *GameRepository) RecentByUser(ctx context.Context, userID string, limit int) ([]*model.GameRecord, error) {
	return r.list(ctx, `SELECT `+gameColumns+` FROM games WHERE user_id = $1 ORDER BY id DESC LIMIT $2`, userID, max(limit, 0))
}

// RecentGlobal returns the most recent records across all users, newest first.
func (r *GameRepository) RecentGlobal(ctx context.Context, limit int) ([]*model.GameRecord, error) {
	return r.list(ctx, `SELECT `+gameColumns+` FROM games ORDER BY id DESC LIMIT $1`, max(limit, 0))
}

// Leaderboard aggregates records per user, ordered by total won.
func (r *GameRepository) Leaderboard(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT g.user_id, COALESCE(u.username, ''), SUM(g.win_amount), SUM(g.bet_amount), COUNT(*)
		FROM games g
		LEFT JOIN users u ON u.id = g.user_id
		GROUP BY g.user_id, u.username
		ORDER BY SUM(g.win_amount) DESC, g.user_id
		LIMIT $1
	`, max(limit, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []*model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.TotalWon, &e.TotalWagered, &e.GamesPlayed); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}
	return entries, nil
}

// CountByUser counts a user's records.
func (r *GameRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM games WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count game records: %w", err)
	}
	return n, nil
}

func (r *GameRepository) getOne(ctx context.Context, query string, arg any) (*model.GameRecord, error) {
	rec, err := scanGame(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get game record: %w", err)
	}
	return rec, nil
}

func (r *GameRepository) list(ctx context.Context, query string, args ...any) ([]*model.GameRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list game records: %w", err)
	}
	defer rows.Close()

	var records []*model.GameRecord
	for rows.Next() {
		rec, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game records: %w", err)
	}
	return records, nil
}

func scanGame(row pgx.Row) (*model.GameRecord, error) {
	var (
		rec      model.GameRecord
		gameType string
		payload  []byte
	)
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&gameType,
		&rec.BetAmount,
		&rec.WinAmount,
		&rec.LossAmount,
		&payload,
		&rec.IdempotencyKey,
		&rec.Fairness.ServerSeed,
		&rec.Fairness.ServerSeedHash,
		&rec.Fairness.ClientSeed,
		&rec.Fairness.Nonce,
		&rec.Fairness.FairnessHash,
		&rec.Fairness.GameHash,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.GameType = model.GameType(gameType)
	if rec.Outcome, err = model.DecodeOutcome(payload); err != nil {
		return nil, err
	}
	return &rec, nil
}
