package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"skin-casino/internal/model"
)

const userColumns = `id, username, balance, total_wagered, total_won, total_lost, games_played, created_at, updated_at`

// UserRepository handles user data persistence.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create creates a new user with the given initial balance.
// Returns ErrUserExists if the ID is taken.
func (r *UserRepository) Create(ctx context.Context, id, username string, initialBalance decimal.Decimal) (*model.User, error) {
	query := `
		INSERT INTO users (id, username, balance, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, id, username, initialBalance))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrCreate retrieves a user, creating one if it doesn't exist.
// The boolean reports whether the user was created by this call.
func (r *UserRepository) GetOrCreate(ctx context.Context, id, username string, initialBalance decimal.Decimal) (*model.User, bool, error) {
	user, err := r.GetByID(ctx, id)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err = r.Create(ctx, id, username, initialBalance)
	if errors.Is(err, ErrUserExists) {
		// created concurrently
		user, err = r.GetByID(ctx, id)
		return user, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// NextNonce increments and returns the user's fairness nonce.
func (r *UserRepository) NextNonce(ctx context.Context, id string) (int64, error) {
	query := `UPDATE users SET last_nonce = last_nonce + 1 WHERE id = $1 RETURNING last_nonce`

	var nonce int64
	if err := r.pool.QueryRow(ctx, query, id).Scan(&nonce); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to advance nonce: %w", err)
	}
	return nonce, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Balance,
		&u.TotalWagered,
		&u.TotalWon,
		&u.TotalLost,
		&u.GamesPlayed,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
