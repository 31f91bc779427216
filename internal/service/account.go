package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"skin-casino/internal/model"
	"skin-casino/internal/repository"
)

const maxUsernameLength = 255

// AccountService handles user account operations.
type AccountService struct {
	users          UserRepository
	ledger         Ledger
	initialBalance decimal.Decimal
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(users UserRepository, ledger Ledger, initialBalance decimal.Decimal) *AccountService {
	return &AccountService{
		users:          users,
		ledger:         ledger,
		initialBalance: initialBalance,
	}
}

// EnsureUser ensures a user exists, creating one with the initial balance
// if necessary. Returns the user and whether it was newly created.
func (s *AccountService) EnsureUser(ctx context.Context, userID, username string) (*model.User, bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, false, invalidInput("user id is required")
	}
	if len(username) > maxUsernameLength {
		return nil, false, invalidInput("username is longer than %d characters", maxUsernameLength)
	}

	user, created, err := s.users.GetOrCreate(ctx, userID, username, s.initialBalance)
	if err != nil {
		return nil, false, translate(err)
	}
	if created {
		log.Info().Str("user_id", userID).Str("balance", user.Balance.String()).Msg("User created")
	}
	return user, created, nil
}

// GetUser retrieves a user by ID.
func (s *AccountService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	return user, nil
}

// GetBalance retrieves a user's current balance.
func (s *AccountService) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return user.Balance, nil
}

// AdjustBalance changes a balance outside of game settlement. The delta may
// be negative but may not take the balance below zero.
func (s *AccountService) AdjustBalance(ctx context.Context, userID string, delta decimal.Decimal, reason string) (*model.User, error) {
	if delta.IsZero() {
		return nil, invalidInput("delta must not be zero")
	}
	if !delta.Equal(delta.Truncate(2)) {
		return nil, invalidInput("delta has more than two decimal places")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalidInput("reason is required")
	}

	user, err := s.ledger.Adjust(ctx, userID, delta, reason)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return nil, ErrInsufficientBalance
		}
		return nil, translate(err)
	}

	log.Info().
		Str("user_id", userID).
		Str("delta", delta.String()).
		Str("reason", reason).
		Str("balance", user.Balance.String()).
		Msg("Balance adjusted")
	return user, nil
}
