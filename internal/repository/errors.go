// Package repository provides data access layer implementations.
// PostgreSQL implementations live in this package; in-memory ones in
// repository/memory. Both return the sentinel errors below.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Common errors for repository operations.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already exists")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrEntryNotFound       = errors.New("ledger entry not found")
	ErrRecordNotFound      = errors.New("game record not found")
	ErrRoundNotFound       = errors.New("crash round not found")
	ErrRoundNotOpen        = errors.New("crash round is not open")
	ErrRoundExists         = errors.New("crash round already exists")

	// ErrDuplicateSettlement is returned together with the previously applied
	// entry when a settlement key has already been used.
	ErrDuplicateSettlement = errors.New("settlement already applied")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
