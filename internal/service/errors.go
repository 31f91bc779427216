package service

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"skin-casino/internal/repository"
)

// Error kinds returned by the services. Callers match them with errors.Is;
// nothing from the storage layer leaks past this boundary.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrStorageUnavailable  = errors.New("storage unavailable")

	ErrRecordNotFound = errors.New("game record not found")
	ErrRoundNotFound  = errors.New("crash round not found")
	ErrRoundClosed    = errors.New("crash round already resolved")
)

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func storageUnavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

// translate maps repository errors onto service error kinds.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrInsufficientBalance):
		return ErrInsufficientBalance
	case errors.Is(err, repository.ErrRoundNotFound):
		return ErrRoundNotFound
	case errors.Is(err, repository.ErrRoundNotOpen):
		return ErrRoundClosed
	default:
		return storageUnavailable(err)
	}
}

// consistencyWarning reports money that moved without its history row. It is
// never returned to the caller and has to be reconciled out of band.
func consistencyWarning(err error, userID, key, msg string) {
	log.Warn().
		Bool("consistency_warning", true).
		Err(err).
		Str("user_id", userID).
		Str("idempotency_key", key).
		Msg(msg)
}
