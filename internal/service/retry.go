package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	defaultRetries       = 3
	defaultRetryInterval = 50 * time.Millisecond
)

// RetryPolicy bounds the retries of idempotent storage writes.
type RetryPolicy struct {
	MaxRetries uint64
	Interval   time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries == 0 {
		p.MaxRetries = defaultRetries
	}
	if p.Interval <= 0 {
		p.Interval = defaultRetryInterval
	}
	return p
}

// do runs op with exponential backoff. op may return backoff.Permanent to stop early.
func (p RetryPolicy) do(ctx context.Context, what string, op func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.Interval
	b := backoff.WithContext(backoff.WithMaxRetries(exp, p.MaxRetries), ctx)

	return backoff.RetryNotify(op, b, func(err error, next time.Duration) {
		log.Warn().Err(err).Str("operation", what).Dur("retry_in", next).Msg("Retrying storage operation")
	})
}

// validateAmount checks a stake: positive, whole cents, within maxBet when one is set.
func validateAmount(amount, maxBet decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalidInput("bet amount must be positive")
	}
	if !amount.Equal(amount.Truncate(2)) {
		return invalidInput("bet amount has more than two decimal places")
	}
	if maxBet.IsPositive() && amount.GreaterThan(maxBet) {
		return invalidInput("bet amount exceeds maximum of %s", maxBet.StringFixed(2))
	}
	return nil
}
