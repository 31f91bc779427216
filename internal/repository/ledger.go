package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"skin-casino/internal/model"
)

const entryColumns = `idempotency_key, user_id, kind, bet_amount, win_amount, balance_before, balance_after, reason, created_at`

// Ledger applies balance mutations in PostgreSQL. Each mutation locks the
// user row with SELECT ... FOR UPDATE and writes its ledger entry in the
// same transaction.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a new Ledger instance.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// DebitAndCredit sets balance = balance - bet + win for the user. When the
// key was already applied it returns the prior entry with ErrDuplicateSettlement.
func (l *Ledger) DebitAndCredit(ctx context.Context, s model.Settlement) (*model.LedgerEntry, error) {
	var entry *model.LedgerEntry

	err := pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		balance, err := lockBalance(ctx, tx, s.UserID)
		if err != nil {
			return err
		}

		prior, err := getEntry(ctx, tx, s.Key)
		if err == nil {
			entry = prior
			return ErrDuplicateSettlement
		}
		if !errors.Is(err, ErrEntryNotFound) {
			return err
		}

		if s.BetAmount.GreaterThan(balance) {
			return ErrInsufficientBalance
		}
		after := balance.Sub(s.BetAmount).Add(s.WinAmount)

		played := 0
		if s.BetAmount.IsPositive() {
			played = 1
		}
		_, err = tx.Exec(ctx, `
			UPDATE users
			SET balance = $2,
			    total_wagered = total_wagered + $3,
			    total_won = total_won + $4,
			    total_lost = total_lost + $5,
			    games_played = games_played + $6,
			    updated_at = NOW()
			WHERE id = $1
		`, s.UserID, after, s.BetAmount, s.WinAmount, s.LossAmount, played)
		if err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}

		entry, err = insertEntry(ctx, tx, &model.LedgerEntry{
			IdempotencyKey: s.Key,
			UserID:         s.UserID,
			Kind:           model.EntryKindSettlement,
			BetAmount:      s.BetAmount,
			WinAmount:      s.WinAmount,
			BalanceBefore:  balance,
			BalanceAfter:   after,
		}, s.LossAmount)
		return err
	})

	switch {
	case err == nil:
		return entry, nil
	case errors.Is(err, ErrDuplicateSettlement):
		return entry, ErrDuplicateSettlement
	case isUniqueViolation(err):
		// lost an insert race on the key
		prior, getErr := l.Entry(ctx, s.Key)
		if getErr != nil {
			return nil, getErr
		}
		return prior, ErrDuplicateSettlement
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrInsufficientBalance):
		return nil, err
	default:
		return nil, fmt.Errorf("failed to settle: %w", err)
	}
}

// Entry looks up a previously applied entry.
func (l *Ledger) Entry(ctx context.Context, key string) (*model.LedgerEntry, error) {
	return getEntry(ctx, l.pool, key)
}

// Adjust changes a user's balance by delta outside of game settlement.
// A result below zero is rejected with ErrInsufficientBalance.
func (l *Ledger) Adjust(ctx context.Context, userID string, delta decimal.Decimal, reason string) (*model.User, error) {
	var user *model.User

	err := pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		balance, err := lockBalance(ctx, tx, userID)
		if err != nil {
			return err
		}
		after := balance.Add(delta)
		if after.IsNegative() {
			return ErrInsufficientBalance
		}

		user, err = scanUser(tx.QueryRow(ctx, `
			UPDATE users SET balance = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING `+userColumns, userID, after))
		if err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}

		_, err = insertEntry(ctx, tx, adjustmentEntry(userID, balance, delta, reason), decimal.Zero)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrInsufficientBalance) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to adjust balance: %w", err)
	}
	return user, nil
}

// CountSettlements counts settlement entries that took a stake from the user.
func (l *Ledger) CountSettlements(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := l.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM ledger_entries
		WHERE user_id = $1 AND kind = $2 AND bet_amount > 0
	`, userID, model.EntryKindSettlement).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count settlements: %w", err)
	}
	return n, nil
}

func adjustmentEntry(userID string, before, delta decimal.Decimal, reason string) *model.LedgerEntry {
	e := &model.LedgerEntry{
		IdempotencyKey: "adjust:" + uuid.NewString(),
		UserID:         userID,
		Kind:           model.EntryKindAdjustment,
		BetAmount:      decimal.Zero,
		WinAmount:      decimal.Zero,
		BalanceBefore:  before,
		BalanceAfter:   before.Add(delta),
		Reason:         reason,
	}
	if delta.IsNegative() {
		e.BetAmount = delta.Neg()
	} else {
		e.WinAmount = delta
	}
	return e
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func lockBalance(ctx context.Context, tx pgx.Tx, userID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to lock user: %w", err)
	}
	return balance, nil
}

func getEntry(ctx context.Context, q querier, key string) (*model.LedgerEntry, error) {
	e, err := scanEntry(q.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE idempotency_key = $1`, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return e, nil
}

func insertEntry(ctx context.Context, tx pgx.Tx, e *model.LedgerEntry, loss decimal.Decimal) (*model.LedgerEntry, error) {
	err := tx.QueryRow(ctx, `
		INSERT INTO ledger_entries
			(idempotency_key, user_id, kind, bet_amount, win_amount, loss_amount, balance_before, balance_after, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at
	`, e.IdempotencyKey, e.UserID, e.Kind, e.BetAmount, e.WinAmount, loss, e.BalanceBefore, e.BalanceAfter, e.Reason).Scan(&e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func scanEntry(row pgx.Row) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	err := row.Scan(
		&e.IdempotencyKey,
		&e.UserID,
		&e.Kind,
		&e.BetAmount,
		&e.WinAmount,
		&e.BalanceBefore,
		&e.BalanceAfter,
		&e.Reason,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
