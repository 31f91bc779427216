package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"skin-casino/internal/model"
	"skin-casino/internal/pkg/lock"
	"skin-casino/internal/repository"
)

// Ledger applies balance mutations to a UserRepository. The read, check and
// write of one user's balance happen under that user's lock, so settlements
// for different users never wait on each other.
type Ledger struct {
	users *UserRepository
	locks *lock.UserLock

	mu      sync.RWMutex
	entries map[string]*model.LedgerEntry
	pending map[string]string // key -> user id of the settlement in flight
	now     func() time.Time
}

// NewLedger creates a Ledger over users.
func NewLedger(users *UserRepository, locks *lock.UserLock) *Ledger {
	if locks == nil {
		locks = lock.NewUserLock()
	}
	return &Ledger{
		users:   users,
		locks:   locks,
		entries: make(map[string]*model.LedgerEntry),
		pending: make(map[string]string),
		now:     time.Now,
	}
}

// DebitAndCredit sets balance = balance - bet + win for the user. When the
// key was already applied it returns the prior entry with ErrDuplicateSettlement.
func (l *Ledger) DebitAndCredit(ctx context.Context, s model.Settlement) (*model.LedgerEntry, error) {
	var entry *model.LedgerEntry

	err := l.locks.WithLock(ctx, s.UserID, func() error {
		if prior, ok := l.reserve(s.Key, s.UserID); !ok {
			entry = prior
			return repository.ErrDuplicateSettlement
		}

		var before decimal.Decimal
		_, err := l.users.update(s.UserID, func(u *model.User) error {
			if s.BetAmount.GreaterThan(u.Balance) {
				return repository.ErrInsufficientBalance
			}
			before = u.Balance
			u.Balance = u.Balance.Sub(s.BetAmount).Add(s.WinAmount)
			u.TotalWagered = u.TotalWagered.Add(s.BetAmount)
			u.TotalWon = u.TotalWon.Add(s.WinAmount)
			u.TotalLost = u.TotalLost.Add(s.LossAmount)
			if s.BetAmount.IsPositive() {
				u.GamesPlayed++
			}
			return nil
		})
		if err != nil {
			l.release(s.Key)
			return err
		}

		entry = l.store(&model.LedgerEntry{
			IdempotencyKey: s.Key,
			UserID:         s.UserID,
			Kind:           model.EntryKindSettlement,
			BetAmount:      s.BetAmount,
			WinAmount:      s.WinAmount,
			BalanceBefore:  before,
			BalanceAfter:   before.Sub(s.BetAmount).Add(s.WinAmount),
		})
		return nil
	})
	if err != nil {
		return entry, err
	}
	return entry, nil
}

// Entry looks up a previously applied entry.
func (l *Ledger) Entry(_ context.Context, key string) (*model.LedgerEntry, error) {
	e, ok := l.lookup(key)
	if !ok {
		return nil, repository.ErrEntryNotFound
	}
	return e, nil
}

// Adjust changes a user's balance by delta outside of game settlement.
func (l *Ledger) Adjust(ctx context.Context, userID string, delta decimal.Decimal, reason string) (*model.User, error) {
	var user *model.User

	err := l.locks.WithLock(ctx, userID, func() error {
		var before decimal.Decimal
		var err error
		user, err = l.users.update(userID, func(u *model.User) error {
			after := u.Balance.Add(delta)
			if after.IsNegative() {
				return repository.ErrInsufficientBalance
			}
			before = u.Balance
			u.Balance = after
			return nil
		})
		if err != nil {
			return err
		}

		e := &model.LedgerEntry{
			IdempotencyKey: "adjust:" + uuid.NewString(),
			UserID:         userID,
			Kind:           model.EntryKindAdjustment,
			BetAmount:      decimal.Zero,
			WinAmount:      decimal.Zero,
			BalanceBefore:  before,
			BalanceAfter:   user.Balance,
			Reason:         reason,
		}
		if delta.IsNegative() {
			e.BetAmount = delta.Neg()
		} else {
			e.WinAmount = delta
		}
		l.store(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CountSettlements counts settlement entries that took a stake from the user.
func (l *Ledger) CountSettlements(_ context.Context, userID string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var n int64
	for _, e := range l.entries {
		if e.UserID == userID && e.Kind == model.EntryKindSettlement && e.BetAmount.IsPositive() {
			n++
		}
	}
	return n, nil
}

func (l *Ledger) lookup(key string) (*model.LedgerEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[key]
	if !ok {
		return nil, false
	}
	cp := *e
	return &cp, true
}

// reserve claims key for userID. When the key is applied or claimed by a
// settlement in flight it returns that entry and false; an in-flight claim
// only carries the key and its user.
func (l *Ledger) reserve(key, userID string) (*model.LedgerEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[key]; ok {
		cp := *e
		return &cp, false
	}
	if owner, ok := l.pending[key]; ok {
		return &model.LedgerEntry{IdempotencyKey: key, UserID: owner, Kind: model.EntryKindSettlement}, false
	}
	l.pending[key] = userID
	return nil, true
}

func (l *Ledger) release(key string) {
	l.mu.Lock()
	delete(l.pending, key)
	l.mu.Unlock()
}

func (l *Ledger) store(e *model.LedgerEntry) *model.LedgerEntry {
	e.CreatedAt = l.now()

	l.mu.Lock()
	l.entries[e.IdempotencyKey] = e
	delete(l.pending, e.IdempotencyKey)
	l.mu.Unlock()

	cp := *e
	return &cp
}
