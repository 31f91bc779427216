// Package memory provides in-process implementations of the repositories.
// They back the memory storage driver and the service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"skin-casino/internal/model"
	"skin-casino/internal/repository"
)

// UserRepository keeps users in a map. Balance mutations go through Ledger.
type UserRepository struct {
	mu     sync.RWMutex
	users  map[string]*model.User
	nonces map[string]int64
	now    func() time.Time
}

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:  make(map[string]*model.User),
		nonces: make(map[string]int64),
		now:    time.Now,
	}
}

// Create creates a new user with the given initial balance.
func (r *UserRepository) Create(_ context.Context, id, username string, initialBalance decimal.Decimal) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; ok {
		return nil, repository.ErrUserExists
	}
	now := r.now()
	u := &model.User{
		ID:           id,
		Username:     username,
		Balance:      initialBalance,
		TotalWagered: decimal.Zero,
		TotalWon:     decimal.Zero,
		TotalLost:    decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.users[id] = u

	cp := *u
	return &cp, nil
}

// GetByID returns a copy of the user.
func (r *UserRepository) GetByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// GetOrCreate retrieves a user, creating one if it doesn't exist.
func (r *UserRepository) GetOrCreate(ctx context.Context, id, username string, initialBalance decimal.Decimal) (*model.User, bool, error) {
	u, err := r.Create(ctx, id, username, initialBalance)
	if err == nil {
		return u, true, nil
	}
	u, err = r.GetByID(ctx, id)
	return u, false, err
}

// NextNonce increments and returns the user's fairness nonce.
func (r *UserRepository) NextNonce(_ context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return 0, repository.ErrUserNotFound
	}
	r.nonces[id]++
	return r.nonces[id], nil
}

// update applies fn to the stored user under the write lock.
func (r *UserRepository) update(id string, fn func(u *model.User) error) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	next := *u
	if err := fn(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = r.now()
	r.users[id] = &next

	cp := next
	return &cp, nil
}
