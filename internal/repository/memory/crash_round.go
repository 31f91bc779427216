package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"skin-casino/internal/model"
	"skin-casino/internal/repository"
)

// CrashRoundRepository keeps live crash rounds in a map.
type CrashRoundRepository struct {
	mu     sync.RWMutex
	rounds map[string]*model.CrashRound
	byKey  map[string]string
}

// NewCrashRoundRepository creates an empty CrashRoundRepository.
func NewCrashRoundRepository() *CrashRoundRepository {
	return &CrashRoundRepository{
		rounds: make(map[string]*model.CrashRound),
		byKey:  make(map[string]string),
	}
}

// Create stores a new open round.
func (r *CrashRoundRepository) Create(_ context.Context, round *model.CrashRound) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byKey[round.IdempotencyKey]; ok {
		return repository.ErrRoundExists
	}
	cp := *round
	r.rounds[cp.ID] = &cp
	r.byKey[cp.IdempotencyKey] = cp.ID
	return nil
}

// Get retrieves a round by id.
func (r *CrashRoundRepository) Get(_ context.Context, id string) (*model.CrashRound, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	round, ok := r.rounds[id]
	if !ok {
		return nil, repository.ErrRoundNotFound
	}
	cp := *round
	return &cp, nil
}

// GetByIdempotencyKey retrieves the round placed under key.
func (r *CrashRoundRepository) GetByIdempotencyKey(ctx context.Context, key string) (*model.CrashRound, error) {
	r.mu.RLock()
	id, ok := r.byKey[key]
	r.mu.RUnlock()
	if !ok {
		return nil, repository.ErrRoundNotFound
	}
	return r.Get(ctx, id)
}

// Resolve moves an open round to status. Only the first resolution wins.
func (r *CrashRoundRepository) Resolve(_ context.Context, id string, status model.CrashRoundStatus, cashOutAt decimal.Decimal, at time.Time) (*model.CrashRound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	round, ok := r.rounds[id]
	if !ok {
		return nil, repository.ErrRoundNotFound
	}
	if !round.IsOpen() {
		return nil, repository.ErrRoundNotOpen
	}
	round.Status = status
	round.CashOutAt = cashOutAt
	round.ResolvedAt = &at

	cp := *round
	return &cp, nil
}

// CountOpen counts a user's unresolved rounds.
func (r *CrashRoundRepository) CountOpen(_ context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, round := range r.rounds {
		if round.UserID == userID && round.IsOpen() {
			n++
		}
	}
	return n, nil
}
