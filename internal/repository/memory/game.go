package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"skin-casino/internal/model"
	"skin-casino/internal/repository"
)

// GameRepository is an append-only in-memory game history.
type GameRepository struct {
	mu      sync.RWMutex
	records []*model.GameRecord
	byKey   map[string]int64
	now     func() time.Time
}

// NewGameRepository creates an empty GameRepository.
func NewGameRepository() *GameRepository {
	return &GameRepository{
		byKey: make(map[string]int64),
		now:   time.Now,
	}
}

// Append stores a copy of rec and returns its id. Ids start at 1 and
// follow insertion order.
func (r *GameRepository) Append(_ context.Context, rec *model.GameRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byKey[rec.IdempotencyKey]; ok {
		return id, nil
	}

	cp := *rec
	cp.ID = int64(len(r.records) + 1)
	cp.CreatedAt = r.now()
	r.records = append(r.records, &cp)
	r.byKey[cp.IdempotencyKey] = cp.ID
	return cp.ID, nil
}

// Get retrieves a record by id.
func (r *GameRepository) Get(_ context.Context, id int64) (*model.GameRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id < 1 || id > int64(len(r.records)) {
		return nil, repository.ErrRecordNotFound
	}
	cp := *r.records[id-1]
	return &cp, nil
}

// GetByIdempotencyKey retrieves the record settled under key.
func (r *GameRepository) GetByIdempotencyKey(ctx context.Context, key string) (*model.GameRecord, error) {
	r.mu.RLock()
	id, ok := r.byKey[key]
	r.mu.RUnlock()
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return r.Get(ctx, id)
}

// RecentByUser returns a user's most recent records, newest first.
func (r *GameRepository) RecentByUser(_ context.Context, userID string, limit int) ([]*model.GameRecord, error) {
	return r.recent(limit, func(rec *model.GameRecord) bool { return rec.UserID == userID }), nil
}

// RecentGlobal returns the most recent records, newest first.
func (r *GameRepository) RecentGlobal(_ context.Context, limit int) ([]*model.GameRecord, error) {
	return r.recent(limit, func(*model.GameRecord) bool { return true }), nil
}

// Leaderboard aggregates records per user, ordered by total won.
// Usernames are not known here and are left empty.
func (r *GameRepository) Leaderboard(_ context.Context, limit int) ([]*model.LeaderboardEntry, error) {
	r.mu.RLock()
	byUser := make(map[string]*model.LeaderboardEntry)
	for _, rec := range r.records {
		e, ok := byUser[rec.UserID]
		if !ok {
			e = &model.LeaderboardEntry{UserID: rec.UserID, TotalWon: decimal.Zero, TotalWagered: decimal.Zero}
			byUser[rec.UserID] = e
		}
		e.TotalWon = e.TotalWon.Add(rec.WinAmount)
		e.TotalWagered = e.TotalWagered.Add(rec.BetAmount)
		e.GamesPlayed++
	}
	r.mu.RUnlock()

	entries := make([]*model.LeaderboardEntry, 0, len(byUser))
	for _, e := range byUser {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if c := entries[i].TotalWon.Cmp(entries[j].TotalWon); c != 0 {
			return c > 0
		}
		return entries[i].UserID < entries[j].UserID
	})
	if len(entries) > max(limit, 0) {
		entries = entries[:max(limit, 0)]
	}
	return entries, nil
}

// CountByUser counts a user's records.
func (r *GameRepository) CountByUser(_ context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, rec := range r.records {
		if rec.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *GameRepository) recent(limit int, match func(*model.GameRecord) bool) []*model.GameRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit = max(limit, 0)
	out := make([]*model.GameRecord, 0, min(limit, len(r.records)))
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		if match(r.records[i]) {
			cp := *r.records[i]
			out = append(out, &cp)
		}
	}
	return out
}
