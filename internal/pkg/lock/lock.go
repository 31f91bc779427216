// Package lock provides per-user locking for balance mutations.
package lock

import (
	"context"
	"sync"
)

// userMutex is a one-slot semaphore shared by every goroutine holding or
// waiting for the same key. refs counts both; the entry is dropped at zero.
type userMutex struct {
	sem  chan struct{}
	refs int
}

// UserLock serializes operations per user while letting different users
// proceed independently.
type UserLock struct {
	mu    sync.Mutex
	locks map[string]*userMutex
	pool  sync.Pool
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return &UserLock{
		locks: make(map[string]*userMutex),
		pool: sync.Pool{
			New: func() any {
				return &userMutex{sem: make(chan struct{}, 1)}
			},
		},
	}
}

func (ul *UserLock) acquireRef(userID string) *userMutex {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	m, ok := ul.locks[userID]
	if !ok {
		m = ul.pool.Get().(*userMutex)
		ul.locks[userID] = m
	}
	m.refs++
	return m
}

func (ul *UserLock) releaseRef(userID string, m *userMutex) {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	m.refs--
	if m.refs == 0 {
		delete(ul.locks, userID)
		ul.pool.Put(m)
	}
}

// LockContext acquires the lock for a user or returns the context error.
func (ul *UserLock) LockContext(ctx context.Context, userID string) error {
	m := ul.acquireRef(userID)
	select {
	case m.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		ul.releaseRef(userID, m)
		return ctx.Err()
	}
}

// Unlock releases the lock for a user. Unlocking a key that is not held is a no-op.
func (ul *UserLock) Unlock(userID string) {
	ul.mu.Lock()
	m, ok := ul.locks[userID]
	ul.mu.Unlock()
	if !ok {
		return
	}

	select {
	case <-m.sem:
		ul.releaseRef(userID, m)
	default:
	}
}

// WithLock executes fn while holding the user's lock. The wait for the lock
// is bounded by ctx.
func (ul *UserLock) WithLock(ctx context.Context, userID string, fn func() error) error {
	if err := ul.LockContext(ctx, userID); err != nil {
		return err
	}
	defer ul.Unlock(userID)
	return fn()
}
