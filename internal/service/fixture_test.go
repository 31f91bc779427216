package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"skin-casino/internal/fairness"
	"skin-casino/internal/game"
	"skin-casino/internal/game/coinflip"
	"skin-casino/internal/game/crash"
	"skin-casino/internal/game/gametest"
	"skin-casino/internal/game/jackpot"
	"skin-casino/internal/game/roulette"
	"skin-casino/internal/model"
	"skin-casino/internal/repository/memory"
	"skin-casino/internal/service"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fixed makes every settlement draw the same values.
func fixed(values ...float64) service.SourceFactory {
	return func(fairness.Seeds) game.Source { return gametest.NewSequence(values...) }
}

var fastRetry = service.RetryPolicy{MaxRetries: 8, Interval: time.Millisecond}

var errDiskFull = errors.New("disk full")

// flakyRecords fails the next `failures` appends, or every append when failures < 0.
type flakyRecords struct {
	*memory.GameRepository

	mu       sync.Mutex
	failures int
	attempts int
}

func (f *flakyRecords) Append(ctx context.Context, rec *model.GameRecord) (int64, error) {
	f.mu.Lock()
	f.attempts++
	fail := f.failures != 0
	if f.failures > 0 {
		f.failures--
	}
	f.mu.Unlock()

	if fail {
		return 0, errDiskFull
	}
	return f.GameRepository.Append(ctx, rec)
}

func (f *flakyRecords) failNext(n int) {
	f.mu.Lock()
	f.failures = n
	f.mu.Unlock()
}

type recordingPublisher struct {
	mu       sync.Mutex
	records  []*model.GameRecord
	balances []decimal.Decimal
}

func (p *recordingPublisher) PublishSettled(_ context.Context, rec *model.GameRecord, balance decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, rec)
	p.balances = append(p.balances, balance)
	return nil
}

type fixture struct {
	users     *memory.UserRepository
	ledger    *memory.Ledger
	records   *flakyRecords
	rounds    *memory.CrashRoundRepository
	registry  *game.Registry
	crash     *crash.CrashGame
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := memory.NewUserRepository()
	crashGame := crash.New(nil)
	registry, err := game.NewRegistry(
		coinflip.New(nil),
		crashGame,
		roulette.New(nil),
		jackpot.New(&jackpot.Config{MaxBet: dec("500")}),
	)
	require.NoError(t, err)

	return &fixture{
		users:     users,
		ledger:    memory.NewLedger(users, nil),
		records:   &flakyRecords{GameRepository: memory.NewGameRepository()},
		rounds:    memory.NewCrashRoundRepository(),
		registry:  registry,
		crash:     crashGame,
		publisher: &recordingPublisher{},
	}
}

func (f *fixture) user(t *testing.T, id, balance string) {
	t.Helper()
	_, err := f.users.Create(context.Background(), id, id, dec(balance))
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	u, err := f.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u.Balance
}

func (f *fixture) settlement(sources service.SourceFactory) *service.SettlementService {
	return service.NewSettlementService(f.users, f.ledger, f.records, f.registry, &service.SettlementConfig{
		Publisher: f.publisher,
		Sources:   sources,
		Retry:     fastRetry,
	})
}

func (f *fixture) crashRounds(sources service.SourceFactory, clock *fakeClock) *service.CrashRoundService {
	return service.NewCrashRoundService(f.users, f.ledger, f.records, f.rounds, f.crash, &service.CrashRoundConfig{
		Publisher: f.publisher,
		Sources:   sources,
		Retry:     fastRetry,
		Now:       clock.Now,
	})
}

func (f *fixture) auditor() *service.Auditor {
	return service.NewAuditor(f.users, f.ledger, f.records, f.rounds)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
