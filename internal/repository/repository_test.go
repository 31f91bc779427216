// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"skin-casino/internal/model"
	"skin-casino/internal/pkg/db"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a migrated PostgreSQL container and returns a pool.
// Skips the test if Docker is not available.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, db.Migrate(connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testRecord(userID, key, bet, win string) *model.GameRecord {
	return &model.GameRecord{
		UserID:     userID,
		GameType:   model.GameRoulette,
		BetAmount:  dec(bet),
		WinAmount:  dec(win),
		LossAmount: decimal.Zero,
		Outcome: model.RouletteOutcome{
			BetType: model.Red, Number: 3, Color: model.Red, Won: true,
		},
		IdempotencyKey: key,
		Fairness: model.Fairness{
			ServerSeed:     "server",
			ServerSeedHash: "server-hash",
			ClientSeed:     "client",
			Nonce:          1,
			FairnessHash:   "fairness-hash",
			GameHash:       "game-hash",
		},
	}
}

// ============================================================================
// UserRepository Tests
// ============================================================================

func TestUserRepository_Create(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	user, err := repo.Create(ctx, "u1", "alice", dec("1000"))
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, dec("1000").Equal(user.Balance))
	assert.Equal(t, int64(0), user.GamesPlayed)

	_, err = repo.Create(ctx, "u1", "alice", dec("1000"))
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewUserRepository(pool).GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_GetOrCreate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	user, created, err := repo.GetOrCreate(ctx, "u1", "alice", dec("500"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, dec("500").Equal(user.Balance))

	user, created, err = repo.GetOrCreate(ctx, "u1", "alice", dec("9999"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, dec("500").Equal(user.Balance), "existing balance kept")
}

func TestUserRepository_NextNonce(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()
	_, err := repo.Create(ctx, "u1", "alice", dec("100"))
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int64]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nonce, err := repo.NextNonce(ctx, "u1")
			assert.NoError(t, err)
			mu.Lock()
			seen[nonce] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
	for i := int64(1); i <= n; i++ {
		assert.True(t, seen[i], "nonce %d handed out", i)
	}

	_, err = repo.NextNonce(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPool_HealthCheck(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	assert.NoError(t, (&db.Pool{Pool: pool}).HealthCheck(context.Background()))
}

// ============================================================================
// Ledger Tests
// ============================================================================

func TestLedger_DebitAndCredit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	ledger := NewLedger(pool)
	ctx := context.Background()

	_, err := users.Create(ctx, "u1", "alice", dec("100"))
	require.NoError(t, err)

	entry, err := ledger.DebitAndCredit(ctx, model.Settlement{
		Key: "k1", UserID: "u1", BetAmount: dec("50"), WinAmount: dec("99"),
	})
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(entry.BalanceBefore))
	assert.True(t, dec("149").Equal(entry.BalanceAfter))
	assert.Equal(t, model.EntryKindSettlement, entry.Kind)

	user, err := users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, dec("149").Equal(user.Balance))
	assert.True(t, dec("50").Equal(user.TotalWagered))
	assert.True(t, dec("99").Equal(user.TotalWon))
	assert.Equal(t, int64(1), user.GamesPlayed)

	n, err := ledger.CountSettlements(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLedger_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	ledger := NewLedger(pool)
	ctx := context.Background()

	_, err := users.Create(ctx, "u1", "alice", dec("100"))
	require.NoError(t, err)

	first, err := ledger.DebitAndCredit(ctx, model.Settlement{Key: "k1", UserID: "u1", BetAmount: dec("10")})
	require.NoError(t, err)

	again, err := ledger.DebitAndCredit(ctx, model.Settlement{Key: "k1", UserID: "u1", BetAmount: dec("10")})
	assert.ErrorIs(t, err, ErrDuplicateSettlement)
	require.NotNil(t, again)
	assert.True(t, first.BalanceAfter.Equal(again.BalanceAfter))

	user, _ := users.GetByID(ctx, "u1")
	assert.True(t, dec("90").Equal(user.Balance))
}

func TestLedger_InsufficientBalance(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	ledger := NewLedger(pool)
	ctx := context.Background()

	_, err := users.Create(ctx, "u1", "alice", dec("10"))
	require.NoError(t, err)

	_, err = ledger.DebitAndCredit(ctx, model.Settlement{Key: "k1", UserID: "u1", BetAmount: dec("10.01")})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = ledger.Entry(ctx, "k1")
	assert.ErrorIs(t, err, ErrEntryNotFound)

	_, err = ledger.DebitAndCredit(ctx, model.Settlement{Key: "k2", UserID: "ghost", BetAmount: dec("1")})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLedger_ConcurrentDebits(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	ledger := NewLedger(pool)
	ctx := context.Background()

	_, err := users.Create(ctx, "u1", "alice", dec("100"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ledger.DebitAndCredit(ctx, model.Settlement{
				Key: fmt.Sprintf("k%d", i), UserID: "u1", BetAmount: dec("30"),
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	user, _ := users.GetByID(ctx, "u1")
	assert.True(t, dec("10").Equal(user.Balance))
}

func TestLedger_Adjust(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	ledger := NewLedger(pool)
	ctx := context.Background()

	_, err := users.Create(ctx, "u1", "alice", dec("100"))
	require.NoError(t, err)

	user, err := ledger.Adjust(ctx, "u1", dec("25.5"), "promo")
	require.NoError(t, err)
	assert.True(t, dec("125.5").Equal(user.Balance))

	_, err = ledger.Adjust(ctx, "u1", dec("-200"), "too much")
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	n, err := ledger.CountSettlements(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

// ============================================================================
// GameRepository Tests
// ============================================================================

func TestGameRepository_AppendAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	games := NewGameRepository(pool)
	ctx := context.Background()

	_, err := users.Create(ctx, "u1", "alice", dec("100"))
	require.NoError(t, err)

	id, err := games.Append(ctx, testRecord("u1", "k1", "10", "19.8"))
	require.NoError(t, err)
	assert.Positive(t, id)

	again, err := games.Append(ctx, testRecord("u1", "k1", "10", "19.8"))
	require.NoError(t, err)
	assert.Equal(t, id, again, "append is idempotent on key")

	rec, err := games.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.GameRoulette, rec.GameType)
	assert.True(t, dec("19.8").Equal(rec.WinAmount))
	assert.Equal(t, model.RouletteOutcome{BetType: model.Red, Number: 3, Color: model.Red, Won: true}, rec.Outcome)
	assert.Equal(t, "server", rec.Fairness.ServerSeed)

	byKey, err := games.GetByIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, id, byKey.ID)

	_, err = games.Get(ctx, id+100)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestGameRepository_RecentAndLeaderboard(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	games := NewGameRepository(pool)
	ctx := context.Background()

	for _, id := range []string{"alice", "bob"} {
		_, err := users.Create(ctx, id, id, dec("100"))
		require.NoError(t, err)
	}

	_, err := games.Append(ctx, testRecord("alice", "a1", "10", "19.8"))
	require.NoError(t, err)
	_, err = games.Append(ctx, testRecord("bob", "b1", "50", "99"))
	require.NoError(t, err)
	_, err = games.Append(ctx, testRecord("alice", "a2", "10", "0"))
	require.NoError(t, err)

	recent, err := games.RecentGlobal(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "a2", recent[0].IdempotencyKey)
	assert.Equal(t, "b1", recent[1].IdempotencyKey)

	mine, err := games.RecentByUser(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "a2", mine[0].IdempotencyKey)

	n, err := games.CountByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	board, err := games.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "bob", board[0].UserID)
	assert.Equal(t, "bob", board[0].Username)
	assert.True(t, dec("99").Equal(board[0].TotalWon))
	assert.Equal(t, int64(2), board[1].GamesPlayed)
}

// ============================================================================
// CrashRoundRepository Tests
// ============================================================================

func TestCrashRoundRepository_Lifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	rounds := NewCrashRoundRepository(pool)
	ctx := context.Background()

	_, err := users.Create(ctx, "u1", "alice", dec("100"))
	require.NoError(t, err)

	round := &model.CrashRound{
		ID:             "r1",
		UserID:         "u1",
		BetAmount:      dec("10"),
		CrashPoint:     dec("2.5"),
		Fairness:       testRecord("u1", "", "0", "0").Fairness,
		IdempotencyKey: "k1",
		Status:         model.CrashRoundOpen,
		CashOutAt:      decimal.Zero,
		StartedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, rounds.Create(ctx, round))
	assert.ErrorIs(t, rounds.Create(ctx, round), ErrRoundExists)

	open, err := rounds.CountOpen(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), open)

	got, err := rounds.GetByIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, dec("2.5").Equal(got.CrashPoint))
	assert.True(t, got.IsOpen())

	resolved, err := rounds.Resolve(ctx, "r1", model.CrashRoundCashedOut, dec("1.75"), time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.CrashRoundCashedOut, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = rounds.Resolve(ctx, "r1", model.CrashRoundBusted, dec("2.5"), time.Now())
	assert.ErrorIs(t, err, ErrRoundNotOpen)
	_, err = rounds.Resolve(ctx, "nope", model.CrashRoundBusted, dec("2.5"), time.Now())
	assert.ErrorIs(t, err, ErrRoundNotFound)
}
