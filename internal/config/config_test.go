package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.True(t, decimal.NewFromInt(1000).Equal(cfg.Accounts.InitialBalance))
	assert.True(t, decimal.RequireFromString("1.98").Equal(cfg.Games.Coinflip.Multiplier))
	assert.True(t, decimal.NewFromInt(14).Equal(cfg.Games.Roulette.GreenMultiplier))
	assert.True(t, decimal.RequireFromString("0.95").Equal(cfg.Games.Jackpot.PotShare))
	assert.Equal(t, uint64(3), cfg.Settlement.AppendRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.Settlement.AppendRetryInterval)
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
storage:
  driver: postgres
accounts:
  initial_balance: 250.50
games:
  coinflip:
    max_bet: "500"
admin:
  ids: [42, 43]
  api_key: secret
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("SERVER_ADDR", ":9090")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.True(t, decimal.RequireFromString("250.5").Equal(cfg.Accounts.InitialBalance))
	assert.True(t, decimal.NewFromInt(500).Equal(cfg.Games.Coinflip.MaxBet))
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.IsAdmin(42))
	assert.False(t, cfg.IsAdmin(7))
	assert.Equal(t, "secret", cfg.Admin.APIKey)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "mongo")
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestIsChatAllowed(t *testing.T) {
	cfg := &Config{}
	assert.True(t, cfg.IsChatAllowed(-100), "empty whitelist allows everything")

	cfg.Whitelist.Chats = []int64{-100}
	assert.True(t, cfg.IsChatAllowed(-100))
	assert.False(t, cfg.IsChatAllowed(-200))
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5432, Name: "n"}
	assert.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", d.DSN())
}
