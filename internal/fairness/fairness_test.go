package fairness

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"skin-casino/internal/model"
)

func TestCommit(t *testing.T) {
	c, err := Commit("my-seed", 7)
	require.NoError(t, err)

	assert.Len(t, c.ServerSeed, 64)
	assert.Equal(t, "my-seed", c.ClientSeed)
	assert.Equal(t, int64(7), c.Nonce)

	sum := sha256.Sum256([]byte(c.ServerSeed))
	assert.Equal(t, hex.EncodeToString(sum[:]), c.ServerSeedHash)
	assert.Equal(t, FairnessHash(c.Seeds), c.FairnessHash)
}

func TestCommit_GeneratesClientSeed(t *testing.T) {
	a, err := Commit("", 1)
	require.NoError(t, err)
	b, err := Commit("", 1)
	require.NoError(t, err)

	assert.Len(t, a.ClientSeed, 32)
	assert.NotEqual(t, a.ClientSeed, b.ClientSeed)
	assert.NotEqual(t, a.ServerSeed, b.ServerSeed)
}

func TestFairness_GameHashBindsStake(t *testing.T) {
	c := NewCommitment(Seeds{ServerSeed: "s", ClientSeed: "c", Nonce: 1})

	f := c.Fairness(model.GameCoinflip, decimal.NewFromInt(50))
	assert.Equal(t, "s", f.ServerSeed)
	assert.Equal(t, GameHash(c.FairnessHash, model.GameCoinflip, decimal.RequireFromString("50.00")), f.GameHash)
	assert.NotEqual(t, f.GameHash, c.Fairness(model.GameCoinflip, decimal.NewFromInt(51)).GameHash)
	assert.NotEqual(t, f.GameHash, c.Fairness(model.GameRoulette, decimal.NewFromInt(50)).GameHash)
}

func TestSource_Deterministic(t *testing.T) {
	seeds := Seeds{ServerSeed: "server", ClientSeed: "client", Nonce: 3}
	a, b := NewSource(seeds), NewSource(seeds)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}

	other := NewSource(Seeds{ServerSeed: "server", ClientSeed: "client", Nonce: 4})
	assert.NotEqual(t, NewSource(seeds).Float64(), other.Float64())
}

func TestSourceRangeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		src := NewSource(Seeds{
			ServerSeed: rapid.String().Draw(t, "server"),
			ClientSeed: rapid.String().Draw(t, "client"),
			Nonce:      rapid.Int64Range(1, 1<<40).Draw(t, "nonce"),
		})
		for i := 0; i < 12; i++ {
			if v := src.Float64(); v < 0 || v >= 1 {
				t.Fatalf("draw %d = %f outside [0,1)", i, v)
			}
		}
	})
}

func TestSource_Uniform(t *testing.T) {
	src := NewSource(Seeds{ServerSeed: "uniformity", ClientSeed: "check", Nonce: 1})
	const n = 50_000
	sum := 0.0
	below := 0
	for i := 0; i < n; i++ {
		v := src.Float64()
		sum += v
		if v < 0.25 {
			below++
		}
	}
	assert.InDelta(t, 0.5, sum/n, 0.01)
	assert.InDelta(t, 0.25, float64(below)/n, 0.01)
}
