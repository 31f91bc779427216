package crash

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"skin-casino/internal/game/gametest"
	"skin-casino/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestGenerateCrashPoint_Tiers(t *testing.T) {
	tests := []struct {
		name     string
		pick     float64
		u        float64
		expected string
	}{
		{"low tier start", 0.0, 0.0, "1"},
		{"low tier middle", 0.25, 0.5, "2"},
		{"low tier upper bound stays exclusive", 0.49, 0.9999999999999999, "2.99"},
		{"mid tier starts at half", 0.5, 0.0, "3"},
		{"mid tier", 0.7, 0.5, "6.5"},
		{"high tier starts at 0.8", 0.8, 0.0, "10"},
		{"high tier top", 0.99, 0.9999999999999999, "49.99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateCrashPoint(gametest.NewSequence(tt.pick, tt.u))
			assert.True(t, dec(tt.expected).Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestGenerateCrashPoint_FloorsToCents(t *testing.T) {
	// 1 + 0.123456 * 2 = 1.246912
	got := GenerateCrashPoint(gametest.NewSequence(0.1, 0.123456))
	assert.Equal(t, "1.24", got.String())
}

func TestDraw_ExplicitTarget(t *testing.T) {
	target := dec("2.00")

	// crash point 2.46 >= 2.00
	won := Draw(gametest.NewSequence(0.1, 0.73), &target)
	assert.True(t, won.Won)
	assert.False(t, won.AutoTarget)
	assert.True(t, target.Equal(won.CashOutAt))

	// crash point 1.50 < 2.00
	lost := Draw(gametest.NewSequence(0.1, 0.25), &target)
	assert.False(t, lost.Won)
}

func TestDraw_CrashPointEqualToTargetWins(t *testing.T) {
	target := dec("2")
	o := Draw(gametest.NewSequence(0.1, 0.5), &target)
	require.True(t, dec("2").Equal(o.CrashPoint))
	assert.True(t, o.Won)
}

func TestDraw_SyntheticTarget(t *testing.T) {
	src := gametest.NewSequence(0.9, 0.5, 0.25)
	o := Draw(src, nil)

	assert.True(t, o.AutoTarget)
	assert.Equal(t, 3, src.Draws())
	assert.True(t, dec("2").Equal(o.CashOutAt), "got %s", o.CashOutAt)
	assert.True(t, dec("30").Equal(o.CrashPoint), "got %s", o.CrashPoint)
	assert.True(t, o.Won)
}

func TestCalculatePayout(t *testing.T) {
	bet := dec("10")

	p := CalculatePayout(bet, model.CrashOutcome{CrashPoint: dec("3.2"), CashOutAt: dec("2.5"), Won: true})
	assert.True(t, dec("25").Equal(p.WinAmount))
	assert.True(t, p.LossAmount.IsZero())

	p = CalculatePayout(bet, model.CrashOutcome{CrashPoint: dec("1.2"), CashOutAt: dec("2.5")})
	assert.True(t, p.WinAmount.IsZero())
	assert.True(t, bet.Equal(p.LossAmount))
}

func TestCrashGame_ValidateParams(t *testing.T) {
	g := New(nil)

	tests := []struct {
		name    string
		params  map[string]any
		wantErr bool
	}{
		{"missing target", nil, false},
		{"minimum target", map[string]any{ParamCashOutAt: 1.01}, false},
		{"string target", map[string]any{ParamCashOutAt: "2.5"}, false},
		{"target below minimum", map[string]any{ParamCashOutAt: 1.0}, true},
		{"negative target", map[string]any{ParamCashOutAt: -3.0}, true},
		{"non numeric target", map[string]any{ParamCashOutAt: "moon"}, true},
		{"wrong type", map[string]any{ParamCashOutAt: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.ValidateParams(tt.params)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCashOut)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMultiplierAt(t *testing.T) {
	assert.Equal(t, "1", MultiplierAt(0, DefaultGrowthRate).String())
	assert.Equal(t, "1", MultiplierAt(-time.Second, DefaultGrowthRate).String())
	// e^(0.06*10) = 1.8221...
	assert.Equal(t, "1.82", MultiplierAt(10*time.Second, DefaultGrowthRate).String())
	assert.True(t, MultiplierAt(20*time.Second, DefaultGrowthRate).GreaterThan(MultiplierAt(10*time.Second, DefaultGrowthRate)))
}

func TestCrashPointRangeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pick := rapid.Float64Range(0, 0.9999999999).Draw(t, "pick")
		u := rapid.Float64Range(0, 0.9999999999).Draw(t, "u")

		cp := GenerateCrashPoint(gametest.NewSequence(pick, u))
		if cp.LessThan(dec("1")) || cp.GreaterThanOrEqual(dec("50")) {
			t.Fatalf("crash point %s outside [1, 50)", cp)
		}
		if !cp.Equal(cp.Truncate(2)) {
			t.Fatalf("crash point %s has more than two decimals", cp)
		}
	})
}

func TestCrashTierDistribution(t *testing.T) {
	src := gametest.Seeded(7)
	const n = 100_000
	var low, mid, high int
	for i := 0; i < n; i++ {
		cp := GenerateCrashPoint(src)
		switch {
		case cp.LessThan(dec("3")):
			low++
		case cp.LessThan(dec("10")):
			mid++
		default:
			high++
		}
	}
	assert.InDelta(t, 0.5, float64(low)/n, 0.01)
	assert.InDelta(t, 0.3, float64(mid)/n, 0.01)
	assert.InDelta(t, 0.2, float64(high)/n, 0.01)
}
