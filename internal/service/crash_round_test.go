package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skin-casino/internal/model"
	"skin-casino/internal/service"
)

// 0.2 picks the [1,3) tier and 0.5 lands in its middle: crash point 2.00.
var crashAtTwo = fixed(0.2, 0.5)

func TestCrashRound_CashOutBeforeCrash(t *testing.T) {
	f := newFixture(t)
	f.user(t, "u1", "1000")
	clock := newClock()
	svc := f.crashRounds(crashAtTwo, clock)
	ctx := context.Background()

	ticket, err := svc.PlaceBet(ctx, service.CrashBet{UserID: "u1", BetAmount: dec("10")})
	require.NoError(t, err)
	assert.Equal(t, "990", ticket.NewBalance.String())
	assert.NotEmpty(t, ticket.ServerSeedHash)
	assert.True(t, ticket.Round.IsOpen())

	audit, err := f.auditor().Audit(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, audit.Consistent, "an open round accounts for its stake")

	clock.Advance(5 * time.Second) // e^0.3 = 1.3498...
	state, err := svc.Round(ctx, ticket.Round.ID)
	require.NoError(t, err)
	assert.True(t, state.Round.IsOpen())
	assert.Equal(t, "1.34", state.Multiplier.String())
	assert.Nil(t, state.Record)

	res, err := svc.CashOut(ctx, ticket.Round.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.CrashRoundCashedOut, res.Round.Status)
	assert.Equal(t, "1.34", res.Multiplier.String())
	assert.Equal(t, "13.4", res.Record.WinAmount.String())
	assert.Equal(t, "1003.4", res.NewBalance.String())
	assert.Equal(t, "1003.4", f.balance(t, "u1").String())

	outcome := res.Record.Outcome.(model.CrashOutcome)
	assert.True(t, outcome.Live)
	assert.True(t, outcome.Won)
	assert.Equal(t, "2", outcome.CrashPoint.String())

	_, err = svc.CashOut(ctx, ticket.Round.ID, "u1")
	assert.ErrorIs(t, err, service.ErrRoundClosed)
	assert.Equal(t, "1003.4", f.balance(t, "u1").String(), "paid once")

	audit, err = f.auditor().Audit(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, audit.Consistent)
	assert.Equal(t, int64(1), audit.GameRecords)
}

func TestCrashRound_CashOutAfterCrashBusts(t *testing.T) {
	f := newFixture(t)
	f.user(t, "u1", "1000")
	clock := newClock()
	svc := f.crashRounds(crashAtTwo, clock)
	ctx := context.Background()

	ticket, err := svc.PlaceBet(ctx, service.CrashBet{UserID: "u1", BetAmount: dec("10")})
	require.NoError(t, err)

	clock.Advance(20 * time.Second) // e^1.2 = 3.32 > 2.00
	res, err := svc.CashOut(ctx, ticket.Round.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.CrashRoundBusted, res.Round.Status)
	assert.True(t, res.Record.WinAmount.IsZero())
	assert.Equal(t, "10", res.Record.LossAmount.String())
	assert.Equal(t, "990", f.balance(t, "u1").String())

	u, err := f.users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "10", u.TotalLost.String())
	assert.Equal(t, int64(1), u.GamesPlayed)
}

func TestCrashRound_RoundBustsLazily(t *testing.T) {
	f := newFixture(t)
	f.user(t, "u1", "1000")
	clock := newClock()
	svc := f.crashRounds(crashAtTwo, clock)
	ctx := context.Background()

	ticket, err := svc.PlaceBet(ctx, service.CrashBet{UserID: "u1", BetAmount: dec("10")})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	state, err := svc.Round(ctx, ticket.Round.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CrashRoundBusted, state.Round.Status)
	require.NotNil(t, state.Record)

	// reading again returns the same record
	again, err := svc.Round(ctx, ticket.Round.ID)
	require.NoError(t, err)
	assert.Equal(t, state.Record.ID, again.Record.ID)

	_, err = svc.CashOut(ctx, ticket.Round.ID, "u1")
	assert.ErrorIs(t, err, service.ErrRoundClosed)
}

func TestCrashRound_PlaceBetIdempotent(t *testing.T) {
	f := newFixture(t)
	f.user(t, "u1", "1000")
	svc := f.crashRounds(crashAtTwo, newClock())
	ctx := context.Background()

	bet := service.CrashBet{UserID: "u1", BetAmount: dec("10"), IdempotencyKey: "crash-1"}
	first, err := svc.PlaceBet(ctx, bet)
	require.NoError(t, err)
	second, err := svc.PlaceBet(ctx, bet)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Round.ID, second.Round.ID)
	assert.Equal(t, "990", f.balance(t, "u1").String())
}

func TestCrashRound_Errors(t *testing.T) {
	f := newFixture(t)
	f.user(t, "u1", "5")
	f.user(t, "u2", "1000")
	svc := f.crashRounds(crashAtTwo, newClock())
	ctx := context.Background()

	_, err := svc.PlaceBet(ctx, service.CrashBet{UserID: "u1", BetAmount: dec("10")})
	assert.ErrorIs(t, err, service.ErrInsufficientBalance)

	_, err = svc.PlaceBet(ctx, service.CrashBet{UserID: "u1", BetAmount: dec("0")})
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = svc.PlaceBet(ctx, service.CrashBet{UserID: "ghost", BetAmount: dec("1")})
	assert.ErrorIs(t, err, service.ErrUserNotFound)

	_, err = svc.CashOut(ctx, "missing", "u1")
	assert.ErrorIs(t, err, service.ErrRoundNotFound)

	ticket, err := svc.PlaceBet(ctx, service.CrashBet{UserID: "u2", BetAmount: dec("1")})
	require.NoError(t, err)
	_, err = svc.CashOut(ctx, ticket.Round.ID, "u1")
	assert.ErrorIs(t, err, service.ErrRoundNotFound, "rounds of other users are invisible")
}

func TestCrashRound_RecordVerifies(t *testing.T) {
	f := newFixture(t)
	f.user(t, "u1", "1000")
	svc := f.crashRounds(nil, newClock())
	ctx := context.Background()

	ticket, err := svc.PlaceBet(ctx, service.CrashBet{UserID: "u1", BetAmount: dec("10"), ClientSeed: "lucky"})
	require.NoError(t, err)
	res, err := svc.CashOut(ctx, ticket.Round.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, ticket.ServerSeedHash, res.Record.Fairness.ServerSeedHash)
	assert.Equal(t, "lucky", res.Record.Fairness.ClientSeed)

	v, err := service.NewVerifier(f.records, f.registry).Verify(ctx, res.Record.ID)
	require.NoError(t, err)
	assert.True(t, v.Valid())
}
