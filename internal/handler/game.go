package handler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"skin-casino/internal/model"
	"skin-casino/internal/service"
)

// BetCooldown is the minimum time between two bets of one user.
const BetCooldown = 2 * time.Second

// GameHandler handles betting commands.
type GameHandler struct {
	accountService    *service.AccountService
	settlementService *service.SettlementService
	crashRounds       *service.CrashRoundService
	cooldowns         sync.Map // user id -> time.Time of the last bet
	openRounds        sync.Map // user id -> id of the last opened crash round
	now               func() time.Time
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(
	accountService *service.AccountService,
	settlementService *service.SettlementService,
	crashRounds *service.CrashRoundService,
) *GameHandler {
	return &GameHandler{
		accountService:    accountService,
		settlementService: settlementService,
		crashRounds:       crashRounds,
		now:               time.Now,
	}
}

// checkCooldown returns the remaining wait before userID may bet again and
// records the attempt when there is none.
func (h *GameHandler) checkCooldown(userID string) time.Duration {
	now := h.now()
	if last, ok := h.cooldowns.Load(userID); ok {
		if remaining := BetCooldown - now.Sub(last.(time.Time)); remaining > 0 {
			return remaining
		}
	}
	h.cooldowns.Store(userID, now)
	return 0
}

// messageKey derives an idempotency key from the command message so a
// redelivered update settles only once.
func messageKey(c tele.Context) string {
	msg := c.Message()
	if msg == nil || msg.Chat == nil {
		return ""
	}
	return fmt.Sprintf("tg:%d:%d", msg.Chat.ID, msg.ID)
}

// HandleCoinflip handles /coinflip <amount> <heads|tails>.
func (h *GameHandler) HandleCoinflip(c tele.Context) error {
	return h.play(c, model.GameCoinflip)
}

// HandleCrash handles /crash <amount> [target].
func (h *GameHandler) HandleCrash(c tele.Context) error {
	return h.play(c, model.GameCrash)
}

// HandleRoulette handles /roulette <amount> <red|black|green>.
func (h *GameHandler) HandleRoulette(c tele.Context) error {
	return h.play(c, model.GameRoulette)
}

// HandleJackpot handles /jackpot <amount>.
func (h *GameHandler) HandleJackpot(c tele.Context) error {
	return h.play(c, model.GameJackpot)
}

func (h *GameHandler) play(c tele.Context, gameType model.GameType) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := context.Background()
	userID := UserID(sender.ID)
	username := DisplayName(sender)

	amount, params, err := ParseBet(gameType, c.Args())
	if err != nil {
		return c.Reply(ReplyFor(err))
	}

	if wait := h.checkCooldown(userID); wait > 0 {
		return c.Reply(fmt.Sprintf("⏰ Please wait %.0fs before the next bet", wait.Seconds()+0.5))
	}

	if _, _, err := h.accountService.EnsureUser(ctx, userID, username); err != nil {
		return c.Reply(ReplyFor(err))
	}

	receipt, err := h.settlementService.Settle(ctx, &model.Bet{
		UserID:         userID,
		GameType:       gameType,
		BetAmount:      amount,
		Params:         params,
		IdempotencyKey: messageKey(c),
		ClientSeed:     fmt.Sprintf("tg-%d", sender.ID),
	})
	if err != nil {
		log.Debug().Err(err).Str("user_id", userID).Str("game", string(gameType)).Msg("Bet rejected")
		return c.Reply(ReplyFor(err))
	}

	return c.Reply(FormatReceipt(username, receipt))
}

// HandleCrashLive handles /crashlive <amount>: it opens a live round that
// the player resolves with /cashout.
func (h *GameHandler) HandleCrashLive(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := context.Background()
	userID := UserID(sender.ID)

	args := c.Args()
	if len(args) != 1 {
		return c.Reply("❌ Usage: /crashlive <amount>")
	}
	amount, err := ParseAmount(args[0])
	if err != nil {
		return c.Reply(ReplyFor(err))
	}

	if _, _, err := h.accountService.EnsureUser(ctx, userID, DisplayName(sender)); err != nil {
		return c.Reply(ReplyFor(err))
	}

	ticket, err := h.crashRounds.PlaceBet(ctx, service.CrashBet{
		UserID:         userID,
		BetAmount:      amount,
		ClientSeed:     fmt.Sprintf("tg-%d", sender.ID),
		IdempotencyKey: messageKey(c),
	})
	if err != nil {
		return c.Reply(ReplyFor(err))
	}
	h.openRounds.Store(userID, ticket.Round.ID)

	return c.Reply(fmt.Sprintf(
		"🚀 Round started with %s\n"+
			"💰 Balance: %s\n"+
			"🔐 Seed hash: %s\n\n"+
			"Send /cashout before it crashes!",
		Money(amount), Money(ticket.NewBalance), ticket.ServerSeedHash,
	))
}

// HandleCashOut handles /cashout [round id].
func (h *GameHandler) HandleCashOut(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	userID := UserID(sender.ID)

	var roundID string
	if args := c.Args(); len(args) > 0 {
		roundID = strings.TrimSpace(args[0])
	} else if v, ok := h.openRounds.Load(userID); ok {
		roundID = v.(string)
	}
	if roundID == "" {
		return c.Reply("❌ No open round, start one with /crashlive <amount>")
	}

	res, err := h.crashRounds.CashOut(context.Background(), roundID, userID)
	if err != nil {
		return c.Reply(ReplyFor(err))
	}
	h.openRounds.CompareAndDelete(userID, roundID)

	return c.Reply(FormatReceipt(DisplayName(sender), &model.SettlementReceipt{
		Record:     res.Record,
		NewBalance: res.NewBalance,
	}))
}
