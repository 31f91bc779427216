package handler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"skin-casino/internal/service"
)

// AccountHandler handles account-related commands.
type AccountHandler struct {
	accountService *service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// HandleStart handles the /start command.
// It creates a demo account with the configured initial balance on first use.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	username := DisplayName(sender)

	user, created, err := h.accountService.EnsureUser(context.Background(), UserID(sender.ID), username)
	if err != nil {
		log.Error().Err(err).Int64("telegram_id", sender.ID).Msg("Failed to ensure user")
		return c.Reply(ReplyFor(err))
	}

	if created {
		return c.Reply(fmt.Sprintf(
			"🎉 Welcome @%s!\n\n"+
				"Your demo account is ready with %s credits.\n\n"+
				"Commands:\n"+
				"/balance - show balance\n"+
				"/coinflip <amount> <heads|tails>\n"+
				"/crash <amount> [target]\n"+
				"/crashlive <amount> then /cashout\n"+
				"/roulette <amount> <red|black|green>\n"+
				"/jackpot <amount>\n"+
				"/history - your last games\n"+
				"/top - biggest winners\n"+
				"/verify <game id> - check a game",
			username, Money(user.Balance),
		))
	}

	return c.Reply(fmt.Sprintf("👋 Welcome back @%s!\n\n💰 Balance: %s", username, Money(user.Balance)))
}

// HandleBalance handles the /balance command.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	user, _, err := h.accountService.EnsureUser(context.Background(), UserID(sender.ID), DisplayName(sender))
	if err != nil {
		return c.Reply(ReplyFor(err))
	}

	return c.Reply(fmt.Sprintf(
		"📊 Account\n"+
			divider+"\n"+
			"👤 @%s\n"+
			"💰 Balance: %s\n"+
			"🎲 Games: %d\n"+
			"📈 Won: %s\n"+
			"📉 Lost: %s\n"+
			divider,
		user.Username, Money(user.Balance), user.GamesPlayed, Money(user.TotalWon), Money(user.TotalLost),
	))
}
