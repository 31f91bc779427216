package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"skin-casino/internal/service"
)

// AdminHandler handles admin-related commands.
type AdminHandler struct {
	accountService *service.AccountService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(accountService *service.AccountService) *AdminHandler {
	return &AdminHandler{accountService: accountService}
}

// HandleAdminAdd handles /admin_add <telegram id> <amount>.
func (h *AdminHandler) HandleAdminAdd(c tele.Context) error {
	return h.adjust(c, "admin_add", false)
}

// HandleAdminSub handles /admin_sub <telegram id> <amount>.
func (h *AdminHandler) HandleAdminSub(c tele.Context) error {
	return h.adjust(c, "admin_sub", true)
}

func (h *AdminHandler) adjust(c tele.Context, command string, subtract bool) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	targetID, amount, err := ParseAdminArgs(command, c.Args())
	if err != nil {
		return c.Reply(ReplyFor(err))
	}

	delta := amount
	if subtract {
		delta = amount.Neg()
	}
	reason := fmt.Sprintf("%s by admin %d", command, sender.ID)

	user, err := h.accountService.AdjustBalance(context.Background(), UserID(targetID), delta, reason)
	if err != nil {
		return c.Reply(ReplyFor(err))
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("target_id", targetID).
		Str("delta", delta.String()).
		Str("operation", command).
		Msg("Admin operation executed")

	verb := "➕ Added"
	if subtract {
		verb = "➖ Removed"
	}
	return c.Reply(fmt.Sprintf(
		"✅ Done\n\n👤 User: %s (ID: %d)\n%s: %s\n💰 Balance: %s",
		strings.TrimSpace(user.Username), targetID, verb, Money(amount), Money(user.Balance),
	))
}
