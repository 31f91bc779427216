// Package handler provides Telegram bot command handlers.
package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"skin-casino/internal/game/coinflip"
	"skin-casino/internal/game/crash"
	"skin-casino/internal/game/roulette"
	"skin-casino/internal/model"
	"skin-casino/internal/service"
)

// errUsage is returned by the parsers; its text is the reply shown to the user.
type errUsage string

func (e errUsage) Error() string { return string(e) }

// UserID maps a Telegram user to an engine user id.
func UserID(telegramID int64) string {
	return "tg:" + strconv.FormatInt(telegramID, 10)
}

// TelegramID reverses UserID. Plain numeric ids are accepted too.
func TelegramID(userID string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(userID, "tg:"), 10, 64)
	return id, err == nil
}

// DisplayName picks the best available name for a sender.
func DisplayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return strconv.FormatInt(u.ID, 10)
}

// ParseAmount parses a positive money amount with at most two decimals.
func ParseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, errUsage(fmt.Sprintf("❌ %q is not a valid amount", raw))
	}
	if !d.IsPositive() {
		return decimal.Zero, errUsage("❌ Amount must be greater than 0")
	}
	if !d.Equal(d.Truncate(2)) {
		return decimal.Zero, errUsage("❌ Amount can have at most 2 decimal places")
	}
	return d, nil
}

var usages = map[model.GameType]string{
	model.GameCoinflip: "❌ Usage: /coinflip <amount> <heads|tails>",
	model.GameCrash:    "❌ Usage: /crash <amount> [target multiplier]",
	model.GameRoulette: "❌ Usage: /roulette <amount> <red|black|green>",
	model.GameJackpot:  "❌ Usage: /jackpot <amount>",
}

// ParseBet turns command arguments into a bet amount and game params.
func ParseBet(gameType model.GameType, args []string) (decimal.Decimal, map[string]any, error) {
	usage := usages[gameType]
	if len(args) == 0 {
		return decimal.Zero, nil, errUsage(usage)
	}
	amount, err := ParseAmount(args[0])
	if err != nil {
		return decimal.Zero, nil, err
	}

	params := make(map[string]any)
	switch gameType {
	case model.GameCoinflip:
		if len(args) != 2 {
			return decimal.Zero, nil, errUsage(usage)
		}
		params[coinflip.ParamChoice] = strings.ToLower(args[1])
	case model.GameRoulette:
		if len(args) != 2 {
			return decimal.Zero, nil, errUsage(usage)
		}
		params[roulette.ParamBetType] = strings.ToLower(args[1])
	case model.GameCrash:
		if len(args) > 2 {
			return decimal.Zero, nil, errUsage(usage)
		}
		if len(args) == 2 {
			target, err := decimal.NewFromString(strings.TrimSuffix(strings.ToLower(args[1]), "x"))
			if err != nil {
				return decimal.Zero, nil, errUsage("❌ Target must be a number such as 2 or 1.5x")
			}
			params[crash.ParamCashOutAt] = target
		}
	case model.GameJackpot:
		if len(args) != 1 {
			return decimal.Zero, nil, errUsage(usage)
		}
	default:
		return decimal.Zero, nil, errUsage("❌ Unknown game")
	}
	return amount, params, nil
}

// ParseAdminArgs parses "<telegram id> <amount>" for the given command.
func ParseAdminArgs(command string, args []string) (int64, decimal.Decimal, error) {
	if len(args) != 2 {
		return 0, decimal.Zero, errUsage(fmt.Sprintf("❌ Usage: /%s <telegram id> <amount>", command))
	}
	id, ok := TelegramID(args[0])
	if !ok {
		return 0, decimal.Zero, errUsage("❌ Invalid user id")
	}
	amount, err := ParseAmount(args[1])
	if err != nil {
		return 0, decimal.Zero, err
	}
	return id, amount, nil
}

// ReplyFor turns an error into the text shown in chat.
func ReplyFor(err error) string {
	var usage errUsage
	switch {
	case errors.As(err, &usage):
		return string(usage)
	case errors.Is(err, service.ErrInsufficientBalance):
		return "❌ Insufficient balance"
	case errors.Is(err, service.ErrUserNotFound):
		return "❌ No account yet, send /start first"
	case errors.Is(err, service.ErrRecordNotFound):
		return "❌ Game not found"
	case errors.Is(err, service.ErrRoundNotFound):
		return "❌ No such crash round"
	case errors.Is(err, service.ErrRoundClosed):
		return "❌ This round is already over"
	case errors.Is(err, service.ErrInvalidInput):
		return "❌ " + strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": ")
	default:
		return "❌ Something went wrong, please try again"
	}
}

// Money formats an amount with two decimals.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
