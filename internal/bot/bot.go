// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"skin-casino/internal/config"
	"skin-casino/internal/handler"
	"skin-casino/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	accountHandler *handler.AccountHandler
	gameHandler    *handler.GameHandler
	rankingHandler *handler.RankingHandler
	adminHandler   *handler.AdminHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config            *config.Config
	AccountService    *service.AccountService
	SettlementService *service.SettlementService
	CrashRoundService *service.CrashRoundService
	RankingService    *service.RankingService
	Verifier          *service.Verifier
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	teleBot, err := tele.NewBot(tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Telegram handler failed")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:            teleBot,
		cfg:            deps.Config,
		accountHandler: handler.NewAccountHandler(deps.AccountService),
		gameHandler:    handler.NewGameHandler(deps.AccountService, deps.SettlementService, deps.CrashRoundService),
		rankingHandler: handler.NewRankingHandler(deps.RankingService, deps.Verifier),
		adminHandler:   handler.NewAdminHandler(deps.AccountService),
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)

	b.bot.Handle("/coinflip", b.gameHandler.HandleCoinflip)
	b.bot.Handle("/crash", b.gameHandler.HandleCrash)
	b.bot.Handle("/roulette", b.gameHandler.HandleRoulette)
	b.bot.Handle("/jackpot", b.gameHandler.HandleJackpot)
	b.bot.Handle("/crashlive", b.gameHandler.HandleCrashLive)
	b.bot.Handle("/cashout", b.gameHandler.HandleCashOut)

	b.bot.Handle("/history", b.rankingHandler.HandleHistory)
	b.bot.Handle("/top", b.rankingHandler.HandleTop)
	b.bot.Handle("/verify", b.rankingHandler.HandleVerify)

	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/admin_add", b.adminHandler.HandleAdminAdd)
	adminGroup.Handle("/admin_sub", b.adminHandler.HandleAdminSub)
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
