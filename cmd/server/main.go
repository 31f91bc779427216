// Package main is the entry point for the skin casino settlement server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"skin-casino/internal/api"
	"skin-casino/internal/bot"
	"skin-casino/internal/config"
	"skin-casino/internal/events"
	"skin-casino/internal/game"
	"skin-casino/internal/game/coinflip"
	"skin-casino/internal/game/crash"
	"skin-casino/internal/game/jackpot"
	"skin-casino/internal/game/roulette"
	"skin-casino/internal/pkg/db"
	"skin-casino/internal/pkg/lock"
	"skin-casino/internal/repository"
	"skin-casino/internal/repository/memory"
	"skin-casino/internal/service"
)

// storage is the set of stores the services run on.
type storage struct {
	users   service.UserRepository
	ledger  service.Ledger
	records service.GameRecordStore
	rounds  service.CrashRoundStore
	health  api.HealthChecker
	close   func()
}

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(&cfg.Log)
	log.Info().Str("storage", cfg.Storage.Driver).Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.close()

	publisher, err := events.Connect(&cfg.NATS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect event publisher")
	}
	defer publisher.Close()

	crashGame := crash.New(&crash.Config{
		MaxBet:     cfg.Games.Crash.MaxBet,
		GrowthRate: cfg.Games.Crash.GrowthRate,
	})
	registry, err := game.NewRegistry(
		coinflip.New(&coinflip.Config{
			Multiplier: cfg.Games.Coinflip.Multiplier,
			MaxBet:     cfg.Games.Coinflip.MaxBet,
		}),
		crashGame,
		roulette.New(&roulette.Config{
			ColorMultiplier: cfg.Games.Roulette.ColorMultiplier,
			GreenMultiplier: cfg.Games.Roulette.GreenMultiplier,
			MaxBet:          cfg.Games.Roulette.MaxBet,
		}),
		jackpot.New(&jackpot.Config{
			PotShare: cfg.Games.Jackpot.PotShare,
			MaxBet:   cfg.Games.Jackpot.MaxBet,
		}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register games")
	}

	games := make([]string, 0, registry.Count())
	for _, t := range registry.Types() {
		games = append(games, string(t))
	}
	log.Info().Int("game_count", registry.Count()).Strs("games", games).Msg("Games registered")

	retry := service.RetryPolicy{
		MaxRetries: cfg.Settlement.AppendRetries,
		Interval:   cfg.Settlement.AppendRetryInterval,
	}
	accountService := service.NewAccountService(store.users, store.ledger, cfg.Accounts.InitialBalance)
	settlementService := service.NewSettlementService(store.users, store.ledger, store.records, registry, &service.SettlementConfig{
		Publisher: publisher,
		Retry:     retry,
	})
	crashRounds := service.NewCrashRoundService(store.users, store.ledger, store.records, store.rounds, crashGame, &service.CrashRoundConfig{
		Publisher: publisher,
		Retry:     retry,
	})
	rankingService := service.NewRankingService(store.users, store.records)
	verifier := service.NewVerifier(store.records, registry)
	auditor := service.NewAuditor(store.users, store.ledger, store.records, store.rounds)

	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewRouter(&api.Services{
			Accounts:    accountService,
			Settlement:  settlementService,
			CrashRounds: crashRounds,
			Ranking:     rankingService,
			Verifier:    verifier,
			Auditor:     auditor,
			Storage:     store.health,
		}, &api.Config{
			AdminKey:          cfg.Admin.APIKey,
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	var telegramBot *bot.Bot
	if cfg.Bot.Token != "" {
		telegramBot, err = bot.New(&bot.Dependencies{
			Config:            cfg,
			AccountService:    accountService,
			SettlementService: settlementService,
			CrashRoundService: crashRounds,
			RankingService:    rankingService,
			Verifier:          verifier,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create bot")
		}
		go telegramBot.Start()
	} else {
		log.Info().Msg("bot.token not set, Telegram bot disabled")
	}

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal")

	if telegramBot != nil {
		telegramBot.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	log.Info().Msg("Server stopped gracefully")
}

func setupLogger(cfg *config.LogConfig) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Warn().Msg("Using in-memory storage, all data is lost on restart")
		users := memory.NewUserRepository()
		return &storage{
			users:   users,
			ledger:  memory.NewLedger(users, lock.NewUserLock()),
			records: memory.NewGameRepository(),
			rounds:  memory.NewCrashRoundRepository(),
			close:   func() {},
		}, nil
	}

	if err := db.Migrate(cfg.Database.DSN()); err != nil {
		return nil, err
	}
	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	return &storage{
		users:   repository.NewUserRepository(pool.Pool),
		ledger:  repository.NewLedger(pool.Pool),
		records: repository.NewGameRepository(pool.Pool),
		rounds:  repository.NewCrashRoundRepository(pool.Pool),
		health:  pool,
		close:   pool.Close,
	}, nil
}
