// Package api exposes the settlement engine over HTTP.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Config holds HTTP transport options.
type Config struct {
	AdminKey          string
	RequestsPerSecond float64
	Burst             int
}

// NewRouter builds the HTTP handler with all routes and middleware.
// A zero RequestsPerSecond disables rate limiting.
func NewRouter(svc *Services, cfg *Config) http.Handler {
	if cfg == nil {
		cfg = &Config{}
	}
	h := &handlers{svc: svc}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(notFound)
	router.Use(requestLogger, recoverer)
	if cfg.RequestsPerSecond > 0 {
		router.Use(newIPRateLimiter(cfg.RequestsPerSecond, cfg.Burst).middleware)
	}

	router.HandleFunc("/health", h.health).Methods(http.MethodGet)

	router.HandleFunc("/users", h.createUser).Methods(http.MethodPost)
	router.HandleFunc("/users/{userId}", h.getUser).Methods(http.MethodGet)
	router.HandleFunc("/users/{userId}/games", h.userGames).Methods(http.MethodGet)

	admin := router.PathPrefix("/users/{userId}").Subrouter()
	admin.Use(adminOnly(cfg.AdminKey))
	admin.HandleFunc("/adjustments", h.adjustBalance).Methods(http.MethodPost)
	admin.HandleFunc("/audit", h.audit).Methods(http.MethodGet)

	router.HandleFunc("/bets/{gameType}", h.placeBet).Methods(http.MethodPost)

	router.HandleFunc("/games/recent", h.recentGames).Methods(http.MethodGet)
	router.HandleFunc("/games/{id:[0-9]+}/verify", h.verify).Methods(http.MethodGet)
	router.HandleFunc("/leaderboard", h.leaderboard).Methods(http.MethodGet)

	router.HandleFunc("/crash/rounds", h.openCrashRound).Methods(http.MethodPost)
	router.HandleFunc("/crash/rounds/{id}", h.getCrashRound).Methods(http.MethodGet)
	router.HandleFunc("/crash/rounds/{id}/cashout", h.cashOut).Methods(http.MethodPost)

	_ = router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		if tpl, err := route.GetPathTemplate(); err == nil {
			methods, _ := route.GetMethods()
			log.Debug().Str("path", tpl).Strs("methods", methods).Msg("Route registered")
		}
		return nil
	})

	return router
}
