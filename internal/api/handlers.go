package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"skin-casino/internal/model"
	"skin-casino/internal/service"
)

const healthTimeout = 2 * time.Second

// Services bundles what the HTTP handlers call into.
type Services struct {
	Accounts    *service.AccountService
	Settlement  *service.SettlementService
	CrashRounds *service.CrashRoundService
	Ranking     *service.RankingService
	Verifier    *service.Verifier
	Auditor     *service.Auditor

	// Storage is pinged by /health. Nil for the memory driver.
	Storage HealthChecker
}

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type handlers struct {
	svc *Services
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if h.svc.Storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := h.svc.Storage.HealthCheck(ctx); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Storage health check failed")
			writeFailure(w, http.StatusServiceUnavailable, CodeStorageUnavailable, "storage unavailable")
			return
		}
	}
	writeData(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func (h *handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, created, err := h.svc.Accounts.EnsureUser(r.Context(), req.UserID, req.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		zerolog.Ctx(r.Context()).Info().Str("user_id", user.ID).Msg("User registered")
	}
	writeData(w, status, user)
}

func (h *handlers) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Accounts.GetUser(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

func (h *handlers) adjustBalance(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	userID := mux.Vars(r)["userId"]
	user, err := h.svc.Accounts.AdjustBalance(r.Context(), userID, req.Delta, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().
		Str("user_id", userID).
		Str("delta", req.Delta.String()).
		Str("reason", req.Reason).
		Msg("Balance adjusted")
	writeData(w, http.StatusOK, user)
}

func (h *handlers) audit(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Auditor.Audit(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, report)
}

type betResponse struct {
	Success    bool              `json:"success"`
	Record     *model.GameRecord `json:"record"`
	NewBalance decimal.Decimal   `json:"newBalance"`
	WinAmount  decimal.Decimal   `json:"winAmount"`
	LossAmount decimal.Decimal   `json:"lossAmount"`
	ServerSeed string            `json:"serverSeed"`
	Replayed   bool              `json:"replayed"`
}

func (h *handlers) placeBet(w http.ResponseWriter, r *http.Request) {
	var req betRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	receipt, err := h.svc.Settlement.Settle(r.Context(), &model.Bet{
		UserID:         req.UserID,
		GameType:       model.GameType(strings.ToLower(mux.Vars(r)["gameType"])),
		BetAmount:      req.BetAmount,
		Params:         req.params(),
		IdempotencyKey: idempotencyKey(r),
		ClientSeed:     req.ClientSeed,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec := receipt.Record
	writeJSON(w, http.StatusOK, betResponse{
		Success:    true,
		Record:     rec,
		NewBalance: receipt.NewBalance,
		WinAmount:  rec.WinAmount,
		LossAmount: rec.LossAmount,
		ServerSeed: rec.Fairness.ServerSeed,
		Replayed:   receipt.Replayed,
	})
}

func (h *handlers) userGames(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, err := h.svc.Ranking.RecentByUser(r.Context(), mux.Vars(r)["userId"], limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, records)
}

func (h *handlers) recentGames(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, err := h.svc.Ranking.RecentGlobal(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, records)
}

func (h *handlers) leaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.svc.Ranking.Leaderboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, board)
}

type verifyResponse struct {
	*service.Verification
	Valid bool `json:"valid"`
}

func (h *handlers) verify(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, CodeInvalidInput, "invalid game id")
		return
	}
	v, err := h.svc.Verifier.Verify(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, verifyResponse{Verification: v, Valid: v.Valid()})
}

// crashRoundView is the public shape of a live round. The crash point and
// server seed are only shown once the round is resolved.
type crashRoundView struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"userId"`
	BetAmount      decimal.Decimal        `json:"betAmount"`
	Status         model.CrashRoundStatus `json:"status"`
	Multiplier     decimal.Decimal        `json:"multiplier"`
	CashOutAt      *decimal.Decimal       `json:"cashOutAt,omitempty"`
	CrashPoint     *decimal.Decimal       `json:"crashPoint,omitempty"`
	ServerSeedHash string                 `json:"serverSeedHash"`
	ServerSeed     string                 `json:"serverSeed,omitempty"`
	ClientSeed     string                 `json:"clientSeed"`
	Nonce          int64                  `json:"nonce"`
	StartedAt      time.Time              `json:"startedAt"`
	ResolvedAt     *time.Time             `json:"resolvedAt,omitempty"`
	Record         *model.GameRecord      `json:"record,omitempty"`
	NewBalance     *decimal.Decimal       `json:"newBalance,omitempty"`
	Replayed       bool                   `json:"replayed,omitempty"`
}

func newCrashRoundView(round *model.CrashRound, multiplier decimal.Decimal) *crashRoundView {
	v := &crashRoundView{
		ID:             round.ID,
		UserID:         round.UserID,
		BetAmount:      round.BetAmount,
		Status:         round.Status,
		Multiplier:     multiplier,
		ServerSeedHash: round.Fairness.ServerSeedHash,
		ClientSeed:     round.Fairness.ClientSeed,
		Nonce:          round.Fairness.Nonce,
		StartedAt:      round.StartedAt,
		ResolvedAt:     round.ResolvedAt,
	}
	if !round.IsOpen() {
		cashOutAt, crashPoint := round.CashOutAt, round.CrashPoint
		v.CashOutAt = &cashOutAt
		v.CrashPoint = &crashPoint
		v.ServerSeed = round.Fairness.ServerSeed
	}
	return v
}

func crashResultView(res *service.CrashResult) *crashRoundView {
	v := newCrashRoundView(res.Round, res.Multiplier)
	if res.Record != nil {
		balance := res.NewBalance
		v.Record = res.Record
		v.NewBalance = &balance
	}
	return v
}

func (h *handlers) openCrashRound(w http.ResponseWriter, r *http.Request) {
	var req crashBetRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ticket, err := h.svc.CrashRounds.PlaceBet(r.Context(), service.CrashBet{
		UserID:         req.UserID,
		BetAmount:      req.BetAmount,
		ClientSeed:     req.ClientSeed,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	v := newCrashRoundView(ticket.Round, h.svc.CrashRounds.Multiplier(ticket.Round, time.Now()))
	balance := ticket.NewBalance
	v.NewBalance = &balance
	v.Replayed = ticket.Replayed

	status := http.StatusCreated
	if ticket.Replayed {
		status = http.StatusOK
	}
	writeData(w, status, v)
}

func (h *handlers) cashOut(w http.ResponseWriter, r *http.Request) {
	var req cashOutRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.svc.CrashRounds.CashOut(r.Context(), mux.Vars(r)["id"], req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, crashResultView(res))
}

func (h *handlers) getCrashRound(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.CrashRounds.Round(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, crashResultView(res))
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeFailure(w, http.StatusNotFound, CodeNotFound, "no route for "+r.Method+" "+r.URL.Path)
}
