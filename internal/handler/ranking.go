package handler

import (
	"context"
	"strconv"

	tele "gopkg.in/telebot.v3"

	"skin-casino/internal/service"
)

// RankingHandler handles history, leaderboard and verification commands.
type RankingHandler struct {
	rankingService *service.RankingService
	verifier       *service.Verifier
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(rankingService *service.RankingService, verifier *service.Verifier) *RankingHandler {
	return &RankingHandler{
		rankingService: rankingService,
		verifier:       verifier,
	}
}

// HandleHistory handles the /history [n] command.
func (h *RankingHandler) HandleHistory(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	limit := 10
	if args := c.Args(); len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return c.Reply("❌ Usage: /history [count]")
		}
		limit = n
	}

	records, err := h.rankingService.RecentByUser(context.Background(), UserID(sender.ID), limit)
	if err != nil {
		return c.Reply(ReplyFor(err))
	}
	return c.Reply(FormatHistory(records))
}

// HandleTop handles the /top command.
func (h *RankingHandler) HandleTop(c tele.Context) error {
	entries, err := h.rankingService.Leaderboard(context.Background())
	if err != nil {
		return c.Reply(ReplyFor(err))
	}
	return c.Reply(FormatLeaderboard(entries))
}

// HandleVerify handles the /verify <game id> command.
func (h *RankingHandler) HandleVerify(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Reply("❌ Usage: /verify <game id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return c.Reply("❌ Game id must be a positive number")
	}

	v, err := h.verifier.Verify(context.Background(), id)
	if err != nil {
		return c.Reply(ReplyFor(err))
	}
	return c.Reply(FormatVerification(v))
}
