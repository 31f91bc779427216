package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"skin-casino/internal/model"
)

// History and leaderboard limits.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
	LeaderboardSize     = 10
)

// RankingService serves game history and the winners board.
type RankingService struct {
	users   UserRepository
	records GameRecordStore
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(users UserRepository, records GameRecordStore) *RankingService {
	return &RankingService{users: users, records: records}
}

// RecentByUser returns a user's latest games, newest first.
func (s *RankingService) RecentByUser(ctx context.Context, userID string, limit int) ([]*model.GameRecord, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, translate(err)
	}
	records, err := s.records.RecentByUser(ctx, userID, ClampLimit(limit))
	if err != nil {
		return nil, storageUnavailable(err)
	}
	return records, nil
}

// RecentGlobal returns the latest games across all users, newest first.
func (s *RankingService) RecentGlobal(ctx context.Context, limit int) ([]*model.GameRecord, error) {
	records, err := s.records.RecentGlobal(ctx, ClampLimit(limit))
	if err != nil {
		return nil, storageUnavailable(err)
	}
	return records, nil
}

// Leaderboard returns the top users by total won.
func (s *RankingService) Leaderboard(ctx context.Context) ([]*model.LeaderboardEntry, error) {
	entries, err := s.records.Leaderboard(ctx, LeaderboardSize)
	if err != nil {
		return nil, storageUnavailable(err)
	}

	for _, e := range entries {
		if e.Username != "" {
			continue
		}
		user, err := s.users.GetByID(ctx, e.UserID)
		if err != nil {
			log.Debug().Err(err).Str("user_id", e.UserID).Msg("No username for leaderboard entry")
			continue
		}
		e.Username = user.Username
	}
	return entries, nil
}

// ClampLimit applies the default and the upper bound to a history limit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}
