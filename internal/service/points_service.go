package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/tutor-marketplace/internal/config"
	"github.com/iliyamo/tutor-marketplace/internal/model"
)

// PointsService owns reward balances. Deductions never take a balance below
// zero and the level is recomputed in the same statement as the balance.
type PointsService struct {
	store  PointsStore
	cfg    config.PointsConfig
	logger *zap.Logger
}

func NewPointsService(store PointsStore, cfg config.PointsConfig, logger *zap.Logger) *PointsService {
	return &PointsService{store: store, cfg: cfg, logger: logger}
}

// Rewards returns the configured point amounts.
func (s *PointsService) Rewards() config.PointsConfig { return s.cfg }

// AddPoints credits n points to userID.
func (s *PointsService) AddPoints(ctx context.Context, userID uint64, n int, reason string) (model.PointsBalance, error) {
	if n <= 0 {
		return model.PointsBalance{}, errValidation("points must be positive")
	}
	return s.adjust(ctx, userID, n, reason)
}

// DeductPoints debits n points from userID, flooring the balance at zero.
func (s *PointsService) DeductPoints(ctx context.Context, userID uint64, n int, reason string) (model.PointsBalance, error) {
	if n <= 0 {
		return model.PointsBalance{}, errValidation("points must be positive")
	}
	return s.adjust(ctx, userID, -n, reason)
}

func (s *PointsService) adjust(ctx context.Context, userID uint64, delta int, reason string) (model.PointsBalance, error) {
	bal, err := s.store.AdjustPoints(ctx, userID, delta)
	if err != nil {
		return bal, storeErr("user", err)
	}
	s.logger.Info("points adjusted", zap.Uint64("user_id", userID), zap.Int("delta", delta),
		zap.String("reason", reason), zap.Int("balance", bal.Points), zap.String("level", bal.Level))
	return bal, nil
}

// award applies a lesson side effect. Failures are logged, never returned.
func (s *PointsService) award(ctx context.Context, userID uint64, delta int, reason string) {
	if delta == 0 {
		return
	}
	var err error
	if delta > 0 {
		_, err = s.AddPoints(ctx, userID, delta, reason)
	} else {
		_, err = s.DeductPoints(ctx, userID, -delta, reason)
	}
	if err != nil {
		s.logger.Warn("points update failed", zap.Uint64("user_id", userID), zap.String("reason", reason), zap.Error(err))
	}
}

// Balance returns a user's points and level.
func (s *PointsService) Balance(ctx context.Context, userID uint64) (model.PointsBalance, error) {
	bal, err := s.store.Points(ctx, userID)
	if err != nil {
		return bal, storeErr("user", err)
	}
	return bal, nil
}

// LevelStats counts users per level.
func (s *PointsService) LevelStats(ctx context.Context) (map[string]int, error) {
	counts, err := s.store.LevelCounts(ctx)
	if err != nil {
		return nil, errInternal("level stats", err)
	}
	return counts, nil
}

// Leaderboard lists users by balance, highest first.
func (s *PointsService) Leaderboard(ctx context.Context, page, limit int) ([]model.PointsBalance, error) {
	limit, offset := pageBounds(page, limit)
	out, err := s.store.ListByPoints(ctx, limit, offset)
	if err != nil {
		return nil, errInternal("list points", err)
	}
	return out, nil
}

// pageBounds normalizes 1-based paging input into LIMIT/OFFSET.
func pageBounds(page, limit int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}
