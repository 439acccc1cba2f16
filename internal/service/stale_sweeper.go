package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/notice-engine/internal/repository"
	"go.uber.org/zap"
)

// StaleSweeper removes subscriptions that never delivered or stopped delivering.
type StaleSweeper struct {
	subscriptions repository.SubscriptionRepository
	logger        *zap.Logger
	now           func() time.Time
}

func NewStaleSweeper(subscriptions repository.SubscriptionRepository, logger *zap.Logger) (*StaleSweeper, error) {
	if subscriptions == nil {
		return nil, fmt.Errorf("subscription repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaleSweeper{
		subscriptions: subscriptions,
		logger:        logger,
		now:           time.Now,
	}, nil
}

// Sweep deletes stale subscriptions and returns their ids.
func (s *StaleSweeper) Sweep(ctx context.Context) ([]string, error) {
	subs, err := s.subscriptions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	now := s.now()
	stale := make([]string, 0)
	for i := range subs {
		if subs[i].IsStale(now) {
			stale = append(stale, subs[i].ID)
		}
	}
	if len(stale) == 0 {
		return stale, nil
	}

	removed, err := s.subscriptions.DeleteByIDs(ctx, stale)
	if err != nil {
		return nil, fmt.Errorf("failed to delete stale subscriptions: %w", err)
	}

	s.logger.Info("stale subscriptions removed",
		zap.Int("matched", len(stale)),
		zap.Int64("removed", removed),
	)
	return stale, nil
}
