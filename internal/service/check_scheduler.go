package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/notice-engine/internal/domain"
	"go.uber.org/zap"
)

const defaultCheckInterval = 15 * time.Minute

// Checker runs one check-for-new-notices pass.
type Checker interface {
	Check(ctx context.Context, triggeredBy domain.TriggeredBy) (CheckReport, error)
}

// CheckScheduler runs automatic notice checks on a fixed interval.
type CheckScheduler struct {
	checker  Checker
	logger   *zap.Logger
	interval time.Duration
}

func NewCheckScheduler(checker Checker, interval time.Duration, logger *zap.Logger) (*CheckScheduler, error) {
	if checker == nil {
		return nil, fmt.Errorf("checker is required")
	}
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CheckScheduler{
		checker:  checker,
		logger:   logger,
		interval: interval,
	}, nil
}

func (s *CheckScheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.run(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("initial notice check failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.run(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("notice check failed", zap.Error(err))
			}
		}
	}
}

func (s *CheckScheduler) run(ctx context.Context) error {
	report, err := s.checker.Check(ctx, domain.TriggeredByAuto)
	if err != nil {
		return err
	}
	s.logger.Debug("scheduled notice check done",
		zap.String("message", report.Message),
		zap.Int("notificationsSent", report.NotificationsSent),
	)
	return nil
}
