package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notice-engine/internal/domain"
	"github.com/kursadbilgin/notice-engine/internal/repository"
	"go.uber.org/zap"
)

// SubscriptionService is the server-side persistence surface for push subscriptions.
type SubscriptionService struct {
	subscriptions repository.SubscriptionRepository
	logger        *zap.Logger
	now           func() time.Time
	newID         func() string
}

func NewSubscriptionService(subscriptions repository.SubscriptionRepository, logger *zap.Logger) (*SubscriptionService, error) {
	if subscriptions == nil {
		return nil, fmt.Errorf("subscription repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SubscriptionService{
		subscriptions: subscriptions,
		logger:        logger,
		now:           time.Now,
		newID:         uuid.NewString,
	}, nil
}

// Save stores sub as the only record for its endpoint. Any earlier record for the endpoint is replaced.
func (s *SubscriptionService) Save(ctx context.Context, sub *domain.PushSubscription) (*domain.PushSubscription, error) {
	if sub == nil {
		return nil, fmt.Errorf("%w: subscription is required", domain.ErrValidation)
	}
	sub.Endpoint = strings.TrimSpace(sub.Endpoint)
	sub.UserAgent = strings.TrimSpace(sub.UserAgent)
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	sub.ID = s.newID()
	sub.CreatedAt = s.now().UTC()
	sub.LastSuccessAt = nil

	if err := s.subscriptions.Replace(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}

	s.logger.Info("push subscription saved",
		zap.String("subscriptionId", sub.ID),
		zap.String("endpoint", sub.Endpoint),
	)
	return sub, nil
}

func (s *SubscriptionService) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", domain.ErrValidation)
	}
	if err := s.subscriptions.DeleteByEndpoint(ctx, endpoint); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

func (s *SubscriptionService) DeleteByID(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: id is required", domain.ErrValidation)
	}
	return s.subscriptions.DeleteByID(ctx, id)
}

func (s *SubscriptionService) List(ctx context.Context) ([]domain.PushSubscription, error) {
	return s.subscriptions.List(ctx)
}

func (s *SubscriptionService) Count(ctx context.Context) (int64, error) {
	return s.subscriptions.Count(ctx)
}
