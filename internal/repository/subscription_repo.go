package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/notice-engine/internal/domain"
	"gorm.io/gorm"
)

type SubscriptionRepository interface {
	// Replace removes any record for the endpoint and inserts s, atomically.
	Replace(ctx context.Context, s *domain.PushSubscription) error
	GetByID(ctx context.Context, id string) (*domain.PushSubscription, error)
	List(ctx context.Context) ([]domain.PushSubscription, error)
	Count(ctx context.Context) (int64, error)
	MarkSuccess(ctx context.Context, id string, at time.Time) error
	DeleteByEndpoint(ctx context.Context, endpoint string) error
	DeleteByID(ctx context.Context, id string) error
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

type GormSubscriptionRepo struct {
	db *gorm.DB
}

func NewGormSubscriptionRepo(db *gorm.DB) *GormSubscriptionRepo {
	return &GormSubscriptionRepo{db: db}
}

func (r *GormSubscriptionRepo) Replace(ctx context.Context, s *domain.PushSubscription) error {
	model := subscriptionModelFromDomain(s)
	if model == nil {
		return domain.ErrValidation
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("endpoint = ?", model.Endpoint).Delete(&PushSubscriptionModel{}).Error; err != nil {
			return err
		}
		return tx.Create(model).Error
	})
	if err != nil {
		return err
	}

	*s = *subscriptionModelToDomain(model)
	return nil
}

func (r *GormSubscriptionRepo) GetByID(ctx context.Context, id string) (*domain.PushSubscription, error) {
	var model PushSubscriptionModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return subscriptionModelToDomain(&model), nil
}

func (r *GormSubscriptionRepo) List(ctx context.Context) ([]domain.PushSubscription, error) {
	var models []PushSubscriptionModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	subs := make([]domain.PushSubscription, 0, len(models))
	for i := range models {
		subs = append(subs, *subscriptionModelToDomain(&models[i]))
	}
	return subs, nil
}

func (r *GormSubscriptionRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&PushSubscriptionModel{}).Count(&total).Error
	return total, err
}

func (r *GormSubscriptionRepo) MarkSuccess(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&PushSubscriptionModel{}).
		Where("id = ?", id).
		Update("last_success_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteByEndpoint is idempotent; deleting an unknown endpoint is not an error.
func (r *GormSubscriptionRepo) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	return r.db.WithContext(ctx).
		Where("endpoint = ?", endpoint).
		Delete(&PushSubscriptionModel{}).Error
}

func (r *GormSubscriptionRepo) DeleteByID(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&PushSubscriptionModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormSubscriptionRepo) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&PushSubscriptionModel{})
	return result.RowsAffected, result.Error
}
