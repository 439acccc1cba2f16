package repository

import (
	"context"

	"github.com/kursadbilgin/notice-engine/internal/domain"
	"gorm.io/gorm"
)

const DefaultHistoryLimit = 20

type HistoryRepository interface {
	Append(ctx context.Context, e *domain.NotificationHistoryEntry) error
	Recent(ctx context.Context, limit int) ([]domain.NotificationHistoryEntry, error)
}

type GormHistoryRepo struct {
	db *gorm.DB
}

func NewGormHistoryRepo(db *gorm.DB) *GormHistoryRepo {
	return &GormHistoryRepo{db: db}
}

func (r *GormHistoryRepo) Append(ctx context.Context, e *domain.NotificationHistoryEntry) error {
	model := historyModelFromDomain(e)
	if model == nil {
		return domain.ErrValidation
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*e = *historyModelToDomain(model)
	return nil
}

func (r *GormHistoryRepo) Recent(ctx context.Context, limit int) ([]domain.NotificationHistoryEntry, error) {
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, 100)

	var models []NotificationHistoryModel
	err := r.db.WithContext(ctx).
		Order("sent_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.NotificationHistoryEntry, 0, len(models))
	for i := range models {
		entries = append(entries, *historyModelToDomain(&models[i]))
	}
	return entries, nil
}
