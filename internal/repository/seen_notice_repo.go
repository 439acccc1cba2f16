package repository

import (
	"context"

	"github.com/kursadbilgin/notice-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SeenNoticeRepository interface {
	// SeenKeys returns the subset of keys already recorded.
	SeenKeys(ctx context.Context, keys []string) (map[string]struct{}, error)
	// Insert records notices as seen. Keys that already exist are left untouched.
	Insert(ctx context.Context, notices []domain.SeenNotice) error
}

type GormSeenNoticeRepo struct {
	db *gorm.DB
}

func NewGormSeenNoticeRepo(db *gorm.DB) *GormSeenNoticeRepo {
	return &GormSeenNoticeRepo{db: db}
}

func (r *GormSeenNoticeRepo) SeenKeys(ctx context.Context, keys []string) (map[string]struct{}, error) {
	seen := make(map[string]struct{}, len(keys))
	if len(keys) == 0 {
		return seen, nil
	}

	var found []string
	err := r.db.WithContext(ctx).
		Model(&SeenNoticeModel{}).
		Where("dedup_key IN ?", keys).
		Pluck("dedup_key", &found).Error
	if err != nil {
		return nil, err
	}

	for _, k := range found {
		seen[k] = struct{}{}
	}
	return seen, nil
}

func (r *GormSeenNoticeRepo) Insert(ctx context.Context, notices []domain.SeenNotice) error {
	if len(notices) == 0 {
		return nil
	}

	models := make([]SeenNoticeModel, 0, len(notices))
	for _, n := range notices {
		models = append(models, seenModelFromDomain(n))
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&models, 100).Error
}
