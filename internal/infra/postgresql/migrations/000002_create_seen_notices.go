package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/notice-engine/internal/repository"
	"gorm.io/gorm"
)

func createSeenNoticesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_seen_notices",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.SeenNoticeModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.SeenNoticeModel{})
		},
	}
}
