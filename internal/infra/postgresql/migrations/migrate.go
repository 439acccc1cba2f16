package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Migrate brings the schema to the latest version.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createPushSubscriptionsTable(),
		createSeenNoticesTable(),
		createNotificationHistoryTable(),
	})

	return m.Migrate()
}
