package repository

import (
	"time"

	"github.com/kursadbilgin/notice-engine/internal/domain"
)

// PushSubscriptionModel is the persistence model for the push_subscriptions table.
type PushSubscriptionModel struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	Endpoint      string `gorm:"type:text;not null;uniqueIndex:idx_push_subscriptions_endpoint"`
	P256dh        string `gorm:"type:text;not null"`
	Auth          string `gorm:"type:text;not null"`
	UserAgent     string `gorm:"type:text"`
	CreatedAt     time.Time
	LastSuccessAt *time.Time
}

func (PushSubscriptionModel) TableName() string {
	return "push_subscriptions"
}

// SeenNoticeModel is the persistence model for seen_notices. Rows are never updated.
type SeenNoticeModel struct {
	Key       string `gorm:"column:dedup_key;type:text;primaryKey"`
	Title     string `gorm:"type:text;not null"`
	FirstSeen time.Time
}

func (SeenNoticeModel) TableName() string {
	return "seen_notices"
}

// NotificationHistoryModel is the persistence model for notification_history.
type NotificationHistoryModel struct {
	ID               string             `gorm:"type:uuid;primaryKey"`
	NoticeTitle      string             `gorm:"type:text;not null"`
	Category         domain.Category    `gorm:"type:varchar(20);not null"`
	SentAt           time.Time          `gorm:"not null;index:idx_notification_history_sent_at"`
	SubscribersCount int                `gorm:"not null;default:0"`
	Successful       int                `gorm:"not null;default:0"`
	Failed           int                `gorm:"not null;default:0"`
	TriggeredBy      domain.TriggeredBy `gorm:"type:varchar(10);not null;default:'auto'"`
}

func (NotificationHistoryModel) TableName() string {
	return "notification_history"
}

func subscriptionModelFromDomain(s *domain.PushSubscription) *PushSubscriptionModel {
	if s == nil {
		return nil
	}

	return &PushSubscriptionModel{
		ID:            s.ID,
		Endpoint:      s.Endpoint,
		P256dh:        s.Keys.P256dh,
		Auth:          s.Keys.Auth,
		UserAgent:     s.UserAgent,
		CreatedAt:     s.CreatedAt,
		LastSuccessAt: s.LastSuccessAt,
	}
}

func subscriptionModelToDomain(m *PushSubscriptionModel) *domain.PushSubscription {
	if m == nil {
		return nil
	}

	return &domain.PushSubscription{
		ID:       m.ID,
		Endpoint: m.Endpoint,
		Keys: domain.SubscriptionKeys{
			P256dh: m.P256dh,
			Auth:   m.Auth,
		},
		UserAgent:     m.UserAgent,
		CreatedAt:     m.CreatedAt,
		LastSuccessAt: m.LastSuccessAt,
	}
}

func seenModelFromDomain(s domain.SeenNotice) SeenNoticeModel {
	return SeenNoticeModel{
		Key:       s.Key,
		Title:     s.Title,
		FirstSeen: s.FirstSeen,
	}
}

func historyModelFromDomain(e *domain.NotificationHistoryEntry) *NotificationHistoryModel {
	if e == nil {
		return nil
	}

	return &NotificationHistoryModel{
		ID:               e.ID,
		NoticeTitle:      e.NoticeTitle,
		Category:         e.Category,
		SentAt:           e.SentAt,
		SubscribersCount: e.SubscribersCount,
		Successful:       e.Successful,
		Failed:           e.Failed,
		TriggeredBy:      e.TriggeredBy,
	}
}

func historyModelToDomain(m *NotificationHistoryModel) *domain.NotificationHistoryEntry {
	if m == nil {
		return nil
	}

	return &domain.NotificationHistoryEntry{
		ID:               m.ID,
		NoticeTitle:      m.NoticeTitle,
		Category:         m.Category,
		SentAt:           m.SentAt,
		SubscribersCount: m.SubscribersCount,
		Successful:       m.Successful,
		Failed:           m.Failed,
		TriggeredBy:      m.TriggeredBy,
	}
}
