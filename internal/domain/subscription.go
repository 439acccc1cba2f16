package domain

import (
	"fmt"
	"strings"
	"time"
)

// SubscriptionKeys is the browser-issued key material of a push subscription.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscription is a stored Web Push endpoint. Endpoint is unique across records.
type PushSubscription struct {
	ID            string
	Endpoint      string
	Keys          SubscriptionKeys
	UserAgent     string
	CreatedAt     time.Time
	LastSuccessAt *time.Time
}

func (s *PushSubscription) Validate() error {
	if strings.TrimSpace(s.Endpoint) == "" {
		return fmt.Errorf("%w: endpoint is required", ErrValidation)
	}
	if s.Keys.P256dh == "" || s.Keys.Auth == "" {
		return fmt.Errorf("%w: subscription keys are required", ErrValidation)
	}
	return nil
}

// Deliverable reports whether the endpoint can be targeted by the delivery pipeline.
func (s *PushSubscription) Deliverable() bool {
	return strings.HasPrefix(s.Endpoint, "https://")
}

// Stale sweep windows.
const (
	NeverSucceededGrace = 24 * time.Hour
	InactiveAfter       = 7 * 24 * time.Hour
)

// IsStale reports whether the subscription should be removed by the admin sweep:
// never delivered to and older than a day, or not delivered to for a week.
func (s *PushSubscription) IsStale(now time.Time) bool {
	if s.LastSuccessAt == nil {
		return now.Sub(s.CreatedAt) > NeverSucceededGrace
	}
	return now.Sub(*s.LastSuccessAt) > InactiveAfter
}
