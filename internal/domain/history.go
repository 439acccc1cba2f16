package domain

import (
	"fmt"
	"strings"
	"time"
)

// TriggeredBy records what started a notification fan-out.
type TriggeredBy string

const (
	TriggeredByAuto   TriggeredBy = "auto"
	TriggeredByManual TriggeredBy = "manual"
)

func (t TriggeredBy) String() string { return string(t) }

func (t TriggeredBy) IsValid() bool {
	switch t {
	case TriggeredByAuto, TriggeredByManual:
		return true
	}
	return false
}

// ParseTriggeredBy defaults an empty value to auto.
func ParseTriggeredBy(s string) (TriggeredBy, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "" {
		return TriggeredByAuto, nil
	}
	t := TriggeredBy(normalized)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: invalid trigger %q", ErrValidation, s)
	}
	return t, nil
}

// DedupKey selects which notice attribute identifies an already-notified notice.
type DedupKey string

const (
	DedupByTitle DedupKey = "title"
	DedupByID    DedupKey = "id"
)

func (k DedupKey) IsValid() bool {
	return k == DedupByTitle || k == DedupByID
}

func ParseDedupKey(s string) (DedupKey, error) {
	k := DedupKey(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: invalid dedup key %q", ErrValidation, s)
	}
	return k, nil
}

// Of returns the dedup value of n.
func (k DedupKey) Of(n Notice) string {
	if k == DedupByID && n.ID != "" {
		return n.ID
	}
	return n.Title
}

// SeenNotice marks a notice as already notified. Records are never updated.
type SeenNotice struct {
	Key       string
	Title     string
	FirstSeen time.Time
}

// NotificationHistoryEntry is one audit row per notice fan-out.
type NotificationHistoryEntry struct {
	ID               string
	NoticeTitle      string
	Category         Category
	SentAt           time.Time
	SubscribersCount int
	Successful       int
	Failed           int
	TriggeredBy      TriggeredBy
}
