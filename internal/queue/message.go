package queue

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/notice-engine/internal/domain"
)

// Message is the broker payload for delivery work.
type Message struct {
	ID            string             `json:"id"`
	CorrelationID string             `json:"correlationId,omitempty"`
	Kind          Kind               `json:"kind"`
	Title         string             `json:"title,omitempty"`
	Body          string             `json:"body,omitempty"`
	URL           string             `json:"url,omitempty"`
	Category      domain.Category    `json:"category,omitempty"`
	RecordHistory bool               `json:"recordHistory,omitempty"`
	TriggeredBy   domain.TriggeredBy `json:"triggeredBy"`
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if !m.Kind.IsValid() {
		return fmt.Errorf("invalid kind %q", m.Kind)
	}
	if !m.TriggeredBy.IsValid() {
		return fmt.Errorf("invalid triggeredBy %q", m.TriggeredBy)
	}
	if m.Kind == KindBroadcast {
		if strings.TrimSpace(m.Title) == "" || strings.TrimSpace(m.Body) == "" {
			return fmt.Errorf("broadcast requires title and body")
		}
		if m.Category != "" && !m.Category.IsValid() {
			return fmt.Errorf("invalid category %q", m.Category)
		}
	}
	return nil
}
