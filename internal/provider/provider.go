package provider

import (
	"context"

	"github.com/kursadbilgin/notice-engine/internal/domain"
)

// Sender is the outbound push delivery port.
type Sender interface {
	Send(ctx context.Context, sub domain.PushSubscription, payload Payload) error
}

// Payload is the JSON document a service worker receives.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
	Badge string `json:"badge"`
	URL   string `json:"url"`
}

// DefaultIcon is used for both icon and badge when a payload leaves them empty.
const DefaultIcon = "/logo.png"

func (p Payload) withDefaults() Payload {
	if p.Icon == "" {
		p.Icon = DefaultIcon
	}
	if p.Badge == "" {
		p.Badge = DefaultIcon
	}
	if p.URL == "" {
		p.URL = "/"
	}
	return p
}
