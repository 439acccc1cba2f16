package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/notice-engine/internal/domain"
)

const (
	defaultPushTimeout = 10 * time.Second
	pushTTLSeconds     = 86400
	pushTopic          = "galsi-notice"
	maxErrorBody       = 4 << 10
)

// VAPIDConfig identifies this server to push relays.
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
}

func (c VAPIDConfig) validate() error {
	if strings.TrimSpace(c.PublicKey) == "" || strings.TrimSpace(c.PrivateKey) == "" {
		return fmt.Errorf("%w: vapid key pair is required", domain.ErrValidation)
	}
	if strings.TrimSpace(c.Subscriber) == "" {
		return fmt.Errorf("%w: vapid subscriber is required", domain.ErrValidation)
	}
	return nil
}

// GenerateVAPIDConfig creates an ephemeral key pair for the given subscriber.
func GenerateVAPIDConfig(subscriber string) (VAPIDConfig, error) {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return VAPIDConfig{}, fmt.Errorf("generate vapid keys: %w", err)
	}
	return VAPIDConfig{PublicKey: publicKey, PrivateKey: privateKey, Subscriber: subscriber}, nil
}

// WebPushSender delivers payloads over the Web Push protocol with VAPID signing.
type WebPushSender struct {
	vapid  VAPIDConfig
	client *http.Client
}

func NewWebPushSender(vapid VAPIDConfig) (*WebPushSender, error) {
	client := resty.New()
	client.SetTimeout(defaultPushTimeout)
	client.SetRetryCount(0)

	return NewWebPushSenderWithClient(vapid, client)
}

// NewWebPushSenderWithClient shares the transport and timeout of an existing resty client.
func NewWebPushSenderWithClient(vapid VAPIDConfig, client *resty.Client) (*WebPushSender, error) {
	if err := vapid.validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultPushTimeout)
	}

	return &WebPushSender{
		vapid:  vapid,
		client: client.GetClient(),
	}, nil
}

// PublicKey is handed to browsers as the applicationServerKey.
func (s *WebPushSender) PublicKey() string {
	if s == nil {
		return ""
	}
	return s.vapid.PublicKey
}

func (s *WebPushSender) Send(ctx context.Context, sub domain.PushSubscription, payload Payload) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("sender is not initialized")
	}
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("invalid subscription: %w", err)
	}

	body, err := json.Marshal(payload.withDefaults())
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	response, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.vapid.Subscriber,
		VAPIDPublicKey:  s.vapid.PublicKey,
		VAPIDPrivateKey: s.vapid.PrivateKey,
		TTL:             pushTTLSeconds,
		Urgency:         webpush.UrgencyHigh,
		Topic:           pushTopic,
	})
	if err != nil {
		return requestFailed(err)
	}
	defer response.Body.Close()

	statusCode := response.StatusCode
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))
	return classifyResponse(statusCode, strings.TrimSpace(string(raw)))
}
