package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notice-engine/internal/domain"
)

// SubscriptionStore is the browser-facing side of the subscription service.
type SubscriptionStore interface {
	Save(ctx context.Context, sub *domain.PushSubscription) (*domain.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

type PushHandler struct {
	subscriptions SubscriptionStore
	publicKey     string
}

func NewPushHandler(subscriptions SubscriptionStore, publicKey string) (*PushHandler, error) {
	if subscriptions == nil {
		return nil, fmt.Errorf("subscription store is required")
	}
	if strings.TrimSpace(publicKey) == "" {
		return nil, fmt.Errorf("vapid public key is required")
	}
	return &PushHandler{subscriptions: subscriptions, publicKey: publicKey}, nil
}

func RegisterPushRoutes(router fiber.Router, subscriptions SubscriptionStore, publicKey string) error {
	h, err := NewPushHandler(subscriptions, publicKey)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1/push")
	v1.Get("/vapid-public-key", h.PublicKey)
	v1.Post("/subscriptions", h.SaveSubscription)
	v1.Delete("/subscriptions", h.DeleteSubscription)

	return nil
}

type saveSubscriptionRequest struct {
	Endpoint  string                  `json:"endpoint"`
	Keys      domain.SubscriptionKeys `json:"keys"`
	UserAgent string                  `json:"userAgent"`
}

func (h *PushHandler) PublicKey(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"publicKey": h.publicKey,
	})
}

// SaveSubscription replaces whatever was stored for the endpoint.
func (h *PushHandler) SaveSubscription(c *fiber.Ctx) error {
	var req saveSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	userAgent := strings.TrimSpace(req.UserAgent)
	if userAgent == "" {
		userAgent = c.Get(fiber.HeaderUserAgent)
	}

	saved, err := h.subscriptions.Save(c.UserContext(), &domain.PushSubscription{
		Endpoint:  req.Endpoint,
		Keys:      req.Keys,
		UserAgent: userAgent,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toSubscriptionResponse(saved))
}

func (h *PushHandler) DeleteSubscription(c *fiber.Ctx) error {
	endpoint := strings.TrimSpace(c.Query("endpoint"))
	if err := h.subscriptions.DeleteByEndpoint(c.UserContext(), endpoint); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"deleted": true,
	})
}
