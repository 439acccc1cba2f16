package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notice-engine/internal/domain"
	"github.com/kursadbilgin/notice-engine/internal/repository"
	"github.com/kursadbilgin/notice-engine/internal/service"
)

type Broadcaster interface {
	Broadcast(ctx context.Context, msg service.Message) (service.DeliveryReport, error)
}

type NoticeChecker interface {
	Check(ctx context.Context, triggeredBy domain.TriggeredBy) (service.CheckReport, error)
}

// JobQueue hands work to the worker instead of running it in the request.
type JobQueue interface {
	EnqueueBroadcast(ctx context.Context, msg service.Message) (string, error)
	EnqueueCheck(ctx context.Context, triggeredBy domain.TriggeredBy) (string, error)
}

type SubscriptionAdmin interface {
	List(ctx context.Context) ([]domain.PushSubscription, error)
	DeleteByID(ctx context.Context, id string) error
}

type StaleSweeper interface {
	Sweep(ctx context.Context) ([]string, error)
}

type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]domain.NotificationHistoryEntry, error)
}

type AdminHandler struct {
	broadcaster   Broadcaster
	checker       NoticeChecker
	jobs          JobQueue
	subscriptions SubscriptionAdmin
	sweeper       StaleSweeper
	history       HistoryReader
}

// NewAdminHandler wires the admin surface. A nil jobs queue means sends and checks run inline.
func NewAdminHandler(
	broadcaster Broadcaster,
	checker NoticeChecker,
	jobs JobQueue,
	subscriptions SubscriptionAdmin,
	sweeper StaleSweeper,
	history HistoryReader,
) (*AdminHandler, error) {
	if jobs == nil && (broadcaster == nil || checker == nil) {
		return nil, fmt.Errorf("broadcaster and checker are required without a job queue")
	}
	if subscriptions == nil || sweeper == nil || history == nil {
		return nil, fmt.Errorf("subscription, sweeper and history dependencies are required")
	}

	return &AdminHandler{
		broadcaster:   broadcaster,
		checker:       checker,
		jobs:          jobs,
		subscriptions: subscriptions,
		sweeper:       sweeper,
		history:       history,
	}, nil
}

func RegisterAdminRoutes(router fiber.Router, h *AdminHandler) error {
	if h == nil {
		return fmt.Errorf("admin handler is required")
	}

	admin := router.Group("/v1/admin")
	admin.Post("/notifications", h.SendNotification)
	admin.Post("/checks", h.RunCheck)
	admin.Get("/subscriptions", h.ListSubscriptions)
	admin.Post("/subscriptions/sweep", h.SweepSubscriptions)
	admin.Delete("/subscriptions/:id", h.DeleteSubscription)
	admin.Get("/history", h.ListHistory)

	return nil
}

type sendNotificationRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	URL      string `json:"url"`
	Category string `json:"category"`
}

type sendNotificationResponse struct {
	Message string `json:"message"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Removed int    `json:"removed"`
	Total   int    `json:"total"`
}

type queuedResponse struct {
	Queued bool   `json:"queued"`
	JobID  string `json:"jobId"`
}

type subscriptionResponse struct {
	ID            string     `json:"id"`
	Endpoint      string     `json:"endpoint"`
	UserAgent     string     `json:"userAgent,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastSuccessAt *time.Time `json:"lastSuccessAt,omitempty"`
}

type historyResponse struct {
	ID               string    `json:"id"`
	NoticeTitle      string    `json:"noticeTitle"`
	Category         string    `json:"category"`
	SentAt           time.Time `json:"sentAt"`
	SubscribersCount int       `json:"subscribersCount"`
	Successful       int       `json:"successful"`
	Failed           int       `json:"failed"`
	TriggeredBy      string    `json:"triggeredBy"`
}

// SendNotification broadcasts an operator message. Manual sends are not written to history.
func (h *AdminHandler) SendNotification(c *fiber.Ctx) error {
	var req sendNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	msg := service.Message{
		Title:       strings.TrimSpace(req.Title),
		Body:        strings.TrimSpace(req.Body),
		URL:         strings.TrimSpace(req.URL),
		Category:    domain.CategoryGeneral,
		TriggeredBy: domain.TriggeredByManual,
	}
	if raw := strings.TrimSpace(req.Category); raw != "" {
		category, err := domain.ParseCategory(raw)
		if err != nil {
			return toHTTPError(err)
		}
		msg.Category = category
	}
	if err := msg.Validate(); err != nil {
		return toHTTPError(err)
	}

	if h.jobs != nil {
		jobID, err := h.jobs.EnqueueBroadcast(c.UserContext(), msg)
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusAccepted).JSON(queuedResponse{Queued: true, JobID: jobID})
	}

	report, err := h.broadcaster.Broadcast(c.UserContext(), msg)
	if err != nil {
		return toHTTPError(err)
	}

	message := "Notifications sent"
	if report.Total == 0 {
		message = "No subscribers"
	}
	return c.Status(fiber.StatusOK).JSON(sendNotificationResponse{
		Message: message,
		Sent:    report.Sent,
		Failed:  report.Failed,
		Removed: report.Removed,
		Total:   report.Total,
	})
}

func (h *AdminHandler) RunCheck(c *fiber.Ctx) error {
	if h.jobs != nil {
		jobID, err := h.jobs.EnqueueCheck(c.UserContext(), domain.TriggeredByManual)
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusAccepted).JSON(queuedResponse{Queued: true, JobID: jobID})
	}

	report, err := h.checker.Check(c.UserContext(), domain.TriggeredByManual)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(report)
}

func (h *AdminHandler) ListSubscriptions(c *fiber.Ctx) error {
	subs, err := h.subscriptions.List(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]subscriptionResponse, 0, len(subs))
	for i := range subs {
		data = append(data, toSubscriptionResponse(&subs[i]))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data":  data,
		"total": len(data),
	})
}

func (h *AdminHandler) DeleteSubscription(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.subscriptions.DeleteByID(c.UserContext(), id); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id":      id,
		"deleted": true,
	})
}

func (h *AdminHandler) SweepSubscriptions(c *fiber.Ctx) error {
	removed, err := h.sweeper.Sweep(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"removed": len(removed),
		"ids":     removed,
	})
}

func (h *AdminHandler) ListHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", repository.DefaultHistoryLimit)
	if limit < 1 {
		return toHTTPError(fmt.Errorf("%w: limit must be >= 1", domain.ErrValidation))
	}

	entries, err := h.history.Recent(c.UserContext(), limit)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		data = append(data, historyResponse{
			ID:               e.ID,
			NoticeTitle:      e.NoticeTitle,
			Category:         e.Category.String(),
			SentAt:           e.SentAt,
			SubscribersCount: e.SubscribersCount,
			Successful:       e.Successful,
			Failed:           e.Failed,
			TriggeredBy:      e.TriggeredBy.String(),
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": data,
	})
}

func toSubscriptionResponse(s *domain.PushSubscription) subscriptionResponse {
	if s == nil {
		return subscriptionResponse{}
	}
	return subscriptionResponse{
		ID:            s.ID,
		Endpoint:      s.Endpoint,
		UserAgent:     s.UserAgent,
		CreatedAt:     s.CreatedAt,
		LastSuccessAt: s.LastSuccessAt,
	}
}
