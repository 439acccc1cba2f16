package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notice-engine/internal/domain"
	"github.com/kursadbilgin/notice-engine/internal/noticestore"
	"github.com/kursadbilgin/notice-engine/internal/search"
)

// NoticeBoard serves the current notice snapshot.
type NoticeBoard interface {
	Current(ctx context.Context) noticestore.Snapshot
}

type NoticeHandler struct {
	board NoticeBoard
}

func NewNoticeHandler(board NoticeBoard) (*NoticeHandler, error) {
	if board == nil {
		return nil, fmt.Errorf("notice board is required")
	}
	return &NoticeHandler{board: board}, nil
}

func RegisterNoticeRoutes(router fiber.Router, board NoticeBoard) error {
	h, err := NewNoticeHandler(board)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/notices", h.ListNotices)
	v1.Get("/notices/search", h.SearchNotices)

	return nil
}

type noticeListResponse struct {
	Notices   []domain.Notice `json:"notices"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetchedAt"`
	Total     int             `json:"total"`
}

type searchResultItem struct {
	Notice       domain.Notice `json:"notice"`
	Score        float64       `json:"score"`
	IsExactMatch bool          `json:"isExactMatch"`
}

type searchResponse struct {
	Query   string             `json:"query"`
	Source  string             `json:"source"`
	Results []searchResultItem `json:"results"`
}

// ListNotices returns the snapshot, optionally narrowed with ?category=.
func (h *NoticeHandler) ListNotices(c *fiber.Ctx) error {
	snapshot := h.board.Current(c.UserContext())

	notices := snapshot.Notices
	if raw := strings.TrimSpace(c.Query("category")); raw != "" {
		category, err := domain.ParseCategory(raw)
		if err != nil {
			return toHTTPError(err)
		}
		notices = filterByCategory(notices, category)
	}
	if notices == nil {
		notices = []domain.Notice{}
	}

	return c.Status(fiber.StatusOK).JSON(noticeListResponse{
		Notices:   notices,
		Source:    string(snapshot.Origin),
		FetchedAt: snapshot.FetchedAt,
		Total:     len(notices),
	})
}

func (h *NoticeHandler) SearchNotices(c *fiber.Ctx) error {
	query := c.Query("q")
	snapshot := h.board.Current(c.UserContext())

	results := search.Search(snapshot.Notices, query, func(n domain.Notice) string { return n.Title })
	items := make([]searchResultItem, 0, len(results))
	for _, r := range results {
		items = append(items, searchResultItem{
			Notice:       r.Item,
			Score:        r.Score,
			IsExactMatch: r.IsExactMatch,
		})
	}

	return c.Status(fiber.StatusOK).JSON(searchResponse{
		Query:   query,
		Source:  string(snapshot.Origin),
		Results: items,
	})
}

func filterByCategory(notices []domain.Notice, category domain.Category) []domain.Notice {
	out := make([]domain.Notice, 0, len(notices))
	for _, n := range notices {
		if n.Category == category {
			out = append(out, n)
		}
	}
	return out
}
