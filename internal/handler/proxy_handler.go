package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2"
)

const (
	proxyTimeout         = 30 * time.Second
	proxyUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultDownloadName  = "download.pdf"
	defaultDownloadMedia = "application/octet-stream"
)

// ProxyHandler re-serves notice documents so browsers can download them from a blocked origin.
type ProxyHandler struct {
	client *resty.Client
}

func NewProxyHandler(client *resty.Client) *ProxyHandler {
	if client == nil {
		client = resty.New()
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(proxyTimeout)
	}
	client.SetHeader("User-Agent", proxyUserAgent)
	return &ProxyHandler{client: client}
}

func RegisterProxyRoutes(router fiber.Router, client *resty.Client) {
	h := NewProxyHandler(client)
	router.Get("/v1/proxy-download", h.Download)
}

func (h *ProxyHandler) Download(c *fiber.Ctx) error {
	target, err := parseDownloadURL(c.Query("url"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	resp, err := h.client.R().
		SetContext(c.UserContext()).
		Get(target.String())
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("failed to fetch document: %v", err))
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("upstream returned status %d", resp.StatusCode()))
	}

	contentType := resp.Header().Get(fiber.HeaderContentType)
	if contentType == "" {
		contentType = defaultDownloadMedia
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", downloadFilename(target)))
	return c.Status(fiber.StatusOK).Send(resp.Body())
}

func parseDownloadURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("only http and https urls are allowed")
	}
	return u, nil
}

func downloadFilename(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return defaultDownloadName
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return name
}
