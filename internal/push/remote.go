package push

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultRemoteTimeout = 10 * time.Second

type saveRequest struct {
	Subscription
	UserAgent string `json:"userAgent"`
}

type publicKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

// RemoteStore persists subscriptions through the notice API.
type RemoteStore struct {
	client  *resty.Client
	baseURL string
}

// RemoteKeySource reads the VAPID public key from the notice API.
type RemoteKeySource struct {
	client  *resty.Client
	baseURL string
}

func NewRemoteStore(baseURL string, client *resty.Client) (*RemoteStore, error) {
	base, c, err := remoteClient(baseURL, client)
	if err != nil {
		return nil, err
	}
	return &RemoteStore{client: c, baseURL: base}, nil
}

func NewRemoteKeySource(baseURL string, client *resty.Client) (*RemoteKeySource, error) {
	base, c, err := remoteClient(baseURL, client)
	if err != nil {
		return nil, err
	}
	return &RemoteKeySource{client: c, baseURL: base}, nil
}

func remoteClient(baseURL string, client *resty.Client) (string, *resty.Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return "", nil, fmt.Errorf("api base url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return "", nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if client == nil {
		client = resty.New()
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultRemoteTimeout)
	}
	client.SetRetryCount(0)
	return trimmed, client, nil
}

func (s *RemoteStore) Save(ctx context.Context, sub Subscription, userAgent string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(saveRequest{Subscription: sub, UserAgent: userAgent}).
		Post(s.baseURL + "/v1/push/subscriptions")
	return checkResponse("save subscription", resp, err)
}

func (s *RemoteStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("endpoint", endpoint).
		Delete(s.baseURL + "/v1/push/subscriptions")
	return checkResponse("delete subscription", resp, err)
}

func (k *RemoteKeySource) PublicKey(ctx context.Context) (string, error) {
	var body publicKeyResponse
	resp, err := k.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get(k.baseURL + "/v1/push/vapid-public-key")
	if err := checkResponse("fetch public key", resp, err); err != nil {
		return "", err
	}
	return body.PublicKey, nil
}

func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp == nil {
		return fmt.Errorf("%s: empty response", op)
	}
	code := resp.StatusCode()
	if code >= http.StatusOK && code < http.StatusMultipleChoices {
		return nil
	}
	if body := strings.TrimSpace(resp.String()); body != "" {
		return fmt.Errorf("%s: status %d: %s", op, code, body)
	}
	return fmt.Errorf("%s: status %d", op, code)
}
