package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"gopkg.in/yaml.v3"
)

const (
	defaultAttemptTimeout = 15 * time.Second
	browserUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Transport fetches the raw payload for a target URL through one route.
type Transport interface {
	Name() string
	Fetch(ctx context.Context, target string) (string, error)
}

// TransportSpec describes one entry of the transport chain. An empty Prefix means a direct request.
type TransportSpec struct {
	Name   string `yaml:"name"`
	Prefix string `yaml:"prefix"`
	// Encode query-escapes the target before appending it to Prefix.
	Encode bool `yaml:"encode"`
}

// DefaultTransportSpecs is the built-in chain: direct, public CORS relays,
// then a readability proxy and a search-engine cache as last resorts.
func DefaultTransportSpecs() []TransportSpec {
	return []TransportSpec{
		{Name: "direct"},
		{Name: "allorigins", Prefix: "https://api.allorigins.win/raw?url=", Encode: true},
		{Name: "corsproxy", Prefix: "https://corsproxy.io/?", Encode: true},
		{Name: "cors.sh", Prefix: "https://proxy.cors.sh/", Encode: true},
		{Name: "readability", Prefix: "https://r.jina.ai/"},
		{Name: "search-cache", Prefix: "https://webcache.googleusercontent.com/search?q=cache:"},
	}
}

type transportFile struct {
	Transports []TransportSpec `yaml:"transports"`
}

// LoadTransportSpecs reads a YAML document of the form
//
//	transports:
//	  - name: direct
//	  - name: allorigins
//	    prefix: https://api.allorigins.win/raw?url=
//	    encode: true
func LoadTransportSpecs(r io.Reader) ([]TransportSpec, error) {
	var file transportFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode transport chain: %w", err)
	}
	if len(file.Transports) == 0 {
		return nil, errors.New("transport chain is empty")
	}
	for i, spec := range file.Transports {
		if strings.TrimSpace(spec.Name) == "" {
			return nil, fmt.Errorf("transport %d: name is required", i)
		}
		if spec.Prefix != "" {
			if _, err := url.ParseRequestURI(spec.Prefix); err != nil {
				return nil, fmt.Errorf("transport %q: invalid prefix: %w", spec.Name, err)
			}
		}
	}
	return file.Transports, nil
}

// TransportError is a failed fetch through a single transport.
type TransportError struct {
	Transport  string
	StatusCode int
	Cause      error
}

func (e *TransportError) Error() string {
	parts := []string{"transport " + e.Transport}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *TransportError) Unwrap() error { return e.Cause }

// HTTPTransport fetches through an optional relay prefix with resty.
type HTTPTransport struct {
	spec   TransportSpec
	client *resty.Client
}

func NewHTTPTransport(spec TransportSpec, client *resty.Client) *HTTPTransport {
	if client == nil {
		client = NewHTTPClient()
	}
	return &HTTPTransport{spec: spec, client: client}
}

// NewHTTPClient returns the resty client shared by all transports.
func NewHTTPClient() *resty.Client {
	client := resty.New()
	client.SetTimeout(defaultAttemptTimeout)
	client.SetRetryCount(0)
	client.SetHeader("User-Agent", browserUserAgent)
	return client
}

// NewTransports builds the chain from specs with one shared client.
func NewTransports(specs []TransportSpec, client *resty.Client) []Transport {
	if client == nil {
		client = NewHTTPClient()
	}
	out := make([]Transport, 0, len(specs))
	for _, spec := range specs {
		out = append(out, NewHTTPTransport(spec, client))
	}
	return out
}

func (t *HTTPTransport) Name() string { return t.spec.Name }

func (t *HTTPTransport) requestURL(target string) string {
	if t.spec.Prefix == "" {
		return target
	}
	if t.spec.Encode {
		return t.spec.Prefix + url.QueryEscape(target)
	}
	return t.spec.Prefix + target
}

func (t *HTTPTransport) Fetch(ctx context.Context, target string) (string, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		Get(t.requestURL(target))
	if err != nil {
		return "", &TransportError{Transport: t.spec.Name, Cause: err}
	}

	status := resp.StatusCode()
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return "", &TransportError{Transport: t.spec.Name, StatusCode: status}
	}
	return resp.String(), nil
}
