package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Reasons attached to classified relay failures.
const (
	ReasonGone          = "gone"
	ReasonVAPIDMismatch = "vapid_mismatch"
	ReasonThrottled     = "throttled"
	ReasonRelayDown     = "relay_unavailable"
	ReasonNetwork       = "network"
)

// ProviderError is a failed push delivery. Gone subscriptions must be deleted;
// Transient failures may succeed on a later attempt.
type ProviderError struct {
	StatusCode int
	Message    string
	Gone       bool
	Transient  bool
	Reason     string
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	var b strings.Builder
	b.WriteString("push delivery failed")
	if e.Reason != "" {
		fmt.Fprintf(&b, " (%s)", e.Reason)
	}
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " status=%d", e.StatusCode)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		b.WriteString(": " + msg)
	}
	if e.Cause != nil {
		b.WriteString(": " + e.Cause.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// requestFailed wraps an error raised before any relay response arrived.
func requestFailed(err error) *ProviderError {
	return &ProviderError{
		Message:   "push request failed",
		Transient: !errors.Is(err, context.Canceled),
		Reason:    ReasonNetwork,
		Cause:     err,
	}
}

// classifyResponse maps a non-2xx relay reply. 404 and 410 mean the browser dropped
// the subscription. A 403 naming the VAPID key means it was created under another key
// pair and can never be delivered with ours.
func classifyResponse(statusCode int, body string) *ProviderError {
	message := fmt.Sprintf("push relay returned status %d", statusCode)
	if body != "" {
		message += ": " + body
	}

	providerErr := &ProviderError{StatusCode: statusCode, Message: message}
	switch {
	case statusCode == http.StatusNotFound, statusCode == http.StatusGone:
		providerErr.Gone = true
		providerErr.Reason = ReasonGone
	case statusCode == http.StatusForbidden && isVAPIDMismatch(body):
		providerErr.Gone = true
		providerErr.Reason = ReasonVAPIDMismatch
	case statusCode == http.StatusTooManyRequests:
		providerErr.Transient = true
		providerErr.Reason = ReasonThrottled
	case statusCode >= http.StatusInternalServerError && statusCode <= 599:
		providerErr.Transient = true
		providerErr.Reason = ReasonRelayDown
	}
	return providerErr
}

func isVAPIDMismatch(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "do not correspond") || strings.Contains(lower, "vapid")
}

// IsGone reports whether the subscription behind err should be deleted.
func IsGone(err error) bool {
	var providerErr *ProviderError
	return errors.As(err, &providerErr) && providerErr.Gone
}

// IsTransient reports whether a delivery may succeed if tried again later.
func IsTransient(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Transient
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
