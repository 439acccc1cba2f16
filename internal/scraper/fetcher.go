package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultMinPayloadBytes rejects relay error pages and empty shells.
const DefaultMinPayloadBytes = 500

var (
	ErrPayloadTooShort = errors.New("payload below minimum length")
	ErrNoTransports    = errors.New("no transports configured")
)

// AttemptRecorder receives one observation per transport attempt.
type AttemptRecorder interface {
	IncScrapeAttempt(transport string, outcome string)
}

// Payload is a successfully fetched body and the transport that produced it.
type Payload struct {
	Body      string
	Transport string
}

// ExhaustedError is returned when every transport in the chain failed.
type ExhaustedError struct {
	Attempts []error
}

func (e *ExhaustedError) Error() string {
	msgs := make([]string, 0, len(e.Attempts))
	for _, err := range e.Attempts {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("all %d transports failed: %s", len(e.Attempts), strings.Join(msgs, "; "))
}

func (e *ExhaustedError) Unwrap() []error { return e.Attempts }

type fetchState int

const (
	stateAttempt fetchState = iota
	stateSucceeded
	stateExhausted
)

// Fetcher walks an ordered transport chain one strategy at a time.
type Fetcher struct {
	transports     []Transport
	attemptTimeout time.Duration
	minPayload     int
	recorder       AttemptRecorder
	logger         *zap.Logger
}

type FetcherOption func(*Fetcher)

func WithAttemptTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.attemptTimeout = d
		}
	}
}

func WithMinPayload(n int) FetcherOption {
	return func(f *Fetcher) {
		if n >= 0 {
			f.minPayload = n
		}
	}
}

func WithAttemptRecorder(r AttemptRecorder) FetcherOption {
	return func(f *Fetcher) { f.recorder = r }
}

func WithFetcherLogger(logger *zap.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func NewFetcher(transports []Transport, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		transports:     transports,
		attemptTimeout: defaultAttemptTimeout,
		minPayload:     DefaultMinPayloadBytes,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch tries each transport in order and returns the first acceptable payload.
func (f *Fetcher) Fetch(ctx context.Context, target string) (Payload, error) {
	if len(f.transports) == 0 {
		return Payload{}, ErrNoTransports
	}

	var (
		state    = stateAttempt
		next     int
		payload  Payload
		failures []error
	)

	for {
		switch state {
		case stateAttempt:
			if next >= len(f.transports) {
				state = stateExhausted
				continue
			}
			if err := ctx.Err(); err != nil {
				failures = append(failures, err)
				state = stateExhausted
				continue
			}

			t := f.transports[next]
			next++

			body, err := f.attempt(ctx, t, target)
			if err != nil {
				f.record(t.Name(), "failed")
				f.logger.Warn("transport attempt failed",
					zap.String("transport", t.Name()),
					zap.Error(err),
				)
				failures = append(failures, err)
				continue
			}

			f.record(t.Name(), "success")
			payload = Payload{Body: body, Transport: t.Name()}
			state = stateSucceeded

		case stateSucceeded:
			return payload, nil

		case stateExhausted:
			return Payload{}, &ExhaustedError{Attempts: failures}
		}
	}
}

func (f *Fetcher) attempt(ctx context.Context, t Transport, target string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.attemptTimeout)
	defer cancel()

	body, err := t.Fetch(attemptCtx, target)
	if err != nil {
		return "", err
	}
	if len(strings.TrimSpace(body)) < f.minPayload {
		return "", &TransportError{Transport: t.Name(), Cause: ErrPayloadTooShort}
	}
	return body, nil
}

func (f *Fetcher) record(transport, outcome string) {
	if f.recorder != nil {
		f.recorder.IncScrapeAttempt(transport, outcome)
	}
}
