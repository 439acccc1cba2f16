package push

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kursadbilgin/notice-engine/internal/domain"
	"go.uber.org/zap"
)

// State is the subscriber-facing view of the push channel.
type State string

const (
	StateUnsupported  State = "unsupported"
	StateDefault      State = "default"
	StateDenied       State = "denied"
	StateUnsubscribed State = "granted-unsubscribed"
	StateSubscribed   State = "granted-subscribed"
)

// Permission mirrors the platform notification permission.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

var (
	ErrUnsupported      = errors.New("push messaging is not supported")
	ErrPermissionDenied = errors.New("notification permission denied")
)

// Subscription is the handshake result the platform hands back.
type Subscription struct {
	Endpoint string                  `json:"endpoint"`
	Keys     domain.SubscriptionKeys `json:"keys"`
}

// Agent is the platform side of the push handshake.
type Agent interface {
	Supported() bool
	Permission(ctx context.Context) (Permission, error)
	RequestPermission(ctx context.Context) (Permission, error)
	CurrentSubscription(ctx context.Context) (*Subscription, error)
	Subscribe(ctx context.Context, applicationServerKey string) (Subscription, error)
	Unsubscribe(ctx context.Context) error
	UserAgent() string
}

// Store persists subscriptions on the server side.
type Store interface {
	Save(ctx context.Context, sub Subscription, userAgent string) error
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// KeySource yields the server's VAPID public key.
type KeySource interface {
	PublicKey(ctx context.Context) (string, error)
}

// Manager drives the subscribe/unsubscribe lifecycle. All operations are serialized.
type Manager struct {
	agent  Agent
	store  Store
	keys   KeySource
	logger *zap.Logger

	mu        sync.Mutex
	supported bool
	state     State
	publicKey string
}

// New checks platform capability once; the result holds for the manager's lifetime.
func New(ctx context.Context, agent Agent, store Store, keys KeySource, logger *zap.Logger) (*Manager, error) {
	if agent == nil {
		return nil, fmt.Errorf("%w: push agent is required", domain.ErrValidation)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: subscription store is required", domain.ErrValidation)
	}
	if keys == nil {
		return nil, fmt.Errorf("%w: key source is required", domain.ErrValidation)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		agent:     agent,
		store:     store,
		keys:      keys,
		logger:    logger,
		supported: agent.Supported(),
		state:     StateUnsupported,
	}
	if m.supported {
		m.mu.Lock()
		m.recheckLocked(ctx)
		m.mu.Unlock()
	}
	return m, nil
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Recheck re-reads the permission, which can change out of band.
func (m *Manager) Recheck(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recheckLocked(ctx)
	return m.state
}

func (m *Manager) recheckLocked(ctx context.Context) {
	if !m.supported {
		return
	}
	perm, err := m.agent.Permission(ctx)
	if err != nil {
		m.logger.Warn("failed to read notification permission", zap.Error(err))
		return
	}
	m.applyPermission(perm)
}

func (m *Manager) applyPermission(perm Permission) {
	switch perm {
	case PermissionDenied:
		m.state = StateDenied
	case PermissionGranted:
		if m.state != StateSubscribed {
			m.state = StateUnsubscribed
		}
	default:
		m.state = StateDefault
	}
}

// WatchPermission rechecks on every trigger, e.g. a window focus event, until ctx ends.
func (m *Manager) WatchPermission(ctx context.Context, triggers <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-triggers:
			if !ok {
				return nil
			}
			m.Recheck(ctx)
		}
	}
}

// Subscribe asks for permission and registers a fresh subscription.
// Any existing subscription is torn down first so a record tied to stale server keys never survives.
func (m *Manager) Subscribe(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.supported {
		return ErrUnsupported
	}

	perm, err := m.agent.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("request permission: %w", err)
	}
	if perm != PermissionGranted {
		m.applyPermission(perm)
		return ErrPermissionDenied
	}

	existing, err := m.agent.CurrentSubscription(ctx)
	if err != nil {
		return fmt.Errorf("read current subscription: %w", err)
	}
	if existing != nil {
		if err := m.store.DeleteByEndpoint(ctx, existing.Endpoint); err != nil {
			m.logger.Warn("failed to delete stale subscription record",
				zap.String("endpoint", existing.Endpoint),
				zap.Error(err),
			)
		}
		if err := m.agent.Unsubscribe(ctx); err != nil {
			return fmt.Errorf("revoke stale subscription: %w", err)
		}
		m.state = StateUnsubscribed
	}

	key, err := m.serverKeyLocked(ctx)
	if err != nil {
		m.state = StateUnsubscribed
		return err
	}

	sub, err := m.agent.Subscribe(ctx, key)
	if err != nil {
		m.state = StateUnsubscribed
		return fmt.Errorf("create subscription: %w", err)
	}

	if err := m.store.Save(ctx, sub, m.agent.UserAgent()); err != nil {
		m.state = StateUnsubscribed
		return fmt.Errorf("persist subscription: %w", err)
	}

	m.state = StateSubscribed
	m.logger.Info("push subscription registered", zap.String("endpoint", sub.Endpoint))
	return nil
}

// Unsubscribe removes the server record before revoking locally.
func (m *Manager) Unsubscribe(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.supported {
		return ErrUnsupported
	}

	existing, err := m.agent.CurrentSubscription(ctx)
	if err != nil {
		return fmt.Errorf("read current subscription: %w", err)
	}
	if existing == nil {
		m.state = StateUnsubscribed
		return nil
	}

	if err := m.store.DeleteByEndpoint(ctx, existing.Endpoint); err != nil {
		m.logger.Warn("failed to delete subscription record",
			zap.String("endpoint", existing.Endpoint),
			zap.Error(err),
		)
	}
	if err := m.agent.Unsubscribe(ctx); err != nil {
		return fmt.Errorf("revoke subscription: %w", err)
	}

	m.state = StateUnsubscribed
	return nil
}

// CheckSubscription reconciles the local subscription with the server.
// A subscription that cannot be persisted is reported as not subscribed.
func (m *Manager) CheckSubscription(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.supported {
		return m.state
	}

	m.recheckLocked(ctx)
	if m.state == StateDenied || m.state == StateDefault {
		return m.state
	}

	existing, err := m.agent.CurrentSubscription(ctx)
	if err != nil {
		m.logger.Warn("failed to read current subscription", zap.Error(err))
		m.state = StateUnsubscribed
		return m.state
	}
	if existing == nil {
		m.state = StateUnsubscribed
		return m.state
	}

	if err := m.store.Save(ctx, *existing, m.agent.UserAgent()); err != nil {
		m.logger.Warn("failed to persist existing subscription",
			zap.String("endpoint", existing.Endpoint),
			zap.Error(err),
		)
		m.state = StateUnsubscribed
		return m.state
	}

	m.state = StateSubscribed
	return m.state
}

func (m *Manager) serverKeyLocked(ctx context.Context) (string, error) {
	if m.publicKey != "" {
		return m.publicKey, nil
	}
	key, err := m.keys.PublicKey(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch server key: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("fetch server key: empty key")
	}
	m.publicKey = key
	return key, nil
}
