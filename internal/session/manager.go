package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/suqaba/suqaba-cli/internal/api"
	"github.com/suqaba/suqaba-cli/internal/config"
	"github.com/suqaba/suqaba-cli/internal/events"
	"github.com/suqaba/suqaba-cli/internal/logging"
	"github.com/suqaba/suqaba-cli/internal/models"
)

// ErrSessionChanged is returned by Login or Register when the session was
// replaced or cleared (for example by Logout) while the request was in flight.
// The response is discarded and no token is stored.
var ErrSessionChanged = errors.New("session changed while the request was in flight")

// Backend is the subset of the API client the Manager needs.
type Backend interface {
	Login(ctx context.Context, email, password string) (*models.AuthResponse, error)
	Register(ctx context.Context, email, password, name string) (*models.AuthResponse, error)
	Me(ctx context.Context, cred api.Credential) (*models.User, error)
	SetUnauthorizedHook(fn func(api.Credential))
}

// Manager holds the single process-wide session.
//
// Login, Register and Restore run one at a time, in the order they were
// called. Every credential change bumps the epoch; a response is applied only
// if the epoch it was issued under is still current.
type Manager struct {
	backend Backend
	store   config.TokenStore
	logger  *logging.Logger
	bus     *events.EventBus
	now     func() time.Time

	turns turnQueue

	mu          sync.Mutex
	current     *Session
	epoch       uint64
	refreshSeq  uint64
	refreshDone uint64
}

// Option customises a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithEventBus publishes SessionChanged events on bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithClock overrides the time source used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager and registers it for 401 notifications from backend.
func NewManager(backend Backend, store config.TokenStore, opts ...Option) *Manager {
	m := &Manager{
		backend: backend,
		store:   store,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	backend.SetUnauthorizedHook(m.handleUnauthorized)
	return m
}

// Current returns the active session, or nil when unauthenticated.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Require returns the active session or api.ErrUnauthenticated.
func (m *Manager) Require() (*Session, error) {
	if s := m.Current(); s != nil {
		return s, nil
	}
	return nil, api.ErrUnauthenticated
}

// Restore re-establishes the session from the persisted token.
//
// A missing token, an expired JWT or a rejected token all yield (nil, nil);
// the latter two also clear the store. A network or server failure keeps the
// token for the next attempt. Only context cancellation is returned as an error.
func (m *Manager) Restore(ctx context.Context) (*Session, error) {
	if err := m.turns.acquire(ctx); err != nil {
		return nil, err
	}
	defer m.turns.release()

	token, err := m.store.Load()
	if err != nil {
		if !errors.Is(err, config.ErrNoToken) {
			m.logger.Warn().Err(err).Msg("could not read saved token")
		}
		return nil, nil
	}

	if tokenExpired(token, m.now()) {
		m.logger.Info().Msg("saved token has expired, please log in again")
		m.clearStore()
		return nil, nil
	}

	epoch := m.currentEpoch()
	user, err := m.backend.Me(ctx, api.Token(token))
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case api.IsAuthError(err):
			m.logger.Info().Msg("saved token was rejected, please log in again")
			m.clearStore()
		default:
			m.logger.Warn().Err(err).Msg("could not restore session, keeping saved token")
		}
		return nil, nil
	}

	s, ok := m.install(epoch, token, user, "restore")
	if !ok {
		return nil, nil
	}
	return s, nil
}

// Login exchanges email and password for a session and persists the token.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	return m.acquireToken(ctx, "login", func(ctx context.Context) (*models.AuthResponse, error) {
		return m.backend.Login(ctx, email, password)
	})
}

// Register creates an account and logs into it.
func (m *Manager) Register(ctx context.Context, email, password, name string) (*Session, error) {
	return m.acquireToken(ctx, "register", func(ctx context.Context) (*models.AuthResponse, error) {
		return m.backend.Register(ctx, email, password, name)
	})
}

func (m *Manager) acquireToken(ctx context.Context, reason string,
	exchange func(context.Context) (*models.AuthResponse, error)) (*Session, error) {

	if err := m.turns.acquire(ctx); err != nil {
		return nil, err
	}
	defer m.turns.release()

	epoch := m.currentEpoch()
	resp, err := exchange(ctx)
	if err != nil {
		return nil, err
	}

	if m.currentEpoch() != epoch {
		m.logger.Info().Str("op", reason).Msg("discarding stale response")
		return nil, ErrSessionChanged
	}

	if err := m.store.Save(resp.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}

	s, ok := m.install(epoch, resp.AccessToken, &resp.User, reason)
	if !ok {
		// Logged out between the save and the install
		m.clearStore()
		return nil, ErrSessionChanged
	}
	return s, nil
}

// Logout clears the session and the persisted token. It never fails; a store
// error is logged. Requests in flight under the old session are discarded.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.epoch++
	m.current = nil
	m.mu.Unlock()

	m.clearStore()
	m.bus.PublishSessionChanged("", "", "logout")
}

// Refresh re-fetches the profile and job counters for the current session.
// Failures are logged; the session is left as it was.
func (m *Manager) Refresh(ctx context.Context) {
	m.mu.Lock()
	s := m.current
	m.refreshSeq++
	seq := m.refreshSeq
	m.mu.Unlock()

	if s == nil {
		return
	}

	user, err := m.backend.Me(ctx, s)
	if err != nil {
		m.logger.Debug().Err(err).Msg("session refresh failed")
		if ctx.Err() == nil {
			m.bus.PublishError("session refresh", "", err)
		}
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.current.epoch != s.epoch || seq <= m.refreshDone {
		m.logger.Debug().Uint64("seq", seq).Msg("discarding stale refresh")
		return
	}
	m.refreshDone = seq
	m.current = m.current.withProfile(user)
}

// install publishes a new session if epoch is still current.
func (m *Manager) install(epoch uint64, token string, user *models.User, reason string) (*Session, bool) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.logger.Info().Str("op", reason).Msg("discarding stale response")
		return nil, false
	}
	m.epoch++
	s := newSession(token, user, m.epoch)
	m.current = s
	m.mu.Unlock()

	m.logger.Debug().Str("user", s.Email).Str("reason", reason).Msg("session established")
	m.bus.PublishSessionChanged(s.UserID, s.Email, reason)
	return s, true
}

// handleUnauthorized clears the session when its token is rejected by the server.
// Rejections of other credentials are ignored.
func (m *Manager) handleUnauthorized(cred api.Credential) {
	m.mu.Lock()
	if m.current == nil || cred.BearerToken() != m.current.Token {
		m.mu.Unlock()
		return
	}
	m.epoch++
	m.current = nil
	m.mu.Unlock()

	m.logger.Warn().Msg("session expired, please log in again")
	m.clearStore()
	m.bus.PublishSessionChanged("", "", "unauthorized")
}

func (m *Manager) currentEpoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

func (m *Manager) clearStore() {
	if err := m.store.Clear(); err != nil {
		m.logger.Warn().Err(err).Msg("failed to clear saved token")
	}
}
