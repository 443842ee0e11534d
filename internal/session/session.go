// Package session keeps the authenticated administrator for the whole process.
//
// A Manager is created once at startup, reads the durable slot, and is then
// shared by the HTTP client (token source, 401 hook) and the router gate.
package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Laisky/laisky-cms-admin/library/log"
)

// User is the administrator returned by the login endpoint.
type User struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	IsActivate int    `json:"is_activate"`
}

// Session is the persisted pair of user and bearer token.
type Session struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// UnmarshalJSON accepts both `{user, token}` and the older `{data, token}` shape.
func (s *Session) UnmarshalJSON(data []byte) error {
	var raw struct {
		User  *User  `json:"user"`
		Data  *User  `json:"data"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "decode session")
	}

	s.Token = raw.Token
	switch {
	case raw.User != nil:
		s.User = *raw.User
	case raw.Data != nil:
		s.User = *raw.Data
	default:
		s.User = User{}
	}

	return nil
}

// Valid reports whether the session carries a token.
func (s *Session) Valid() bool {
	return s != nil && strings.TrimSpace(s.Token) != ""
}

// LogoutReason tells listeners why the session ended.
type LogoutReason string

const (
	// ReasonLogout is an explicit logout.
	ReasonLogout LogoutReason = "logout"
	// ReasonUnauthorized is a 401 from any authenticated request.
	ReasonUnauthorized LogoutReason = "unauthorized"
)

// Option customises a Manager during construction.
type Option func(*Manager)

// WithLogger overrides the default logger.
func WithLogger(logger logSDK.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Manager owns the single active session.
type Manager struct {
	mu        sync.RWMutex
	current   *Session
	storage   Storage
	listeners []func(LogoutReason)
	logger    logSDK.Logger
}

// NewManager creates the manager and restores any stored session.
// A corrupted slot is cleared instead of failing startup.
func NewManager(ctx context.Context, storage Storage, opts ...Option) (*Manager, error) {
	if storage == nil {
		return nil, errors.New("session storage is nil")
	}

	m := &Manager{
		storage: storage,
		logger:  log.Logger.Named("session"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	data, err := storage.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load stored session")
	}
	if len(data) == 0 {
		return m, nil
	}

	sess := new(Session)
	if err = json.Unmarshal(data, sess); err != nil || !sess.Valid() {
		m.logger.Warn("drop unreadable stored session", zap.Error(err))
		if err = storage.Remove(ctx); err != nil {
			return nil, errors.Wrap(err, "remove unreadable session")
		}
		return m, nil
	}

	m.current = sess
	m.logger.Debug("restored session", zap.String("email", sess.User.Email))
	return m, nil
}

// Token returns the active bearer token, or "" when logged out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return ""
	}
	return m.current.Token
}

// Current returns a copy of the active session, or nil.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil
	}
	cp := *m.current
	return &cp
}

// IsAuthenticated reports whether a session is active.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.current != nil
}

// Start makes sess the active session and persists it.
func (m *Manager) Start(ctx context.Context, sess *Session) error {
	if !sess.Valid() {
		return errors.New("session has no token")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "marshal session")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err = m.storage.Save(ctx, data); err != nil {
		return errors.Wrap(err, "persist session")
	}

	cp := *sess
	m.current = &cp
	m.logger.Info("session started", zap.String("email", sess.User.Email))
	return nil
}

// End clears the active session from memory and storage.
// Calling End without a session is a no-op.
func (m *Manager) End(ctx context.Context) error {
	_, err := m.end(ctx, "", ReasonLogout)
	return err
}

// HandleUnauthorized ends the session that sent token, if it is still active.
// Concurrent 401s for the same session end it exactly once; a stale 401
// from a previous session leaves a newer login alone.
// Requests sent without a token never end a session.
// It reports whether this call performed the logout.
func (m *Manager) HandleUnauthorized(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}

	ended, err := m.end(ctx, token, ReasonUnauthorized)
	if err != nil {
		m.logger.Error("clear session after 401", zap.Error(err))
	}

	return ended
}

func (m *Manager) end(ctx context.Context, token string, reason LogoutReason) (bool, error) {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return false, nil
	}
	if token != "" && m.current.Token != token {
		m.mu.Unlock()
		return false, nil
	}

	m.current = nil
	// the slot must go even when the request that drew the 401 is gone
	storageErr := m.storage.Remove(context.WithoutCancel(ctx))
	listeners := make([]func(LogoutReason), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	m.logger.Info("session ended", zap.String("reason", string(reason)))
	for _, fn := range listeners {
		fn(reason)
	}

	if storageErr != nil {
		return true, errors.Wrap(storageErr, "remove stored session")
	}
	return true, nil
}

// OnLogout registers fn to run after every session end.
func (m *Manager) OnLogout(fn func(LogoutReason)) {
	if fn == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// ExpiresAt peeks at the `exp` claim of a JWT token without verifying it.
// Opaque tokens report ok=false.
func (m *Manager) ExpiresAt() (time.Time, bool) {
	token := m.Token()
	if token == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}
