package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/splax/gameportal/internal/domain"
	"github.com/splax/gameportal/internal/repository"
	"github.com/splax/gameportal/pkg/jwt"
)

const tokenBytes = 32

// UserLookup resolves the user a session points at.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// Config tunes session lifetime. IdleTimeout of zero disables idle expiry.
type Config struct {
	Secret      string
	MaxAge      time.Duration
	IdleTimeout time.Duration
}

// Manager issues, resolves and destroys sessions.
type Manager struct {
	store  Store
	users  UserLookup
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewManager constructs a Manager.
func NewManager(store Store, users UserLookup, cfg Config, logger *slog.Logger) (*Manager, error) {
	if store == nil || users == nil {
		return nil, errors.New("session: store and user lookup are required")
	}
	if cfg.Secret == "" {
		return nil, errors.New("session: empty secret")
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, users: users, cfg: cfg, logger: logger, now: time.Now}, nil
}

// MaxAge is the absolute lifetime of a session and of its cookie.
func (m *Manager) MaxAge() time.Duration {
	return m.cfg.MaxAge
}

// Create starts a session for user and returns the signed cookie value.
func (m *Manager) Create(ctx context.Context, user *domain.User) (string, error) {
	if user == nil || user.ID == "" {
		return "", errors.New("session: user required")
	}
	token, err := newToken()
	if err != nil {
		return "", err
	}
	identity := domain.Identity{UserID: user.ID, Email: user.Email, IssuedAt: m.now().UTC()}
	if err := m.store.Put(ctx, token, identity, m.storeTTL()); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	cookie, err := jwt.GenerateToken(token, m.cfg.Secret, m.cfg.MaxAge)
	if err != nil {
		_ = m.store.Delete(ctx, token)
		return "", fmt.Errorf("sign session: %w", err)
	}
	return cookie, nil
}

// Resolve returns the user behind a cookie value. Every failure to map the cookie to
// a live user yields domain.ErrSessionInvalid; store outages are wrapped in domain.ErrStorage.
func (m *Manager) Resolve(ctx context.Context, cookie string) (*domain.User, error) {
	if cookie == "" {
		return nil, domain.ErrSessionInvalid
	}
	claims, err := jwt.Parse(cookie, m.cfg.Secret)
	if err != nil {
		return nil, domain.ErrSessionInvalid
	}
	identity, err := m.store.Get(ctx, claims.SessionID)
	if errors.Is(err, ErrNotFound) {
		return nil, domain.ErrSessionInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}

	user, err := m.users.GetUserByID(ctx, identity.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		m.logger.Warn("session references missing user", "user_id", identity.UserID)
		if delErr := m.store.Delete(ctx, claims.SessionID); delErr != nil {
			m.logger.Error("failed to delete dangling session", "error", delErr)
		}
		return nil, domain.ErrSessionInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}

	if m.cfg.IdleTimeout > 0 {
		if err := m.store.Put(ctx, claims.SessionID, identity, m.cfg.IdleTimeout); err != nil {
			m.logger.Warn("failed to extend session", "user_id", identity.UserID, "error", err)
		}
	}
	return user, nil
}

// Destroy ends the session behind cookie. Unknown or malformed cookies are ignored.
func (m *Manager) Destroy(ctx context.Context, cookie string) error {
	if cookie == "" {
		return nil
	}
	claims, err := jwt.Parse(cookie, m.cfg.Secret)
	if err != nil {
		return nil
	}
	if err := m.store.Delete(ctx, claims.SessionID); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}

func (m *Manager) storeTTL() time.Duration {
	if m.cfg.IdleTimeout > 0 && m.cfg.IdleTimeout < m.cfg.MaxAge {
		return m.cfg.IdleTimeout
	}
	return m.cfg.MaxAge
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
