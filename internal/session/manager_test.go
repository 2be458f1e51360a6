package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/gameportal/internal/domain"
	"github.com/splax/gameportal/internal/repository"
	"github.com/splax/gameportal/pkg/jwt"
)

type stubUsers struct {
	users map[string]*domain.User
	err   error
}

func (s *stubUsers) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

type failingStore struct{ Store }

func (failingStore) Get(context.Context, string) (domain.Identity, error) {
	return domain.Identity{}, errors.New("connection refused")
}

func newTestManager(t *testing.T, cfg Config) (*Manager, *MemoryStore, *stubUsers) {
	t.Helper()
	store := NewMemoryStore()
	t.Cleanup(store.Close)
	users := &stubUsers{users: map[string]*domain.User{
		"u1": {ID: "u1", FirstName: "Ada", Email: "ada@example.com"},
	}}
	if cfg.Secret == "" {
		cfg.Secret = "test-secret"
	}
	m, err := NewManager(store, users, cfg, nil)
	require.NoError(t, err)
	return m, store, users
}

func TestManagerCreateResolveDestroy(t *testing.T) {
	m, store, users := newTestManager(t, Config{MaxAge: time.Hour})
	ctx := context.Background()

	cookie, err := m.Create(ctx, users.users["u1"])
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	user, err := m.Resolve(ctx, cookie)
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.FirstName)

	require.NoError(t, m.Destroy(ctx, cookie))
	assert.Zero(t, store.Len())
	require.NoError(t, m.Destroy(ctx, cookie))

	_, err = m.Resolve(ctx, cookie)
	assert.ErrorIs(t, err, domain.ErrSessionInvalid)
}

func TestManagerRejectsForgedCookie(t *testing.T) {
	m, _, users := newTestManager(t, Config{MaxAge: time.Hour})
	ctx := context.Background()

	cookie, err := m.Create(ctx, users.users["u1"])
	require.NoError(t, err)

	_, err = m.Resolve(ctx, cookie+"x")
	assert.ErrorIs(t, err, domain.ErrSessionInvalid)

	_, err = m.Resolve(ctx, "")
	assert.ErrorIs(t, err, domain.ErrSessionInvalid)

	forged, err := jwt.GenerateToken("made-up-session", "test-secret", time.Hour)
	require.NoError(t, err)
	_, err = m.Resolve(ctx, forged)
	assert.ErrorIs(t, err, domain.ErrSessionInvalid)

	other, err := jwt.GenerateToken("made-up-session", "other-secret", time.Hour)
	require.NoError(t, err)
	_, err = m.Resolve(ctx, other)
	assert.ErrorIs(t, err, domain.ErrSessionInvalid)

	assert.NoError(t, m.Destroy(ctx, "garbage"))
}

func TestManagerDropsSessionOfMissingUser(t *testing.T) {
	m, store, users := newTestManager(t, Config{MaxAge: time.Hour})
	ctx := context.Background()

	cookie, err := m.Create(ctx, users.users["u1"])
	require.NoError(t, err)
	delete(users.users, "u1")

	_, err = m.Resolve(ctx, cookie)
	assert.ErrorIs(t, err, domain.ErrSessionInvalid)
	assert.Zero(t, store.Len())
}

func TestManagerIdleTimeoutSlides(t *testing.T) {
	m, store, users := newTestManager(t, Config{MaxAge: time.Hour, IdleTimeout: 10 * time.Minute})
	ctx := context.Background()
	now := time.Now()
	store.now = func() time.Time { return now }

	cookie, err := m.Create(ctx, users.users["u1"])
	require.NoError(t, err)

	now = now.Add(8 * time.Minute)
	_, err = m.Resolve(ctx, cookie)
	require.NoError(t, err)

	now = now.Add(8 * time.Minute)
	_, err = m.Resolve(ctx, cookie)
	require.NoError(t, err, "activity should extend the idle window")

	now = now.Add(11 * time.Minute)
	_, err = m.Resolve(ctx, cookie)
	assert.ErrorIs(t, err, domain.ErrSessionInvalid)
}

func TestManagerWrapsStoreOutage(t *testing.T) {
	users := &stubUsers{users: map[string]*domain.User{"u1": {ID: "u1"}}}
	mem := NewMemoryStore()
	t.Cleanup(mem.Close)
	m, err := NewManager(failingStore{Store: mem}, users, Config{Secret: "s", MaxAge: time.Hour}, nil)
	require.NoError(t, err)

	cookie, err := m.Create(context.Background(), users.users["u1"])
	require.NoError(t, err)

	_, err = m.Resolve(context.Background(), cookie)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.NotErrorIs(t, err, domain.ErrSessionInvalid)
}

func TestNewManagerValidates(t *testing.T) {
	store := NewMemoryStore()
	t.Cleanup(store.Close)

	_, err := NewManager(store, &stubUsers{}, Config{}, nil)
	assert.Error(t, err)
	_, err = NewManager(nil, &stubUsers{}, Config{Secret: "s"}, nil)
	assert.Error(t, err)

	m, err := NewManager(store, &stubUsers{}, Config{Secret: "s"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, m.MaxAge())
}
