package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/gameportal/internal/domain"
	"github.com/splax/gameportal/internal/service/auth"
	"github.com/splax/gameportal/internal/service/contact"
	"github.com/splax/gameportal/internal/service/payment"
)

type outageSessions struct {
	err error
}

func (s outageSessions) Create(context.Context, *domain.User) (string, error) {
	return "", s.err
}

func (s outageSessions) Resolve(context.Context, string) (*domain.User, error) {
	return nil, s.err
}

func (s outageSessions) Destroy(context.Context, string) error {
	return s.err
}

func (outageSessions) MaxAge() time.Duration {
	return time.Hour
}

type noPayments struct{}

func (noPayments) Submit(context.Context, *domain.User, payment.Input) (*domain.Payment, error) {
	return nil, errors.New("unexpected payment")
}

type noContacts struct{}

func (noContacts) Submit(context.Context, string, contact.Input) (*domain.ContactMessage, error) {
	return nil, errors.New("unexpected contact")
}

type stubLinks struct {
	keys []string
	err  error
}

func (l *stubLinks) Link(_ context.Context, key string) (string, error) {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return "", l.err
	}
	return "https://bucket.test/" + key + "?X-Amz-Signature=abc", nil
}

func newBareRouter(t *testing.T, deps Dependencies) *Router {
	t.Helper()
	deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	if deps.Auth == nil {
		deps.Auth = auth.New(newMemStore(), nil)
	}
	if deps.Sessions == nil {
		deps.Sessions = outageSessions{err: domain.ErrSessionInvalid}
	}
	deps.Payments = noPayments{}
	deps.Contacts = noContacts{}
	r, err := NewRouter(deps)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func TestSessionBackendFailureIsServerError(t *testing.T) {
	r := newBareRouter(t, Dependencies{
		Sessions: outageSessions{err: fmt.Errorf("%w: redis down", domain.ErrStorage)},
	})

	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.AddCookie(&http.Cookie{Name: "portal_session", Value: "signed.session.value"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
	assert.Empty(t, rec.Header().Values("Set-Cookie"), "a backend outage must not expire the cookie")

	req = httptest.NewRequest(http.MethodPost, "/payment", strings.NewReader(""))
	req.AddCookie(&http.Cookie{Name: "portal_session", Value: "signed.session.value"})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestInvalidSessionStillRedirects(t *testing.T) {
	r := newBareRouter(t, Dependencies{})

	for _, cookie := range []*http.Cookie{nil, {Name: "portal_session", Value: "stale"}} {
		req := httptest.NewRequest(http.MethodGet, "/games", nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	}
}

func TestLoginRequiresEmailAndPassword(t *testing.T) {
	r := newBareRouter(t, Dependencies{})

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(url.Values{"email": {" "}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "email is required.")
	assert.Contains(t, rec.Body.String(), "password is required.")
	assert.NotContains(t, rec.Body.String(), msgUserNotFound)
}

func TestClientIPIgnoresForwardedHeaderUnlessTrusted(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	direct := &Router{}
	assert.Equal(t, "10.1.2.3", direct.clientIP(req))

	proxied := &Router{trustProxy: true}
	assert.Equal(t, "203.0.113.9", proxied.clientIP(req))
}

func TestSpoofedForwardedHeaderDoesNotEvadeRateLimit(t *testing.T) {
	r := newBareRouter(t, Dependencies{})

	var last *httptest.ResponseRecorder
	for i := 0; i <= rateLimitLogin; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email=a%40b.c&password=x"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		last = httptest.NewRecorder()
		r.ServeHTTP(last, req)
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
}

func TestUploadsRedirectToFreshLink(t *testing.T) {
	links := &stubLinks{}
	r := newBareRouter(t, Dependencies{ProofLinks: links})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/1-abc.png", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://bucket.test/1-abc.png?X-Amz-Signature=abc", rec.Header().Get("Location"))
	assert.Equal(t, []string{"1-abc.png"}, links.keys)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/a/b.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	links.err = errors.New("presign failed")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/1-abc.png", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
