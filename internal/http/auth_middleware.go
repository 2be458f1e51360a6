package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/splax/gameportal/internal/domain"
)

type authContextKey string

const contextKeyUser authContextKey = "gameportal-user"

type contextSetter interface {
	SetContext(context.Context)
}

// requireSession runs next only for requests with a live session. A missing or stale
// session is redirected to /login; a session backend failure is a 500.
func (r *Router) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		user, err := r.resolveSession(w, req)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrSessionInvalid):
			http.Redirect(w, req, "/login", http.StatusFound)
			return
		default:
			r.logger.Error("session lookup failed", "error", err, "path", req.URL.Path)
			if wantsJSON(req) {
				writeError(w, http.StatusInternalServerError, "session unavailable")
				return
			}
			r.renderStatus(w, req, http.StatusInternalServerError)
			return
		}
		ctx := context.WithValue(req.Context(), contextKeyUser, user)
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// resolveSession maps the session cookie to a user. A missing cookie reports
// domain.ErrSessionInvalid; a cookie that no longer points at a session is also
// expired on the client.
func (r *Router) resolveSession(w http.ResponseWriter, req *http.Request) (*domain.User, error) {
	cookie, err := req.Cookie(r.cookie.Name)
	if err != nil || cookie.Value == "" {
		return nil, domain.ErrSessionInvalid
	}
	user, err := r.sessions.Resolve(req.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, domain.ErrSessionInvalid) {
			r.clearSessionCookie(w)
		}
		return nil, err
	}
	return user, nil
}

// userFromContext returns the signed-in user, or nil outside requireSession.
func userFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(contextKeyUser).(*domain.User)
	return user
}

func (r *Router) setSessionCookie(w http.ResponseWriter, value string) {
	maxAge := r.sessions.MaxAge()
	http.SetCookie(w, &http.Cookie{
		Name:     r.cookie.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		Expires:  time.Now().Add(maxAge),
		HttpOnly: true,
		Secure:   r.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (r *Router) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     r.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   r.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
