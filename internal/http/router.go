package httpx

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/splax/gameportal/internal/domain"
	"github.com/splax/gameportal/internal/service/auth"
	"github.com/splax/gameportal/internal/service/contact"
	"github.com/splax/gameportal/internal/service/payment"
)

// Authenticator registers accounts and checks credentials.
type Authenticator interface {
	Register(ctx context.Context, in auth.RegisterInput) (*domain.User, error)
	Authenticate(ctx context.Context, in auth.LoginInput) (*domain.User, error)
}

// SessionManager issues and resolves session cookies.
type SessionManager interface {
	Create(ctx context.Context, user *domain.User) (string, error)
	Resolve(ctx context.Context, cookie string) (*domain.User, error)
	Destroy(ctx context.Context, cookie string) error
	MaxAge() time.Duration
}

// PaymentSubmitter records payment proofs.
type PaymentSubmitter interface {
	Submit(ctx context.Context, user *domain.User, in payment.Input) (*domain.Payment, error)
}

// ContactSubmitter records contact messages.
type ContactSubmitter interface {
	Submit(ctx context.Context, userID string, in contact.Input) (*domain.ContactMessage, error)
}

// ProofLinker turns a stored proof key into a short-lived download URL.
type ProofLinker interface {
	Link(ctx context.Context, key string) (string, error)
}

// CookieConfig names the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// Dependencies wires the router to its services.
type Dependencies struct {
	Logger         *slog.Logger
	Auth           Authenticator
	Sessions       SessionManager
	Payments       PaymentSubmitter
	Contacts       ContactSubmitter
	Limiter        RateLimiter
	Cookie         CookieConfig
	UploadDir      string
	ProofLinks     ProofLinker
	MaxUploadBytes int64
	DBHealth       func(context.Context) error
	// TrustProxyHeaders takes the client address from X-Forwarded-For. Enable only
	// behind a proxy that overwrites the header.
	TrustProxyHeaders bool
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	auth      Authenticator
	sessions  SessionManager
	payments  PaymentSubmitter
	contacts  ContactSubmitter
	limiter   RateLimiter
	cookie    CookieConfig
	uploadDir  string
	proofLinks ProofLinker
	maxUpload  int64
	dbHealth   func(context.Context) error
	trustProxy bool
	templates  *template.Template
	metrics    *metrics
}

const (
	rateWindowDefault  = time.Minute
	rateLimitRegister  = 5
	rateLimitLogin     = 12
	rateLimitPayment   = 10
	rateLimitContact   = 10
	healthCheckTimeout = 2 * time.Second
	multipartOverhead  = 1 << 20
	multipartMemory    = 4 << 20
)

// NewRouter assembles routes with dependencies.
func NewRouter(deps Dependencies) (*Router, error) {
	if deps.Auth == nil || deps.Sessions == nil || deps.Payments == nil || deps.Contacts == nil {
		return nil, errors.New("httpx: auth, sessions, payments and contacts are required")
	}
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	r := &Router{
		mux:       http.NewServeMux(),
		logger:    deps.Logger,
		auth:      deps.Auth,
		sessions:  deps.Sessions,
		payments:  deps.Payments,
		contacts:  deps.Contacts,
		limiter:   deps.Limiter,
		cookie:    deps.Cookie,
		uploadDir:  deps.UploadDir,
		proofLinks: deps.ProofLinks,
		maxUpload:  deps.MaxUploadBytes,
		dbHealth:   deps.DBHealth,
		trustProxy: deps.TrustProxyHeaders,
		templates:  templates,
		metrics:    newMetrics(),
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.cookie.Name == "" {
		r.cookie.Name = "portal_session"
	}
	if r.maxUpload <= 0 {
		r.maxUpload = 2 << 20
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.register()
	return r, nil
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/", r.audit("root", r.handleRoot))
	r.mux.HandleFunc("/register", r.audit("register", r.withRateLimit("register", rateLimitRegister, rateWindowDefault, r.handleRegister)))
	r.mux.HandleFunc("/login", r.audit("login", r.withRateLimit("login", rateLimitLogin, rateWindowDefault, r.handleLogin)))
	r.mux.HandleFunc("/logout", r.audit("logout", r.requireSession(r.handleLogout)))
	r.mux.HandleFunc("/home", r.audit("home", r.requireSession(r.handleHome)))
	r.mux.HandleFunc("/games", r.audit("games", r.requireSession(r.staticPage("games", "Games"))))
	r.mux.HandleFunc("/videos", r.audit("videos", r.requireSession(r.staticPage("videos", "Videos"))))
	r.mux.HandleFunc("/privacy", r.audit("privacy", r.staticPage("privacy", "Privacy")))
	r.mux.HandleFunc("/contact", r.audit("contact", r.requireSession(r.withRateLimit("contact", rateLimitContact, rateWindowDefault, r.handleContact))))
	r.mux.HandleFunc("/payment", r.audit("payment", r.requireSession(r.withRateLimit("payment", rateLimitPayment, rateWindowDefault, r.handlePayment))))
	r.mux.HandleFunc("/submit-payment", r.audit("payment", r.requireSession(r.withRateLimit("payment", rateLimitPayment, rateWindowDefault, r.handleSubmitPayment))))
	r.mux.HandleFunc("/healthz", r.audit("healthz", r.handleHealthz))
	r.mux.Handle("/metrics", r.metrics.handler())
	if r.uploadDir != "" || r.proofLinks != nil {
		r.mux.HandleFunc("/uploads/", r.audit("uploads", r.handleUploads()))
	}
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w, req)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// handleUploads serves proofs from the local upload directory, or redirects to a
// fresh presigned URL when proofs live in object storage.
func (r *Router) handleUploads() http.HandlerFunc {
	var files http.Handler
	if r.uploadDir != "" {
		files = http.StripPrefix("/uploads/", http.FileServer(http.Dir(r.uploadDir)))
	}
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			r.methodNotAllowed(w, req)
			return
		}
		name := strings.TrimPrefix(req.URL.Path, "/uploads/")
		if name == "" || strings.Contains(name, "/") {
			r.notFound(w, req)
			return
		}
		if files != nil {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			files.ServeHTTP(w, req)
			return
		}
		link, err := r.proofLinks.Link(req.Context(), name)
		if err != nil {
			r.logger.Error("proof link failed", "key", name, "error", err)
			r.renderStatus(w, req, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, req, link, http.StatusFound)
	}
}

// audit logs one line per request, records metrics and turns panics into 500s.
func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					r.logger.Error("panic serving request", "path", req.URL.Path, "panic", rec, "stack", string(debug.Stack()))
					if recorder.status == 0 {
						r.renderStatus(recorder, req, http.StatusInternalServerError)
					}
				}
			}()
			next(recorder, req)
		}()

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"route", route,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := r.clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if user := userFromContext(ctx); user != nil {
			fields = append(fields, "user_id", user.ID)
		}

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// clientIP is the address used for rate limiting and the audit log. The peer
// address is used unless proxy headers are trusted.
func (r *Router) clientIP(req *http.Request) string {
	if r.trustProxy {
		if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
			if ip := strings.TrimSpace(strings.Split(forwarded, ",")[0]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter, req *http.Request) {
	if wantsJSON(req) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.renderStatus(w, req, http.StatusMethodNotAllowed)
}

func (r *Router) notFound(w http.ResponseWriter, req *http.Request) {
	r.renderStatus(w, req, http.StatusNotFound)
}
