package httpx

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/splax/gameportal/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

func parseTemplates() (*template.Template, error) {
	return template.New("portal").ParseFS(templateFS, "templates/*.html")
}

// page is the data every template receives.
type page struct {
	Title      string
	User       *domain.User
	Flash      string
	Error      string
	Form       map[string]string
	Fields     map[string]string
	Sent       bool
	Status     int
	StatusText string
}

func (r *Router) render(w http.ResponseWriter, req *http.Request, status int, name string, data page) {
	if data.User == nil {
		data.User = userFromContext(req.Context())
	}
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		r.logger.Error("template render failed", "template", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (r *Router) renderStatus(w http.ResponseWriter, req *http.Request, status int) {
	r.render(w, req, status, "error", page{
		Title:      http.StatusText(status),
		Status:     status,
		StatusText: http.StatusText(status),
	})
}

func flashFromRequest(req *http.Request) string {
	return strings.TrimSpace(req.URL.Query().Get("flash"))
}

func redirectWithFlash(w http.ResponseWriter, req *http.Request, target, message string) {
	if strings.TrimSpace(message) == "" {
		http.Redirect(w, req, target, http.StatusFound)
		return
	}
	u, err := url.Parse(target)
	if err != nil {
		http.Redirect(w, req, "/", http.StatusFound)
		return
	}
	q := u.Query()
	q.Set("flash", message)
	u.RawQuery = q.Encode()
	http.Redirect(w, req, u.String(), http.StatusFound)
}
