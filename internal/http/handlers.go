package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/splax/gameportal/internal/domain"
	"github.com/splax/gameportal/internal/service/auth"
	"github.com/splax/gameportal/internal/service/contact"
)

const (
	msgUserNotFound      = "User not found."
	msgIncorrectPassword = "Incorrect password."
	msgAccountCreated    = "Account created. Please sign in."
	msgEmailTaken        = "An account with that email already exists. Please sign in."
)

func (r *Router) handleRoot(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		r.notFound(w, req)
		return
	}
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		r.methodNotAllowed(w, req)
		return
	}
	r.render(w, req, http.StatusOK, "register", page{Title: "Register", Flash: flashFromRequest(req)})
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet, http.MethodHead:
		r.render(w, req, http.StatusOK, "register", page{Title: "Register", Flash: flashFromRequest(req)})
	case http.MethodPost:
		if err := req.ParseForm(); err != nil {
			r.renderStatus(w, req, http.StatusBadRequest)
			return
		}
		in := auth.RegisterInput{
			FirstName:   formValue(req, "fullname"),
			LastName:    formValue(req, "lastname"),
			DateOfBirth: formValue(req, "dob"),
			Email:       formValue(req, "email", "Email"),
			Phone:       formValue(req, "phone"),
			Password:    formValue(req, "password", "Password"),
			Country:     formValue(req, "role", "country"),
		}
		_, err := r.auth.Register(req.Context(), in)
		switch {
		case err == nil:
			redirectWithFlash(w, req, "/login", msgAccountCreated)
		case errors.Is(err, domain.ErrDuplicateEmail):
			redirectWithFlash(w, req, "/login", msgEmailTaken)
		case errors.Is(err, domain.ErrValidation):
			r.render(w, req, http.StatusBadRequest, "register", page{
				Title:  "Register",
				Error:  "Please correct the highlighted fields.",
				Fields: validationFields(err),
				Form: map[string]string{
					"fullname": in.FirstName,
					"lastname": in.LastName,
					"dob":      in.DateOfBirth,
					"email":    in.Email,
					"phone":    in.Phone,
					"role":     in.Country,
				},
			})
		default:
			r.logger.Error("registration failed", "error", err)
			r.renderStatus(w, req, http.StatusInternalServerError)
		}
	default:
		r.methodNotAllowed(w, req)
	}
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet, http.MethodHead:
		r.render(w, req, http.StatusOK, "login", page{
			Title: "Sign in",
			Flash: flashFromRequest(req),
			Error: strings.TrimSpace(req.URL.Query().Get("error")),
		})
	case http.MethodPost:
		if err := req.ParseForm(); err != nil {
			r.renderStatus(w, req, http.StatusBadRequest)
			return
		}
		email := formValue(req, "email", "Email")
		in := auth.LoginInput{Email: email, Password: formValue(req, "password", "Password")}
		user, err := r.auth.Authenticate(req.Context(), in)
		if err != nil {
			var msg string
			switch {
			case errors.Is(err, domain.ErrValidation):
				r.render(w, req, http.StatusBadRequest, "login", page{
					Title:  "Sign in",
					Error:  "Please enter your email and password.",
					Fields: validationFields(err),
					Form:   map[string]string{"email": email},
				})
				return
			case errors.Is(err, domain.ErrUserNotFound):
				msg = msgUserNotFound
			case errors.Is(err, domain.ErrInvalidCredential):
				msg = msgIncorrectPassword
			default:
				r.logger.Error("login failed", "error", err)
				r.renderStatus(w, req, http.StatusInternalServerError)
				return
			}
			r.render(w, req, http.StatusUnauthorized, "login", page{
				Title: "Sign in",
				Error: msg,
				Form:  map[string]string{"email": email},
			})
			return
		}

		if old, err := req.Cookie(r.cookie.Name); err == nil {
			if err := r.sessions.Destroy(req.Context(), old.Value); err != nil {
				r.logger.Warn("failed to drop previous session", "error", err)
			}
		}
		value, err := r.sessions.Create(req.Context(), user)
		if err != nil {
			r.logger.Error("session issuance failed", "user_id", user.ID, "error", err)
			r.renderStatus(w, req, http.StatusInternalServerError)
			return
		}
		r.setSessionCookie(w, value)
		http.Redirect(w, req, "/home", http.StatusFound)
	default:
		r.methodNotAllowed(w, req)
	}
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodPost {
		r.methodNotAllowed(w, req)
		return
	}
	if cookie, err := req.Cookie(r.cookie.Name); err == nil {
		if err := r.sessions.Destroy(req.Context(), cookie.Value); err != nil {
			r.logger.Error("session destroy failed", "error", err)
		}
	}
	r.clearSessionCookie(w)
	http.Redirect(w, req, "/login", http.StatusFound)
}

func (r *Router) handleHome(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		r.methodNotAllowed(w, req)
		return
	}
	r.render(w, req, http.StatusOK, "home", page{Title: "Home", Flash: flashFromRequest(req)})
}

func (r *Router) staticPage(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			r.methodNotAllowed(w, req)
			return
		}
		r.render(w, req, http.StatusOK, name, page{Title: title})
	}
}

func (r *Router) handleContact(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet, http.MethodHead:
		r.render(w, req, http.StatusOK, "contact", page{Title: "Contact"})
	case http.MethodPost:
		if err := req.ParseForm(); err != nil {
			r.renderStatus(w, req, http.StatusBadRequest)
			return
		}
		user := userFromContext(req.Context())
		in := contact.Input{
			Name:  formValue(req, "yourname"),
			Email: formValue(req, "youremail"),
			Body:  formValue(req, "textarea"),
		}
		_, err := r.contacts.Submit(req.Context(), user.ID, in)
		switch {
		case err == nil:
			r.render(w, req, http.StatusOK, "contact", page{Title: "Contact", Sent: true})
		case errors.Is(err, domain.ErrValidation):
			r.render(w, req, http.StatusBadRequest, "contact", page{
				Title:  "Contact",
				Error:  "Please correct the highlighted fields.",
				Fields: validationFields(err),
				Form:   map[string]string{"yourname": in.Name, "youremail": in.Email, "textarea": in.Body},
			})
		default:
			r.logger.Error("contact submission failed", "error", err)
			r.renderStatus(w, req, http.StatusInternalServerError)
		}
	default:
		r.methodNotAllowed(w, req)
	}
}

// formValue returns the first non-empty value among the given field names.
func formValue(req *http.Request, names ...string) string {
	for _, name := range names {
		if v := req.FormValue(name); v != "" {
			return v
		}
	}
	return ""
}

func validationFields(err error) map[string]string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}
