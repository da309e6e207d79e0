package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/labtrack/internal/auth"
	"github.com/JonMunkholm/labtrack/internal/core"
	"github.com/JonMunkholm/labtrack/internal/web/middleware"
	"github.com/JonMunkholm/labtrack/internal/web/views"
)

// maxLoginBody bounds the login form.
const maxLoginBody = 16 << 10

// loginRequest is the JSON login body. Forms post the same fields.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Next     string `json:"next"`
}

// loginResponse is returned to JSON clients.
type loginResponse struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expiresAt"`
	Next      string `json:"next"`
}

// render writes a full page with status 200.
func (s *Server) render(w http.ResponseWriter, r *http.Request, title string, body templ.Component) {
	s.renderStatus(w, r, http.StatusOK, title, body)
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, title string, body templ.Component) {
	d := views.LayoutData{Title: title + " | LabTrack"}
	if sess, ok := middleware.SessionFrom(r.Context()); ok {
		d.User = sess.Email
		d.Admin = sess.Role == auth.RoleAdmin
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := views.Layout(d, body).Render(r.Context(), w); err != nil {
		s.log.Error("render page", "title", title, "error", err)
	}
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, "Entrar", views.Login(safeNext(r.URL.Query().Get("next")), ""))
}

// handleLogin accepts JSON or a form post. Forms are redirected; JSON
// clients get the session summary.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeJSON(w, loginResponse{Email: middleware.DemoSession.Email, Role: string(auth.RoleAdmin), Next: "/"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBody)

	jsonBody := strings.Contains(r.Header.Get("Content-Type"), "application/json")
	var req loginRequest
	if jsonBody {
		if err := decodeJSON(r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			s.fail(w, r, errors.Join(errBadRequest, err))
			return
		}
		req = loginRequest{
			Email:    r.PostForm.Get("email"),
			Password: r.PostForm.Get("password"),
			Next:     r.PostForm.Get("next"),
		}
	}
	next := safeNext(req.Next)

	user, err := s.users.Authenticate(req.Email, req.Password)
	if err != nil {
		s.service.RecordLogin(r.Context(), req.Email, false)
		if !jsonBody {
			s.renderStatus(w, r, http.StatusUnauthorized, "Entrar", views.Login(next, core.FormatUserError(err)))
			return
		}
		s.fail(w, r, err)
		return
	}

	token, exp, err := s.sessions.Issue(user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	http.SetCookie(w, s.sessions.Cookie(token, exp))

	sess := auth.Session{Email: user.Email, Role: user.Role, ExpiresAt: exp}
	s.service.RecordLogin(middleware.WithSession(r.Context(), sess), user.Email, true)

	if next == "/" && user.Role != auth.RoleAdmin {
		next = "/consulta"
	}
	if !jsonBody {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	writeJSON(w, loginResponse{
		Email:     user.Email,
		Role:      string(user.Role),
		ExpiresAt: exp.UTC().Format(time.RFC3339),
		Next:      next,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.sessions != nil {
		http.SetCookie(w, s.sessions.ClearCookie())
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// safeNext only allows same-site paths as a post-login target.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return "/"
	}
	return next
}
