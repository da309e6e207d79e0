package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/JonMunkholm/labtrack/internal/auth"
	"github.com/JonMunkholm/labtrack/internal/core"
)

type sessionKey struct{}

// DemoSession is attached to every request when no session manager is
// configured. It only happens with the memory backend.
var DemoSession = auth.Session{Email: "demo@localhost", Role: auth.RoleAdmin}

// SessionFrom returns the session attached by Authenticate.
func SessionFrom(ctx context.Context) (auth.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(auth.Session)
	return s, ok
}

// WithSession attaches s to ctx. Handlers use it after a login so the
// audit entry carries the new identity.
func WithSession(ctx context.Context, s auth.Session) context.Context {
	ctx = context.WithValue(ctx, sessionKey{}, s)
	return core.ContextWithUser(ctx, s.Email)
}

// Authenticate verifies the session cookie when one is present and
// attaches it to the request. It never rejects; RequireRole does.
// A nil manager runs the server without logins.
func Authenticate(sessions *auth.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sessions == nil {
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), DemoSession)))
				return
			}

			s, err := sessions.FromRequest(r)
			switch {
			case err == nil:
				r = r.WithContext(WithSession(r.Context(), s))
			case errors.Is(err, auth.ErrTokenExpired):
				slog.Debug("auth: expired session",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				http.SetCookie(w, sessions.ClearCookie())
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects requests whose session does not allow need. API
// requests get a JSON error; page requests are redirected to the login page.
func RequireRole(need auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := SessionFrom(r.Context())
			if !ok {
				if isAPI(r) {
					writeJSONError(w, http.StatusUnauthorized, auth.ErrTokenInvalid)
					return
				}
				http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
				return
			}

			if !s.Role.Allows(need) {
				slog.Warn("auth: role denied",
					"path", r.URL.Path,
					"method", r.Method,
					"email", s.Email,
					"role", s.Role,
					"need", need,
				)
				writeJSONError(w, http.StatusForbidden, core.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

// writeJSONError writes the same body shape as the handlers' error responses.
func writeJSONError(w http.ResponseWriter, status int, err error) {
	msg := core.MapError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   msg.Message,
		"message": msg.Message,
		"action":  msg.Action,
		"code":    msg.Code,
	})
}
