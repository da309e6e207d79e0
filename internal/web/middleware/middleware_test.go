package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/labtrack/internal/auth"
	"github.com/JonMunkholm/labtrack/internal/core"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name     string
		trusted  []string
		remote   string
		headers  map[string]string
		expected string
	}{
		{
			name:     "untrusted peer keeps remote addr",
			trusted:  []string{"10.0.0.0/8"},
			remote:   "203.0.113.7:5000",
			headers:  map[string]string{"X-Real-IP": "1.2.3.4"},
			expected: "203.0.113.7:5000",
		},
		{
			name:     "trusted peer uses X-Real-IP",
			trusted:  []string{"10.0.0.0/8"},
			remote:   "10.1.2.3:5000",
			headers:  map[string]string{"X-Real-IP": "1.2.3.4"},
			expected: "1.2.3.4",
		},
		{
			name:     "trusted peer uses first X-Forwarded-For hop",
			trusted:  []string{"10.0.0.0/8"},
			remote:   "10.1.2.3:5000",
			headers:  map[string]string{"X-Forwarded-For": "5.6.7.8, 10.1.2.3"},
			expected: "5.6.7.8",
		},
		{
			name:     "single address entry",
			trusted:  []string{"127.0.0.1"},
			remote:   "127.0.0.1:9999",
			headers:  map[string]string{"X-Real-IP": "9.9.9.9"},
			expected: "9.9.9.9",
		},
		{
			name:     "invalid header ignored",
			trusted:  []string{"10.0.0.0/8"},
			remote:   "10.1.2.3:5000",
			headers:  map[string]string{"X-Real-IP": "not-an-ip"},
			expected: "10.1.2.3:5000",
		},
		{
			name:     "invalid trusted entry skipped",
			trusted:  []string{"garbage"},
			remote:   "10.1.2.3:5000",
			headers:  map[string]string{"X-Real-IP": "1.2.3.4"},
			expected: "10.1.2.3:5000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRateLimiter_AllowsBurstThenRejects(t *testing.T) {
	rl := NewRateLimiter(60, 2)
	now := time.Date(2024, 9, 5, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "buckets are per client")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"), "one token refills per second at 60/min")
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	rl := NewRateLimiter(60, 1)
	now := time.Date(2024, 9, 5, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	rl.Allow("b")
	require.Equal(t, 2, rl.Len())

	now = now.Add(visitorTTL + time.Minute)
	rl.Allow("c")
	assert.Equal(t, 1, rl.Len())
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	h := rl.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req.RemoteAddr = "192.0.2.1:4321"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE001")
}

func newSessions(t *testing.T) *auth.SessionManager {
	t.Helper()
	m, err := auth.NewSessionManager("0123456789abcdef0123456789abcdef", "labtrack", time.Hour, false)
	require.NoError(t, err)
	return m
}

func TestAuthenticate_NoManagerUsesDemoSession(t *testing.T) {
	var got auth.Session
	h := Authenticate(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = SessionFrom(r.Context())
		assert.Equal(t, DemoSession.Email, core.GetUserFromContext(r.Context()))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, auth.RoleAdmin, got.Role)
}

func TestAuthenticate_ValidCookie(t *testing.T) {
	sessions := newSessions(t)
	token, exp, err := sessions.Issue(auth.User{Email: "ana@lab.test", Role: auth.RoleUBS})
	require.NoError(t, err)

	var (
		got auth.Session
		ok  bool
	)
	h := Authenticate(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = SessionFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(sessions.Cookie(token, exp))
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, ok)
	assert.Equal(t, "ana@lab.test", got.Email)
	assert.Equal(t, auth.RoleUBS, got.Role)
}

func TestAuthenticate_BadCookieLeavesRequestAnonymous(t *testing.T) {
	sessions := newSessions(t)
	var ok bool
	h := Authenticate(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = SessionFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "forged"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.False(t, ok)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		session  *auth.Session
		need     auth.Role
		path     string
		status   int
		location string
	}{
		{name: "anonymous api", need: auth.RoleAdmin, path: "/api/sheets", status: http.StatusUnauthorized},
		{name: "anonymous page redirects", need: auth.RoleAdmin, path: "/", status: http.StatusSeeOther, location: "/login?next=%2F"},
		{name: "ubs denied admin", session: &auth.Session{Email: "u@lab.test", Role: auth.RoleUBS}, need: auth.RoleAdmin, path: "/api/sheets", status: http.StatusForbidden},
		{name: "ubs allowed ubs", session: &auth.Session{Email: "u@lab.test", Role: auth.RoleUBS}, need: auth.RoleUBS, path: "/consulta", status: http.StatusNoContent},
		{name: "admin allowed ubs", session: &auth.Session{Email: "a@lab.test", Role: auth.RoleAdmin}, need: auth.RoleUBS, path: "/consulta", status: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.session != nil {
				req = req.WithContext(WithSession(req.Context(), *tt.session))
			}
			rec := httptest.NewRecorder()
			RequireRole(tt.need)(okHandler()).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, rec.Header().Get("Location"))
			}
		})
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	routes []string
	status []int
}

func (o *recordingObserver) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.routes = append(o.routes, method+" "+route)
	o.status = append(o.status, status)
}

func TestLogger_ObservesRoutePattern(t *testing.T) {
	obs := &recordingObserver{}
	r := chi.NewRouter()
	r.Use(Logger(obs))
	r.Get("/api/sheets/{sheet}/exams", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/sheets/sao-lucas/exams", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, []string{"GET /api/sheets/{sheet}/exams", "GET unmatched"}, obs.routes)
	assert.Equal(t, []int{http.StatusTeapot, http.StatusNotFound}, obs.status)
}
