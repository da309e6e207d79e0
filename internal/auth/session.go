package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName carries the signed session.
const CookieName = "lab_session"

var (
	ErrTokenExpired = errors.New("session has expired")
	ErrTokenInvalid = errors.New("session is invalid")
)

// Session is what a valid cookie proves.
type Session struct {
	Email     string
	Role      Role
	ExpiresAt time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// SessionManager signs and verifies session tokens with HS256.
type SessionManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessionManager returns a manager. secret must be non-empty.
func NewSessionManager(secret, issuer string, ttl time.Duration, secureCookie bool) (*SessionManager, error) {
	if secret == "" {
		return nil, errors.New("session secret is empty")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		secure: secureCookie,
		now:    time.Now,
	}, nil
}

// Issue signs a session for u.
func (m *SessionManager) Issue(u User) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now.Add(-10 * time.Second)),
		},
		Role: u.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses a token issued by Issue.
func (m *SessionManager) Verify(token string) (Session, error) {
	parsed, err := jwt.ParseWithClaims(
		token,
		&sessionClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secret, nil
		},
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, ErrTokenExpired
		}
		return Session{}, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid || !claims.Role.Valid() || claims.Subject == "" {
		return Session{}, ErrTokenInvalid
	}
	return Session{Email: claims.Subject, Role: claims.Role, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Cookie wraps a signed token.
func (m *SessionManager) Cookie(token string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie expires the session cookie.
func (m *SessionManager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// FromRequest verifies the session cookie on r.
func (m *SessionManager) FromRequest(r *http.Request) (Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return Session{}, ErrTokenInvalid
	}
	return m.Verify(c.Value)
}
