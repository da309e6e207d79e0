package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/labtrack/internal/core"
)

// WithRequestMetadata adds IP and User-Agent to context for audit logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // Already rewritten by TrustedRealIP
	if addr, ok := clientAddr(r); ok {
		ip = addr
	}
	ctx = core.ContextWithIPAddress(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}

// requestMetadata is the middleware form of WithRequestMetadata.
func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithRequestMetadata(r.Context(), r)))
	})
}
