package session

import (
	"context"
	"net/http"
	"strings"
)

type contextKey struct{}

// NewContext returns a context carrying the authenticated session.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext extracts the session placed by RequireSession.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok
}

// RequireSession authenticates embedded-app requests. It verifies the App
// Bridge session token from the Authorization header, resolves the shop it
// was issued for and loads that shop's stored session. 401 on a missing or
// invalid token, 404 when the shop has no stored session.
func RequireSession(svc Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			raw := strings.TrimPrefix(authz, "Bearer ")
			if raw == "" || raw == authz {
				respond(w, http.StatusUnauthorized, map[string]string{"error": "missing session token"})
				return
			}
			shop, err := svc.VerifySessionToken(raw)
			if err != nil {
				respond(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
				return
			}
			sess, err := svc.SessionForShop(r.Context(), shop)
			if err != nil {
				respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			if sess == nil {
				respond(w, http.StatusNotFound, map[string]string{"error": "Session not found"})
				return
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), sess)))
		})
	}
}
