package auth

import (
	"context"
	"net/http"
)

// SessionCookieName is the HttpOnly cookie holding the session JWT.
const SessionCookieName = "token"

// contextKey is unexported so only this package can read or write the
// session stored in a request context.
type contextKey string

const sessionKey contextKey = "session"

// RequireAuth rejects requests without a valid session cookie with 401 and
// stores the Session in the context otherwise.
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := extractSession(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// OptionalAuth stores the Session when the cookie is valid and lets the
// request through either way. Handlers check SessionFromContext.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session, err := extractSession(r, tokens); err == nil {
				r = r.WithContext(WithSession(r.Context(), session))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithSession returns a copy of ctx carrying session.
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFromContext returns (nil, false) for anonymous requests.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok && s != nil && s.UserID != ""
}

// UserIDFromContext is a shortcut for SessionFromContext(ctx).UserID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	s, ok := SessionFromContext(ctx)
	if !ok {
		return "", false
	}
	return s.UserID, true
}

func extractSession(r *http.Request, tokens *TokenService) (*Session, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		// http.ErrNoCookie: anonymous
		return nil, err
	}
	return tokens.Validate(cookie.Value)
}
