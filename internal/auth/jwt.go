// Package auth provides the OAuth2 client layer and the session tokens issued
// after a successful login.
//
// LOGIN FLOW OVERVIEW:
//  1. User visits /auth/{provider}/login → redirected to Google or GitHub
//  2. The provider calls back /auth/{provider}/callback with a code
//  3. Server exchanges the code, fetches the user-info attributes and hands
//     them to the service layer, which resolves them to one local user
//  4. Server issues a session JWT and stores it in an HttpOnly cookie
//  5. On subsequent API calls, middleware reads the cookie, validates the JWT
//     and puts the Session in the request context
//
// The JWT carries the local user id as "sub" and the provider used for this
// login as "provider". The server can verify it without a database lookup.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/identity-hub/internal/model"
)

const (
	tokenIssuer = "identity-hub"
	// DefaultSessionTTL is used when NewTokenService gets a non-positive TTL.
	DefaultSessionTTL = 24 * time.Hour
)

// Session is what a valid token tells us about the caller.
type Session struct {
	UserID    string
	Provider  model.ProviderKind
	ExpiresAt time.Time
}

// TokenService signs and validates session tokens with an HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. The secret should be at least 32
// bytes of random data in production, e.g. JWT_SECRET=$(openssl rand -hex 32).
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is the lifetime of tokens from Generate. The session cookie uses the
// same value as its Max-Age.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

type claims struct {
	Provider string `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

// Generate signs a session token for userID that logged in via provider.
func (s *TokenService) Generate(userID string, provider model.ProviderKind) (string, error) {
	return s.GenerateWithDuration(userID, provider, s.ttl)
}

// GenerateWithDuration is Generate with an explicit lifetime. Used in tests.
func (s *TokenService) GenerateWithDuration(userID string, provider model.ProviderKind, d time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("auth: cannot sign a token without a subject")
	}
	now := time.Now()

	c := claims{
		Provider: string(provider),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token string.
//
// Checks: HS256 signature, expiry present and in the future, issuer
// "identity-hub". Passing jwt.WithValidMethods rejects "alg":"none" and other
// algorithm-confusion tricks.
func (s *TokenService) Validate(tokenStr string) (*Session, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}

	session := &Session{
		UserID:   c.Subject,
		Provider: model.ProviderKind(c.Provider),
	}
	if c.ExpiresAt != nil {
		session.ExpiresAt = c.ExpiresAt.Time
	}
	return session, nil
}
