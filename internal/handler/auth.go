package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/sakif/identity-hub/internal/apperror"
	"github.com/sakif/identity-hub/internal/auth"
	"github.com/sakif/identity-hub/internal/model"
	"github.com/sakif/identity-hub/internal/service"
)

const (
	stateCookieName = "oauth_state"
	stateCookieTTL  = 10 * time.Minute
)

// OAuthProvider runs the authorization-code flow for one provider.
// Implemented by *auth.Provider.
type OAuthProvider interface {
	Kind() model.ProviderKind
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.UserInfo, error)
}

// Accounts is the part of service.AuthService the HTTP layer uses.
type Accounts interface {
	Login(ctx context.Context, kind model.ProviderKind, attrs map[string]any, accessToken string) (*service.AuthResult, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	LinkedProviders(ctx context.Context, userID string) ([]model.ProviderKind, error)
	UpdateProfile(ctx context.Context, userID string, in service.ProfileUpdate) (*model.User, error)
}

// AuthConfig holds the presentation settings of the login flow.
type AuthConfig struct {
	// FrontendURL is where the browser lands after a callback:
	// {FrontendURL}/profile on success, {FrontendURL}/?error=oauth otherwise.
	FrontendURL  string
	CookieSecure bool
	SessionTTL   time.Duration
}

// AuthHandler manages the provider login flow and the session cookie.
//
//   - HandleLogin    → redirect the browser to the provider
//   - HandleCallback → verify state, exchange the code, log the user in
//   - HandleLogout   → clear the session cookie
//   - HandleMe       → who is signed in, with linked providers
type AuthHandler struct {
	providers map[model.ProviderKind]OAuthProvider
	accounts  Accounts
	cfg       AuthConfig
	logger    *slog.Logger
}

// NewAuthHandler registers the given providers. A provider missing here
// (no client credentials configured) answers 404 on its login route.
func NewAuthHandler(providers []OAuthProvider, accounts Accounts, cfg AuthConfig, logger *slog.Logger) *AuthHandler {
	byKind := make(map[model.ProviderKind]OAuthProvider, len(providers))
	for _, p := range providers {
		byKind[p.Kind()] = p
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	return &AuthHandler{providers: byKind, accounts: accounts, cfg: cfg, logger: logger}
}

func (h *AuthHandler) provider(r *http.Request) (OAuthProvider, bool) {
	kind, err := model.ParseProviderKind(chi.URLParam(r, "provider"))
	if err != nil {
		return nil, false
	}
	p, ok := h.providers[kind]
	return p, ok
}

// HandleLogin redirects the user to the provider's authorization page.
//
// HTTP: GET /auth/{provider}/login
//
// CSRF PROTECTION VIA STATE:
// A random state goes into a short-lived HttpOnly cookie and into the
// authorization URL. The callback only proceeds when both match.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(r)
	if !ok {
		writeError(w, apperror.NotFound("provider", chi.URLParam(r, "provider")))
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, p.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the login.
//
// HTTP: GET /auth/{provider}/callback?code=xxx&state=yyy
//
// Every failure (bad state, provider denial, exchange error, unusable
// attributes, storage error) ends in a redirect to {FrontendURL}/?error=oauth.
// The reason is only logged.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(r)
	if !ok {
		h.fail(w, r, "unknown provider", slog.String("provider", chi.URLParam(r, "provider")))
		return
	}
	kind := p.Kind()
	q := r.URL.Query()

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.fail(w, r, "state mismatch", slog.String("provider", string(kind)))
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("provider", string(kind)),
			slog.String("error", errParam),
		)
		http.Redirect(w, r, h.cfg.FrontendURL+"/?error=oauth", http.StatusSeeOther)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.fail(w, r, "missing code", slog.String("provider", string(kind)))
		return
	}

	info, err := p.Exchange(r.Context(), code)
	if err != nil {
		h.fail(w, r, "code exchange failed", slog.String("provider", string(kind)), slog.String("error", err.Error()))
		return
	}

	result, err := h.accounts.Login(r.Context(), kind, info.Attributes, info.AccessToken)
	if err != nil {
		h.fail(w, r, "login failed", slog.String("provider", string(kind)), slog.String("error", err.Error()))
		return
	}

	h.setSessionCookie(w, result.Token)
	http.Redirect(w, r, h.cfg.FrontendURL+"/profile", http.StatusSeeOther)
}

func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, reason string, attrs ...any) {
	h.logger.Warn("auth callback: "+reason, attrs...)
	http.Redirect(w, r, h.cfg.FrontendURL+"/?error=oauth", http.StatusSeeOther)
}

// setSessionCookie stores the JWT in an HttpOnly cookie. JavaScript cannot
// read it, and SameSite=Lax keeps it off cross-site POSTs.
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /auth/logout
//
// Sessions are stateless JWTs: the token stays valid until it expires, but
// without the cookie the browser no longer sends it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// MeResponse is the body of GET /api/me.
type MeResponse struct {
	Authenticated bool                 `json:"authenticated"`
	ID            string               `json:"id,omitempty"`
	Email         string               `json:"email,omitempty"`
	DisplayName   string               `json:"displayName,omitempty"`
	AvatarURL     string               `json:"avatarUrl,omitempty"`
	Bio           string               `json:"bio,omitempty"`
	Providers     []model.ProviderKind `json:"providers,omitempty"`
	LoginProvider model.ProviderKind   `json:"loginProvider,omitempty"`
}

// HandleMe returns the signed-in user, or {"authenticated":false}.
//
// HTTP: GET /api/me
// Auth: optional
//
// A valid token whose user no longer exists is treated as anonymous.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, MeResponse{Authenticated: false})
		return
	}

	user, err := h.accounts.GetUserByID(r.Context(), session.UserID)
	if err != nil {
		if isNotFound(err) {
			writeJSON(w, http.StatusOK, MeResponse{Authenticated: false})
			return
		}
		h.logger.Error("HandleMe: loading user failed",
			slog.String("userID", session.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	providers, err := h.accounts.LinkedProviders(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("HandleMe: listing providers failed",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{
		Authenticated: true,
		ID:            user.ID,
		Email:         user.Email,
		DisplayName:   user.DisplayName,
		AvatarURL:     user.AvatarURL,
		Bio:           user.Bio,
		Providers:     providers,
		LoginProvider: session.Provider,
	})
}
