package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/oauth2/github"

	"github.com/sakif/identity-hub/internal/model"
)

const (
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	defaultGitHubAPI  = "https://api.github.com"
)

// UserInfo is the raw result of a completed authorization-code flow.
//
// Attributes is the provider's user-info JSON object, decoded with
// json.Decoder.UseNumber so numeric ids keep their exact digits. It is not
// interpreted here; the provider package normalizes it.
type UserInfo struct {
	Provider    model.ProviderKind
	Attributes  map[string]any
	AccessToken string
}

// Provider wraps golang.org/x/oauth2 for one identity provider.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. Redirect the user to the provider's authorization endpoint with our
//     ClientID, the requested scopes and a random state.
//  2. The user approves (or denies) on the provider's site.
//  3. The provider redirects back to our callback with a short-lived code.
//  4. We exchange the code for an access token, server to server, using the
//     ClientSecret. The token never reaches the browser.
//  5. We call the user-info endpoint with the token.
type Provider struct {
	kind        model.ProviderKind
	config      *oauth2.Config
	userInfoURL string
}

// NewProvider builds a Provider from an explicit config. The Google and
// GitHub constructors below cover production; tests point config.Endpoint
// and userInfoURL at an httptest server.
func NewProvider(kind model.ProviderKind, config *oauth2.Config, userInfoURL string) *Provider {
	return &Provider{kind: kind, config: config, userInfoURL: userInfoURL}
}

// NewGoogleProvider requests the OpenID Connect "openid email profile" scopes.
// Credentials come from https://console.cloud.google.com/apis/credentials.
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *Provider {
	return NewProvider(model.ProviderGoogle, &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     endpoints.Google,
	}, googleUserInfoURL)
}

// NewGitHubProvider requests:
//   - "read:user": the public profile (id, login, avatar)
//   - "user:email": the email list, needed when the profile email is hidden
//
// apiURL is the REST root ("" means https://api.github.com).
func NewGitHubProvider(clientID, clientSecret, callbackURL, apiURL string) *Provider {
	if apiURL == "" {
		apiURL = defaultGitHubAPI
	}
	return NewProvider(model.ProviderGitHub, &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Scopes:       []string{"read:user", "user:email"},
		Endpoint:     github.Endpoint,
	}, strings.TrimRight(apiURL, "/")+"/user")
}

func (p *Provider) Kind() model.ProviderKind {
	return p.kind
}

// AuthURL returns the URL to redirect the user to. state is echoed back on
// the callback and must match the state cookie (CSRF protection).
func (p *Provider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for an access token and fetches the
// user-info attributes with it.
func (p *Provider) Exchange(ctx context.Context, code string) (*UserInfo, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging %s OAuth code: %w", p.kind.Slug(), err)
	}

	// config.Client adds "Authorization: Bearer <token>" to every request.
	client := p.config.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building %s user-info request: %w", p.kind.Slug(), err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling %s user-info API: %w", p.kind.Slug(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: %s user-info API returned status %d", p.kind.Slug(), resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var attrs map[string]any
	if err := dec.Decode(&attrs); err != nil {
		return nil, fmt.Errorf("auth: decoding %s user-info response: %w", p.kind.Slug(), err)
	}
	if attrs == nil {
		return nil, errors.New("auth: " + p.kind.Slug() + " user-info response was null")
	}

	return &UserInfo{
		Provider:    p.kind,
		Attributes:  attrs,
		AccessToken: token.AccessToken,
	}, nil
}
