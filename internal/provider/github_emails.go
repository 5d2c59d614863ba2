package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultGitHubAPIURL is the public GitHub REST API root.
const DefaultGitHubAPIURL = "https://api.github.com"

// ErrEmailLookup wraps every failure of the GitHub email listing call:
// transport errors, timeouts, non-2xx responses and undecodable bodies.
var ErrEmailLookup = errors.New("github email lookup failed")

// GitHubEmail is one entry of GET /user/emails.
//
// GitHub API docs: https://docs.github.com/en/rest/users/emails#list-email-addresses-for-the-authenticated-user
type GitHubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// EmailLister returns the addresses of the user owning accessToken.
type EmailLister interface {
	ListEmails(ctx context.Context, accessToken string) ([]GitHubEmail, error)
}

// GitHubEmailClient calls GET {baseURL}/user/emails once per login.
// There is no retry: a failed lookup just moves the normalizer on to the
// next email source.
type GitHubEmailClient struct {
	baseURL string
	timeout time.Duration
	// httpClient is the transport the oauth2 client wraps. nil means
	// http.DefaultClient.
	httpClient *http.Client
}

// NewGitHubEmailClient builds a client for the given API root. An empty
// baseURL means DefaultGitHubAPIURL; a non-positive timeout means 5s.
func NewGitHubEmailClient(baseURL string, timeout time.Duration) *GitHubEmailClient {
	if baseURL == "" {
		baseURL = DefaultGitHubAPIURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GitHubEmailClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

// WithHTTPClient sets the underlying transport. Used by tests.
func (c *GitHubEmailClient) WithHTTPClient(hc *http.Client) *GitHubEmailClient {
	c.httpClient = hc
	return c
}

func (c *GitHubEmailClient) ListEmails(ctx context.Context, accessToken string) ([]GitHubEmail, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}

	// oauth2.NewClient adds "Authorization: Bearer <token>" to every request.
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user/emails", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrEmailLookup, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmailLookup, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrEmailLookup, resp.StatusCode)
	}

	var emails []GitHubEmail
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrEmailLookup, err)
	}
	return emails, nil
}

// selectEmail picks primary+verified, then any verified, then the first
// entry in list order. Entries with a blank address are ignored.
func selectEmail(emails []GitHubEmail) string {
	var verified, first string
	for _, e := range emails {
		addr := strings.TrimSpace(e.Email)
		if addr == "" {
			continue
		}
		if e.Primary && e.Verified {
			return addr
		}
		if e.Verified && verified == "" {
			verified = addr
		}
		if first == "" {
			first = addr
		}
	}
	if verified != "" {
		return verified
	}
	return first
}
