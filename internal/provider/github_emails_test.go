package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/identity-hub/internal/model"
)

func TestGitHubEmailClient_ListEmails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/emails", r.URL.Path)
		assert.Equal(t, "Bearer gho_abc", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"email":"a@x.com","primary":false,"verified":true,"visibility":null},
			{"email":"b@x.com","primary":true,"verified":true,"visibility":"private"}
		]`))
	}))
	defer srv.Close()

	client := NewGitHubEmailClient(srv.URL+"/", time.Second)

	emails, err := client.ListEmails(context.Background(), "gho_abc")
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, GitHubEmail{Email: "a@x.com", Verified: true}, emails[0])
	assert.Equal(t, "b@x.com", selectEmail(emails))
}

func TestGitHubEmailClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
	}{
		{
			name: "non-2xx",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"not":"a list"`))
			},
		},
		{
			name:    "timeout",
			timeout: 20 * time.Millisecond,
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			timeout := tt.timeout
			if timeout == 0 {
				timeout = time.Second
			}
			client := NewGitHubEmailClient(srv.URL, timeout)

			_, err := client.ListEmails(context.Background(), "gho_abc")
			assert.ErrorIs(t, err, ErrEmailLookup)
		})
	}
}

func TestGitHubEmailClient_Defaults(t *testing.T) {
	c := NewGitHubEmailClient("", 0)
	assert.Equal(t, DefaultGitHubAPIURL, c.baseURL)
	assert.Equal(t, 5*time.Second, c.timeout)
}

// The whole chain against a fake GitHub API: the /user/emails failure is
// swallowed and the noreply address is used.
func TestNormalizer_WithFailingGitHubAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNormalizer(NewGitHubEmailClient(srv.URL, time.Second), discardLogger())

	got, err := n.Normalize(context.Background(), model.ProviderGitHub,
		decodeAttrs(t, `{"id": 42, "login": "octocat", "email": null, "avatar_url": "https://a/42"}`), "gho_abc")
	require.NoError(t, err)
	assert.Equal(t, model.CanonicalIdentity{
		Provider:       model.ProviderGitHub,
		ProviderUserID: "42",
		Email:          "octocat@users.noreply.github.com",
		DisplayName:    "octocat",
		AvatarURL:      "https://a/42",
	}, got)
}

func TestSelectEmail(t *testing.T) {
	tests := []struct {
		name   string
		emails []GitHubEmail
		want   string
	}{
		{"nil", nil, ""},
		{"only blanks", []GitHubEmail{{Email: ""}, {Email: "  ", Verified: true}}, ""},
		{"first verified in list order", []GitHubEmail{
			{Email: "u@x.com"},
			{Email: "v1@x.com", Verified: true},
			{Email: "v2@x.com", Verified: true},
		}, "v1@x.com"},
		{"primary verified anywhere", []GitHubEmail{
			{Email: "v1@x.com", Verified: true},
			{Email: "p@x.com", Primary: true, Verified: true},
		}, "p@x.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, selectEmail(tt.emails))
		})
	}
}
