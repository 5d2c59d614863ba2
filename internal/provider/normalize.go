// Package provider turns raw OAuth user-info attributes into a
// model.CanonicalIdentity.
//
// Each provider names things differently: Google sends "sub" and "picture",
// GitHub sends a numeric "id", "login" and "avatar_url", and may hide the
// email entirely. The Normalizer is the only place that knows these shapes;
// everything downstream works on CanonicalIdentity.
package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/sakif/identity-hub/internal/apperror"
	"github.com/sakif/identity-hub/internal/model"
)

const (
	githubNoReplyDomain = "users.noreply.github.com"
	githubDefaultName   = "GitHub User"
)

// Normalizer maps provider attributes to a CanonicalIdentity.
type Normalizer struct {
	emails EmailLister // nil disables the GitHub /user/emails step
	logger *slog.Logger
}

// NewNormalizer creates a Normalizer. emails may be nil.
func NewNormalizer(emails EmailLister, logger *slog.Logger) *Normalizer {
	return &Normalizer{emails: emails, logger: logger}
}

// Normalize extracts a CanonicalIdentity from attrs.
//
// Missing mandatory attributes and unknown providers return an error wrapping
// apperror.ErrNormalization. accessToken is only used for the GitHub email
// lookup.
func (n *Normalizer) Normalize(ctx context.Context, kind model.ProviderKind, attrs map[string]any, accessToken string) (model.CanonicalIdentity, error) {
	switch kind {
	case model.ProviderGoogle:
		return normalizeGoogle(attrs)
	case model.ProviderGitHub:
		return n.normalizeGitHub(ctx, attrs, accessToken)
	}
	return model.CanonicalIdentity{}, apperror.NormalizationFailed(string(kind), "provider")
}

// normalizeGoogle handles the OpenID Connect userinfo shape.
func normalizeGoogle(attrs map[string]any) (model.CanonicalIdentity, error) {
	sub := attrString(attrs, "sub")
	if sub == "" {
		return model.CanonicalIdentity{}, apperror.NormalizationFailed(string(model.ProviderGoogle), "sub")
	}
	email := attrString(attrs, "email")
	if email == "" {
		return model.CanonicalIdentity{}, apperror.NormalizationFailed(string(model.ProviderGoogle), "email")
	}

	return model.CanonicalIdentity{
		Provider:       model.ProviderGoogle,
		ProviderUserID: sub,
		Email:          email,
		DisplayName:    firstNonBlank(attrString(attrs, "name"), email),
		AvatarURL:      attrString(attrs, "picture"),
	}, nil
}

func (n *Normalizer) normalizeGitHub(ctx context.Context, attrs map[string]any, accessToken string) (model.CanonicalIdentity, error) {
	id := attrString(attrs, "id")
	if id == "" {
		return model.CanonicalIdentity{}, apperror.NormalizationFailed(string(model.ProviderGitHub), "id")
	}
	login := attrString(attrs, "login")

	return model.CanonicalIdentity{
		Provider:       model.ProviderGitHub,
		ProviderUserID: id,
		Email:          n.githubEmail(ctx, attrs, login, accessToken),
		DisplayName:    firstNonBlank(attrString(attrs, "name"), login, githubDefaultName),
		AvatarURL:      attrString(attrs, "avatar_url"),
	}, nil
}

// githubEmail walks the fallback chain: profile attribute, /user/emails,
// noreply address. Returns "" when every source came up empty.
func (n *Normalizer) githubEmail(ctx context.Context, attrs map[string]any, login, accessToken string) string {
	if email := attrString(attrs, "email"); email != "" {
		return email
	}

	if n.emails != nil && accessToken != "" {
		emails, err := n.emails.ListEmails(ctx, accessToken)
		if err != nil {
			n.logger.Warn("github email lookup failed, falling back",
				"login", login,
				"error", err,
			)
		} else if email := selectEmail(emails); email != "" {
			return email
		}
	}

	if login != "" {
		return login + "@" + githubNoReplyDomain
	}
	return ""
}

// attrString returns attrs[key] as a trimmed string. Numbers are rendered in
// plain integer form when integral (GitHub ids arrive as JSON numbers).
// Anything else, including nested objects and booleans, counts as absent.
func attrString(attrs map[string]any, key string) string {
	switch v := attrs[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := v.Float64(); err == nil {
			return formatFloat(f)
		}
		return strings.TrimSpace(v.String())
	case float64:
		return formatFloat(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
