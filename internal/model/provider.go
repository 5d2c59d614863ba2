package model

import (
	"fmt"
	"strings"
)

// ProviderKind is the closed set of identity providers a user can log in with.
//
// Adding a provider means adding a constant here AND an extraction branch in
// the provider normalizer; ParseProviderKind rejects anything else.
type ProviderKind string

const (
	ProviderGoogle ProviderKind = "GOOGLE"
	ProviderGitHub ProviderKind = "GITHUB"
)

// ProviderKinds lists every supported provider in a stable order.
var ProviderKinds = []ProviderKind{ProviderGoogle, ProviderGitHub}

// ParseProviderKind accepts either the stored form ("GITHUB") or the
// registration id used in URLs ("github").
func ParseProviderKind(s string) (ProviderKind, error) {
	switch ProviderKind(strings.ToUpper(strings.TrimSpace(s))) {
	case ProviderGoogle:
		return ProviderGoogle, nil
	case ProviderGitHub:
		return ProviderGitHub, nil
	}
	return "", fmt.Errorf("model: unknown provider %q", s)
}

// Valid reports whether k is one of the supported providers.
func (k ProviderKind) Valid() bool {
	return k == ProviderGoogle || k == ProviderGitHub
}

// Slug returns the lowercase registration id, e.g. "github".
func (k ProviderKind) Slug() string {
	return strings.ToLower(string(k))
}

// CanonicalIdentity is the provider-independent view of one successful login.
//
// Email is empty when the provider exposed no address at all (only possible
// for GitHub). AvatarURL is empty when the provider sent none.
type CanonicalIdentity struct {
	Provider       ProviderKind
	ProviderUserID string
	Email          string
	DisplayName    string
	AvatarURL      string
}
