package auth

// Package auth contains domain-level types for federated authentication.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

// Provider identifies a supported external identity provider.
// The set is closed: adding a provider means adding a constant and a
// verifier implementation, not a new conditional branch.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
	ProviderApple    Provider = "apple"
)

// ParseProvider maps a raw provider name to a known Provider.
// The boolean is false for anything outside the closed set.
func ParseProvider(s string) (Provider, bool) {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderGoogle:
		return ProviderGoogle, true
	case ProviderFacebook:
		return ProviderFacebook, true
	case ProviderApple:
		return ProviderApple, true
	default:
		return "", false
	}
}

// Claims is the provider-agnostic result of a successful verification.
// Provider and SubjectID are never empty after verification succeeds;
// everything else is optional (Facebook accounts registered with a phone
// number carry no email at all).
type Claims struct {
	Provider  Provider
	SubjectID string // stable per-provider user identifier ("sub")
	Email     string
	FirstName string
	LastName  string
	AvatarURL string
}

// FullName is the name structure Apple supplies alongside the identity
// token. It arrives outside the signed payload, so it is advisory only
// and must never be treated as a verified identity assertion.
type FullName struct {
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
}

// Token is an opaque bearer credential bound to exactly one user.
type Token struct {
	Value     string    `json:"value"`
	UserID    string    `json:"user_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
