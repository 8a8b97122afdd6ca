package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeProviders verifies real identity-provider credentials.
	AuthModeProviders AuthMode = "providers"
	// AuthModeMock uses a config-driven dev verifier (development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "providers", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: providers, mock)", v)
	}
}

// GoogleConfig contains Google verification configuration.
type GoogleConfig struct {
	// Issuer is Google's OIDC issuer; overridable for tests.
	Issuer string `env:"ISSUER" envDefault:"https://accounts.google.com"`
}

// FacebookConfig contains Facebook verification configuration.
type FacebookConfig struct {
	// GraphURL is the Graph API base; overridable for tests.
	GraphURL string `env:"GRAPH_URL" envDefault:"https://graph.facebook.com/v3.2"`
}

// AppleConfig contains Apple verification configuration.
type AppleConfig struct {
	// KeysURL is Apple's JWKS endpoint; overridable for tests.
	KeysURL string `env:"KEYS_URL" envDefault:"https://appleid.apple.com/auth/keys"`

	// KeysTTL is how long a fetched key set is considered fresh.
	KeysTTL time.Duration `env:"KEYS_TTL" envDefault:"15m"`
}

// DevAuthConfig controls the mock verifier identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	Provider  string `env:"PROVIDER"   envDefault:"google"`
	SubjectID string `env:"SUBJECT_ID" envDefault:"dev-subject"`
	Email     string `env:"EMAIL"      envDefault:"dev@example.com"`
	FirstName string `env:"FIRST_NAME" envDefault:"Dev"`
	LastName  string `env:"LAST_NAME"  envDefault:"User"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which verifiers are wired up.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"providers"`

	Google   GoogleConfig   `envPrefix:"GOOGLE_"`
	Facebook FacebookConfig `envPrefix:"FACEBOOK_"`
	Apple    AppleConfig    `envPrefix:"APPLE_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// TokenTTL is the lifetime of issued bearer tokens.
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	if a.TokenTTL <= 0 {
		a.TokenTTL = 24 * time.Hour
	}
	if a.Apple.KeysTTL <= 0 {
		a.Apple.KeysTTL = 15 * time.Minute
	}
}
