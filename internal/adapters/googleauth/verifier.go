package googleauth

// Package googleauth verifies Google access tokens by querying Google's
// OIDC userinfo endpoint and checking the returned identity against the
// caller-supplied hints.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/argoapp/argo-auth/internal/domain/auth"
	"github.com/argoapp/argo-auth/internal/ports"
)

// DefaultIssuer is Google's OIDC issuer.
const DefaultIssuer = "https://accounts.google.com"

// Config holds configuration for the Google verifier.
type Config struct {
	Issuer     string       // Optional, defaults to DefaultIssuer
	HTTPClient *http.Client // Optional, defaults to a 10s-timeout client
	Logger     *slog.Logger
}

// Verifier validates Google access tokens through the userinfo endpoint.
type Verifier struct {
	provider *gooidc.Provider
	client   *http.Client
	logger   *slog.Logger
}

var _ ports.AssertionVerifier = (*Verifier)(nil)

// NewVerifier creates a Google verifier. The issuer's discovery document
// is fetched once at construction.
func NewVerifier(ctx context.Context, cfg Config) (*Verifier, error) {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	provider, err := gooidc.NewProvider(gooidc.ClientContext(ctx, client), issuer)
	if err != nil {
		return nil, fmt.Errorf("google oidc discovery: %w", err)
	}
	return &Verifier{provider: provider, client: client, logger: logger}, nil
}

// userInfo is the subset of Google's userinfo response we consume.
type userInfo struct {
	Subject    string `json:"sub"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

// Verify queries userinfo with the access token and requires the
// returned subject and email to match the caller-supplied hints.
func (v *Verifier) Verify(ctx context.Context, in ports.Assertion) (domainauth.Claims, error) {
	if in.Credential == "" {
		return domainauth.Claims{}, domainauth.ErrVerificationFailed
	}

	ctx = gooidc.ClientContext(ctx, v.client)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: in.Credential, TokenType: "Bearer"})
	ui, err := v.provider.UserInfo(ctx, src)
	if err != nil {
		if isTransport(err) {
			return domainauth.Claims{}, fmt.Errorf("%w: %w", domainauth.ErrProviderUnreachable, err)
		}
		v.logger.Warn("google userinfo rejected token", "error", err)
		return domainauth.Claims{}, domainauth.ErrVerificationFailed
	}

	var info userInfo
	if err := ui.Claims(&info); err != nil {
		v.logger.Warn("google userinfo decode failed", "error", err)
		return domainauth.Claims{}, domainauth.ErrVerificationFailed
	}
	if info.Subject == "" {
		return domainauth.Claims{}, domainauth.ErrVerificationFailed
	}
	if info.Subject != in.SubjectHint || info.Email != in.EmailHint {
		return domainauth.Claims{}, domainauth.ErrIdentityMismatch
	}

	return domainauth.Claims{
		Provider:  domainauth.ProviderGoogle,
		SubjectID: info.Subject,
		Email:     info.Email,
		FirstName: info.GivenName,
		LastName:  info.FamilyName,
		AvatarURL: info.Picture,
	}, nil
}

// isTransport reports whether err is a network-level fault rather than
// the provider rejecting the token.
func isTransport(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
