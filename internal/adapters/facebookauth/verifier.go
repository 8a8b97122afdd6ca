package facebookauth

// Package facebookauth verifies Facebook access tokens by querying the
// Graph API /me endpoint and checking the returned identity against the
// caller-supplied hints.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/oauth2"

	domainauth "github.com/argoapp/argo-auth/internal/domain/auth"
	"github.com/argoapp/argo-auth/internal/ports"
)

// DefaultGraphURL is the Facebook Graph API base.
const DefaultGraphURL = "https://graph.facebook.com/v3.2"

// profileFields is the field selection requested from /me.
const profileFields = "id,email,first_name,last_name,picture"

// avatarExpr plucks the avatar URL out of the nested picture envelope
// the Graph API wraps it in.
const avatarExpr = "picture.data.url"

// maxResponseBytes caps the profile response body read.
const maxResponseBytes = 1 << 20

// Config holds configuration for the Facebook verifier.
type Config struct {
	GraphURL   string       // Optional, defaults to DefaultGraphURL
	HTTPClient *http.Client // Optional, defaults to a 10s-timeout client
	Logger     *slog.Logger
}

// Verifier validates Facebook access tokens through the Graph API.
type Verifier struct {
	graphURL string
	client   *http.Client
	logger   *slog.Logger
}

var _ ports.AssertionVerifier = (*Verifier)(nil)

// NewVerifier creates a Facebook verifier.
func NewVerifier(cfg Config) *Verifier {
	graphURL := cfg.GraphURL
	if graphURL == "" {
		graphURL = DefaultGraphURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{graphURL: graphURL, client: client, logger: logger}
}

// Verify fetches the token owner's profile and requires the returned id
// to match the caller-supplied subject hint. Facebook accounts created
// with a phone number have no email; the email hint is only enforced
// when both sides supply one.
func (v *Verifier) Verify(ctx context.Context, in ports.Assertion) (domainauth.Claims, error) {
	if in.Credential == "" {
		return domainauth.Claims{}, domainauth.ErrVerificationFailed
	}

	profile, err := v.fetchProfile(ctx, in.Credential)
	if err != nil {
		return domainauth.Claims{}, err
	}

	id, _ := profile["id"].(string)
	email, _ := profile["email"].(string)
	if id == "" {
		v.logger.Warn("facebook profile missing id")
		return domainauth.Claims{}, domainauth.ErrVerificationFailed
	}
	if id != in.SubjectHint {
		return domainauth.Claims{}, domainauth.ErrIdentityMismatch
	}
	if in.EmailHint != "" && email != "" && email != in.EmailHint {
		return domainauth.Claims{}, domainauth.ErrIdentityMismatch
	}

	firstName, _ := profile["first_name"].(string)
	lastName, _ := profile["last_name"].(string)

	return domainauth.Claims{
		Provider:  domainauth.ProviderFacebook,
		SubjectID: id,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		AvatarURL: avatarURL(profile),
	}, nil
}

func (v *Verifier) fetchProfile(ctx context.Context, accessToken string) (map[string]any, error) {
	endpoint := fmt.Sprintf("%s/me?fields=%s", v.graphURL, url.QueryEscape(profileFields))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}

	// Bearer auth through the oauth2 transport, same as a configured
	// token source would produce.
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, v.client), src)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domainauth.ErrProviderUnreachable, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			v.logger.Warn("close profile response body failed", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", domainauth.ErrProviderUnreachable, err)
	}
	if resp.StatusCode != http.StatusOK {
		v.logger.Warn("facebook graph rejected token", "status", resp.StatusCode)
		return nil, domainauth.ErrVerificationFailed
	}

	var profile map[string]any
	if err := json.Unmarshal(body, &profile); err != nil {
		v.logger.Warn("facebook profile decode failed", "error", err)
		return nil, domainauth.ErrVerificationFailed
	}
	return profile, nil
}

// avatarURL extracts picture.data.url; a missing or oddly shaped
// envelope just yields no avatar.
func avatarURL(profile map[string]any) string {
	out, err := jmespath.Search(avatarExpr, profile)
	if err != nil {
		return ""
	}
	s, _ := out.(string)
	return s
}
