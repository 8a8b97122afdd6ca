package appleauth

// Package appleauth verifies Apple identity tokens (signed JWTs).
//
// Apple publishes several signing keys and does not indicate which one
// signed a given token, so verification tries each published key in
// order and stops at the first one that validates the signature. On a
// full miss the key set is force-refreshed once and the trial repeated,
// which covers a key rotated in after our cache was filled.

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"

	domainauth "github.com/argoapp/argo-auth/internal/domain/auth"
	"github.com/argoapp/argo-auth/internal/ports"
)

// KeySource provides the provider's current public keys, in publication
// order, plus a forced refresh for post-rotation retries.
type KeySource interface {
	Keys(ctx context.Context) ([]jose.JSONWebKey, error)
	Refresh(ctx context.Context) ([]jose.JSONWebKey, error)
}

// allowedAlgorithms is the closed set of signature algorithms accepted
// from the token header. Apple signs with RS256 today; the ES variants
// are accepted for forward compatibility. Symmetric algorithms are
// excluded so a token can never be "verified" with a public key used as
// an HMAC secret.
var allowedAlgorithms = map[jose.SignatureAlgorithm]bool{
	jose.RS256: true,
	jose.ES256: true,
	jose.ES384: true,
	jose.ES512: true,
}

// Config holds configuration for the Apple verifier.
type Config struct {
	Keys   KeySource
	Logger *slog.Logger
	Now    func() time.Time // Optional, defaults to time.Now
}

// Verifier validates Apple identity tokens against the published keys.
type Verifier struct {
	keys   KeySource
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.AssertionVerifier = (*Verifier)(nil)

// NewVerifier creates an Apple assertion verifier.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Keys == nil {
		return nil, errors.New("key source is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Verifier{keys: cfg.Keys, logger: logger, now: now}, nil
}

// tokenClaims is the subset of the signed payload we require.
type tokenClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Expiry  int64  `json:"exp"`
}

// Verify checks the identity token's signature, expiry and subject
// binding, and merges the advisory full-name payload into the claims.
// Every failure mode collapses into domainauth.ErrVerificationFailed;
// the specific reason is logged, never returned, so callers cannot be
// probed for which verification step rejected a forged token.
func (v *Verifier) Verify(ctx context.Context, in ports.Assertion) (domainauth.Claims, error) {
	payload, err := v.verifySignature(ctx, in.Credential)
	if err != nil {
		if errors.Is(err, domainauth.ErrProviderUnreachable) {
			return domainauth.Claims{}, err
		}
		return v.fail(err)
	}

	var claims tokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return v.fail(fmt.Errorf("decode payload claims: %w", err))
	}
	if claims.Subject == "" || claims.Email == "" {
		return v.fail(errors.New("token missing sub or email claim"))
	}
	if claims.Expiry != 0 && v.now().After(time.Unix(claims.Expiry, 0)) {
		return v.fail(errors.New("token is expired"))
	}
	if in.SubjectHint != claims.Subject {
		return v.fail(errors.New("subject hint does not match token sub"))
	}

	out := domainauth.Claims{
		Provider:  domainauth.ProviderApple,
		SubjectID: claims.Subject,
		Email:     claims.Email,
	}
	if in.FullName != nil {
		// Advisory data from outside the signed payload; safe to use
		// for display names, never for identity decisions.
		out.FirstName = in.FullName.GivenName
		out.LastName = in.FullName.FamilyName
	}
	return out, nil
}

// verifySignature runs the ordered multi-key trial and returns the
// verified payload bytes.
func (v *Verifier) verifySignature(ctx context.Context, credential string) ([]byte, error) {
	alg, err := declaredAlgorithm(credential)
	if err != nil {
		return nil, err
	}
	if !allowedAlgorithms[alg] {
		return nil, fmt.Errorf("disallowed signing algorithm %q", alg)
	}

	jws, err := jose.ParseSigned(credential, []jose.SignatureAlgorithm{alg})
	if err != nil {
		return nil, fmt.Errorf("parse signed token: %w", err)
	}

	keys, err := v.keys.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domainauth.ErrProviderUnreachable, err)
	}

	if payload, ok := trialVerify(jws, keys); ok {
		return payload, nil
	}

	// No cached key verified the token. The set may have rotated since
	// it was cached; refresh once and repeat the trial.
	keys, err = v.keys.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: refresh after full key miss: %w", domainauth.ErrProviderUnreachable, err)
	}
	if payload, ok := trialVerify(jws, keys); ok {
		return payload, nil
	}
	return nil, errors.New("no published key verified the signature")
}

// trialVerify tries each key in order and stops at the first success.
// The provider does not say which key signed the token, so this ordered
// trial is load-bearing, not an optimization.
func trialVerify(jws *jose.JSONWebSignature, keys []jose.JSONWebKey) ([]byte, bool) {
	for i := range keys {
		if payload, err := jws.Verify(keys[i]); err == nil {
			return payload, true
		}
	}
	return nil, false
}

// declaredAlgorithm reads the signing algorithm from the unverified
// header segment.
func declaredAlgorithm(credential string) (jose.SignatureAlgorithm, error) {
	parts := strings.Split(credential, ".")
	if len(parts) != 3 {
		return "", errors.New("token is not a three-segment compact JWS")
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode header segment: %w", err)
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return "", fmt.Errorf("decode header JSON: %w", err)
	}
	if header.Alg == "" {
		return "", errors.New("header missing alg")
	}
	return jose.SignatureAlgorithm(header.Alg), nil
}

// fail logs the real reason and returns the uniform verification error.
func (v *Verifier) fail(reason error) (domainauth.Claims, error) {
	v.logger.Warn("apple token rejected", "provider", domainauth.ProviderApple, "reason", reason)
	return domainauth.Claims{}, domainauth.ErrVerificationFailed
}
