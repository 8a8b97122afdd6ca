package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/argoapp/argo-auth/internal/domain/auth"
	"github.com/argoapp/argo-auth/internal/ports"
)

// tokenLength is the number of URL-safe characters in an issued bearer
// token value.
const tokenLength = 32

// DefaultTokenTTL is the issued token lifetime when none is configured.
const DefaultTokenTTL = 24 * time.Hour

// TokenServiceOptions groups dependencies for TokenService.
type TokenServiceOptions struct {
	Store  ports.TokenStore
	TTL    time.Duration // Optional, defaults to DefaultTokenTTL
	Logger *slog.Logger
	Now    func() time.Time // Optional, defaults to time.Now
}

// TokenService mints opaque bearer tokens bound to a resolved user.
// Issuance is non-revoking: earlier tokens for the same user stay valid
// until their own expiry, which is what keeps multi-device logins alive.
type TokenService struct {
	store  ports.TokenStore
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewTokenService constructs a new TokenService.
func NewTokenService(opts TokenServiceOptions) *TokenService {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &TokenService{store: opts.Store, ttl: ttl, logger: logger, now: now}
}

// Issue mints a new opaque token for the user and persists it. Token
// values are unpredictable (crypto/rand); no further uniqueness
// guarantee is needed for a 192-bit value.
func (s *TokenService) Issue(ctx context.Context, user domainauth.User) (domainauth.Token, error) {
	if user.ID == "" {
		return domainauth.Token{}, errors.New("user must be persisted before token issuance")
	}

	value, err := generateOpaque(tokenLength)
	if err != nil {
		return domainauth.Token{}, fmt.Errorf("generate token value: %w", err)
	}

	issuedAt := s.now()
	tok := domainauth.Token{
		Value:     value,
		UserID:    user.ID,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(s.ttl),
	}
	if err := s.store.Save(ctx, tok); err != nil {
		return domainauth.Token{}, fmt.Errorf("save token: %w", err)
	}
	return tok, nil
}

// Resolve looks up the user id behind a presented bearer token.
func (s *TokenService) Resolve(ctx context.Context, value string) (domainauth.Token, error) {
	tok, err := s.store.Get(ctx, value)
	if err != nil {
		return domainauth.Token{}, fmt.Errorf("get token: %w", err)
	}
	return tok, nil
}

// Revoke deletes a token, e.g. on logout.
func (s *TokenService) Revoke(ctx context.Context, value string) error {
	if value == "" {
		return nil
	}
	if err := s.store.Delete(ctx, value); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// generateOpaque generates a cryptographically secure URL-safe random
// string of exactly n characters.
func generateOpaque(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	nBytes := (n*3 + 3) / 4
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < n {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:n], nil
}
