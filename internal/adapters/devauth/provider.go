package devauth

// Package devauth provides a config-driven assertion verifier for local
// development. It accepts any credential and returns a fixed identity,
// so it must never be wired up outside dev mode.

import (
	"context"
	"errors"

	domainauth "github.com/argoapp/argo-auth/internal/domain/auth"
	"github.com/argoapp/argo-auth/internal/ports"
)

// Config controls the dev verifier's fixed identity.
type Config struct {
	Provider  domainauth.Provider
	SubjectID string
	Email     string
	FirstName string
	LastName  string
}

// Verifier implements ports.AssertionVerifier for local development.
// Verify ignores the credential entirely and returns the configured
// claims, echoing the subject hint check so orchestrator behavior stays
// realistic.
type Verifier struct {
	claims domainauth.Claims
}

var _ ports.AssertionVerifier = (*Verifier)(nil)

// NewVerifier constructs a dev verifier from Config.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.SubjectID == "" {
		return nil, errors.New("dev auth: SubjectID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	provider := cfg.Provider
	if provider == "" {
		provider = domainauth.ProviderGoogle
	}
	return &Verifier{
		claims: domainauth.Claims{
			Provider:  provider,
			SubjectID: cfg.SubjectID,
			Email:     cfg.Email,
			FirstName: cfg.FirstName,
			LastName:  cfg.LastName,
		},
	}, nil
}

// Verify returns the configured claims. The subject hint is still
// enforced so dev-mode callers exercise the same mismatch path as
// production.
func (v *Verifier) Verify(_ context.Context, in ports.Assertion) (domainauth.Claims, error) {
	if in.SubjectHint != "" && in.SubjectHint != v.claims.SubjectID {
		return domainauth.Claims{}, domainauth.ErrIdentityMismatch
	}
	return v.claims, nil
}
