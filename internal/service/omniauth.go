package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	domainauth "github.com/argoapp/argo-auth/internal/domain/auth"
	"github.com/argoapp/argo-auth/internal/ports"
)

// Orchestrator-level error taxonomy. Callers (the HTTP layer) map these
// to status codes; anything credential-shaped collapses into
// ErrBadCredentials so the response never reveals which verification
// step rejected the attempt.
var (
	// ErrBadCredentials covers verification failures, identity
	// mismatches and provider transport faults.
	ErrBadCredentials = errors.New("bad credentials")

	// ErrUnsupportedProvider means the provider name is outside the
	// supported set. Distinct from ErrBadCredentials: the caller should
	// learn the provider was not recognized, not that credentials were
	// wrong.
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

// OmniAuthServiceOptions groups dependencies for OmniAuthService.
type OmniAuthServiceOptions struct {
	Verifiers    map[domainauth.Provider]ports.AssertionVerifier
	Registration *RegistrationService
	Tokens       *TokenService
	Logger       *slog.Logger
}

// OmniAuthService sequences one federated authentication attempt:
// verify the provider assertion, reconcile the claims against the user
// store, issue a bearer token. Attempts are independent and stateless;
// any number may run concurrently.
type OmniAuthService struct {
	verifiers    map[domainauth.Provider]ports.AssertionVerifier
	registration *RegistrationService
	tokens       *TokenService
	logger       *slog.Logger
}

// NewOmniAuthService constructs a new OmniAuthService.
func NewOmniAuthService(opts OmniAuthServiceOptions) *OmniAuthService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OmniAuthService{
		verifiers:    opts.Verifiers,
		registration: opts.Registration,
		tokens:       opts.Tokens,
		logger:       logger,
	}
}

// AuthenticateInput carries one raw federated login attempt.
type AuthenticateInput struct {
	Provider    string
	Credential  string
	SubjectHint string
	EmailHint   string
	FullName    *domainauth.FullName // Apple only; advisory
}

// AuthenticateResult is the success payload of an authentication attempt.
type AuthenticateResult struct {
	User  *domainauth.User
	Token domainauth.Token
}

// Authenticate runs verify → reconcile → issue for one provider
// credential. An unknown provider name fails before any network call is
// made. ErrEmailTaken passes through unchanged; every verification
// failure surfaces as ErrBadCredentials with the cause logged
// internally only.
func (s *OmniAuthService) Authenticate(ctx context.Context, in AuthenticateInput) (*AuthenticateResult, error) {
	provider, ok := domainauth.ParseProvider(in.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, in.Provider)
	}
	verifier, ok := s.verifiers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, in.Provider)
	}

	claims, err := verifier.Verify(ctx, ports.Assertion{
		Credential:  in.Credential,
		SubjectHint: in.SubjectHint,
		EmailHint:   in.EmailHint,
		FullName:    in.FullName,
	})
	if err != nil {
		if isCredentialFailure(err) {
			s.logger.Warn("authentication rejected", "provider", provider, "cause", err)
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("verify assertion: %w", err)
	}

	user, err := s.registration.Reconcile(ctx, claims)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("reconcile account: %w", err)
	}

	token, err := s.tokens.Issue(ctx, *user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &AuthenticateResult{User: user, Token: token}, nil
}

// isCredentialFailure reports whether err belongs to the verification
// error taxonomy that collapses into ErrBadCredentials.
func isCredentialFailure(err error) bool {
	return errors.Is(err, domainauth.ErrVerificationFailed) ||
		errors.Is(err, domainauth.ErrIdentityMismatch) ||
		errors.Is(err, domainauth.ErrProviderUnreachable)
}
