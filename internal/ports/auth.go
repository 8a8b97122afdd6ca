package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters and internal/data; orchestration
// in internal/service.

import (
	"context"
	"errors"

	domainauth "github.com/argoapp/argo-auth/internal/domain/auth"
)

// ErrTokenNotFound is returned by TokenStore.Get when no live token
// matches the presented value.
var ErrTokenNotFound = errors.New("token not found")

// Assertion carries one raw provider credential plus the caller-supplied
// hints it must be checked against.
type Assertion struct {
	// Credential is the opaque provider credential: an access token for
	// Google/Facebook, a compact signed identity token for Apple.
	Credential string

	// SubjectHint is the provider user id the caller claims this
	// credential belongs to. Verification fails when the provider
	// disagrees.
	SubjectHint string

	// EmailHint is the email the caller claims; checked where the
	// provider returns one (Google).
	EmailHint string

	// FullName is Apple's out-of-band name payload. Unverified,
	// advisory only. Nil for other providers.
	FullName *domainauth.FullName
}

// AssertionVerifier validates a raw identity assertion for one provider
// and produces normalized claims. Implementations return
// domainauth.ErrVerificationFailed, ErrIdentityMismatch or
// ErrProviderUnreachable (possibly wrapped).
type AssertionVerifier interface {
	Verify(ctx context.Context, in Assertion) (domainauth.Claims, error)
}

// CreateUserInput groups the fields persisted for a new user record.
type CreateUserInput struct {
	Email        *string
	Username     string
	FirstName    string
	LastName     string
	Provider     *domainauth.Provider
	ProviderUID  *string
	AvatarURL    *string
	Confirmed    bool
	Admin        bool
	PasswordHash string
}

// UserRepository persists and retrieves user records. Lookups that match
// nothing return data.ErrUserNotFound; Create surfaces uniqueness
// violations as data.ErrEmailExists, ErrUsernameExists or
// ErrProviderSubjectExists so the reconciler can retry.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*domainauth.User, error)
	FindByProviderSubject(ctx context.Context, provider domainauth.Provider, uid string) (*domainauth.User, error)
	Create(ctx context.Context, in CreateUserInput) (*domainauth.User, error)
	ListUsernamesWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// TokenStore persists issued bearer tokens.
type TokenStore interface {
	Save(ctx context.Context, tok domainauth.Token) error
	Get(ctx context.Context, value string) (domainauth.Token, error)
	Delete(ctx context.Context, value string) error
}

// ConfirmationSender delivers the email-confirmation notification for a
// freshly created, unconfirmed user. The registration service decides
// whether to invoke it; stores never send mail on their own.
type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, user domainauth.User) error
}
