package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/argoapp/argo-auth/internal/data"
	domainauth "github.com/argoapp/argo-auth/internal/domain/auth"
	"github.com/argoapp/argo-auth/internal/ports"
)

// ErrEmailTaken is returned when an email is already bound to an
// account under a different identity provider. The accounts are never
// silently merged: an attacker controlling the email at provider B must
// not be able to take over an account created through provider A.
var ErrEmailTaken = errors.New("email has already been taken")

// maxCreateAttempts bounds the create/retry loop under concurrent
// registrations racing on the uniqueness constraints.
const maxCreateAttempts = 3

// placeholderPasswordLength matches the random throwaway password given
// to OAuth-only accounts. It is never usable for login; it only
// satisfies the password column for accounts that authenticate
// federatively.
const placeholderPasswordLength = 20

// RegistrationServiceOptions groups dependencies for RegistrationService.
type RegistrationServiceOptions struct {
	Users         ports.UserRepository
	Confirmations ports.ConfirmationSender // optional; nil disables sending
	Logger        *slog.Logger
}

// RegistrationService maps verified identity claims to local user
// records and handles direct password sign-up.
type RegistrationService struct {
	users         ports.UserRepository
	confirmations ports.ConfirmationSender
	logger        *slog.Logger
}

// NewRegistrationService constructs a new RegistrationService.
func NewRegistrationService(opts RegistrationServiceOptions) *RegistrationService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RegistrationService{
		users:         opts.Users,
		confirmations: opts.Confirmations,
		logger:        logger,
	}
}

// Reconcile maps a verified claim set to a local user: find-or-create
// by (provider, subject id), rejecting emails already owned by another
// provider's account. Reconciling an existing user is read-only: a
// same-provider re-authentication never mutates stored name, avatar or
// password. New users are created pre-confirmed (the provider already
// verified the identity) with a random placeholder password.
//
// Storage races on the uniqueness constraints are retried with a
// recomputed username, bounded by maxCreateAttempts.
func (s *RegistrationService) Reconcile(ctx context.Context, claims domainauth.Claims) (*domainauth.User, error) {
	if claims.Provider == "" || claims.SubjectID == "" {
		return nil, errors.New("claims must carry provider and subject id")
	}

	// Emails are stored lowercased; a case variant from a provider must
	// still hit the email guard and the uniqueness index.
	claims.Email = strings.TrimSpace(strings.ToLower(claims.Email))

	var lastErr error
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		user, err := s.reconcileOnce(ctx, claims)
		if err == nil {
			return user, nil
		}
		if !isUniquenessRace(err) {
			return nil, err
		}
		lastErr = err
		s.logger.Info("reconcile retry after uniqueness race",
			"provider", claims.Provider, "attempt", attempt+1, "cause", lastErr)
	}
	return nil, fmt.Errorf("reconcile: attempts exhausted: %w", lastErr)
}

func (s *RegistrationService) reconcileOnce(ctx context.Context, claims domainauth.Claims) (*domainauth.User, error) {
	// An email owned by a different provider's account blocks
	// reconciliation outright.
	if claims.Email != "" {
		existing, err := s.users.FindByEmail(ctx, claims.Email)
		switch {
		case err == nil:
			if !existing.HasProvider(claims.Provider) {
				return nil, ErrEmailTaken
			}
		case !errors.Is(err, data.ErrUserNotFound):
			return nil, fmt.Errorf("find user by email: %w", err)
		}
	}

	user, err := s.users.FindByProviderSubject(ctx, claims.Provider, claims.SubjectID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, data.ErrUserNotFound) {
		return nil, fmt.Errorf("find user by provider subject: %w", err)
	}

	return s.createFromClaims(ctx, claims)
}

func (s *RegistrationService) createFromClaims(ctx context.Context, claims domainauth.Claims) (*domainauth.User, error) {
	username, err := s.nextFreeUsername(ctx, usernameBase(claims.FirstName, claims.LastName, claims.Email))
	if err != nil {
		return nil, err
	}

	hash, err := placeholderPasswordHash()
	if err != nil {
		return nil, err
	}

	provider := claims.Provider
	in := ports.CreateUserInput{
		Email:        nilIfEmpty(claims.Email),
		Username:     username,
		FirstName:    claims.FirstName,
		LastName:     claims.LastName,
		Provider:     &provider,
		ProviderUID:  &claims.SubjectID,
		AvatarURL:    nilIfEmpty(claims.AvatarURL),
		Confirmed:    true, // identity already verified by the provider
		PasswordHash: hash,
	}

	// A uniqueness violation here is a concurrent registration racing
	// us; the caller's retry loop re-runs the email guard and the
	// subject lookup, which settles who won.
	user, err := s.users.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// isUniquenessRace reports whether err is a storage-level uniqueness
// violation worth retrying.
func isUniquenessRace(err error) bool {
	return errors.Is(err, data.ErrUsernameExists) ||
		errors.Is(err, data.ErrProviderSubjectExists) ||
		errors.Is(err, data.ErrEmailExists)
}

// placeholderPasswordHash generates a random throwaway password and
// returns its bcrypt hash.
func placeholderPasswordHash() (string, error) {
	pw, err := generateOpaque(placeholderPasswordLength)
	if err != nil {
		return "", fmt.Errorf("generate placeholder password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash placeholder password: %w", err)
	}
	return string(hash), nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
