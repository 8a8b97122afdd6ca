package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/argoapp/argo-auth/internal/data"
	domainauth "github.com/argoapp/argo-auth/internal/domain/auth"
	"github.com/argoapp/argo-auth/internal/ports"
)

// minPasswordLength is the minimum accepted sign-up password length.
const minPasswordLength = 8

// Sign-up validation errors.
var (
	ErrInvalidEmail     = errors.New("a valid email is required")
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	ErrUsernameTaken    = errors.New("username has already been taken")
)

// SignUpInput carries one direct (password) registration.
type SignUpInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string

	// Username is optional; when empty one is derived from the names.
	Username string

	// Admin accounts bypass email confirmation.
	Admin bool

	// SendConfirmationEmail controls whether the confirmation
	// notification goes out for an unconfirmed account. Explicit so
	// callers seeding users or running imports can suppress it.
	SendConfirmationEmail bool
}

// SignUp registers a local password account. The user starts
// unconfirmed unless it is an admin account; the confirmation
// notification is sent only when requested and a sender is configured.
func (s *RegistrationService) SignUp(ctx context.Context, in SignUpInput) (*domainauth.User, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if len(in.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.createLocalUser(ctx, in, email, string(hash))
	if err != nil {
		return nil, err
	}

	if !user.Confirmed && in.SendConfirmationEmail && s.confirmations != nil {
		if sendErr := s.confirmations.SendConfirmation(ctx, *user); sendErr != nil {
			// The account exists; a lost notification is recoverable.
			s.logger.Warn("send confirmation failed", "user_id", user.ID, "error", sendErr)
		}
	}
	return user, nil
}

func (s *RegistrationService) createLocalUser(
	ctx context.Context,
	in SignUpInput,
	email, passwordHash string,
) (*domainauth.User, error) {
	explicitUsername := strings.TrimSpace(in.Username)

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		username := explicitUsername
		if username == "" {
			derived, err := s.nextFreeUsername(ctx, usernameBase(in.FirstName, in.LastName, email))
			if err != nil {
				return nil, err
			}
			username = derived
		}

		user, err := s.users.Create(ctx, ports.CreateUserInput{
			Email:        &email,
			Username:     username,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Confirmed:    in.Admin,
			Admin:        in.Admin,
			PasswordHash: passwordHash,
		})
		switch {
		case err == nil:
			return user, nil
		case errors.Is(err, data.ErrEmailExists):
			return nil, ErrEmailTaken
		case errors.Is(err, data.ErrUsernameExists):
			if explicitUsername != "" {
				// A chosen username is the caller's to fix; only
				// derived ones are recomputed.
				return nil, ErrUsernameTaken
			}
		default:
			return nil, fmt.Errorf("create user: %w", err)
		}
	}
	return nil, errors.New("sign up: username attempts exhausted")
}
