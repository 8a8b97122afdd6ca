package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrUserNotFound is returned when a user lookup matches nothing.
	ErrUserNotFound = errors.New("user not found")

	// Uniqueness sentinels, one per constraint. The reconciler treats
	// these as races to resolve, not hard failures.
	ErrEmailExists           = errors.New("email already exists")
	ErrUsernameExists        = errors.New("username already exists")
	ErrProviderSubjectExists = errors.New("provider subject already exists")
)
