package auth

import "errors"

// Verification error taxonomy. Verifiers collapse every cryptographic or
// protocol-level failure into ErrVerificationFailed so callers cannot be
// used as an oracle for probing token validity; the specific reason is
// logged internally only.
var (
	// ErrVerificationFailed means the credential did not check out:
	// malformed token, no key verified the signature, expired token, or
	// missing required claims. Never retried automatically.
	ErrVerificationFailed = errors.New("identity assertion verification failed")

	// ErrIdentityMismatch means the provider's response disagreed with
	// the caller-supplied subject or email hints.
	ErrIdentityMismatch = errors.New("identity does not match supplied hints")

	// ErrProviderUnreachable is a transport fault talking to the
	// provider. Safe to retry.
	ErrProviderUnreachable = errors.New("identity provider unreachable")
)
