package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// usernameBase derives the identifier-safe base for a username:
// lower-case first and last name joined with an underscore, anything
// outside [a-z0-9] collapsed into single underscores. Empty names fall
// back to the email local part, then to "user", so the non-empty
// username invariant always holds.
func usernameBase(firstName, lastName, email string) string {
	base := slugify(strings.TrimSpace(firstName + " " + lastName))
	if base != "" {
		return base
	}
	if at := strings.IndexByte(email, '@'); at > 0 {
		if base = slugify(email[:at]); base != "" {
			return base
		}
	}
	return "user"
}

// slugify lower-cases s and replaces runs of non-alphanumeric
// characters with single underscores, trimming them from both ends.
func slugify(s string) string {
	var b strings.Builder
	lastUnderscore := true // suppress a leading underscore
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// nextFreeUsername resolves collisions on a derived base by appending
// the smallest unused numeric suffix starting at 2: john_smith,
// john_smith_2, john_smith_3, ... Concurrent registrations may still
// collide between the scan and the insert; the unique index catches
// that and the caller retries with a fresh scan.
func (s *RegistrationService) nextFreeUsername(ctx context.Context, base string) (string, error) {
	existing, err := s.users.ListUsernamesWithPrefix(ctx, base)
	if err != nil {
		return "", fmt.Errorf("list usernames with prefix %q: %w", base, err)
	}

	taken := make(map[string]struct{}, len(existing))
	for _, u := range existing {
		taken[u] = struct{}{}
	}

	if _, ok := taken[base]; !ok {
		return base, nil
	}
	for i := 2; i <= len(taken)+2; i++ {
		candidate := base + "_" + strconv.Itoa(i)
		if _, ok := taken[candidate]; !ok {
			return candidate, nil
		}
	}
	// Unreachable: len(taken)+1 suffixed candidates cannot all collide
	// with len(taken) usernames.
	return "", fmt.Errorf("no free username for base %q", base)
}
