package auth

import (
	"strings"
	"time"
)

// User is the persisted local identity record. Email, Provider,
// ProviderUID and PasswordHash are nullable: local password accounts
// carry no provider pair, OAuth-only accounts carry no usable password,
// and some Facebook identities supply no email. Username is unique and
// non-empty once assigned. The (provider, provider_uid) pair is unique
// whenever both are present.
type User struct {
	ID           string     `json:"id"                      db:"id"`
	Email        *string    `json:"email,omitempty"         db:"email"`
	Username     string     `json:"username"                db:"username"`
	FirstName    string     `json:"first_name"              db:"first_name"`
	LastName     string     `json:"last_name"               db:"last_name"`
	Provider     *Provider  `json:"provider,omitempty"      db:"provider"`
	ProviderUID  *string    `json:"provider_uid,omitempty"  db:"provider_uid"`
	AvatarURL    *string    `json:"avatar_url,omitempty"    db:"avatar_url"`
	Confirmed    bool       `json:"confirmed"               db:"confirmed"`
	Admin        bool       `json:"admin"                   db:"admin"`
	PasswordHash *string    `json:"-"                       db:"password_hash"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"  db:"confirmed_at"`
	CreatedAt    time.Time  `json:"created_at"              db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"              db:"updated_at"`
}

// FullName joins first and last name with a single space.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Federated reports whether the user was created through an identity
// provider rather than direct sign-up.
func (u User) Federated() bool {
	return u.Provider != nil && u.ProviderUID != nil
}

// HasProvider reports whether the user's provider matches p.
// A user without a provider matches nothing.
func (u User) HasProvider(p Provider) bool {
	return u.Provider != nil && *u.Provider == p
}
