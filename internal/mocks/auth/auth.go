package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/argoapp/argo-auth/internal/data"
	domainauth "github.com/argoapp/argo-auth/internal/domain/auth"
	"github.com/argoapp/argo-auth/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AssertionVerifier  = (*StaticVerifier)(nil)
	_ ports.UserRepository     = (*MemoryUserRepo)(nil)
	_ ports.TokenStore         = (*MemoryTokenStore)(nil)
	_ ports.ConfirmationSender = (*RecordingConfirmationSender)(nil)
)

// StaticVerifier returns fixed claims or a fixed error, or defers to
// VerifyFunc when set.
type StaticVerifier struct {
	Claims     domainauth.Claims
	Err        error
	VerifyFunc func(ctx context.Context, in ports.Assertion) (domainauth.Claims, error)

	mu    sync.Mutex
	calls []ports.Assertion
}

func (v *StaticVerifier) Verify(ctx context.Context, in ports.Assertion) (domainauth.Claims, error) {
	v.mu.Lock()
	v.calls = append(v.calls, in)
	v.mu.Unlock()

	if v.VerifyFunc != nil {
		return v.VerifyFunc(ctx, in)
	}
	if v.Err != nil {
		return domainauth.Claims{}, v.Err
	}
	return v.Claims, nil
}

// Calls returns the assertions passed to Verify so far.
func (v *StaticVerifier) Calls() []ports.Assertion {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]ports.Assertion(nil), v.calls...)
}

// MemoryUserRepo is a thread-safe in-memory user store enforcing the
// same uniqueness invariants as the database schema, including the
// sentinel errors, which makes it usable for concurrent registration
// tests.
type MemoryUserRepo struct {
	mu    sync.Mutex
	users []domainauth.User

	// BeforeCreate, when set, runs inside Create after uniqueness
	// checks would normally have been computed by the caller but before
	// the row is inserted. Tests use it to widen race windows.
	BeforeCreate func()
}

// NewMemoryUserRepo creates an empty in-memory user repository.
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{}
}

func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*domainauth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.users {
		if r.users[i].Email != nil && strings.EqualFold(*r.users[i].Email, email) {
			u := r.users[i]
			return &u, nil
		}
	}
	return nil, data.ErrUserNotFound
}

func (r *MemoryUserRepo) FindByProviderSubject(
	_ context.Context,
	provider domainauth.Provider,
	uid string,
) (*domainauth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.users {
		u := r.users[i]
		if u.Provider != nil && *u.Provider == provider && u.ProviderUID != nil && *u.ProviderUID == uid {
			return &u, nil
		}
	}
	return nil, data.ErrUserNotFound
}

func (r *MemoryUserRepo) Create(_ context.Context, in ports.CreateUserInput) (*domainauth.User, error) {
	if r.BeforeCreate != nil {
		r.BeforeCreate()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.users {
		u := r.users[i]
		if in.Email != nil && u.Email != nil && strings.EqualFold(*u.Email, *in.Email) {
			return nil, data.ErrEmailExists
		}
		if u.Username == in.Username {
			return nil, data.ErrUsernameExists
		}
		if in.Provider != nil && u.Provider != nil && *u.Provider == *in.Provider &&
			in.ProviderUID != nil && u.ProviderUID != nil && *u.ProviderUID == *in.ProviderUID {
			return nil, data.ErrProviderSubjectExists
		}
	}

	user := domainauth.User{
		ID:          uuid.NewString(),
		Email:       in.Email,
		Username:    in.Username,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Provider:    in.Provider,
		ProviderUID: in.ProviderUID,
		AvatarURL:   in.AvatarURL,
		Confirmed:   in.Confirmed,
		Admin:       in.Admin,
	}
	if in.PasswordHash != "" {
		hash := in.PasswordHash
		user.PasswordHash = &hash
	}
	r.users = append(r.users, user)
	return &user, nil
}

func (r *MemoryUserRepo) ListUsernamesWithPrefix(_ context.Context, prefix string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for i := range r.users {
		if strings.HasPrefix(r.users[i].Username, prefix) {
			out = append(out, r.users[i].Username)
		}
	}
	sort.Strings(out)
	return out, nil
}

// All returns a copy of every stored user.
func (r *MemoryUserRepo) All() []domainauth.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domainauth.User(nil), r.users...)
}

// MemoryTokenStore is a thread-safe in-memory token store.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]domainauth.Token
}

// NewMemoryTokenStore creates an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]domainauth.Token)}
}

func (s *MemoryTokenStore) Save(_ context.Context, tok domainauth.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tok.Value] = tok
	return nil
}

func (s *MemoryTokenStore) Get(_ context.Context, value string) (domainauth.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[value]
	if !ok || time.Now().After(tok.ExpiresAt) {
		return domainauth.Token{}, ports.ErrTokenNotFound
	}
	return tok, nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, value)
	return nil
}

// Len reports the number of stored tokens.
func (s *MemoryTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// RecordingConfirmationSender records confirmation sends.
type RecordingConfirmationSender struct {
	mu   sync.Mutex
	sent []domainauth.User

	Err error
}

func (c *RecordingConfirmationSender) SendConfirmation(_ context.Context, user domainauth.User) error {
	if c.Err != nil {
		return c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, user)
	return nil
}

// Sent returns the users a confirmation was sent for.
func (c *RecordingConfirmationSender) Sent() []domainauth.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domainauth.User(nil), c.sent...)
}
