package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/argoapp/argo-auth/internal/data"
	domainauth "github.com/argoapp/argo-auth/internal/domain/auth"
	"github.com/argoapp/argo-auth/internal/mocks"
	mockauth "github.com/argoapp/argo-auth/internal/mocks/auth"
	"github.com/argoapp/argo-auth/internal/ports"
)

func janeClaims() domainauth.Claims {
	return domainauth.Claims{
		Provider:  domainauth.ProviderApple,
		SubjectID: "001234.abcdef",
		Email:     "jane@example.com",
		FirstName: "Jane",
		LastName:  "Doe",
	}
}

func TestReconcile_CreatesFederatedUser(t *testing.T) {
	t.Parallel()

	repo := mockauth.NewMemoryUserRepo()
	svc := NewRegistrationService(RegistrationServiceOptions{Users: repo})

	user, err := svc.Reconcile(context.Background(), janeClaims())
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "jane_doe", user.Username)
	require.NotNil(t, user.Email)
	assert.Equal(t, "jane@example.com", *user.Email)
	assert.True(t, user.Confirmed, "provider-verified identities are pre-confirmed")
	assert.True(t, user.Federated())
	require.NotNil(t, user.PasswordHash)
	assert.NotEmpty(t, *user.PasswordHash)
}

func TestReconcile_SecondLoginFindsSameUser(t *testing.T) {
	t.Parallel()

	repo := mockauth.NewMemoryUserRepo()
	svc := NewRegistrationService(RegistrationServiceOptions{Users: repo})
	ctx := context.Background()

	first, err := svc.Reconcile(ctx, janeClaims())
	require.NoError(t, err)

	second, err := svc.Reconcile(ctx, janeClaims())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.All(), 1)
}

func TestReconcile_ExistingUserIsNotMutated(t *testing.T) {
	t.Parallel()

	repo := mockauth.NewMemoryUserRepo()
	svc := NewRegistrationService(RegistrationServiceOptions{Users: repo})
	ctx := context.Background()

	first, err := svc.Reconcile(ctx, janeClaims())
	require.NoError(t, err)

	// Provider now reports a different display name; the stored record
	// keeps what it had.
	changed := janeClaims()
	changed.FirstName = "Janet"
	changed.AvatarURL = "https://example.com/new.png"

	second, err := svc.Reconcile(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, first.FirstName, second.FirstName)
	assert.Nil(t, second.AvatarURL)
}

func TestReconcile_EmailOwnedByOtherProvider(t *testing.T) {
	t.Parallel()

	repo := mockauth.NewMemoryUserRepo()
	svc := NewRegistrationService(RegistrationServiceOptions{Users: repo})
	ctx := context.Background()

	google := janeClaims()
	google.Provider = domainauth.ProviderGoogle
	google.SubjectID = "google-sub-1"
	_, err := svc.Reconcile(ctx, google)
	require.NoError(t, err)

	_, err = svc.Reconcile(ctx, janeClaims())
	require.ErrorIs(t, err, ErrEmailTaken)
	assert.Len(t, repo.All(), 1)
}

func TestReconcile_EmailOwnedByLocalAccount(t *testing.T) {
	t.Parallel()

	repo := mockauth.NewMemoryUserRepo()
	svc := NewRegistrationService(RegistrationServiceOptions{Users: repo})
	ctx := context.Background()

	_, err := svc.SignUp(ctx, SignUpInput{
		Email:     "jane@example.com",
		Password:  "hunter2hunter2",
		FirstName: "Jane",
		LastName:  "Doe",
	})
	require.NoError(t, err)

	_, err = svc.Reconcile(ctx, janeClaims())
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestReconcile_EmailComparisonIgnoresCase(t *testing.T) {
	t.Parallel()

	repo := mockauth.NewMemoryUserRepo()
	svc := NewRegistrationService(RegistrationServiceOptions{Users: repo})
	ctx := context.Background()

	_, err := svc.SignUp(ctx, SignUpInput{
		Email:     "jane@example.com",
		Password:  "hunter2hunter2",
		FirstName: "Jane",
		LastName:  "Doe",
	})
	require.NoError(t, err)

	// Apple re-reports the address with different casing; it is still the
	// same mailbox and must hit the email guard.
	shouty := janeClaims()
	shouty.Email = "Jane@Example.com"

	_, err = svc.Reconcile(ctx, shouty)
	require.ErrorIs(t, err, ErrEmailTaken)
	assert.Len(t, repo.All(), 1)
}

func TestReconcile_StoresEmailLowercased(t *testing.T) {
	t.Parallel()

	repo := mockauth.NewMemoryUserRepo()
	svc := NewRegistrationService(RegistrationServiceOptions{Users: repo})

	claims := janeClaims()
	claims.Email = "Jane@Example.com"

	user, err := svc.Reconcile(context.Background(), claims)
	require.NoError(t, err)
	require.NotNil(t, user.Email)
	assert.Equal(t, "jane@example.com", *user.Email)
}

func TestReconcile_NoEmailClaims(t *testing.T) {
	t.Parallel()

	repo := mockauth.NewMemoryUserRepo()
	svc := NewRegistrationService(RegistrationServiceOptions{Users: repo})

	claims := domainauth.Claims{
		Provider:  domainauth.ProviderFacebook,
		SubjectID: "fb-100",
		FirstName: "Phone",
		LastName:  "User",
	}
	user, err := svc.Reconcile(context.Background(), claims)
	require.NoError(t, err)
	assert.Nil(t, user.Email)
	assert.Equal(t, "phone_user", user.Username)
}

func TestReconcile_MissingProviderOrSubject(t *testing.T) {
	t.Parallel()

	svc := NewRegistrationService(RegistrationServiceOptions{Users: mockauth.NewMemoryUserRepo()})

	_, err := svc.Reconcile(context.Background(), domainauth.Claims{Provider: domainauth.ProviderApple})
	require.Error(t, err)

	_, err = svc.Reconcile(context.Background(), domainauth.Claims{SubjectID: "sub"})
	require.Error(t, err)
}

func TestReconcile_ConcurrentSameIdentity(t *testing.T) {
	t.Parallel()

	repo := mockauth.NewMemoryUserRepo()
	svc := NewRegistrationService(RegistrationServiceOptions{Users: repo})
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	users := make([]*domainauth.User, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			users[i], errs[i] = svc.Reconcile(ctx, janeClaims())
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i], "worker %d", i)
	}
	assert.Len(t, repo.All(), 1, "one identity must map to one row")
	for i := 1; i < workers; i++ {
		assert.Equal(t, users[0].ID, users[i].ID)
	}
}

func TestReconcile_RetriesUsernameRace(t *testing.T) {
	t.Parallel()

	repo := mockauth.NewMemoryUserRepo()
	svc := NewRegistrationService(RegistrationServiceOptions{Users: repo})
	ctx := context.Background()

	// Steal the derived username between the prefix scan and the insert,
	// exactly once. The guard also stops the stealing insert from
	// re-triggering itself.
	stole := false
	repo.BeforeCreate = func() {
		if stole {
			return
		}
		stole = true
		_, err := repo.Create(ctx, ports.CreateUserInput{
			Username: "jane_doe",
			Email:    stringPtr("squatter@example.com"),
		})
		require.NoError(t, err)
	}

	user, err := svc.Reconcile(ctx, janeClaims())
	require.NoError(t, err)
	assert.Equal(t, "jane_doe_2", user.Username)
}

func TestReconcile_AttemptsExhausted(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	repo := mocks.NewMockUserRepository(ctrl)
	svc := NewRegistrationService(RegistrationServiceOptions{Users: repo})
	ctx := context.Background()

	repo.EXPECT().FindByEmail(gomock.Any(), "jane@example.com").
		Return(nil, data.ErrUserNotFound).Times(maxCreateAttempts)
	repo.EXPECT().FindByProviderSubject(gomock.Any(), domainauth.ProviderApple, "001234.abcdef").
		Return(nil, data.ErrUserNotFound).Times(maxCreateAttempts)
	repo.EXPECT().ListUsernamesWithPrefix(gomock.Any(), "jane_doe").
		Return(nil, nil).Times(maxCreateAttempts)
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).
		Return(nil, data.ErrProviderSubjectExists).Times(maxCreateAttempts)

	_, err := svc.Reconcile(ctx, janeClaims())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempts exhausted")
	assert.ErrorIs(t, err, data.ErrProviderSubjectExists)
}

func TestReconcile_StorageErrorSurfaces(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	repo := mocks.NewMockUserRepository(ctrl)
	svc := NewRegistrationService(RegistrationServiceOptions{Users: repo})

	dbErr := errors.New("connection reset")
	repo.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(nil, dbErr)

	_, err := svc.Reconcile(context.Background(), janeClaims())
	require.ErrorIs(t, err, dbErr)
}
