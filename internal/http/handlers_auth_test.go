package httpx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/argoapp/argo-auth/internal/domain/auth"
	httpx "github.com/argoapp/argo-auth/internal/http"
	mocksauth "github.com/argoapp/argo-auth/internal/mocks/auth"
	"github.com/argoapp/argo-auth/internal/ports"
	"github.com/argoapp/argo-auth/internal/service"
)

// routerFixture wires the full router against in-memory storage so
// requests exercise the real service stack.
type routerFixture struct {
	handler  http.Handler
	users    *mocksauth.MemoryUserRepo
	tokens   *mocksauth.MemoryTokenStore
	verifier *mocksauth.StaticVerifier
	issuer   *service.TokenService
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := mocksauth.NewMemoryUserRepo()
	store := mocksauth.NewMemoryTokenStore()
	verifier := &mocksauth.StaticVerifier{
		VerifyFunc: func(_ context.Context, in ports.Assertion) (domainauth.Claims, error) {
			claims := domainauth.Claims{
				Provider:  domainauth.ProviderGoogle,
				SubjectID: in.SubjectHint,
				Email:     in.EmailHint,
				FirstName: "Jane",
				LastName:  "Doe",
			}
			if in.FullName != nil {
				claims.FirstName = in.FullName.GivenName
				claims.LastName = in.FullName.FamilyName
			}
			return claims, nil
		},
	}

	registration := service.NewRegistrationService(service.RegistrationServiceOptions{
		Users:  users,
		Logger: logger,
	})
	tokens := service.NewTokenService(service.TokenServiceOptions{
		Store:  store,
		Logger: logger,
	})
	omniAuth := service.NewOmniAuthService(service.OmniAuthServiceOptions{
		Verifiers: map[domainauth.Provider]ports.AssertionVerifier{
			domainauth.ProviderGoogle: verifier,
		},
		Registration: registration,
		Tokens:       tokens,
		Logger:       logger,
	})

	return &routerFixture{
		handler: httpx.NewRouter(httpx.RouterServices{
			OmniAuth:     omniAuth,
			Registration: registration,
			Tokens:       tokens,
			Logger:       logger,
		}),
		users:    users,
		tokens:   store,
		verifier: verifier,
		issuer:   tokens,
	}
}

func (f *routerFixture) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandleOmniAuth_Success(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	rec := f.do(t, http.MethodPut, "/auth/omniauth", map[string]any{
		"provider":   "google",
		"auth_token": "valid-credential",
		"uid":        "goog-123",
		"email":      "jane@example.com",
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decodeBody(t, rec)
	user, ok := body["user"].(map[string]any)
	require.True(t, ok, "response carries the user")
	assert.Equal(t, "jane@example.com", user["email"])
	assert.Equal(t, "jane_doe", user["username"])

	token, ok := body["token"].(map[string]any)
	require.True(t, ok, "response carries the issued token")
	assert.Len(t, token["value"], 32)
	assert.Equal(t, 1, f.tokens.Len())
}

func TestHandleOmniAuth_UnsupportedProvider(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	rec := f.do(t, http.MethodPut, "/auth/omniauth", map[string]any{
		"provider":   "twitter",
		"auth_token": "anything",
		"uid":        "tw-1",
	}, nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "provider_not_recognized", decodeBody(t, rec)["error"])
	assert.Empty(t, f.verifier.Calls())
}

func TestHandleOmniAuth_BadCredentials(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	f.verifier.VerifyFunc = nil
	f.verifier.Err = domainauth.ErrVerificationFailed

	rec := f.do(t, http.MethodPut, "/auth/omniauth", map[string]any{
		"provider":   "google",
		"auth_token": "forged",
		"uid":        "goog-123",
	}, nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "bad_credentials", body["error"])
	assert.NotContains(t, body["message"], "verification",
		"the response must not reveal which check rejected the attempt")
}

func TestHandleOmniAuth_EmailConflict(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)

	apple := domainauth.ProviderApple
	uid := "001234.abcdef"
	janeEmail := "jane@example.com"
	_, err := f.users.Create(t.Context(), ports.CreateUserInput{
		Email:       &janeEmail,
		Username:    "jane_doe",
		Provider:    &apple,
		ProviderUID: &uid,
		Confirmed:   true,
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPut, "/auth/omniauth", map[string]any{
		"provider":   "google",
		"auth_token": "valid-credential",
		"uid":        "goog-123",
		"email":      "jane@example.com",
	}, nil)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "conflict", decodeBody(t, rec)["error"])
}

func TestHandleOmniAuth_MalformedJSON(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	req := httptest.NewRequest(http.MethodPut, "/auth/omniauth", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decodeBody(t, rec)["error"])
}

func TestHandleSignUp_Success(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	rec := f.do(t, http.MethodPost, "/auth", map[string]any{
		"email":      "John.Smith@Example.com",
		"password":   "correct-horse-battery",
		"first_name": "John",
		"last_name":  "Smith",
	}, nil)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "john.smith@example.com", user["email"])
	assert.Equal(t, "john_smith", user["username"])
	assert.NotContains(t, user, "password_hash")
	assert.Nil(t, body["token"], "direct sign-up issues no session token")
}

func TestHandleSignUp_Validation(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/auth", map[string]any{
		"email":    "not-an-email",
		"password": "correct-horse-battery",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeBody(t, rec)["error"])

	rec = f.do(t, http.MethodPost, "/auth", map[string]any{
		"email":    "ok@example.com",
		"password": "short",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeBody(t, rec)["error"])
}

func TestHandleSignUp_DuplicateEmail(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	payload := map[string]any{
		"email":      "jane@example.com",
		"password":   "correct-horse-battery",
		"first_name": "Jane",
		"last_name":  "Doe",
	}

	rec := f.do(t, http.MethodPost, "/auth", payload, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth", payload, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "conflict", decodeBody(t, rec)["error"])
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}
