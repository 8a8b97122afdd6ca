package facebookauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/argoapp/argo-auth/internal/domain/auth"
	"github.com/argoapp/argo-auth/internal/ports"
)

const goodToken = "valid-access-token"

// newFakeGraph serves /me for exactly one bearer token.
func newFakeGraph(t *testing.T, profile map[string]any) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+goodToken {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "Invalid OAuth access token."},
			})
			return
		}
		assert.Contains(t, r.URL.Query().Get("fields"), "id",
			"profile request must select fields explicitly")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profile)
	}))
	t.Cleanup(server.Close)
	return server
}

func defaultProfile() map[string]any {
	return map[string]any{
		"id":         "fb-100",
		"email":      "kim@example.com",
		"first_name": "Kim",
		"last_name":  "Lee",
		"picture": map[string]any{
			"data": map[string]any{
				"url":           "https://scontent.example.com/avatar.jpg",
				"height":        float64(50),
				"width":         float64(50),
				"is_silhouette": false,
			},
		},
	}
}

func TestVerify_Success(t *testing.T) {
	t.Parallel()

	server := newFakeGraph(t, defaultProfile())
	v := NewVerifier(Config{GraphURL: server.URL})

	claims, err := v.Verify(context.Background(), ports.Assertion{
		Credential:  goodToken,
		SubjectHint: "fb-100",
		EmailHint:   "kim@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, domainauth.ProviderFacebook, claims.Provider)
	assert.Equal(t, "fb-100", claims.SubjectID)
	assert.Equal(t, "kim@example.com", claims.Email)
	assert.Equal(t, "Kim", claims.FirstName)
	assert.Equal(t, "Lee", claims.LastName)
	assert.Equal(t, "https://scontent.example.com/avatar.jpg", claims.AvatarURL,
		"avatar comes out of the nested picture envelope")
}

func TestVerify_NoEmailAccount(t *testing.T) {
	t.Parallel()

	profile := defaultProfile()
	delete(profile, "email")
	server := newFakeGraph(t, profile)
	v := NewVerifier(Config{GraphURL: server.URL})

	// Phone-number registrations have no email; the hint cannot be
	// enforced against an absent value.
	claims, err := v.Verify(context.Background(), ports.Assertion{
		Credential:  goodToken,
		SubjectHint: "fb-100",
		EmailHint:   "kim@example.com",
	})
	require.NoError(t, err)
	assert.Empty(t, claims.Email)
}

func TestVerify_MissingPictureEnvelope(t *testing.T) {
	t.Parallel()

	profile := defaultProfile()
	delete(profile, "picture")
	server := newFakeGraph(t, profile)
	v := NewVerifier(Config{GraphURL: server.URL})

	claims, err := v.Verify(context.Background(), ports.Assertion{
		Credential:  goodToken,
		SubjectHint: "fb-100",
	})
	require.NoError(t, err)
	assert.Empty(t, claims.AvatarURL)
}

func TestVerify_SubjectMismatch(t *testing.T) {
	t.Parallel()

	server := newFakeGraph(t, defaultProfile())
	v := NewVerifier(Config{GraphURL: server.URL})

	_, err := v.Verify(context.Background(), ports.Assertion{
		Credential:  goodToken,
		SubjectHint: "somebody-else",
	})
	require.ErrorIs(t, err, domainauth.ErrIdentityMismatch)
}

func TestVerify_EmailMismatch(t *testing.T) {
	t.Parallel()

	server := newFakeGraph(t, defaultProfile())
	v := NewVerifier(Config{GraphURL: server.URL})

	_, err := v.Verify(context.Background(), ports.Assertion{
		Credential:  goodToken,
		SubjectHint: "fb-100",
		EmailHint:   "other@example.com",
	})
	require.ErrorIs(t, err, domainauth.ErrIdentityMismatch)
}

func TestVerify_RejectedToken(t *testing.T) {
	t.Parallel()

	server := newFakeGraph(t, defaultProfile())
	v := NewVerifier(Config{GraphURL: server.URL})

	_, err := v.Verify(context.Background(), ports.Assertion{
		Credential:  "stolen-or-expired",
		SubjectHint: "fb-100",
	})
	require.ErrorIs(t, err, domainauth.ErrVerificationFailed)
}

func TestVerify_EmptyCredential(t *testing.T) {
	t.Parallel()

	server := newFakeGraph(t, defaultProfile())
	v := NewVerifier(Config{GraphURL: server.URL})

	_, err := v.Verify(context.Background(), ports.Assertion{SubjectHint: "fb-100"})
	require.ErrorIs(t, err, domainauth.ErrVerificationFailed)
}

func TestVerify_MissingID(t *testing.T) {
	t.Parallel()

	profile := defaultProfile()
	delete(profile, "id")
	server := newFakeGraph(t, profile)
	v := NewVerifier(Config{GraphURL: server.URL})

	_, err := v.Verify(context.Background(), ports.Assertion{
		Credential:  goodToken,
		SubjectHint: "fb-100",
	})
	require.ErrorIs(t, err, domainauth.ErrVerificationFailed)
}

func TestVerify_GraphUnreachable(t *testing.T) {
	t.Parallel()

	server := newFakeGraph(t, defaultProfile())
	v := NewVerifier(Config{GraphURL: server.URL})
	server.Close()

	_, err := v.Verify(context.Background(), ports.Assertion{
		Credential:  goodToken,
		SubjectHint: "fb-100",
	})
	require.ErrorIs(t, err, domainauth.ErrProviderUnreachable)
}
