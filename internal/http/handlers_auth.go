package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/argoapp/argo-auth/internal/domain/auth"
	"github.com/argoapp/argo-auth/internal/service"
)

// AuthHandlers serves the registration and federated login endpoints.
type AuthHandlers struct {
	OmniAuth     *service.OmniAuthService
	Registration *service.RegistrationService
	Logger       *slog.Logger
}

// omniAuthRequest mirrors the parameters clients send for a federated
// login: the provider name, the opaque provider credential, and the
// identity hints the verifier checks the credential against.
type omniAuthRequest struct {
	Provider  string               `json:"provider"`
	AuthToken string               `json:"auth_token"`
	UID       string               `json:"uid"`
	Email     string               `json:"email,omitempty"`
	FullName  *domainauth.FullName `json:"full_name,omitempty"`
}

// authResponse is the success payload for both endpoints.
type authResponse struct {
	User  *domainauth.User  `json:"user"`
	Token *domainauth.Token `json:"token,omitempty"`
}

// HandleOmniAuth handles PUT /auth/omniauth.
func (h *AuthHandlers) HandleOmniAuth(w http.ResponseWriter, r *http.Request) {
	var req omniAuthRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.OmniAuth.Authenticate(r.Context(), service.AuthenticateInput{
		Provider:    req.Provider,
		Credential:  req.AuthToken,
		SubjectHint: req.UID,
		EmailHint:   req.Email,
		FullName:    req.FullName,
	})
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, authResponse{User: result.User, Token: &result.Token})
}

// signUpRequest mirrors the parameters for a direct registration.
type signUpRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username,omitempty"`
}

// HandleSignUp handles POST /auth.
func (h *AuthHandlers) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	user, err := h.Registration.SignUp(r.Context(), service.SignUpInput{
		Email:                 req.Email,
		Password:              req.Password,
		FirstName:             req.FirstName,
		LastName:              req.LastName,
		Username:              req.Username,
		SendConfirmationEmail: true,
	})
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusCreated, authResponse{User: user})
}

// writeAuthError maps service errors onto status codes. Credential
// failures stay deliberately vague; conflicts are user-correctable and
// say which field clashed.
func (h *AuthHandlers) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrUnsupportedProvider):
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "provider_not_recognized", Err: err})
	case errors.Is(err, service.ErrBadCredentials):
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "bad_credentials", Err: err})
	case errors.Is(err, service.ErrEmailTaken), errors.Is(err, service.ErrUsernameTaken):
		WriteError(w, ErrorParams{Code: http.StatusUnprocessableEntity, ErrCode: "conflict", Err: err})
	case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrPasswordTooShort):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation", Err: err})
	default:
		if h.Logger != nil {
			h.Logger.ErrorContext(r.Context(), "auth request failed", "error", err)
		}
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "internal",
			Err:     errors.New("authentication could not be completed"),
		})
	}
}
