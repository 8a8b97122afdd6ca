package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/argoapp/argo-auth/internal/domain/auth"
	"github.com/argoapp/argo-auth/internal/service"
)

// TokenHandlers serves the bearer-token session endpoints.
type TokenHandlers struct {
	Tokens *service.TokenService
	Logger *slog.Logger
}

// tokenResponse reports a live token back to its holder.
type tokenResponse struct {
	UserID string            `json:"user_id"`
	Token  *domainauth.Token `json:"token"`
}

// HandleValidateToken handles GET /auth/validate_token. The middleware
// has already resolved the bearer token; this just reports it.
func (h *TokenHandlers) HandleValidateToken(w http.ResponseWriter, r *http.Request) {
	tok, ok := TokenFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	WriteJSON(w, http.StatusOK, tokenResponse{UserID: tok.UserID, Token: &tok})
}

// HandleSignOut handles DELETE /auth/sign_out. Revokes only the token
// presented on this request; the user's other sessions stay live.
func (h *TokenHandlers) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	tok, ok := TokenFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	if err := h.Tokens.Revoke(r.Context(), tok.Value); err != nil {
		if h.Logger != nil {
			h.Logger.ErrorContext(r.Context(), "revoke token", "error", err)
		}
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "internal",
			Err:     errors.New("sign out could not be completed"),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
