package httpx

import (
	"log/slog"
	"net/http"

	"github.com/argoapp/argo-auth/internal/service"
)

// RouterServices holds the services needed by the HTTP router.
type RouterServices struct {
	OmniAuth     *service.OmniAuthService
	Registration *service.RegistrationService
	Tokens       *service.TokenService
	Logger       *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		OmniAuth:     services.OmniAuth,
		Registration: services.Registration,
		Logger:       services.Logger,
	}
	tokenHandlers := &TokenHandlers{
		Tokens: services.Tokens,
		Logger: services.Logger,
	}

	requireToken := RequireToken(services.Tokens, services.Logger)

	mux.HandleFunc("POST /auth", authHandlers.HandleSignUp)
	mux.HandleFunc("PUT /auth/omniauth", authHandlers.HandleOmniAuth)
	mux.Handle("GET /auth/validate_token", requireToken(http.HandlerFunc(tokenHandlers.HandleValidateToken)))
	mux.Handle("DELETE /auth/sign_out", requireToken(http.HandlerFunc(tokenHandlers.HandleSignOut)))
	mux.HandleFunc("GET /healthz", HandleHealth)

	return mux
}

// HandleHealth reports process liveness.
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
