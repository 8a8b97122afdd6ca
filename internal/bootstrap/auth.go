package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/argoapp/argo-auth/config"
	"github.com/argoapp/argo-auth/internal/adapters/appleauth"
	"github.com/argoapp/argo-auth/internal/adapters/applekeys"
	"github.com/argoapp/argo-auth/internal/adapters/devauth"
	"github.com/argoapp/argo-auth/internal/adapters/facebookauth"
	"github.com/argoapp/argo-auth/internal/adapters/googleauth"
	redisadapter "github.com/argoapp/argo-auth/internal/adapters/redis"
	"github.com/argoapp/argo-auth/internal/data"
	domainauth "github.com/argoapp/argo-auth/internal/domain/auth"
	"github.com/argoapp/argo-auth/internal/ports"
	"github.com/argoapp/argo-auth/internal/service"
)

// ServiceContainer holds the wired application services.
type ServiceContainer struct {
	OmniAuth     *service.OmniAuthService
	Registration *service.RegistrationService
	Tokens       *service.TokenService
}

// AuthServicesConfig contains dependencies for building the auth services.
type AuthServicesConfig struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// BuildAuthServices wires verifiers, repositories and stores into the
// application services based on the configured auth mode.
func BuildAuthServices(ctx context.Context, cfg AuthServicesConfig) (ServiceContainer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	verifiers, err := buildVerifiers(ctx, cfg.Config.Auth, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	registration := service.NewRegistrationService(service.RegistrationServiceOptions{
		Users:  data.NewUserRepo(cfg.DB),
		Logger: logger,
	})

	tokens := service.NewTokenService(service.TokenServiceOptions{
		Store:  redisadapter.NewTokenStore(cfg.RedisClient),
		TTL:    cfg.Config.Auth.TokenTTL,
		Logger: logger,
	})

	omniAuth := service.NewOmniAuthService(service.OmniAuthServiceOptions{
		Verifiers:    verifiers,
		Registration: registration,
		Tokens:       tokens,
		Logger:       logger,
	})

	return ServiceContainer{
		OmniAuth:     omniAuth,
		Registration: registration,
		Tokens:       tokens,
	}, nil
}

func buildVerifiers(
	ctx context.Context,
	cfg config.AuthConfig,
	logger *slog.Logger,
) (map[domainauth.Provider]ports.AssertionVerifier, error) {
	switch cfg.Mode {
	case config.AuthModeMock:
		return buildMockVerifiers(cfg.DevAuth, logger)
	case config.AuthModeProviders:
		return buildProviderVerifiers(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown auth mode: %q", cfg.Mode)
	}
}

// buildMockVerifiers registers the config-driven dev verifier under
// every supported provider name so any of them signs in the dev identity.
func buildMockVerifiers(
	cfg config.DevAuthConfig,
	logger *slog.Logger,
) (map[domainauth.Provider]ports.AssertionVerifier, error) {
	provider, ok := domainauth.ParseProvider(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("dev auth provider: unknown provider %q", cfg.Provider)
	}

	verifier, err := devauth.NewVerifier(devauth.Config{
		Provider:  provider,
		SubjectID: cfg.SubjectID,
		Email:     cfg.Email,
		FirstName: cfg.FirstName,
		LastName:  cfg.LastName,
	})
	if err != nil {
		return nil, fmt.Errorf("create dev verifier: %w", err)
	}

	logger.Warn("mock auth mode enabled; provider credentials are not verified")

	return map[domainauth.Provider]ports.AssertionVerifier{
		domainauth.ProviderGoogle:   verifier,
		domainauth.ProviderFacebook: verifier,
		domainauth.ProviderApple:    verifier,
	}, nil
}

func buildProviderVerifiers(
	ctx context.Context,
	cfg config.AuthConfig,
	logger *slog.Logger,
) (map[domainauth.Provider]ports.AssertionVerifier, error) {
	google, err := googleauth.NewVerifier(ctx, googleauth.Config{
		Issuer: cfg.Google.Issuer,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create google verifier: %w", err)
	}

	facebook := facebookauth.NewVerifier(facebookauth.Config{
		GraphURL: cfg.Facebook.GraphURL,
		Logger:   logger,
	})

	appleKeys := applekeys.NewStore(applekeys.Config{
		KeysURL: cfg.Apple.KeysURL,
		TTL:     cfg.Apple.KeysTTL,
		Logger:  logger,
	})
	apple, err := appleauth.NewVerifier(appleauth.Config{
		Keys:   appleKeys,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create apple verifier: %w", err)
	}

	return map[domainauth.Provider]ports.AssertionVerifier{
		domainauth.ProviderGoogle:   google,
		domainauth.ProviderFacebook: facebook,
		domainauth.ProviderApple:    apple,
	}, nil
}
