// internal/app/bootstrap/routes.go
package bootstrap

import (
	"fmt"
	"net/http"
	"os"
	"time"

	groupsfeature "github.com/excelanalytics/excelhub/internal/app/features/groups"
	healthfeature "github.com/excelanalytics/excelhub/internal/app/features/health"
	historyfeature "github.com/excelanalytics/excelhub/internal/app/features/history"
	profilefeature "github.com/excelanalytics/excelhub/internal/app/features/profile"
	sessionfeature "github.com/excelanalytics/excelhub/internal/app/features/session"
	"github.com/excelanalytics/excelhub/internal/app/membership"
	"github.com/excelanalytics/excelhub/internal/app/policy/historypolicy"
	auditstore "github.com/excelanalytics/excelhub/internal/app/store/audit"
	groupstore "github.com/excelanalytics/excelhub/internal/app/store/groups"
	profilestore "github.com/excelanalytics/excelhub/internal/app/store/profiles"
	"github.com/excelanalytics/excelhub/internal/app/system/auditlog"
	"github.com/excelanalytics/excelhub/internal/app/system/auth"
	"github.com/excelanalytics/excelhub/internal/app/system/ratelimit"
	"github.com/excelanalytics/excelhub/internal/app/system/txn"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Version is reported by /health. Set with -ldflags "-X ...bootstrap.Version=…".
var Version = "dev"

// limiters built by BuildHandler; Shutdown stops their cleanup goroutines.
var limiters []*ratelimit.Limiter

func newLimiter(perMinute int) *ratelimit.Limiter {
	l := ratelimit.New(perMinute, time.Minute)
	if l != nil {
		limiters = append(limiters, l)
	}
	return l
}

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. Every /api route expects a bearer token
// from the identity provider; LoadIdentity verifies it and RequireSignedIn
// (inside each feature) rejects anonymous calls.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	verifier, err := buildVerifier(appCfg, logger)
	if err != nil {
		logger.Error("token verifier init failed", zap.Error(err))
		return nil, err
	}
	audit := auditlog.New(auditstore.New(db), logger, auditlog.Config{
		Auth:       appCfg.AuditLogAuth,
		Membership: appCfg.AuditLogMembership,
	})
	verifier.OnReject = func(r *http.Request, err error) {
		audit.TokenRejected(r.Context(), r, err.Error())
	}

	gate, err := historypolicy.New(groupstore.New(db), appCfg.AdminHistoryScope)
	if err != nil {
		return nil, err
	}

	svc := membership.New(
		groupstore.New(db),
		profilestore.New(db),
		txn.New(deps.MongoClient, logger),
		logger,
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, Version, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Route("/api", func(api chi.Router) {
		api.Use(verifier.LoadIdentity)

		sessionHandler := sessionfeature.NewHandler(db, audit, logger)
		api.Mount("/session", sessionfeature.Routes(sessionHandler))

		profileHandler := profilefeature.NewHandler(db, audit, appCfg.DemoRoleToggle, logger)
		api.Mount("/profile", profilefeature.Routes(profileHandler))

		groupsHandler := groupsfeature.NewHandler(svc, audit, logger)
		groupsHandler.InviteLimiter = newLimiter(appCfg.RateLimitInvites)
		api.Mount("/groups", groupsfeature.Routes(groupsHandler))
		api.Mount("/invitations", groupsfeature.InvitationRoutes(groupsHandler))

		// /history, /upload and /stats
		historyHandler := historyfeature.NewHandler(db, gate, audit, appCfg.HistoryListLimit, appCfg.UploadMaxBytes, logger)
		historyHandler.UploadLimiter = newLimiter(appCfg.RateLimitUploads)
		api.Mount("/", historyfeature.Routes(historyHandler))
	})

	return r, nil
}

// buildVerifier prefers the RS256 public key when a path is configured.
func buildVerifier(appCfg AppConfig, logger *zap.Logger) (*auth.Verifier, error) {
	cfg := auth.VerifierConfig{
		HMACSecret: appCfg.IDPHMACSecret,
		Issuer:     appCfg.IDPIssuer,
		Audience:   appCfg.IDPAudience,
	}
	if appCfg.IDPPublicKeyPath != "" {
		pem, err := os.ReadFile(appCfg.IDPPublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read identity provider public key: %w", err)
		}
		cfg.PublicKeyPEM = pem
	}
	return auth.NewVerifierFromConfig(cfg, logger)
}
