// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/excelanalytics/excelhub/internal/app/policy/historypolicy"
	"github.com/excelanalytics/excelhub/internal/app/system/auditlog"
	"github.com/excelanalytics/excelhub/internal/app/system/limits"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for ExcelHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, idp_issuer, etc.
//   - Environment variables: EXCELHUB_MONGO_URI, EXCELHUB_IDP_ISSUER, etc.
//   - Command-line flags: --mongo_uri, --idp_issuer, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "excel_analytics", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Identity provider
	{Name: "idp_issuer", Default: "", Desc: "Expected token issuer (blank skips the check)"},
	{Name: "idp_audience", Default: "", Desc: "Expected token audience (blank skips the check)"},
	{Name: "idp_hmac_secret", Default: "", Desc: "HS256 secret shared with the identity provider"},
	{Name: "idp_public_key_path", Default: "", Desc: "PEM file with the identity provider's RS256 public key"},

	// Features
	{Name: "admin_history_scope", Default: historypolicy.AdminScopeGroup, Desc: "History admins can see: 'group' or 'system'"},
	{Name: "demo_role_toggle", Default: false, Desc: "Let users switch their own role between user and admin"},
	{Name: "history_list_limit", Default: 100, Desc: "Maximum history entries per list request"},
	{Name: "upload_max_bytes", Default: limits.DefaultUploadBytes, Desc: "Maximum spreadsheet upload size in bytes"},
	{Name: "rate_limit_invites", Default: 30, Desc: "Invites per caller per minute (0 disables)"},
	{Name: "rate_limit_uploads", Default: 20, Desc: "Uploads per caller per minute (0 disables)"},

	// Audit logging settings
	{Name: "audit_log_membership", Default: auditlog.DestAll, Desc: "Group/profile event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_auth", Default: auditlog.DestAll, Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Timeouts
	{Name: "timeout_short", Default: "5s", Desc: "Timeout for single-document operations"},
	{Name: "timeout_medium", Default: "10s", Desc: "Timeout for queries and aggregations"},
	{Name: "timeout_long", Default: "30s", Desc: "Timeout for transactions and uploads"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, EXCELHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "EXCELHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		IDPIssuer:        appValues.String("idp_issuer"),
		IDPAudience:      appValues.String("idp_audience"),
		IDPHMACSecret:    appValues.String("idp_hmac_secret"),
		IDPPublicKeyPath: appValues.String("idp_public_key_path"),

		AdminHistoryScope: strings.ToLower(strings.TrimSpace(appValues.String("admin_history_scope"))),
		DemoRoleToggle:    appValues.Bool("demo_role_toggle"),
		HistoryListLimit:  int64(appValues.Int("history_list_limit")),
		UploadMaxBytes:    int64(appValues.Int("upload_max_bytes")),
		RateLimitInvites:  appValues.Int("rate_limit_invites"),
		RateLimitUploads:  appValues.Int("rate_limit_uploads"),

		AuditLogMembership: appValues.String("audit_log_membership"),
		AuditLogAuth:       appValues.String("audit_log_auth"),

		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),
		TimeoutLong:   appValues.Duration("timeout_long", 0),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if strings.TrimSpace(appCfg.MongoDatabase) == "" {
		return errors.New("mongo_database is required")
	}
	if appCfg.AdminHistoryScope != "" && !historypolicy.ValidAdminScope(appCfg.AdminHistoryScope) {
		return fmt.Errorf("admin_history_scope must be %q or %q, got %q",
			historypolicy.AdminScopeGroup, historypolicy.AdminScopeSystem, appCfg.AdminHistoryScope)
	}
	if appCfg.IDPHMACSecret == "" && appCfg.IDPPublicKeyPath == "" {
		return errors.New("identity provider key missing: set idp_hmac_secret or idp_public_key_path")
	}
	for key, mode := range map[string]string{
		"audit_log_membership": appCfg.AuditLogMembership,
		"audit_log_auth":       appCfg.AuditLogAuth,
	} {
		if mode != "" && !auditlog.ValidDestination(mode) {
			return fmt.Errorf("%s must be one of all, db, log, off; got %q", key, mode)
		}
	}
	if appCfg.HistoryListLimit < 0 || appCfg.UploadMaxBytes < 0 {
		return errors.New("history_list_limit and upload_max_bytes cannot be negative")
	}
	if appCfg.RateLimitInvites < 0 || appCfg.RateLimitUploads < 0 {
		return errors.New("rate limits cannot be negative")
	}
	if appCfg.DemoRoleToggle {
		logger.Warn("demo role toggle enabled; users can make themselves admins")
	}
	return nil
}
