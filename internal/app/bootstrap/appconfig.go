// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, logging, CORS); everything specific
// to Excel Analytics lives here and is passed to every lifecycle hook.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Identity provider token verification. One of IDPHMACSecret or
	// IDPPublicKeyPath must be set; the public key wins when both are.
	IDPIssuer        string
	IDPAudience      string
	IDPHMACSecret    string
	IDPPublicKeyPath string

	// History visibility for admins: "group" or "system".
	AdminHistoryScope string

	// DemoRoleToggle exposes POST /api/profile/role so users can switch
	// between user and admin themselves.
	DemoRoleToggle bool

	HistoryListLimit int64 // max entries returned by GET /api/history
	UploadMaxBytes   int64 // max multipart upload size

	// Per-caller request limits per minute; 0 disables.
	RateLimitInvites int
	RateLimitUploads int

	// Audit logging: "all" (db+log), "db", "log", or "off"
	AuditLogMembership string
	AuditLogAuth       string

	// Database operation timeouts; zero keeps the built-in default.
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
}
