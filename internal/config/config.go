// Package config provides configuration loading from environment variables.
// #IMPLEMENTATION_DECISION: Using envconfig for type-safe environment variable parsing
// #CODE_ASSUMPTION: All secrets provided via environment variables (no secret manager integration)
package config

import (
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
// #INTEGRATION_POINT: every service (Store, PolicyEngine, AccountService,
// SessionService, MFAService, SSOService) depends on this configuration.
type Config struct {
	// Store (C1) configuration
	DatabaseURI  string `envconfig:"DATABASE_URI" required:"true"`
	DatabaseName string `envconfig:"DATABASE_NAME" default:"authcore"`

	// Signing secret (C2), loaded once at startup and persisted as the
	// Store's singleton Secret document if one does not already exist.
	SigningSecret string `envconfig:"SIGNING_SECRET" required:"true"`

	// Policy: email validation (C3)
	EmailBlocklistMode    string   `envconfig:"EMAIL_BLOCKLIST_MODE" default:"bundled"` // disabled | custom | bundled
	EmailBlocklistDomains []string `envconfig:"EMAIL_BLOCKLIST_DOMAINS"`

	// Policy: password safety (C3)
	PasswordScannerMode string `envconfig:"PASSWORD_SCANNER_MODE" default:"bundled"` // none | custom | bundled | local_hibp | remote_hibp
	HIBPServiceURL      string `envconfig:"HIBP_SERVICE_URL"`

	// Policy: captcha (C3)
	CaptchaMode   string `envconfig:"CAPTCHA_MODE" default:"disabled"` // disabled | hcaptcha
	HCaptchaSecret string `envconfig:"HCAPTCHA_SECRET"`

	// Policy: shield abuse detection (C3)
	ShieldMode   string `envconfig:"SHIELD_MODE" default:"disabled"` // disabled | enabled
	ShieldAPIKey string `envconfig:"SHIELD_API_KEY"`
	ShieldStrict bool   `envconfig:"SHIELD_STRICT" default:"false"`

	// AccountService (C4) verification/reset/deletion lifecycle
	EmailVerificationEnabled bool          `envconfig:"EMAIL_VERIFICATION_ENABLED" default:"true"`
	InviteOnly               bool          `envconfig:"INVITE_ONLY" default:"false"`
	VerificationExpiry       time.Duration `envconfig:"VERIFICATION_EXPIRY" default:"24h"`
	PasswordResetExpiry      time.Duration `envconfig:"PASSWORD_RESET_EXPIRY" default:"1h"`
	AccountDeletionExpiry    time.Duration `envconfig:"ACCOUNT_DELETION_EXPIRY" default:"24h"`
	DeletionGracePeriod      time.Duration `envconfig:"DELETION_GRACE_PERIOD" default:"168h"` // 7 days

	// Mailer (out of core scope, but the core calls it per spec section 1)
	MailServiceURL   string `envconfig:"MAIL_SERVICE_URL" required:"true"`
	MailAPIKey       string `envconfig:"MAIL_API_KEY" required:"true"`
	MagicLinkBaseURL string `envconfig:"MAGIC_LINK_BASE_URL" required:"true"`

	// Event sink (section 5/9): bounded, non-blocking broadcaster
	EventChannelBufferSize int `envconfig:"EVENT_CHANNEL_BUFFER_SIZE" default:"256"`

	// SSO (section 4.7): JSON-encoded []sso.Provider, one entry per
	// configured identity provider. Empty disables the /sso routes.
	SSOProvidersJSON string `envconfig:"SSO_PROVIDERS_JSON" default:"[]"`

	// Server configuration (httpapi demo layer)
	ServerPort  string `envconfig:"SERVER_PORT" default:"8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// CORS configuration
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Rate limiting
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"100"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

var (
	instance *Config
	once     sync.Once
	errInit  error
)

// Load loads configuration from environment variables.
// #IMPLEMENTATION_DECISION: Singleton pattern ensures config is loaded once
func Load() (*Config, error) {
	once.Do(func() {
		instance = &Config{}
		errInit = envconfig.Process("AUTHCORE", instance)
	})

	return instance, errInit
}

// GetConfig returns the loaded configuration.
// Panics if configuration has not been loaded.
func GetConfig() *Config {
	if instance == nil {
		panic("config: Load() must be called before GetConfig()")
	}
	return instance
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
