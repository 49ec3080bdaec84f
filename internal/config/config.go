// Package config defines the process configuration for the Recruit Fluency
// jobs. Configuration is loaded once at Lambda cold start and is immutable
// thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"time"

	"recruitfluency/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Components receive only the
// subsets they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"recruitfluency"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Database      DatabaseConfig
	AWS           AWSConfig
	Email         EmailConfig
	Distribution  DistributionConfig
	Billing       BillingConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"1" validate:"min=0"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack support; empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// Email provider identifiers.
const (
	EmailProviderPostmark = "postmark"
	EmailProviderSES      = "ses"
	EmailProviderStub     = "stub"
)

// EmailConfig holds delivery provider credentials and the introduction
// email's template and link settings.
type EmailConfig struct {
	Provider            string       `envconfig:"EMAIL_PROVIDER" default:"postmark" validate:"oneof=postmark ses stub"`
	PostmarkServerToken SecretString `envconfig:"POSTMARK_SERVER_TOKEN" validate:"required_if=Provider postmark"`
	PostmarkBaseURL     string       `envconfig:"POSTMARK_BASE_URL" default:"https://api.postmarkapp.com" validate:"url"`
	SESConfigSet        string       `envconfig:"SES_CONFIGURATION_SET"`

	FromAddress string `envconfig:"EMAIL_FROM_ADDRESS" validate:"required,email"`
	FromName    string `envconfig:"EMAIL_FROM_NAME" default:"Recruit Fluency"`

	// Athlete sender addresses are built as <first>.<last>@SenderDomain.
	SenderDomain string `envconfig:"EMAIL_SENDER_DOMAIN" default:"recruit.soccer" validate:"fqdn"`

	IntroduceAthleteTemplate string `envconfig:"EMAIL_TEMPLATE_INTRODUCE_ATHLETE" default:"introduce-athlete"`
	AthleteProfileURL        string `envconfig:"ATHLETE_PROFILE_URL" default:"https://app.recruit.soccer/coachAthletePage" validate:"url"`
	PhotoBaseURL             string `envconfig:"PHOTO_BASE_URL" validate:"required,url"`
	DefaultLogoURL           string `envconfig:"EMAIL_DEFAULT_LOGO_URL" default:"https://app.recruit.soccer/logo.png" validate:"url"`
}

// DistributionConfig tunes the nightly coach-athlete distribution job.
type DistributionConfig struct {
	PageSize        int    `envconfig:"DISTRIBUTION_PAGE_SIZE" default:"100" validate:"min=1,max=1000"`
	SampleSize      int    `envconfig:"DISTRIBUTION_SAMPLE_SIZE" default:"5" validate:"min=1,max=50"`
	LookbackYears   int    `envconfig:"DISTRIBUTION_LOOKBACK_YEARS" default:"1" validate:"min=1"`
	Timezone        string `envconfig:"DISTRIBUTION_TIMEZONE" default:"America/New_York" validate:"timezone"`
	SendConcurrency int    `envconfig:"DISTRIBUTION_SEND_CONCURRENCY" default:"5" validate:"min=1"`

	// LockEnabled guards against overlapping runs (e.g. a manual trigger
	// while the scheduled run is still going).
	LockEnabled bool `envconfig:"DISTRIBUTION_LOCK_ENABLED" default:"true"`
	// LockTTL should sit just above the function timeout (15m on Lambda). A
	// run killed at the timeout never releases the lock, so the TTL is how
	// long a manual re-run stays blocked.
	LockTTL time.Duration `envconfig:"DISTRIBUTION_LOCK_TTL" default:"20m"`
}

// BillingConfig maps RevenueCat entitlement identifiers onto the two
// entitlements the platform understands.
type BillingConfig struct {
	BasicEntitlement      string `envconfig:"REVENUECAT_BASIC_ENTITLEMENT" default:"basic" validate:"required"`
	WhiteLabelEntitlement string `envconfig:"REVENUECAT_WHITE_LABEL_ENTITLEMENT" default:"whiteLabeling" validate:"required,nefield=BasicEntitlement"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"RecruitFluency"`
	MetricsEnabled  bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)

// Location returns the distribution timezone. The value is validated at load
// time, so the UTC fallback only applies to hand-built configs.
func (d DistributionConfig) Location() *time.Location {
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
