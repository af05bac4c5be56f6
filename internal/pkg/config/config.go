package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	ServerAddr string `env:"SERVER_ADDR" envDefault:":8080"`
	AdminAddr  string `env:"ADMIN_ADDR" envDefault:":9091"`

	PostgresURL string `env:"POSTGRES_URL,required"`
	RedisAddr   string `env:"REDIS_ADDR,required"`

	SlackAPIBaseURL string  `env:"SLACK_API_BASE_URL" envDefault:"https://slack.com/api"`
	SlackRateLimit  float64 `env:"SLACK_RATE_LIMIT" envDefault:"1"` // requests per second
	SlackRateBurst  int     `env:"SLACK_RATE_BURST" envDefault:"5"`
	ClaimReaction   string  `env:"CLAIM_REACTION" envDefault:"eyes"`

	DefaultOrg      string        `env:"DEFAULT_ORG" envDefault:"demo-org"`
	OpsAPIKey       string        `env:"OPS_API_KEY,required"`
	SignatureMaxAge time.Duration `env:"SIGNATURE_MAX_AGE" envDefault:"5m"`

	DedupCacheSize      int `env:"DEDUP_CACHE_SIZE" envDefault:"5000"`
	DispatchConcurrency int `env:"DISPATCH_CONCURRENCY" envDefault:"3"`

	TenantConfigCacheTTL time.Duration `env:"TENANT_CONFIG_CACHE_TTL" envDefault:"5m"`
	PatientCacheTTL      time.Duration `env:"PATIENT_CACHE_TTL" envDefault:"60s"`

	RiskStepDownDays int `env:"RISK_STEPDOWN_DAYS" envDefault:"7"`
	RiskResetDays    int `env:"RISK_RESET_DAYS" envDefault:"14"`

	ScanInterval     time.Duration `env:"SCAN_INTERVAL" envDefault:"24h"`
	ScanLookbackDays int           `env:"SCAN_LOOKBACK_DAYS" envDefault:"7"`
	ScanOrgs         []string      `env:"SCAN_ORGS" envDefault:"demo-org"`

	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `env:"ANTHROPIC_MODEL" envDefault:"claude-sonnet-4-20250514"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
