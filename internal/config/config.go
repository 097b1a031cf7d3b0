package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Optional Postgres-backed audit trail. Empty keeps the trail in memory.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	// Assessment and escalation timing.
	AssessmentBudget time.Duration `mapstructure:"ASSESSMENT_BUDGET"`
	HistoryWindow    time.Duration `mapstructure:"HISTORY_WINDOW"`
	ScanInterval     time.Duration `mapstructure:"SCAN_INTERVAL"`
	CriticalResponse time.Duration `mapstructure:"CRITICAL_RESPONSE"`
	HighResponse     time.Duration `mapstructure:"HIGH_RESPONSE"`

	// Notification routing roles.
	OnCallRole     string `mapstructure:"ONCALL_ROLE"`
	EscalationRole string `mapstructure:"ESCALATION_ROLE"`
	SupervisorRole string `mapstructure:"SUPERVISOR_ROLE"`

	AuditCap int `mapstructure:"AUDIT_CAP"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("ASSESSMENT_BUDGET", "1s")
	v.SetDefault("HISTORY_WINDOW", "24h")
	v.SetDefault("SCAN_INTERVAL", "30s")
	v.SetDefault("CRITICAL_RESPONSE", "30s")
	v.SetDefault("HIGH_RESPONSE", "2m")
	v.SetDefault("ONCALL_ROLE", "role:crisis-on-call")
	v.SetDefault("ESCALATION_ROLE", "role:crisis-escalation")
	v.SetDefault("SUPERVISOR_ROLE", "role:crisis-supervisor")
	v.SetDefault("AUDIT_CAP", 10000)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("ASSESSMENT_BUDGET")
	v.BindEnv("HISTORY_WINDOW")
	v.BindEnv("SCAN_INTERVAL")
	v.BindEnv("CRITICAL_RESPONSE")
	v.BindEnv("HIGH_RESPONSE")
	v.BindEnv("ONCALL_ROLE")
	v.BindEnv("ESCALATION_ROLE")
	v.BindEnv("SUPERVISOR_ROLE")
	v.BindEnv("AUDIT_CAP")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects timing configuration that would break the escalation
// guarantees: the budget, window, and thresholds must all be positive, and
// the critical response window must not exceed the high one.
func (c *Config) Validate() error {
	if c.AssessmentBudget <= 0 {
		return fmt.Errorf("ASSESSMENT_BUDGET must be positive, got %s", c.AssessmentBudget)
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("HISTORY_WINDOW must be positive, got %s", c.HistoryWindow)
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("SCAN_INTERVAL must be positive, got %s", c.ScanInterval)
	}
	if c.CriticalResponse <= 0 || c.HighResponse <= 0 {
		return fmt.Errorf("response thresholds must be positive")
	}
	if c.CriticalResponse > c.HighResponse {
		return fmt.Errorf("CRITICAL_RESPONSE (%s) must not exceed HIGH_RESPONSE (%s)",
			c.CriticalResponse, c.HighResponse)
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AuditPersistent reports whether the audit trail should use Postgres.
func (c *Config) AuditPersistent() bool {
	return c.DatabaseURL != ""
}
