package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/abernathy/patientfront/internal/credential"
	"github.com/abernathy/patientfront/internal/risk"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	GatewayURL    string `mapstructure:"GATEWAY_URL"`
	AuthTokenPath string `mapstructure:"AUTH_TOKEN_PATH"`
	PatientPath   string `mapstructure:"PATIENT_PATH"`
	HistoryPath   string `mapstructure:"HISTORY_PATH"`
	RiskPath      string `mapstructure:"RISK_PATH"`

	JWTSecretKey       string        `mapstructure:"JWT_SECRET_KEY"`
	CredentialScope    string        `mapstructure:"CREDENTIAL_CACHE_SCOPE"`
	CredentialStore    string        `mapstructure:"CREDENTIAL_STORE"`
	CredentialCacheTTL time.Duration `mapstructure:"CREDENTIAL_CACHE_TTL"`
	SerializeAcquire   bool          `mapstructure:"CREDENTIAL_SERIALIZE_ACQUIRE"`
	RedisURL           string        `mapstructure:"REDIS_URL"`

	RiskLookup     string        `mapstructure:"RISK_LOOKUP"`
	RemoteTimeout  time.Duration `mapstructure:"REMOTE_TIMEOUT"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"GATEWAY_URL", "AUTH_TOKEN_PATH", "PATIENT_PATH", "HISTORY_PATH", "RISK_PATH",
	"JWT_SECRET_KEY", "CREDENTIAL_CACHE_SCOPE", "CREDENTIAL_STORE", "CREDENTIAL_CACHE_TTL",
	"CREDENTIAL_SERIALIZE_ACQUIRE", "REDIS_URL",
	"RISK_LOOKUP", "REMOTE_TIMEOUT", "REQUEST_TIMEOUT", "BODY_LIMIT",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
}

// Load reads .env (if present) and the process environment. It does not
// validate; callers pick Validate or ValidateDatabase depending on what
// they are about to start.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("AUTH_TOKEN_PATH", "/api/auth/token")
	v.SetDefault("PATIENT_PATH", "/api/patients")
	v.SetDefault("HISTORY_PATH", "/api/gateway/history")
	v.SetDefault("RISK_PATH", "/diabetes/risk")
	v.SetDefault("CREDENTIAL_CACHE_SCOPE", string(credential.ScopeIdentity))
	v.SetDefault("CREDENTIAL_STORE", StoreMemory)
	v.SetDefault("CREDENTIAL_CACHE_TTL", "12h")
	v.SetDefault("CREDENTIAL_SERIALIZE_ACQUIRE", true)
	v.SetDefault("RISK_LOOKUP", string(risk.LookupRequested))
	v.SetDefault("REMOTE_TIMEOUT", "10s")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)

	// Unmarshal only sees env vars that are bound.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.GatewayURL = strings.TrimRight(cfg.GatewayURL, "/")
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Level returns the configured log level, defaulting to debug in
// development and info elsewhere.
func (c *Config) Level() string {
	if c.LogLevel != "" {
		return c.LogLevel
	}
	if c.IsDev() {
		return "debug"
	}
	return "info"
}

// ValidateDatabase checks what the migrate and user commands need.
func (c *Config) ValidateDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.DBMaxConns)
	}
	if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS, got %d", c.DBMinConns)
	}
	return nil
}

// Validate checks everything serve needs.
func (c *Config) Validate() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}

	if c.GatewayURL == "" {
		return fmt.Errorf("GATEWAY_URL is required")
	}
	u, err := url.Parse(c.GatewayURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("GATEWAY_URL must be an absolute http(s) URL, got %q", c.GatewayURL)
	}

	if c.JWTSecretKey == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if _, err := credential.NewHMACValidatorFromBase64(c.JWTSecretKey); err != nil {
		return fmt.Errorf("JWT_SECRET_KEY: %w", err)
	}

	if _, err := credential.ParseScope(c.CredentialScope); err != nil {
		return fmt.Errorf("CREDENTIAL_CACHE_SCOPE: %w", err)
	}
	switch c.CredentialStore {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when CREDENTIAL_STORE is %q", StoreRedis)
		}
	default:
		return fmt.Errorf("CREDENTIAL_STORE must be %q or %q, got %q", StoreMemory, StoreRedis, c.CredentialStore)
	}
	if _, err := risk.ParseLookupMode(c.RiskLookup); err != nil {
		return fmt.Errorf("RISK_LOOKUP: %w", err)
	}

	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("REMOTE_TIMEOUT must be positive, got %s", c.RemoteTimeout)
	}
	return nil
}

// Scope returns the parsed cache scope. Call after Validate.
func (c *Config) Scope() credential.Scope {
	s, _ := credential.ParseScope(c.CredentialScope)
	return s
}

// Lookup returns the parsed risk lookup mode. Call after Validate.
func (c *Config) Lookup() risk.LookupMode {
	m, _ := risk.ParseLookupMode(c.RiskLookup)
	return m
}

// TokenURL is the absolute issuance endpoint.
func (c *Config) TokenURL() string {
	return c.GatewayURL + c.AuthTokenPath
}
