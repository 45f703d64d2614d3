// Package config defines the top-level configuration for the market daemon
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openpredict/marketd/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by MARKETD_* environment
// variables.
type Config struct {
	Market   MarketConfig   `toml:"market"`
	Admin    AdminConfig    `toml:"admin"`
	Oracle   OracleConfig   `toml:"oracle"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Resolver ResolverConfig `toml:"resolver"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// MarketConfig holds the economics shared by every market.
type MarketConfig struct {
	// MinStake is the smallest accepted gross stake, as a decimal string
	// (e.g. "0.01").
	MinStake string `toml:"min_stake"`
	// FeeBps is the stake fee in basis points (100 = 1%).
	FeeBps int64 `toml:"fee_bps"`
}

// AdminConfig holds the privileged-role credential and sweep recipient.
type AdminConfig struct {
	// APIKey is the plaintext administrator key. Prefer the encrypted file in
	// production.
	APIKey string `toml:"api_key"`
	// EncryptedKeyPath points to a key file produced by the crypto package.
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	// KeyPassword decrypts the file at EncryptedKeyPath.
	KeyPassword string `toml:"key_password"`
	// Account is the hex address that receives swept fees.
	Account string `toml:"account"`
}

// OracleConfig selects and parameterizes the settlement price source.
type OracleConfig struct {
	// Mode is "http" for a pull feed or "static" for fixed readings.
	Mode string `toml:"mode"`
	// FeedURL is the base URL of the HTTP price feed.
	FeedURL string `toml:"feed_url"`
	// CacheTTLSeconds caches feed readings in Redis for this long. Zero
	// disables the cache.
	CacheTTLSeconds int `toml:"cache_ttl_seconds"`
	// Static maps oracle references to fixed readings (static mode).
	Static map[string]int64 `toml:"static"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the settlement
// archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ResolverConfig controls the background auto-resolution job.
type ResolverConfig struct {
	Enabled bool `toml:"enabled"`
	// Cron is a standard 5-field cron spec for the resolution sweep.
	Cron string `toml:"cron"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Market: MarketConfig{
			MinStake: "0.01",
			FeeBps:   100,
		},
		Oracle: OracleConfig{
			Mode:            "static",
			CacheTTLSeconds: 15,
			Static:          map[string]int64{},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "marketd",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "marketd-settlements",
			ForcePathStyle: true,
		},
		Resolver: ResolverConfig{
			Enabled: false,
			Cron:    "*/1 * * * *",
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"market_resolved", "fees_swept"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// MinStakeAmount parses the configured minimum stake.
func (c *Config) MinStakeAmount() (domain.Amount, error) {
	return domain.ParseAmount(c.Market.MinStake)
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Market economics.
	if _, err := c.MinStakeAmount(); err != nil {
		errs = append(errs, fmt.Sprintf("market: min_stake %q is not a valid amount", c.Market.MinStake))
	}
	if c.Market.FeeBps < 0 || c.Market.FeeBps >= 10_000 {
		errs = append(errs, fmt.Sprintf("market: fee_bps must be in [0, 10000), got %d", c.Market.FeeBps))
	}

	// Admin — one credential source must be configured.
	if c.Admin.APIKey == "" && c.Admin.EncryptedKeyPath == "" {
		errs = append(errs, "admin: either api_key or encrypted_key_path must be set")
	}
	if c.Admin.EncryptedKeyPath != "" && c.Admin.KeyPassword == "" {
		errs = append(errs, "admin: key_password is required when encrypted_key_path is set")
	}
	if c.Admin.Account == "" {
		errs = append(errs, "admin: account must be set (sweep recipient)")
	} else if !common.IsHexAddress(c.Admin.Account) {
		errs = append(errs, fmt.Sprintf("admin: account %q is not a hex address", c.Admin.Account))
	}

	// Oracle.
	switch strings.ToLower(c.Oracle.Mode) {
	case "static":
	case "http":
		if c.Oracle.FeedURL == "" {
			errs = append(errs, "oracle: feed_url is required in http mode")
		}
	default:
		errs = append(errs, fmt.Sprintf("oracle: unknown mode %q (valid: http, static)", c.Oracle.Mode))
	}

	// Postgres.
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}

	// Redis.
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	// S3.
	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty when enabled")
	}

	// Resolver.
	if c.Resolver.Enabled && strings.TrimSpace(c.Resolver.Cron) == "" {
		errs = append(errs, "resolver: cron must not be empty when enabled")
	}

	// Server.
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port %d out of range", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// AdminAccount returns the parsed sweep recipient. Call only after Validate.
func (c *Config) AdminAccount() common.Address {
	return common.HexToAddress(c.Admin.Account)
}
