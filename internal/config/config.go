// Package config defines the top-level configuration for the battle service
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by GMDEMO_* environment variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Auth     AuthConfig     `toml:"auth"`
	Battle   BattleConfig   `toml:"battle"`
	Notify   NotifyConfig   `toml:"notify"`
	Log      LogConfig      `toml:"log"`
	Mode     string         `toml:"mode"`
}

// ServerConfig holds the HTTP API parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
	EventReplay int      `toml:"event_replay"`
}

// PostgresConfig holds PostgreSQL connection parameters. DSN wins over the
// individual fields when set.
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

// S3Config holds the settlement archive bucket. Enabled false runs without
// an archive.
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

// AuthConfig holds the session token secret and the bcrypt hash of the
// arbiter API key.
type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	AdminKeyHash string `toml:"admin_key_hash"`
}

// BattleConfig tunes the per-battle lease and the sweeps.
type BattleConfig struct {
	LeaseTTL        duration `toml:"lease_ttl"`
	LeaseWait       duration `toml:"lease_wait"`
	StaleVoteWindow duration `toml:"stale_vote_window"`
	SweepInterval   duration `toml:"sweep_interval"`
	SweepBatch      int      `toml:"sweep_batch"`
}

// NotifyConfig holds operator relay targets. Events lists the notification
// kinds relayed to them. InboxRetention is how long in-app notifications are
// kept before the sweeper removes them.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	InboxRetention    duration `toml:"inbox_retention"`
}

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// duration wraps time.Duration so TOML strings like "30s" decode.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with sensible defaults.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
			EventReplay: 50,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "gmdemo",
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
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "gmdemo-settlements",
			ForcePathStyle: true,
		},
		Battle: BattleConfig{
			LeaseTTL:        duration{30 * time.Second},
			LeaseWait:       duration{3 * time.Second},
			StaleVoteWindow: duration{24 * time.Hour},
			SweepInterval:   duration{time.Minute},
			SweepBatch:      100,
		},
		Notify: NotifyConfig{
			Events:         []string{"dispute_opened", "battle_completed"},
			InboxRetention: duration{24 * time.Hour},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Mode: "full",
	}
}

var validModes = map[string]bool{
	"server": true,
	"sweep":  true,
	"full":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, sweep, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("unknown log level %q (valid: debug, info, warn, error)", c.Log.Level))
	}
	if f := strings.ToLower(c.Log.Format); f != "json" && f != "text" {
		errs = append(errs, fmt.Sprintf("unknown log format %q (valid: json, text)", c.Log.Format))
	}

	// Postgres
	if c.Postgres.DSN == "" && c.Postgres.Host == "" {
		errs = append(errs, "postgres: dsn or host must be set")
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty when enabled")
	}

	// Battle
	if c.Battle.LeaseTTL.Duration <= 0 {
		errs = append(errs, "battle: lease_ttl must be > 0")
	}
	if c.Battle.LeaseWait.Duration <= 0 {
		errs = append(errs, "battle: lease_wait must be > 0")
	}
	if c.Battle.StaleVoteWindow.Duration <= 0 {
		errs = append(errs, "battle: stale_vote_window must be > 0")
	}
	if c.Battle.SweepInterval.Duration <= 0 {
		errs = append(errs, "battle: sweep_interval must be > 0")
	}
	if c.Battle.SweepBatch < 1 {
		errs = append(errs, "battle: sweep_batch must be >= 1")
	}

	// Server
	if c.Mode != "sweep" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if len(c.Auth.JWTSecret) < 32 {
			errs = append(errs, "auth: jwt_secret must be at least 32 bytes")
		}
		if c.Server.RateLimit < 1 || c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_limit and rate_window must be > 0")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	if c.Notify.InboxRetention.Duration <= 0 {
		errs = append(errs, "notify: inbox_retention must be > 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
