package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies GMDEMO_* environment variable overrides, and
// returns the final Config. A missing file leaves the defaults in place. The
// returned Config has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known GMDEMO_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "GMDEMO_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "GMDEMO_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "GMDEMO_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "GMDEMO_SERVER_RATE_WINDOW")
	setInt(&cfg.Server.EventReplay, "GMDEMO_SERVER_EVENT_REPLAY")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DATABASE_URL")
	setStr(&cfg.Postgres.DSN, "GMDEMO_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "GMDEMO_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "GMDEMO_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "GMDEMO_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "GMDEMO_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "GMDEMO_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "GMDEMO_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "GMDEMO_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "GMDEMO_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "GMDEMO_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "GMDEMO_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "GMDEMO_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "GMDEMO_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "GMDEMO_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "GMDEMO_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "GMDEMO_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "GMDEMO_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "GMDEMO_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "GMDEMO_S3_REGION")
	setStr(&cfg.S3.Bucket, "GMDEMO_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "GMDEMO_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "GMDEMO_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "GMDEMO_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "GMDEMO_S3_FORCE_PATH_STYLE")

	// ── Auth ──
	setStr(&cfg.Auth.JWTSecret, "GMDEMO_AUTH_JWT_SECRET")
	setStr(&cfg.Auth.AdminKeyHash, "GMDEMO_AUTH_ADMIN_KEY_HASH")

	// ── Battle ──
	setDuration(&cfg.Battle.LeaseTTL, "GMDEMO_BATTLE_LEASE_TTL")
	setDuration(&cfg.Battle.LeaseWait, "GMDEMO_BATTLE_LEASE_WAIT")
	setDuration(&cfg.Battle.StaleVoteWindow, "GMDEMO_BATTLE_STALE_VOTE_WINDOW")
	setDuration(&cfg.Battle.SweepInterval, "GMDEMO_BATTLE_SWEEP_INTERVAL")
	setInt(&cfg.Battle.SweepBatch, "GMDEMO_BATTLE_SWEEP_BATCH")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "GMDEMO_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "GMDEMO_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "GMDEMO_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "GMDEMO_NOTIFY_EVENTS")
	setDuration(&cfg.Notify.InboxRetention, "GMDEMO_NOTIFY_INBOX_RETENTION")

	// ── Top-level ──
	setStr(&cfg.Mode, "GMDEMO_MODE")
	setStr(&cfg.Log.Level, "GMDEMO_LOG_LEVEL")
	setStr(&cfg.Log.Format, "GMDEMO_LOG_FORMAT")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
