// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as the gateway token, channel ids, the daily send time, database path,
// logging, rewards, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// RewardConfig defines the one-time reward granted on a user's first vote in
// a poll.
type RewardConfig struct {
	XP    int     // VOTE_REWARD_XP
	Saves float64 // VOTE_REWARD_SAVES
}

// Config holds all configuration values for the bot.
type Config struct {
	// Gateway
	Token   string // BOT_TOKEN (required)
	GuildID string // GUILD_ID: guild for slash-command registration

	// Channels / roles
	QOTDChannel     string // QOTD_CHANNEL (required): daily question channel
	MetaChannel     string // META_CHANNEL: long-lived meta questions channel
	GameChannel     string // GAME_CHANNEL: game rotation announcements
	AnnounceRole    string // ANNOUNCE_ROLE: mentioned on each daily send
	MetaResultsRole string // META_RESULTS_ROLE: pinged when meta poll results land
	GameModRole     string // GAME_MOD_ROLE: allowed to run game add/select

	// Daily schedule (local wall clock)
	SendHour   int           // SEND_HOUR in [0,23]
	SendMinute int           // SEND_MINUTE in [0,59]
	MetaTTL    time.Duration // META_POLL_TTL: meta polls close this long after posting

	// App
	DBPath string // SQLite path

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Rewards
	Reward RewardConfig

	// Observability
	MetricsAddr string // METRICS_ADDR: listen address for /metrics, empty disables
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Token:   getenv("BOT_TOKEN", ""),
		GuildID: getenv("GUILD_ID", ""),

		QOTDChannel:     getenv("QOTD_CHANNEL", ""),
		MetaChannel:     getenv("META_CHANNEL", ""),
		GameChannel:     getenv("GAME_CHANNEL", ""),
		AnnounceRole:    getenv("ANNOUNCE_ROLE", ""),
		MetaResultsRole: getenv("META_RESULTS_ROLE", ""),
		GameModRole:     getenv("GAME_MOD_ROLE", ""),

		SendHour:   getint("SEND_HOUR", 12),
		SendMinute: getint("SEND_MINUTE", 0),
		MetaTTL:    getdur("META_POLL_TTL", 24*time.Hour),

		DBPath: getenv("DB_PATH", "bot.db"),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		Reward: RewardConfig{
			XP:    getint("VOTE_REWARD_XP", 3),
			Saves: getfloat("VOTE_REWARD_SAVES", 0.25),
		},

		MetricsAddr: getenv("METRICS_ADDR", ""),
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	// --- validation ---
	if strings.TrimSpace(cfg.Token) == "" {
		return cfg, errors.New("BOT_TOKEN must not be empty")
	}
	if strings.TrimSpace(cfg.QOTDChannel) == "" {
		return cfg, errors.New("QOTD_CHANNEL must not be empty")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if cfg.SendHour < 0 || cfg.SendHour > 23 {
		return cfg, errors.New("SEND_HOUR must be in [0,23]")
	}
	if cfg.SendMinute < 0 || cfg.SendMinute > 59 {
		return cfg, errors.New("SEND_MINUTE must be in [0,59]")
	}
	if cfg.MetaTTL <= 0 {
		return cfg, errors.New("META_POLL_TTL must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.Reward.XP < 0 {
		return cfg, errors.New("VOTE_REWARD_XP must be >= 0")
	}
	if cfg.Reward.Saves < 0 {
		return cfg, errors.New("VOTE_REWARD_SAVES must be >= 0")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
