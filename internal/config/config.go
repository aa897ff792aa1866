package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultPollInterval = 60 * time.Second

type Config struct {
	// Bot configuration
	DiscordToken string
	LogChannelID string

	// Platform credentials
	YouTubeAPIKey      string
	TwitchClientID     string
	TwitchClientSecret string

	// Database configuration
	DatabaseType string // "sqlite" or "postgres"
	SqlitePath   string
	PostgresURL  string

	// Polling
	YouTubePollInterval  time.Duration
	TwitchPollInterval   time.Duration
	ContinueOnFetchError bool

	// Application settings
	MetricsAddr string
	Debug       bool
}

// Load reads the environment, optionally seeded from a .env file in the
// working directory. Values are read once; there is no reload.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded, falling back to environment variables", slog.Any("err", err))
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DiscordToken:       getenv("DISCORD_TOKEN"),
		LogChannelID:       getenv("LOG_CHANNEL_ID"),
		YouTubeAPIKey:      getenv("YOUTUBE_API_KEY"),
		TwitchClientID:     getenv("TWITCH_CLIENT_ID"),
		TwitchClientSecret: getenv("TWITCH_CLIENT_SECRET"),
		MetricsAddr:        getenv("METRICS_ADDR"),
	}

	var missing []string
	for name, v := range map[string]string{
		"DISCORD_TOKEN":        cfg.DiscordToken,
		"YOUTUBE_API_KEY":      cfg.YouTubeAPIKey,
		"TWITCH_CLIENT_ID":     cfg.TwitchClientID,
		"TWITCH_CLIENT_SECRET": cfg.TwitchClientSecret,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	// Database configuration
	cfg.DatabaseType = strings.ToLower(getenv("DB_TYPE"))
	if cfg.DatabaseType == "" {
		cfg.DatabaseType = "sqlite"
	}
	switch cfg.DatabaseType {
	case "sqlite":
		cfg.SqlitePath = getenv("SQLITE_PATH")
		if cfg.SqlitePath == "" {
			cfg.SqlitePath = "bot.db"
		}
	case "postgres":
		cfg.PostgresURL = getenv("POSTGRES_URL")
		if cfg.PostgresURL == "" {
			return nil, errors.New("POSTGRES_URL environment variable required when using postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q", cfg.DatabaseType)
	}

	var err error
	if cfg.YouTubePollInterval, err = parseInterval(getenv("YOUTUBE_POLL_INTERVAL")); err != nil {
		return nil, fmt.Errorf("YOUTUBE_POLL_INTERVAL: %w", err)
	}
	if cfg.TwitchPollInterval, err = parseInterval(getenv("TWITCH_POLL_INTERVAL")); err != nil {
		return nil, fmt.Errorf("TWITCH_POLL_INTERVAL: %w", err)
	}

	cfg.ContinueOnFetchError, _ = strconv.ParseBool(getenv("CONTINUE_ON_FETCH_ERROR"))
	cfg.Debug, _ = strconv.ParseBool(getenv("DEBUG"))

	return cfg, nil
}

// GetDatabaseConnectionString returns the database connection string based on database type
func (c *Config) GetDatabaseConnectionString() string {
	if c.DatabaseType == "postgres" {
		return c.PostgresURL
	}
	return c.SqlitePath
}

// parseInterval accepts a Go duration ("90s", "2m") or a bare number of seconds.
func parseInterval(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultPollInterval, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		secs, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return 0, fmt.Errorf("invalid interval %q", raw)
		}
		d = time.Duration(secs) * time.Second
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive, got %s", d)
	}
	return d, nil
}
