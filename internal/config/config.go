package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"island-tracker/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type Config struct {
	ServerPort string
	LogLevel   string
	DBPath     string

	SourceBaseURL   string
	ChromeRemoteURL string
	UserAgent       string

	MaxBrowserSessions  int
	ScrapeRatePerMinute int
	CacheTTL            time.Duration
	CacheSize           int

	NavigationTimeout time.Duration
	ElementTimeout    time.Duration
	SettleScale       float64
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DBPath:              getEnv("DB_PATH", "islands.db"),
		SourceBaseURL:       getEnv("SOURCE_BASE_URL", "https://fortnite.gg"),
		ChromeRemoteURL:     getEnv("CHROME_REMOTE_URL", ""),
		UserAgent:           getEnv("CHROME_USER_AGENT", DefaultUserAgent),
		MaxBrowserSessions:  getEnvInt("MAX_BROWSER_SESSIONS", constants.MaxBrowserSessions),
		ScrapeRatePerMinute: getEnvInt("SCRAPE_RATE_PER_MINUTE", constants.ScrapeRatePerMinute),
		CacheTTL:            getEnvDuration("CACHE_TTL", constants.StatsCacheTTL),
		CacheSize:           getEnvInt("CACHE_SIZE", constants.StatsCacheSize),
		NavigationTimeout:   getEnvDuration("NAVIGATION_TIMEOUT", constants.NavigationTimeout),
		ElementTimeout:      getEnvDuration("ELEMENT_TIMEOUT", constants.ElementTimeout),
		SettleScale:         getEnvFloat("SETTLE_SCALE", 1),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("source", cfg.SourceBaseURL).
		Bool("remote_chrome", cfg.ChromeRemoteURL != "").
		Int("max_sessions", cfg.MaxBrowserSessions).
		Dur("cache_ttl", cfg.CacheTTL).
		Msg("configuration loaded")

	return cfg, nil
}

func (c *Config) validate() error {
	if c.SourceBaseURL == "" {
		return fmt.Errorf("SOURCE_BASE_URL is required")
	}
	if c.MaxBrowserSessions < 1 {
		return fmt.Errorf("MAX_BROWSER_SESSIONS must be at least 1, got %d", c.MaxBrowserSessions)
	}
	if c.ScrapeRatePerMinute < 1 {
		return fmt.Errorf("SCRAPE_RATE_PER_MINUTE must be at least 1, got %d", c.ScrapeRatePerMinute)
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("CACHE_SIZE must be at least 1, got %d", c.CacheSize)
	}
	if c.SettleScale < 0 {
		return fmt.Errorf("SETTLE_SCALE must not be negative")
	}
	return nil
}

// Settle scales one of the fixed settle delays.
func (c *Config) Settle(d time.Duration) time.Duration {
	return time.Duration(float64(d) * c.SettleScale)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

var Module = fx.Provide(Load)
