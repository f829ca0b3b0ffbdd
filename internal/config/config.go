package config

import (
	"os"
	"time"
)

type Config struct {
	ListenAddr       string
	DBDriver         string
	DBPath           string
	DatabaseURL      string
	JWTSecret        string
	TokenTTL         time.Duration
	SessionIdle      time.Duration
	ProductLookupURL string
	LookupTimeout    time.Duration
	ClaudeAPIKey     string
	ClaudeModel      string
	LogLevel         string
	LogFormat        string
	LogFile          string
	TestMode         bool
}

func Load() *Config {
	return &Config{
		ListenAddr:       getEnv("LISTEN_ADDR", ":8080"),
		DBDriver:         getEnv("DB_DRIVER", "sqlite"),
		DBPath:           getEnv("DB_PATH", "/data/fampantry.db"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		JWTSecret:        getEnv("JWT_SECRET", "fampantry-dev-secret"),
		TokenTTL:         getDuration("TOKEN_TTL", 720*time.Hour),
		SessionIdle:      getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		ProductLookupURL: getEnv("PRODUCT_LOOKUP_URL", "https://world.openfoodfacts.org"),
		LookupTimeout:    getDuration("LOOKUP_TIMEOUT", 10*time.Second),
		ClaudeAPIKey:     getEnv("CLAUDE_API_KEY", ""),
		ClaudeModel:      getEnv("CLAUDE_MODEL", "claude-3-5-haiku-latest"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		LogFile:          getEnv("LOG_FILE", ""),
		TestMode:         os.Getenv("FAMPANTRY_TEST_MODE") == "1",
	}
}

// DSN returns the data source for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.DBPath
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
