package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the static per-deployment surface. The values are chosen by
// deployment target (env or .env file), not negotiated at runtime.
type Config struct {
	APIBaseURL     string
	SocketURL      string
	UseSocket      bool
	DBFile         string
	PollInterval   time.Duration
	TypingQuiet    time.Duration
	ConnectTimeout time.Duration
}

func Load() (*Config, error) {
	// Optional .env; absence is fine, the environment wins either way.
	_ = godotenv.Load()

	pollInterval, err := time.ParseDuration(getEnv("NORD_POLL_INTERVAL", "2s"))
	if err != nil {
		return nil, fmt.Errorf("invalid NORD_POLL_INTERVAL: %w", err)
	}

	typingQuiet, err := time.ParseDuration(getEnv("NORD_TYPING_QUIET", "2s"))
	if err != nil {
		return nil, fmt.Errorf("invalid NORD_TYPING_QUIET: %w", err)
	}

	connectTimeout, err := time.ParseDuration(getEnv("NORD_CONNECT_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid NORD_CONNECT_TIMEOUT: %w", err)
	}

	useSocket, err := strconv.ParseBool(getEnv("NORD_USE_SOCKET", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid NORD_USE_SOCKET: %w", err)
	}

	cfg := &Config{
		APIBaseURL:     getEnv("NORD_API_URL", "http://localhost:5000"),
		SocketURL:      getEnv("NORD_WS_URL", "ws://localhost:5000/api/chat"),
		UseSocket:      useSocket,
		DBFile:         getEnv("NORD_DB", "nord.db"),
		PollInterval:   pollInterval,
		TypingQuiet:    typingQuiet,
		ConnectTimeout: connectTimeout,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("NORD_API_URL is required")
	}

	if c.UseSocket && c.SocketURL == "" {
		return fmt.Errorf("NORD_WS_URL is required when the socket transport is enabled")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("NORD_POLL_INTERVAL must be greater than 0")
	}

	if c.TypingQuiet <= 0 {
		return fmt.Errorf("NORD_TYPING_QUIET must be greater than 0")
	}

	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("NORD_CONNECT_TIMEOUT must be greater than 0")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
