// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	FrontendURL    string
	APIBaseURL     string
	PollInterval   time.Duration
	ChatAckDelay   time.Duration
	RequestTimeout time.Duration
	LogLevel       string
	OutboxSize     int
}

// HelpError is returned by LoadArgs when -h or --help is given. Usage
// lists the flags.
type HelpError struct {
	Usage string
}

func (e *HelpError) Error() string { return "help requested" }

// Unwrap lets errors.Is(err, pflag.ErrHelp) match.
func (e *HelpError) Unwrap() error { return flag.ErrHelp }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return LoadArgs(nil)
}

// LoadArgs reads configuration from environment variables and then applies
// command-line overrides from args (without the program name).
func LoadArgs(args []string) (*Config, error) {
	outbox := getEnvInt("OUTBOX_SIZE", 64)
	if outbox <= 0 {
		outbox = 64
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8090"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8000/api"),
		PollInterval:   getEnvDuration("POLL_INTERVAL", 5*time.Second),
		ChatAckDelay:   getEnvDuration("CHAT_ACK_DELAY", 600*time.Millisecond),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		OutboxSize:     outbox,
	}

	if len(args) > 0 {
		fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
		fs.SetOutput(&strings.Builder{})
		fs.StringVarP(&cfg.Port, "port", "p", cfg.Port, "listen port for the dashboard")
		fs.StringVar(&cfg.APIBaseURL, "api-base", cfg.APIBaseURL, "base URL of the backend API")
		fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "interval between polls")
		fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
		if err := fs.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, &HelpError{Usage: fs.FlagUsages()}
			}
			return nil, fmt.Errorf("parse flags: %w\n%s", err, fs.FlagUsages())
		}
	}

	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL cannot be empty")
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.APIBaseURL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be > 0")
	}
	if c.ChatAckDelay < 0 {
		return fmt.Errorf("CHAT_ACK_DELAY cannot be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be > 0")
	}
	if _, ok := parseLevel(c.LogLevel); !ok {
		return fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("5s") or bare milliseconds ("600").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
