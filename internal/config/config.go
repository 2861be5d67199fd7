package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the quest agent.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string
	AllowAnyOrigin           bool
	LogLevel                 string

	DFXPath                  string
	LedgerCanisterName       string
	LedgerCanisterID         string
	LedgerFallbackCanisterID string
	LedgerNetwork            string

	BridgeCallTimeout    time.Duration
	BridgeResolveTimeout time.Duration
	BridgeMaxRetries     int

	PollInterval     time.Duration
	PollStartupDelay time.Duration

	CompletionMode               string
	CompletionAPIKey             string
	CompletionBaseURL            string
	CompletionModel              string
	CompletionMaxTokens          int
	CompletionTimeout            time.Duration
	CompletionContextTokenBudget int
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8001"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "questagent"),
		LogLevel:                 strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		DFXPath:                  envOrDefault("DFX_PATH", "dfx"),
		LedgerCanisterName:       envOrDefault("LEDGER_CANISTER_NAME", "learnsphere"),
		LedgerCanisterID:         stringsTrimSpace("LEDGER_CANISTER_ID"),
		LedgerFallbackCanisterID: envOrDefault("LEDGER_FALLBACK_CANISTER_ID", "br5f7-7uaaa-aaaaa-qaaca-cai"),
		LedgerNetwork:            envOrDefault("LEDGER_NETWORK", "local"),
		CompletionMode:           strings.ToLower(envOrDefault("COMPLETION_MODE", "auto")),
		CompletionAPIKey:         stringsTrimSpace("ASI_ONE_API_KEY"),
		CompletionBaseURL:        envOrDefault("COMPLETION_BASE_URL", "https://api.asi1.ai/v1"),
		CompletionModel:          envOrDefault("COMPLETION_MODEL", "asi1-mini"),

		ShutdownTimeout:              15 * time.Second,
		SessionInactivityTimeout:     30 * time.Minute,
		BridgeCallTimeout:            15 * time.Second,
		BridgeResolveTimeout:         10 * time.Second,
		BridgeMaxRetries:             1,
		PollInterval:                 5 * time.Minute,
		PollStartupDelay:             3 * time.Second,
		CompletionMaxTokens:          1024,
		CompletionTimeout:            60 * time.Second,
		CompletionContextTokenBudget: 2000,
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"APP_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
		{"APP_SESSION_INACTIVITY_TIMEOUT", &cfg.SessionInactivityTimeout},
		{"BRIDGE_CALL_TIMEOUT", &cfg.BridgeCallTimeout},
		{"BRIDGE_RESOLVE_TIMEOUT", &cfg.BridgeResolveTimeout},
		{"POLL_INTERVAL", &cfg.PollInterval},
		{"POLL_STARTUP_DELAY", &cfg.PollStartupDelay},
		{"COMPLETION_TIMEOUT", &cfg.CompletionTimeout},
	}
	for _, d := range durations {
		v, err := durationFromEnv(d.key, *d.dst)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"BRIDGE_MAX_RETRIES", &cfg.BridgeMaxRetries},
		{"COMPLETION_MAX_TOKENS", &cfg.CompletionMaxTokens},
		{"COMPLETION_CONTEXT_TOKEN_BUDGET", &cfg.CompletionContextTokenBudget},
	}
	for _, n := range ints {
		v, err := intFromEnv(n.key, *n.dst)
		if err != nil {
			return Config{}, err
		}
		*n.dst = v
	}

	var err error
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.SessionInactivityTimeout < 5*time.Second {
		return fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if c.BridgeCallTimeout <= 0 {
		return fmt.Errorf("BRIDGE_CALL_TIMEOUT must be positive")
	}
	if c.BridgeResolveTimeout <= 0 {
		return fmt.Errorf("BRIDGE_RESOLVE_TIMEOUT must be positive")
	}
	if c.BridgeMaxRetries < 0 || c.BridgeMaxRetries > 5 {
		return fmt.Errorf("BRIDGE_MAX_RETRIES must be between 0 and 5")
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("POLL_INTERVAL must be at least 1s")
	}
	if c.PollStartupDelay < 0 {
		return fmt.Errorf("POLL_STARTUP_DELAY must be >= 0")
	}
	switch c.CompletionMode {
	case "auto", "openai", "mock":
	default:
		return fmt.Errorf("COMPLETION_MODE must be one of auto, openai, mock")
	}
	if c.CompletionMaxTokens <= 0 {
		return fmt.Errorf("COMPLETION_MAX_TOKENS must be positive")
	}
	if c.CompletionContextTokenBudget < 0 {
		return fmt.Errorf("COMPLETION_CONTEXT_TOKEN_BUDGET must be >= 0")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
