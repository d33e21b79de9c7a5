// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Redis (rate limiting)
	RedisURL string `koanf:"redis_url"`

	// JWT Authentication
	JWTSecret string `koanf:"jwt_secret"`

	// External content evaluator
	EvaluatorAPIKey  string `koanf:"evaluator_api_key"`
	EvaluatorBaseURL string `koanf:"evaluator_base_url"`
	EvaluatorModel   string `koanf:"evaluator_model"`

	// Discovery ranking weight calibration file (optional)
	DiscoveryCalibrationPath string `koanf:"discovery_calibration_path"`

	// CORS allowlist. Empty means CORS handling is disabled.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// Profiling endpoints (development only)
	ProfilingEnabled bool `koanf:"profiling_enabled"`

	// Scoring tunables
	UncertainFloor       int `koanf:"uncertain_floor"`
	StandingEMAWindow    int `koanf:"standing_ema_window"`
	OriginalityCorpus    int `koanf:"originality_corpus"`
	RecomputeIntervalSec int `koanf:"recompute_interval_sec"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret   = errors.New("JWT_SECRET is required")
	ErrInvalidPort        = errors.New("PORT must be a valid integer")
	ErrInvalidEMAWindow   = errors.New("STANDING_EMA_WINDOW must be at least 1")
	ErrInvalidCorpus      = errors.New("ORIGINALITY_CORPUS must be at least 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort                 = 8080
	DefaultEnv                  = "development"
	DefaultUncertainFloor       = 3
	DefaultStandingEMAWindow    = 3
	DefaultOriginalityCorpus    = 200
	DefaultRecomputeIntervalSec = 60
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Try THRRYV_PORT first, then PORT for deployment compatibility
	port, portErr := getEnvIntOrDefaultMulti([]string{"THRRYV_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	uncertainFloor, err := getEnvIntOrDefault("UNCERTAIN_FLOOR", k.Int("uncertain_floor"), DefaultUncertainFloor)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	emaWindow, err := getEnvIntOrDefault("STANDING_EMA_WINDOW", k.Int("standing_ema_window"), DefaultStandingEMAWindow)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	corpus, err := getEnvIntOrDefault("ORIGINALITY_CORPUS", k.Int("originality_corpus"), DefaultOriginalityCorpus)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	recomputeInterval, err := getEnvIntOrDefault("RECOMPUTE_INTERVAL_SEC", k.Int("recompute_interval_sec"), DefaultRecomputeIntervalSec)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	allowedOrigins := k.Strings("allowed_origins")
	if val := os.Getenv("ALLOWED_ORIGINS"); val != "" {
		allowedOrigins = splitAndTrim(val)
	}

	profilingEnabled, err := getEnvBoolOrDefault("PROFILING_ENABLED", k.Bool("profiling_enabled"))
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                     port,
		Env:                      getEnvOrDefaultMulti([]string{"THRRYV_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:              getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:                 getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		JWTSecret:                getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		EvaluatorAPIKey:          getEnvOrKoanf("EVALUATOR_API_KEY", k, "evaluator_api_key"),
		EvaluatorBaseURL:         getEnvOrKoanf("EVALUATOR_BASE_URL", k, "evaluator_base_url"),
		EvaluatorModel:           getEnvOrKoanf("EVALUATOR_MODEL", k, "evaluator_model"),
		DiscoveryCalibrationPath: getEnvOrKoanf("DISCOVERY_CALIBRATION_PATH", k, "discovery_calibration_path"),
		AllowedOrigins:           allowedOrigins,
		ProfilingEnabled:         profilingEnabled,
		UncertainFloor:           uncertainFloor,
		StandingEMAWindow:        emaWindow,
		OriginalityCorpus:        corpus,
		RecomputeIntervalSec:     recomputeInterval,
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvBoolOrDefault returns the environment variable as bool if set, otherwise the koanf value.
// Returns an error if the environment variable is set but cannot be parsed as a boolean.
func getEnvBoolOrDefault(envKey string, koanfVal bool) (bool, error) {
	if val := os.Getenv(envKey); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return false, fmt.Errorf("%s must be a boolean: %w", envKey, err)
		}
		return b, nil
	}
	return koanfVal, nil
}

// splitAndTrim splits a comma-separated list, trimming whitespace and dropping
// empty entries.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.StandingEMAWindow < 1 {
		errs = append(errs, ErrInvalidEMAWindow)
	}
	if c.OriginalityCorpus < 1 {
		errs = append(errs, ErrInvalidCorpus)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                       fmt.Sprintf("%d", c.Port),
		"env":                        c.Env,
		"database_url":               maskDatabaseURL(c.DatabaseURL),
		"redis_url":                  maskDatabaseURL(c.RedisURL),
		"jwt_secret":                 maskSecret(c.JWTSecret),
		"evaluator_api_key":          maskSecret(c.EvaluatorAPIKey),
		"evaluator_base_url":         c.EvaluatorBaseURL,
		"evaluator_model":            c.EvaluatorModel,
		"discovery_calibration_path": c.DiscoveryCalibrationPath,
		"allowed_origins":            strings.Join(c.AllowedOrigins, ","),
		"profiling_enabled":          strconv.FormatBool(c.ProfilingEnabled),
		"uncertain_floor":            fmt.Sprintf("%d", c.UncertainFloor),
		"standing_ema_window":        fmt.Sprintf("%d", c.StandingEMAWindow),
		"originality_corpus":         fmt.Sprintf("%d", c.OriginalityCorpus),
		"recompute_interval_sec":     fmt.Sprintf("%d", c.RecomputeIntervalSec),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a database URL.
// Supports both postgres:// and postgresql:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
