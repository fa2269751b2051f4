package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MinPacingInterval is the smallest delay accepted between calls to an
// external collaborator.
const MinPacingInterval = 100 * time.Millisecond

// ErrMissingAPIKey is returned when the transaction-data credential is absent.
var ErrMissingAPIKey = errors.New("REINFOLIB_API_KEY is required")

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Pipeline PipelineConfig
	Sources  SourcesConfig
	Retry    RetryConfig
}

// ServerConfig holds HTTP server configuration for the read-only API.
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// PipelineConfig is the explicit configuration value handed to every stage.
type PipelineConfig struct {
	Regions          []Region
	MinSampleCount   int
	AgeBracketWidth  int
	AgeBracketMax    int
	AreaBracketWidth int
	AreaBracketMax   int
	Workers          int
}

// SourcesConfig configures the three external collaborators.
type SourcesConfig struct {
	ReinfolibAPIKey   string
	ReinfolibBaseURL  string
	ReinfolibInterval time.Duration
	LookbackYears     int

	SuumoBaseURL  string
	SuumoInterval time.Duration
	SuumoMaxPages int

	GeocodeBaseURL  string
	GeocodeInterval time.Duration
}

// RetryConfig bounds retries of transient collaborator failures.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Load reads configuration from a .env file, an optional YAML settings file
// and environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "kakaku")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 1)
	v.SetDefault("DB_POOL_MAX", 4)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	v.SetDefault("MIN_SAMPLE_COUNT", 20)
	v.SetDefault("AGE_BRACKET_WIDTH", 5)
	v.SetDefault("AGE_BRACKET_MAX", 40)
	v.SetDefault("AREA_BRACKET_WIDTH", 10)
	v.SetDefault("AREA_BRACKET_MAX", 100)
	v.SetDefault("STAGE_WORKERS", 4)

	v.SetDefault("REINFOLIB_BASE_URL", "https://www.reinfolib.mlit.go.jp/ex-api/external/XIT001")
	v.SetDefault("REINFOLIB_INTERVAL", "500ms")
	v.SetDefault("TRANSACTION_LOOKBACK_YEARS", 2)
	v.SetDefault("SUUMO_BASE_URL", "https://suumo.jp/ms/chuko")
	v.SetDefault("SUUMO_INTERVAL", "2s")
	v.SetDefault("SUUMO_MAX_PAGES", 50)
	v.SetDefault("GEOCODE_BASE_URL", "https://msearch.gsi.go.jp/address-search/AddressSearch")
	v.SetDefault("GEOCODE_INTERVAL", "500ms")

	v.SetDefault("RETRY_MAX_ATTEMPTS", 3)
	v.SetDefault("RETRY_BASE_DELAY", "1s")
	v.SetDefault("CONFIG_FILE", "config/settings.yml")

	v.AutomaticEnv()

	if err := readSettingsFile(v, v.GetString("CONFIG_FILE")); err != nil {
		return nil, err
	}

	regions, err := ResolveRegions(parseList(v.Get("TARGET_REGIONS")))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseList(v.GetString("CORS_ORIGINS")),
		},
		Pipeline: PipelineConfig{
			Regions:          regions,
			MinSampleCount:   v.GetInt("MIN_SAMPLE_COUNT"),
			AgeBracketWidth:  v.GetInt("AGE_BRACKET_WIDTH"),
			AgeBracketMax:    v.GetInt("AGE_BRACKET_MAX"),
			AreaBracketWidth: v.GetInt("AREA_BRACKET_WIDTH"),
			AreaBracketMax:   v.GetInt("AREA_BRACKET_MAX"),
			Workers:          v.GetInt("STAGE_WORKERS"),
		},
		Sources: SourcesConfig{
			ReinfolibAPIKey:   v.GetString("REINFOLIB_API_KEY"),
			ReinfolibBaseURL:  v.GetString("REINFOLIB_BASE_URL"),
			ReinfolibInterval: v.GetDuration("REINFOLIB_INTERVAL"),
			LookbackYears:     v.GetInt("TRANSACTION_LOOKBACK_YEARS"),
			SuumoBaseURL:      v.GetString("SUUMO_BASE_URL"),
			SuumoInterval:     v.GetDuration("SUUMO_INTERVAL"),
			SuumoMaxPages:     v.GetInt("SUUMO_MAX_PAGES"),
			GeocodeBaseURL:    v.GetString("GEOCODE_BASE_URL"),
			GeocodeInterval:   v.GetDuration("GEOCODE_INTERVAL"),
		},
		Retry: RetryConfig{
			MaxAttempts: v.GetInt("RETRY_MAX_ATTEMPTS"),
			BaseDelay:   v.GetDuration("RETRY_BASE_DELAY"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// readSettingsFile merges the YAML settings file into v when it exists.
func readSettingsFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat settings file %s: %w", path, err)
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read settings file %s: %w", path, err)
	}
	return nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	if len(c.Pipeline.Regions) == 0 {
		return fmt.Errorf("TARGET_REGIONS must name at least one region")
	}
	if c.Pipeline.MinSampleCount < 1 {
		return fmt.Errorf("MIN_SAMPLE_COUNT must be at least 1")
	}
	if c.Pipeline.AgeBracketWidth < 1 || c.Pipeline.AreaBracketWidth < 1 {
		return fmt.Errorf("bracket widths must be at least 1")
	}
	if c.Pipeline.AgeBracketMax < c.Pipeline.AgeBracketWidth {
		return fmt.Errorf("AGE_BRACKET_MAX must be at least AGE_BRACKET_WIDTH")
	}
	if c.Pipeline.AreaBracketMax < c.Pipeline.AreaBracketWidth {
		return fmt.Errorf("AREA_BRACKET_MAX must be at least AREA_BRACKET_WIDTH")
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("STAGE_WORKERS must be at least 1")
	}

	for name, interval := range map[string]time.Duration{
		"REINFOLIB_INTERVAL": c.Sources.ReinfolibInterval,
		"SUUMO_INTERVAL":     c.Sources.SuumoInterval,
		"GEOCODE_INTERVAL":   c.Sources.GeocodeInterval,
	} {
		if interval < MinPacingInterval {
			return fmt.Errorf("%s must be at least %s, got %s", name, MinPacingInterval, interval)
		}
	}
	if c.Sources.LookbackYears < 1 {
		return fmt.Errorf("TRANSACTION_LOOKBACK_YEARS must be at least 1")
	}
	if c.Sources.SuumoMaxPages < 1 {
		return fmt.Errorf("SUUMO_MAX_PAGES must be at least 1")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	return nil
}

// RequireTransactionCredential reports whether the transaction stage can run.
func (c *Config) RequireTransactionCredential() error {
	if strings.TrimSpace(c.Sources.ReinfolibAPIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// parseList accepts either a comma-separated string (environment) or a YAML
// sequence (settings file) and returns the trimmed, non-empty items.
func parseList(raw interface{}) []string {
	var parts []string
	switch value := raw.(type) {
	case nil:
		return []string{}
	case string:
		parts = strings.Split(value, ",")
	case []string:
		parts = value
	case []interface{}:
		for _, item := range value {
			parts = append(parts, fmt.Sprint(item))
		}
	default:
		parts = []string{fmt.Sprint(value)}
	}

	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
