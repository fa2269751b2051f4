package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// configEnvVars lists every variable Load reads.
var configEnvVars = []string{
	"PORT", "ENV", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD",
	"DB_POOL_MIN", "DB_POOL_MAX", "CORS_ORIGINS", "TARGET_REGIONS",
	"MIN_SAMPLE_COUNT", "AGE_BRACKET_WIDTH", "AGE_BRACKET_MAX",
	"AREA_BRACKET_WIDTH", "AREA_BRACKET_MAX", "STAGE_WORKERS",
	"REINFOLIB_API_KEY", "REINFOLIB_BASE_URL", "REINFOLIB_INTERVAL",
	"TRANSACTION_LOOKBACK_YEARS", "SUUMO_BASE_URL", "SUUMO_INTERVAL",
	"SUUMO_MAX_PAGES", "GEOCODE_BASE_URL", "GEOCODE_INTERVAL",
	"RETRY_MAX_ATTEMPTS", "RETRY_BASE_DELAY",
}

// clearConfigEnv blanks every config variable for the duration of the test.
// Viper treats empty variables as unset.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, name := range configEnvVars {
		t.Setenv(name, "")
	}
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yml"))
}

func TestLoad_WithDefaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DB_PASSWORD", "testpass")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "kakaku", cfg.Database.Name)
	assert.Equal(t, 1, cfg.Database.PoolMin)
	assert.Equal(t, 4, cfg.Database.PoolMax)

	assert.Len(t, cfg.Pipeline.Regions, len(KnownRegions))
	assert.Equal(t, 20, cfg.Pipeline.MinSampleCount)
	assert.Equal(t, 5, cfg.Pipeline.AgeBracketWidth)
	assert.Equal(t, 10, cfg.Pipeline.AreaBracketWidth)

	assert.Equal(t, 500*time.Millisecond, cfg.Sources.ReinfolibInterval)
	assert.Equal(t, 2*time.Second, cfg.Sources.SuumoInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Sources.GeocodeInterval)
	assert.Equal(t, 2, cfg.Sources.LookbackYears)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PASSWORD", "testpass")
	t.Setenv("DB_POOL_MAX", "8")
	t.Setenv("TARGET_REGIONS", "江東区, 13109 ,江東区")
	t.Setenv("MIN_SAMPLE_COUNT", "30")
	t.Setenv("AREA_BRACKET_WIDTH", "5")
	t.Setenv("GEOCODE_INTERVAL", "1s")
	t.Setenv("REINFOLIB_API_KEY", "secret")
	t.Setenv("CORS_ORIGINS", "http://example.com,https://app.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Server.Env)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 8, cfg.Database.PoolMax)
	require.Len(t, cfg.Pipeline.Regions, 2)
	assert.Equal(t, "江東区", cfg.Pipeline.Regions[0].Name)
	assert.Equal(t, "品川区", cfg.Pipeline.Regions[1].Name)
	assert.Equal(t, 30, cfg.Pipeline.MinSampleCount)
	assert.Equal(t, 5, cfg.Pipeline.AreaBracketWidth)
	assert.Equal(t, time.Second, cfg.Sources.GeocodeInterval)
	assert.NoError(t, cfg.RequireTransactionCredential())
	assert.Equal(t, []string{"http://example.com", "https://app.example.com"}, cfg.CORS.Origins)
}

func TestLoad_SettingsFileRegions(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DB_PASSWORD", "testpass")

	path := filepath.Join(t.TempDir(), "settings.yml")
	content := "target_regions:\n  - 浦安市\n  - 大田区\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	require.Len(t, cfg.Pipeline.Regions, 2)
	assert.Equal(t, "12227", cfg.Pipeline.Regions[0].Code)
	assert.Equal(t, "13111", cfg.Pipeline.Regions[1].Code)
}

func TestLoad_UnknownRegion(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DB_PASSWORD", "testpass")
	t.Setenv("TARGET_REGIONS", "渋谷区")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown target region")
}

func TestLoad_MissingPassword(t *testing.T) {
	clearConfigEnv(t)

	_, err := Load()
	assert.Error(t, err, "Expected error when DB_PASSWORD is missing")
}

func TestLoad_PacingTooAggressive(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DB_PASSWORD", "testpass")
	t.Setenv("SUUMO_INTERVAL", "10ms")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUUMO_INTERVAL")
}

func TestRequireTransactionCredential(t *testing.T) {
	cfg := validConfig()
	assert.ErrorIs(t, cfg.RequireTransactionCredential(), ErrMissingAPIKey)

	cfg.Sources.ReinfolibAPIKey = "key"
	assert.NoError(t, cfg.RequireTransactionCredential())
}

func TestValidate_InvalidPoolSizes(t *testing.T) {
	tests := []struct {
		name    string
		poolMin int
		poolMax int
		wantErr bool
	}{
		{name: "negative pool min", poolMin: -1, poolMax: 10, wantErr: true},
		{name: "zero pool max", poolMin: 0, poolMax: 0, wantErr: true},
		{name: "pool min greater than max", poolMin: 15, poolMax: 10, wantErr: true},
		{name: "valid pool sizes", poolMin: 2, poolMax: 10, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Database.PoolMin = tt.poolMin
			cfg.Database.PoolMax = tt.poolMax

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_InvalidPipeline(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "no regions", mutate: func(c *Config) { c.Pipeline.Regions = nil }},
		{name: "zero min sample count", mutate: func(c *Config) { c.Pipeline.MinSampleCount = 0 }},
		{name: "zero age width", mutate: func(c *Config) { c.Pipeline.AgeBracketWidth = 0 }},
		{name: "age max below width", mutate: func(c *Config) { c.Pipeline.AgeBracketMax = 2 }},
		{name: "area max below width", mutate: func(c *Config) { c.Pipeline.AreaBracketMax = 5 }},
		{name: "no workers", mutate: func(c *Config) { c.Pipeline.Workers = 0 }},
		{name: "geocode pacing too short", mutate: func(c *Config) { c.Sources.GeocodeInterval = time.Millisecond }},
		{name: "zero retry attempts", mutate: func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{name: "missing db password", mutate: func(c *Config) { c.Database.Password = "" }},
		{name: "missing CORS origins", mutate: func(c *Config) { c.CORS.Origins = []string{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseList(t *testing.T) {
	tests := []struct {
		name   string
		input  interface{}
		expect []string
	}{
		{name: "nil", input: nil, expect: []string{}},
		{name: "single value", input: "江東区", expect: []string{"江東区"}},
		{name: "comma separated with spaces", input: " a , b ", expect: []string{"a", "b"}},
		{name: "only commas", input: ",,,", expect: []string{}},
		{name: "yaml sequence", input: []interface{}{"a", " b", ""}, expect: []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, parseList(tt.input))
		})
	}
}

func TestResolveRegions(t *testing.T) {
	all, err := ResolveRegions(nil)
	require.NoError(t, err)
	assert.Equal(t, KnownRegions, all)

	picked, err := ResolveRegions([]string{"12207"})
	require.NoError(t, err)
	require.Len(t, picked, 1)
	assert.Equal(t, "松戸市", picked[0].Name)
	assert.Equal(t, "chiba", picked[0].Prefecture)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Env: "development"},
		Database: DatabaseConfig{
			Host: "localhost", Port: "5432", Name: "kakaku",
			User: "postgres", Password: "postgres", PoolMin: 1, PoolMax: 4,
		},
		CORS: CORSConfig{Origins: []string{"http://localhost:3000"}},
		Pipeline: PipelineConfig{
			Regions:          []Region{KnownRegions[0]},
			MinSampleCount:   20,
			AgeBracketWidth:  5,
			AgeBracketMax:    40,
			AreaBracketWidth: 10,
			AreaBracketMax:   100,
			Workers:          2,
		},
		Sources: SourcesConfig{
			ReinfolibInterval: 500 * time.Millisecond,
			LookbackYears:     2,
			SuumoInterval:     2 * time.Second,
			SuumoMaxPages:     50,
			GeocodeInterval:   500 * time.Millisecond,
		},
		Retry: RetryConfig{MaxAttempts: 3, BaseDelay: time.Second},
	}
}
