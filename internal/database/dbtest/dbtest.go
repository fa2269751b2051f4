// Package dbtest opens the PostgreSQL database used by integration tests.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stwalsh4118/kakaku/internal/config"
	"github.com/stwalsh4118/kakaku/internal/database"
)

// Config returns database configuration for integration tests.
func Config() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		Name:     getEnvOrDefault("DB_NAME", "kakaku_test"),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
		PoolMin:  1,
		PoolMax:  4,
	}
}

// Open connects, migrates and truncates every pipeline table. The test is
// skipped in short mode or when no database is reachable.
func Open(t *testing.T) *database.Database {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := database.NewPostgresPool(ctx, Config())
	if err != nil {
		t.Skipf("Skipping integration test, database unavailable: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	if _, err := db.Pool.Exec(ctx,
		`TRUNCATE price_history, listings, transactions, market_prices, geocode_cache`); err != nil {
		t.Fatalf("Failed to truncate test tables: %v", err)
	}

	return db
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
