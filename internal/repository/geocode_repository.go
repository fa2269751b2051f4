package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stwalsh4118/kakaku/internal/database"
	"github.com/stwalsh4118/kakaku/internal/models"
)

// GeocodeRepository defines data access for the address cache.
type GeocodeRepository interface {
	// Get returns nil, nil on a cache miss.
	Get(ctx context.Context, normalizedAddress string) (*models.GeocodeCacheEntry, error)

	// Put stores an entry. An existing entry for the address is kept as is.
	Put(ctx context.Context, entry models.GeocodeCacheEntry) error
}

type geocodeRepository struct {
	db *database.Database
}

// NewGeocodeRepository creates a new instance of GeocodeRepository.
func NewGeocodeRepository(db *database.Database) GeocodeRepository {
	return &geocodeRepository{db: db}
}

func (r *geocodeRepository) Get(ctx context.Context, normalizedAddress string) (*models.GeocodeCacheEntry, error) {
	var e models.GeocodeCacheEntry
	err := r.db.Pool.QueryRow(ctx, `
		SELECT normalized_address, latitude, longitude, cached_at
		FROM geocode_cache
		WHERE normalized_address = $1
	`, normalizedAddress).Scan(&e.NormalizedAddress, &e.Latitude, &e.Longitude, &e.CachedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query geocode cache: %w", err)
	}
	return &e, nil
}

func (r *geocodeRepository) Put(ctx context.Context, entry models.GeocodeCacheEntry) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO geocode_cache (normalized_address, latitude, longitude)
		VALUES ($1, $2, $3)
		ON CONFLICT (normalized_address) DO NOTHING
	`, entry.NormalizedAddress, entry.Latitude, entry.Longitude)
	if err != nil {
		return fmt.Errorf("failed to store geocode cache entry: %w", err)
	}
	return nil
}
