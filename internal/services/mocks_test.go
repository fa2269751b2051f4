package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/stwalsh4118/kakaku/internal/config"
	"github.com/stwalsh4118/kakaku/internal/models"
	"github.com/stwalsh4118/kakaku/internal/repository"
	"github.com/stwalsh4118/kakaku/internal/sources/reinfolib"
)

// MockTransactionRepository is a mock implementation of TransactionRepository.
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) InsertNew(ctx context.Context, records []models.TransactionRecord) (int, error) {
	args := m.Called(ctx, records)
	return args.Int(0), args.Error(1)
}

func (m *MockTransactionRepository) ListAll(ctx context.Context) ([]models.TransactionRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TransactionRecord), args.Error(1)
}

func (m *MockTransactionRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockListingRepository is a mock implementation of ListingRepository.
type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) FindBySourceIDs(ctx context.Context, ids []string) (map[string]models.ListingRecord, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]models.ListingRecord), args.Error(1)
}

func (m *MockListingRepository) ActiveSourceIDsByRegion(ctx context.Context, region string) ([]string, error) {
	args := m.Called(ctx, region)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockListingRepository) ApplyPlan(ctx context.Context, plan repository.ListingPlan) (int, error) {
	args := m.Called(ctx, plan)
	return args.Int(0), args.Error(1)
}

func (m *MockListingRepository) ListActive(ctx context.Context) ([]models.ListingRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ListingRecord), args.Error(1)
}

func (m *MockListingRepository) ApplyScores(ctx context.Context, scores []repository.ScoreUpdate) (int, error) {
	args := m.Called(ctx, scores)
	return args.Int(0), args.Error(1)
}

func (m *MockListingRepository) UngeocodedAddresses(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockListingRepository) SetCoordinates(ctx context.Context, address string, coords models.Coordinates) (int, error) {
	args := m.Called(ctx, address, coords)
	return args.Int(0), args.Error(1)
}

func (m *MockListingRepository) List(ctx context.Context, filter repository.ListingFilter) ([]models.ListingRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ListingRecord), args.Error(1)
}

func (m *MockListingRepository) FindBySourceID(ctx context.Context, sourceID string) (*models.ListingRecord, error) {
	args := m.Called(ctx, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ListingRecord), args.Error(1)
}

func (m *MockListingRepository) PriceHistory(ctx context.Context, sourceID string) ([]models.PriceHistoryEntry, error) {
	args := m.Called(ctx, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PriceHistoryEntry), args.Error(1)
}

// MockMarketPriceRepository is a mock implementation of MarketPriceRepository.
type MockMarketPriceRepository struct {
	mock.Mock
}

func (m *MockMarketPriceRepository) ReplaceAll(ctx context.Context, brackets []models.MarketPriceBracket, calculatedAt time.Time) error {
	args := m.Called(ctx, brackets, calculatedAt)
	return args.Error(0)
}

func (m *MockMarketPriceRepository) List(ctx context.Context, region string) ([]models.MarketPriceBracket, error) {
	args := m.Called(ctx, region)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MarketPriceBracket), args.Error(1)
}

// MockGeocodeRepository is a mock implementation of GeocodeRepository.
type MockGeocodeRepository struct {
	mock.Mock
}

func (m *MockGeocodeRepository) Get(ctx context.Context, address string) (*models.GeocodeCacheEntry, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GeocodeCacheEntry), args.Error(1)
}

func (m *MockGeocodeRepository) Put(ctx context.Context, entry models.GeocodeCacheEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockTransactionSource is a mock implementation of TransactionSource.
type MockTransactionSource struct {
	mock.Mock
}

func (m *MockTransactionSource) Fetch(ctx context.Context, region config.Region, period reinfolib.Period) ([]models.RawTransaction, error) {
	args := m.Called(ctx, region, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RawTransaction), args.Error(1)
}

// MockListingSource is a mock implementation of ListingSource.
type MockListingSource struct {
	mock.Mock
}

func (m *MockListingSource) ScrapeRegion(ctx context.Context, region config.Region) (models.RegionSnapshot, error) {
	args := m.Called(ctx, region)
	return args.Get(0).(models.RegionSnapshot), args.Error(1)
}

// MockGeocoder is a mock implementation of Geocoder.
type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Lookup(ctx context.Context, address string) (models.Coordinates, bool, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(models.Coordinates), args.Bool(1), args.Error(2)
}
