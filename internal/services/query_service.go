package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/stwalsh4118/kakaku/internal/logger"
	"github.com/stwalsh4118/kakaku/internal/models"
	"github.com/stwalsh4118/kakaku/internal/repository"
)

// Listing query limits
const (
	DefaultListingLimit = 50
	MaxListingLimit     = 500
)

// Query-level errors
var (
	ErrListingNotFound = errors.New("listing not found")
	ErrInvalidStatus   = errors.New("status must be active or inactive")
	ErrInvalidLimit    = errors.New("limit must be between 1 and 500")
)

// ListingQuery narrows a listing search. Zero values mean no filter.
type ListingQuery struct {
	MinScore *float64
	Region   string
	Status   string
	Limit    int
}

// ListingDetail is a listing together with its replaced prices.
type ListingDetail struct {
	Listing      models.ListingRecord       `json:"listing"`
	PriceHistory []models.PriceHistoryEntry `json:"priceHistory"`
}

// QueryService defines the read-only operations behind the HTTP API.
type QueryService interface {
	// ListListings returns listings best deal first.
	// Returns ErrInvalidStatus or ErrInvalidLimit for bad filters.
	ListListings(ctx context.Context, query ListingQuery) ([]models.ListingRecord, error)

	// GetListing returns ErrListingNotFound if no listing has sourceID.
	GetListing(ctx context.Context, sourceID string) (*ListingDetail, error)

	// ListMarketPrices returns brackets for region, or all regions when it is
	// empty. usableOnly drops brackets below the sample threshold.
	ListMarketPrices(ctx context.Context, region string, usableOnly bool) ([]models.MarketPriceBracket, error)
}

type queryService struct {
	listings       repository.ListingRepository
	prices         repository.MarketPriceRepository
	log            *logger.Logger
	minSampleCount int
}

// NewQueryService creates a new instance of QueryService.
func NewQueryService(listings repository.ListingRepository, prices repository.MarketPriceRepository, minSampleCount int, log *logger.Logger) QueryService {
	return &queryService{
		listings:       listings,
		prices:         prices,
		log:            log,
		minSampleCount: minSampleCount,
	}
}

func (s *queryService) ListListings(ctx context.Context, query ListingQuery) ([]models.ListingRecord, error) {
	status := models.ListingStatus(query.Status)
	if status != "" && !status.IsValid() {
		s.log.Warn("Invalid listing status provided", logger.Fields{"status": query.Status})
		return nil, fmt.Errorf("%w: got %q", ErrInvalidStatus, query.Status)
	}

	limit := query.Limit
	if limit == 0 {
		limit = DefaultListingLimit
	}
	if limit < 1 || limit > MaxListingLimit {
		s.log.Warn("Invalid listing limit provided", logger.Fields{"limit": query.Limit})
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, query.Limit)
	}

	listings, err := s.listings.List(ctx, repository.ListingFilter{
		MinScore: query.MinScore,
		Region:   query.Region,
		Status:   status,
		Limit:    limit,
	})
	if err != nil {
		s.log.Error("Failed to list listings", err, logger.Fields{"region": query.Region})
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return listings, nil
}

func (s *queryService) GetListing(ctx context.Context, sourceID string) (*ListingDetail, error) {
	listing, err := s.listings.FindBySourceID(ctx, sourceID)
	if err != nil {
		s.log.Error("Failed to load listing", err, logger.Fields{"source_id": sourceID})
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	if listing == nil {
		return nil, fmt.Errorf("%w: %s", ErrListingNotFound, sourceID)
	}

	history, err := s.listings.PriceHistory(ctx, sourceID)
	if err != nil {
		s.log.Error("Failed to load price history", err, logger.Fields{"source_id": sourceID})
		return nil, fmt.Errorf("failed to load price history: %w", err)
	}

	return &ListingDetail{Listing: *listing, PriceHistory: history}, nil
}

func (s *queryService) ListMarketPrices(ctx context.Context, region string, usableOnly bool) ([]models.MarketPriceBracket, error) {
	brackets, err := s.prices.List(ctx, region)
	if err != nil {
		s.log.Error("Failed to list market prices", err, logger.Fields{"region": region})
		return nil, fmt.Errorf("failed to list market prices: %w", err)
	}
	if !usableOnly {
		return brackets, nil
	}

	usable := make([]models.MarketPriceBracket, 0, len(brackets))
	for _, b := range brackets {
		if b.Usable(s.minSampleCount) {
			usable = append(usable, b)
		}
	}
	return usable, nil
}
