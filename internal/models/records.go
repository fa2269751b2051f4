package models

import (
	"time"
)

// TransactionRecord is one historical resale trade. It is immutable once
// stored. Nullable fields use pointers to distinguish zero values from NULL.
type TransactionRecord struct {
	CreatedAt    time.Time `json:"createdAt"`
	BuildingYear *int      `json:"buildingYear,omitempty"`
	FloorPlan    *string   `json:"floorPlan,omitempty"`
	NaturalKey   string    `json:"naturalKey"`
	Region       string    `json:"region"`
	RegionCode   string    `json:"regionCode"`
	TradePrice   int64     `json:"tradePrice"`
	Area         float64   `json:"area"`
	TradeYear    int       `json:"tradeYear"`
	TradeQuarter int       `json:"tradeQuarter"`
}

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

const (
	ListingActive   ListingStatus = "active"
	ListingInactive ListingStatus = "inactive"
)

// IsValid reports whether s is a recognized status.
func (s ListingStatus) IsValid() bool {
	return s == ListingActive || s == ListingInactive
}

// ListingRecord is a unit currently or previously offered for sale.
// Listings are never deleted; absence from a complete scrape flips Status.
type ListingRecord struct {
	FirstSeenAt      time.Time     `json:"firstSeenAt"`
	LastSeenAt       time.Time     `json:"lastSeenAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
	PriceChangedAt   *time.Time    `json:"priceChangedAt,omitempty"`
	Area             *float64      `json:"area,omitempty"`
	BuildingYear     *int          `json:"buildingYear,omitempty"`
	FloorPlan        *string       `json:"floorPlan,omitempty"`
	StationName      *string       `json:"stationName,omitempty"`
	MinutesToStation *int          `json:"minutesToStation,omitempty"`
	Floor            *int          `json:"floor,omitempty"`
	TotalFloors      *int          `json:"totalFloors,omitempty"`
	SourceURL        *string       `json:"sourceUrl,omitempty"`
	Latitude         *float64      `json:"latitude,omitempty"`
	Longitude        *float64      `json:"longitude,omitempty"`
	MarketPrice      *int64        `json:"marketPrice"`
	DealScore        *float64      `json:"dealScore"`
	PreviousPrice    *int64        `json:"previousPrice,omitempty"`
	SourceID         string        `json:"sourceId"`
	PropertyName     string        `json:"propertyName"`
	RegionName       string        `json:"regionName"`
	Address          string        `json:"address"`
	Status           ListingStatus `json:"status"`
	AskingPrice      int64         `json:"askingPrice"`
}

// HasCoordinates reports whether the listing has been geocoded.
func (l ListingRecord) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// MarketPriceBracket is the aggregate of all transactions sharing a
// (region, age bracket, area bracket) key.
type MarketPriceBracket struct {
	CalculatedAt time.Time `json:"calculatedAt"`
	Region       string    `json:"region"`
	AgeBracket   string    `json:"ageBracket"`
	AreaBracket  string    `json:"areaBracket"`
	AvgPrice     int64     `json:"avgPrice"`
	SampleCount  int       `json:"sampleCount"`
}

// Usable reports whether the bracket has enough samples to back a score.
func (b MarketPriceBracket) Usable(minSampleCount int) bool {
	return b.SampleCount >= minSampleCount && b.AvgPrice > 0
}

// GeocodeCacheEntry maps a normalized address to its coordinates.
type GeocodeCacheEntry struct {
	CachedAt          time.Time `json:"cachedAt"`
	NormalizedAddress string    `json:"normalizedAddress"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
}

// PriceHistoryEntry records an asking price that was replaced.
type PriceHistoryEntry struct {
	RecordedAt time.Time `json:"recordedAt"`
	SourceID   string    `json:"sourceId"`
	Price      int64     `json:"price"`
	ID         int64     `json:"id"`
}
