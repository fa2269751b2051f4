package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stwalsh4118/kakaku/internal/models"
	"github.com/stwalsh4118/kakaku/internal/repository"
)

func intPtr(v int) *int { return &v }
func int64Ptr(v int64) *int64 { return &v }
func floatPtr(v float64) *float64 { return &v }

// memTransactions is an in-memory TransactionRepository.
type memTransactions struct {
	mu   sync.Mutex
	rows map[string]models.TransactionRecord
}

func newMemTransactions() *memTransactions {
	return &memTransactions{rows: map[string]models.TransactionRecord{}}
}

func (m *memTransactions) InsertNew(_ context.Context, records []models.TransactionRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, r := range records {
		if _, ok := m.rows[r.NaturalKey]; ok {
			continue
		}
		m.rows[r.NaturalKey] = r
		inserted++
	}
	return inserted, nil
}

func (m *memTransactions) ListAll(_ context.Context) ([]models.TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.TransactionRecord, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NaturalKey < out[j].NaturalKey })
	return out, nil
}

func (m *memTransactions) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.rows)), nil
}

// memPrices is an in-memory MarketPriceRepository.
type memPrices struct {
	mu   sync.Mutex
	rows []models.MarketPriceBracket
}

func (m *memPrices) ReplaceAll(_ context.Context, brackets []models.MarketPriceBracket, calculatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = make([]models.MarketPriceBracket, len(brackets))
	for i, b := range brackets {
		b.CalculatedAt = calculatedAt
		m.rows[i] = b
	}
	return nil
}

func (m *memPrices) List(_ context.Context, region string) ([]models.MarketPriceBracket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.MarketPriceBracket{}
	for _, b := range m.rows {
		if region == "" || b.Region == region {
			out = append(out, b)
		}
	}
	return out, nil
}

// memListings is an in-memory ListingRepository with the same refresh
// semantics as the PostgreSQL one.
type memListings struct {
	mu      sync.Mutex
	rows    map[string]models.ListingRecord
	history []models.PriceHistoryEntry
}

func newMemListings() *memListings {
	return &memListings{rows: map[string]models.ListingRecord{}}
}

func (m *memListings) get(id string) models.ListingRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

func (m *memListings) put(l models.ListingRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[l.SourceID] = l
}

func (m *memListings) FindBySourceIDs(_ context.Context, ids []string) (map[string]models.ListingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]models.ListingRecord{}
	for _, id := range ids {
		if l, ok := m.rows[id]; ok {
			out[id] = l
		}
	}
	return out, nil
}

func (m *memListings) ActiveSourceIDsByRegion(_ context.Context, region string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []string{}
	for id, l := range m.rows {
		if l.RegionName == region && l.Status == models.ListingActive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memListings) ApplyPlan(_ context.Context, plan repository.ListingPlan) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range plan.Inserts {
		l.Status = models.ListingActive
		l.FirstSeenAt, l.LastSeenAt, l.UpdatedAt = plan.SeenAt, plan.SeenAt, plan.SeenAt
		m.rows[l.SourceID] = l
	}
	for _, u := range plan.Updates {
		stored := m.rows[u.Listing.SourceID]
		next := u.Listing
		next.FirstSeenAt = stored.FirstSeenAt
		next.MarketPrice, next.DealScore = stored.MarketPrice, stored.DealScore
		next.PreviousPrice, next.PriceChangedAt = stored.PreviousPrice, stored.PriceChangedAt
		if next.Address == stored.Address {
			next.Latitude, next.Longitude = stored.Latitude, stored.Longitude
		}
		if next.StationName == nil {
			next.StationName = stored.StationName
		}
		if next.MinutesToStation == nil {
			next.MinutesToStation = stored.MinutesToStation
		}
		if next.Floor == nil {
			next.Floor = stored.Floor
		}
		if next.TotalFloors == nil {
			next.TotalFloors = stored.TotalFloors
		}
		if next.SourceURL == nil {
			next.SourceURL = stored.SourceURL
		}
		if u.PreviousPrice != nil {
			seen := plan.SeenAt
			next.PreviousPrice = u.PreviousPrice
			next.PriceChangedAt = &seen
			m.history = append(m.history, models.PriceHistoryEntry{
				SourceID: next.SourceID, Price: *u.PreviousPrice, RecordedAt: seen,
			})
		}
		next.Status = models.ListingActive
		next.LastSeenAt, next.UpdatedAt = plan.SeenAt, plan.SeenAt
		m.rows[next.SourceID] = next
	}

	deactivated := 0
	for _, id := range plan.Deactivate {
		l, ok := m.rows[id]
		if !ok || l.Status != models.ListingActive {
			continue
		}
		l.Status = models.ListingInactive
		l.UpdatedAt = plan.SeenAt
		m.rows[id] = l
		deactivated++
	}
	return deactivated, nil
}

func (m *memListings) ListActive(_ context.Context) ([]models.ListingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.ListingRecord{}
	for _, l := range m.rows {
		if l.Status == models.ListingActive {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out, nil
}

func (m *memListings) ApplyScores(_ context.Context, scores []repository.ScoreUpdate) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := 0
	for _, s := range scores {
		l, ok := m.rows[s.SourceID]
		if !ok || l.Status != models.ListingActive {
			continue
		}
		if equalInt64(l.MarketPrice, s.MarketPrice) && equalFloat(l.DealScore, s.DealScore) {
			continue
		}
		l.MarketPrice, l.DealScore = s.MarketPrice, s.DealScore
		m.rows[s.SourceID] = l
		changed++
	}
	return changed, nil
}

func (m *memListings) UngeocodedAddresses(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := map[string]struct{}{}
	for _, l := range m.rows {
		if !l.HasCoordinates() && l.Address != "" {
			set[l.Address] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memListings) SetCoordinates(_ context.Context, address string, coords models.Coordinates) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, l := range m.rows {
		if l.Address != address || l.HasCoordinates() {
			continue
		}
		lat, lng := coords.Latitude, coords.Longitude
		l.Latitude, l.Longitude = &lat, &lng
		m.rows[id] = l
		n++
	}
	return n, nil
}

func (m *memListings) List(ctx context.Context, _ repository.ListingFilter) ([]models.ListingRecord, error) {
	return m.ListActive(ctx)
}

func (m *memListings) FindBySourceID(_ context.Context, id string) (*models.ListingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *memListings) PriceHistory(_ context.Context, id string) ([]models.PriceHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.PriceHistoryEntry{}
	for _, h := range m.history {
		if h.SourceID == id {
			out = append(out, h)
		}
	}
	return out, nil
}

// memGeocode is an in-memory GeocodeRepository.
type memGeocode struct {
	mu   sync.Mutex
	rows map[string]models.GeocodeCacheEntry
	gets int
}

func newMemGeocode() *memGeocode {
	return &memGeocode{rows: map[string]models.GeocodeCacheEntry{}}
}

func (m *memGeocode) Get(_ context.Context, address string) (*models.GeocodeCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	e, ok := m.rows[address]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *memGeocode) Put(_ context.Context, entry models.GeocodeCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[entry.NormalizedAddress]; !ok {
		m.rows[entry.NormalizedAddress] = entry
	}
	return nil
}

func equalInt64(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
