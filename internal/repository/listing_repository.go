package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stwalsh4118/kakaku/internal/database"
	"github.com/stwalsh4118/kakaku/internal/models"
)

// ListingUpdate refreshes an existing listing from a new observation.
// PreviousPrice is set only when the asking price changed; the old price is
// then appended to price_history.
type ListingUpdate struct {
	Listing       models.ListingRecord
	PreviousPrice *int64
}

// ListingPlan is the full set of writes produced by one ingest run.
type ListingPlan struct {
	SeenAt     time.Time
	Inserts    []models.ListingRecord
	Updates    []ListingUpdate
	Deactivate []string
}

// Empty reports whether applying the plan would change nothing.
func (p ListingPlan) Empty() bool {
	return len(p.Inserts) == 0 && len(p.Updates) == 0 && len(p.Deactivate) == 0
}

// ScoreUpdate carries the computed market price and deal score for one
// listing. Both are nil when no usable bracket backs the listing.
type ScoreUpdate struct {
	MarketPrice *int64
	DealScore   *float64
	SourceID    string
}

// ListingFilter narrows read-only listing queries.
type ListingFilter struct {
	MinScore *float64
	Region   string
	Status   models.ListingStatus
	Limit    int
}

// ListingRepository defines data access for listings.
type ListingRepository interface {
	// FindBySourceIDs returns the stored listings among ids keyed by source id.
	FindBySourceIDs(ctx context.Context, ids []string) (map[string]models.ListingRecord, error)

	// ActiveSourceIDsByRegion returns the ids of every active listing in region.
	ActiveSourceIDsByRegion(ctx context.Context, region string) ([]string, error)

	// ApplyPlan writes the plan in a single transaction. It returns the number
	// of listings that actually flipped to inactive.
	ApplyPlan(ctx context.Context, plan ListingPlan) (int, error)

	// ListActive returns every active listing ordered by source id.
	ListActive(ctx context.Context) ([]models.ListingRecord, error)

	// ApplyScores writes scores in a single transaction and returns how many
	// rows changed value.
	ApplyScores(ctx context.Context, scores []ScoreUpdate) (int, error)

	// UngeocodedAddresses returns distinct addresses of listings without
	// coordinates, ordered lexically.
	UngeocodedAddresses(ctx context.Context) ([]string, error)

	// SetCoordinates fills coordinates on every listing at address that has
	// none yet and returns the number of listings touched.
	SetCoordinates(ctx context.Context, address string, coords models.Coordinates) (int, error)

	// List returns listings matching filter, best deal first.
	List(ctx context.Context, filter ListingFilter) ([]models.ListingRecord, error)

	// FindBySourceID returns nil, nil when the listing does not exist.
	FindBySourceID(ctx context.Context, sourceID string) (*models.ListingRecord, error)

	// PriceHistory returns the replaced prices for a listing, oldest first.
	PriceHistory(ctx context.Context, sourceID string) ([]models.PriceHistoryEntry, error)
}

type listingRepository struct {
	db *database.Database
}

// NewListingRepository creates a new instance of ListingRepository.
func NewListingRepository(db *database.Database) ListingRepository {
	return &listingRepository{db: db}
}

const listingColumns = `
	source_id, property_name, region_name, address, asking_price, area,
	building_year, floor_plan, station_name, minutes_to_station, floor,
	total_floors, source_url, latitude, longitude, market_price, deal_score,
	previous_price, price_changed_at, status, first_seen_at, last_seen_at,
	updated_at
`

func scanListing(row pgx.Row) (models.ListingRecord, error) {
	var (
		l      models.ListingRecord
		status string
	)
	err := row.Scan(
		&l.SourceID,
		&l.PropertyName,
		&l.RegionName,
		&l.Address,
		&l.AskingPrice,
		&l.Area,
		&l.BuildingYear,
		&l.FloorPlan,
		&l.StationName,
		&l.MinutesToStation,
		&l.Floor,
		&l.TotalFloors,
		&l.SourceURL,
		&l.Latitude,
		&l.Longitude,
		&l.MarketPrice,
		&l.DealScore,
		&l.PreviousPrice,
		&l.PriceChangedAt,
		&status,
		&l.FirstSeenAt,
		&l.LastSeenAt,
		&l.UpdatedAt,
	)
	l.Status = models.ListingStatus(status)
	return l, err
}

func collectListings(rows pgx.Rows) ([]models.ListingRecord, error) {
	defer rows.Close()

	listings := []models.ListingRecord{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing row: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listing rows: %w", err)
	}
	return listings, nil
}

func (r *listingRepository) FindBySourceIDs(ctx context.Context, ids []string) (map[string]models.ListingRecord, error) {
	found := make(map[string]models.ListingRecord, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE source_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings by source id: %w", err)
	}
	listings, err := collectListings(rows)
	if err != nil {
		return nil, err
	}
	for _, l := range listings {
		found[l.SourceID] = l
	}
	return found, nil
}

func (r *listingRepository) ActiveSourceIDsByRegion(ctx context.Context, region string) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT source_id FROM listings
		WHERE region_name = $1 AND status = 'active'
		ORDER BY source_id
	`, region)
	if err != nil {
		return nil, fmt.Errorf("failed to query active listings for %s: %w", region, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect active listings for %s: %w", region, err)
	}
	return ids, nil
}

const insertListingSQL = `
	INSERT INTO listings (
		source_id, property_name, region_name, address, asking_price, area,
		building_year, floor_plan, station_name, minutes_to_station, floor,
		total_floors, source_url, status, first_seen_at, last_seen_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'active', $14, $14, $14)
`

// Coordinates are dropped when the address changes so the geocoder picks the
// listing up again.
const updateListingSQL = `
	UPDATE listings SET
		property_name      = $2,
		region_name        = $3,
		address            = $4,
		asking_price       = $5,
		area               = $6,
		building_year      = $7,
		floor_plan         = $8,
		station_name       = COALESCE($9, station_name),
		minutes_to_station = COALESCE($10, minutes_to_station),
		floor              = COALESCE($11, floor),
		total_floors       = COALESCE($12, total_floors),
		source_url         = COALESCE($13, source_url),
		latitude           = CASE WHEN address = $4 THEN latitude ELSE NULL END,
		longitude          = CASE WHEN address = $4 THEN longitude ELSE NULL END,
		previous_price     = COALESCE($15::bigint, previous_price),
		price_changed_at   = CASE WHEN $15::bigint IS NULL THEN price_changed_at ELSE $14 END,
		status             = 'active',
		last_seen_at       = $14,
		updated_at         = $14
	WHERE source_id = $1
`

const insertPriceHistorySQL = `
	INSERT INTO price_history (source_id, price, recorded_at) VALUES ($1, $2, $3)
`

const deactivateListingsSQL = `
	UPDATE listings SET status = 'inactive', updated_at = $2
	WHERE source_id = ANY($1) AND status = 'active'
`

func (r *listingRepository) ApplyPlan(ctx context.Context, plan ListingPlan) (int, error) {
	if plan.Empty() {
		return 0, nil
	}

	deactivated := 0
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, l := range plan.Inserts {
			batch.Queue(insertListingSQL,
				l.SourceID, l.PropertyName, l.RegionName, l.Address, l.AskingPrice,
				l.Area, l.BuildingYear, l.FloorPlan, l.StationName, l.MinutesToStation,
				l.Floor, l.TotalFloors, l.SourceURL, plan.SeenAt,
			)
		}
		for _, u := range plan.Updates {
			l := u.Listing
			batch.Queue(updateListingSQL,
				l.SourceID, l.PropertyName, l.RegionName, l.Address, l.AskingPrice,
				l.Area, l.BuildingYear, l.FloorPlan, l.StationName, l.MinutesToStation,
				l.Floor, l.TotalFloors, l.SourceURL, plan.SeenAt, u.PreviousPrice,
			)
			if u.PreviousPrice != nil {
				batch.Queue(insertPriceHistorySQL, l.SourceID, *u.PreviousPrice, plan.SeenAt)
			}
		}

		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("failed to write listing batch statement %d: %w", i+1, err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("failed to close listing batch: %w", err)
		}

		if len(plan.Deactivate) > 0 {
			tag, err := tx.Exec(ctx, deactivateListingsSQL, plan.Deactivate, plan.SeenAt)
			if err != nil {
				return fmt.Errorf("failed to deactivate listings: %w", err)
			}
			deactivated = int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deactivated, nil
}

func (r *listingRepository) ListActive(ctx context.Context) ([]models.ListingRecord, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE status = 'active' ORDER BY source_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active listings: %w", err)
	}
	return collectListings(rows)
}

const applyScoreSQL = `
	UPDATE listings SET market_price = $2, deal_score = $3, updated_at = NOW()
	WHERE source_id = $1
	  AND status = 'active'
	  AND (market_price IS DISTINCT FROM $2 OR deal_score IS DISTINCT FROM $3)
`

func (r *listingRepository) ApplyScores(ctx context.Context, scores []ScoreUpdate) (int, error) {
	if len(scores) == 0 {
		return 0, nil
	}

	changed := 0
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, s := range scores {
			batch.Queue(applyScoreSQL, s.SourceID, s.MarketPrice, s.DealScore)
		}

		results := tx.SendBatch(ctx, batch)
		for i := range scores {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return fmt.Errorf("failed to write score for %s: %w", scores[i].SourceID, err)
			}
			changed += int(tag.RowsAffected())
		}
		return results.Close()
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

func (r *listingRepository) UngeocodedAddresses(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT DISTINCT address FROM listings
		WHERE (latitude IS NULL OR longitude IS NULL) AND address <> ''
		ORDER BY address
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ungeocoded addresses: %w", err)
	}
	addresses, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect ungeocoded addresses: %w", err)
	}
	return addresses, nil
}

func (r *listingRepository) SetCoordinates(ctx context.Context, address string, coords models.Coordinates) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE listings SET latitude = $2, longitude = $3, updated_at = NOW()
		WHERE address = $1 AND (latitude IS NULL OR longitude IS NULL)
	`, address, coords.Latitude, coords.Longitude)
	if err != nil {
		return 0, fmt.Errorf("failed to set coordinates for %q: %w", address, err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *listingRepository) List(ctx context.Context, filter ListingFilter) ([]models.ListingRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Region != "" {
		args = append(args, filter.Region)
		where = append(where, fmt.Sprintf("region_name = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.MinScore != nil {
		args = append(args, *filter.MinScore)
		where = append(where, fmt.Sprintf("deal_score >= $%d", len(args)))
	}

	query := `SELECT ` + listingColumns + ` FROM listings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY deal_score DESC NULLS LAST, source_id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	return collectListings(rows)
}

func (r *listingRepository) FindBySourceID(ctx context.Context, sourceID string) (*models.ListingRecord, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE source_id = $1`, sourceID)

	l, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query listing %s: %w", sourceID, err)
	}
	return &l, nil
}

func (r *listingRepository) PriceHistory(ctx context.Context, sourceID string) ([]models.PriceHistoryEntry, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, source_id, price, recorded_at FROM price_history
		WHERE source_id = $1
		ORDER BY recorded_at, id
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history for %s: %w", sourceID, err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.PriceHistoryEntry, error) {
		var e models.PriceHistoryEntry
		err := row.Scan(&e.ID, &e.SourceID, &e.Price, &e.RecordedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect price history for %s: %w", sourceID, err)
	}
	return entries, nil
}
