package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/stwalsh4118/kakaku/internal/config"
	"github.com/stwalsh4118/kakaku/internal/logger"
	"github.com/stwalsh4118/kakaku/internal/models"
	"github.com/stwalsh4118/kakaku/internal/repository"
)

// Listings outside these bounds are not tracked.
const (
	MinAskingPrice = 30_000_000
	MaxAskingPrice = 200_000_000
	MinListingArea = 40.0
)

// ListingSource scrapes the current listings for one region.
type ListingSource interface {
	ScrapeRegion(ctx context.Context, region config.Region) (models.RegionSnapshot, error)
}

// ListingReport summarizes one listing ingest run.
type ListingReport struct {
	Regions           int
	IncompleteRegions int
	Received          int
	Skipped           int // known listings left as stored by incomplete snapshots
	Malformed         int
	Filtered          int
	Duplicates        int
	Inserted          int
	Updated           int
	Reactivated       int
	Deactivated       int
	PriceChanges      int
	PriceDrops        int
}

// Fields renders the report for structured logging.
func (r ListingReport) Fields() logger.Fields {
	return logger.Fields{
		"regions":            r.Regions,
		"incomplete_regions": r.IncompleteRegions,
		"received":           r.Received,
		"skipped":            r.Skipped,
		"malformed":          r.Malformed,
		"filtered":           r.Filtered,
		"duplicates":         r.Duplicates,
		"inserted":           r.Inserted,
		"updated":            r.Updated,
		"reactivated":        r.Reactivated,
		"deactivated":        r.Deactivated,
		"price_changes":      r.PriceChanges,
		"price_drops":        r.PriceDrops,
	}
}

// ListingIngestor reconciles scraped snapshots with stored listings.
type ListingIngestor struct {
	repo    repository.ListingRepository
	source  ListingSource
	log     *logger.Logger
	now     func() time.Time
	workers int
}

// NewListingIngestor creates a ListingIngestor. source may be nil when only
// Ingest is used.
func NewListingIngestor(repo repository.ListingRepository, source ListingSource, workers int, log *logger.Logger) *ListingIngestor {
	if workers < 1 {
		workers = 1
	}
	return &ListingIngestor{
		repo:    repo,
		source:  source,
		log:     log,
		now:     time.Now,
		workers: workers,
	}
}

// Ingest applies snapshots to storage in one write.
//
// New listings are inserted from every snapshot. Known listings are
// refreshed and reactivated only from Complete snapshots, and active
// listings of a complete region that appear in no snapshot of this run are
// deactivated. A region whose snapshot is not Complete keeps its stored
// rows unmodified. Scores on deactivated listings are kept.
func (s *ListingIngestor) Ingest(ctx context.Context, snapshots []models.RegionSnapshot) (ListingReport, error) {
	report := ListingReport{Regions: len(snapshots)}

	// observed holds every identifier seen in this run, including skipped and
	// malformed cards, so none of them is mistaken for a vanished listing.
	observed := make(map[string]struct{})
	filtered := make(map[string]struct{})
	accepted := make(map[string]models.ListingRecord)
	// insertOnly marks accepted listings that came from an incomplete snapshot.
	insertOnly := make(map[string]struct{})
	var completeRegions []string

	for _, snap := range snapshots {
		report.Received += len(snap.Listings)
		for _, raw := range snap.Listings {
			if id := strings.TrimSpace(raw.SourceID); id != "" {
				observed[id] = struct{}{}
			}
		}

		if snap.Complete {
			completeRegions = append(completeRegions, snap.Region)
		} else {
			report.IncompleteRegions++
			s.log.Warn("Incomplete scrape, only inserting new listings", logger.Fields{
				"region":        snap.Region,
				"pages_fetched": snap.PagesFetched,
				"pages_failed":  snap.PagesFailed,
				"listings":      len(snap.Listings),
			})
		}

		for _, raw := range snap.Listings {
			listing, verdict := normalizeListing(raw, snap.Region)
			switch verdict {
			case listingMalformed:
				report.Malformed++
				continue
			case listingFiltered:
				report.Filtered++
				filtered[listing.SourceID] = struct{}{}
				continue
			}
			if _, dup := accepted[listing.SourceID]; dup {
				report.Duplicates++
				// a complete snapshot's copy wins over an insert-only one
				if _, partial := insertOnly[listing.SourceID]; !partial || !snap.Complete {
					continue
				}
			}
			accepted[listing.SourceID] = listing
			if snap.Complete {
				delete(insertOnly, listing.SourceID)
			} else {
				insertOnly[listing.SourceID] = struct{}{}
			}
		}
	}

	// A listing that fell out of the tracked range counts as gone.
	for id := range filtered {
		if _, ok := accepted[id]; !ok {
			delete(observed, id)
		}
	}

	ids := make([]string, 0, len(accepted))
	for id := range accepted {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	existing, err := s.repo.FindBySourceIDs(ctx, ids)
	if err != nil {
		return report, storageErr("load listings", err)
	}

	plan := repository.ListingPlan{SeenAt: s.now()}
	for _, id := range ids {
		listing := accepted[id]
		stored, known := existing[id]
		if !known {
			plan.Inserts = append(plan.Inserts, listing)
			continue
		}
		if _, partial := insertOnly[id]; partial {
			report.Skipped++
			continue
		}

		update := repository.ListingUpdate{Listing: listing}
		if stored.AskingPrice != listing.AskingPrice {
			previous := stored.AskingPrice
			update.PreviousPrice = &previous
			report.PriceChanges++
			if listing.AskingPrice < stored.AskingPrice {
				report.PriceDrops++
			}
		}
		if stored.Status == models.ListingInactive {
			report.Reactivated++
		}
		plan.Updates = append(plan.Updates, update)
	}

	sort.Strings(completeRegions)
	for _, region := range completeRegions {
		active, err := s.repo.ActiveSourceIDsByRegion(ctx, region)
		if err != nil {
			return report, storageErr("load active listings", err)
		}
		for _, id := range active {
			if _, ok := observed[id]; !ok {
				plan.Deactivate = append(plan.Deactivate, id)
			}
		}
	}

	deactivated, err := s.repo.ApplyPlan(ctx, plan)
	if err != nil {
		return report, storageErr("apply listing plan", err)
	}

	report.Inserted = len(plan.Inserts)
	report.Updated = len(plan.Updates)
	report.Deactivated = deactivated
	return report, nil
}

// ScrapeAndIngest scrapes regions in parallel and ingests the result. Page
// pacing is enforced by the source across all workers.
func (s *ListingIngestor) ScrapeAndIngest(ctx context.Context, regions []config.Region) (ListingReport, error) {
	if s.source == nil {
		return ListingReport{}, fmt.Errorf("%w: no listing source configured", ErrConfiguration)
	}

	snapshots := make([]models.RegionSnapshot, len(regions))
	var (
		mu       sync.Mutex
		firstErr error
	)

	pool := pond.NewPool(s.workers)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for i, region := range regions {
		group.Submit(func() {
			snap, err := s.source.ScrapeRegion(groupCtx, region)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
			snap.Region = region.Name
			snapshots[i] = snap
			s.log.Info("Scraped region", logger.Fields{
				"region":   region.Name,
				"listings": len(snap.Listings),
				"pages":    snap.PagesFetched,
				"complete": snap.Complete,
			})
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		s.log.Warn("Scrape group encountered error", logger.Fields{"error": err.Error()})
	}
	if firstErr == nil {
		firstErr = ctx.Err()
	}
	if firstErr != nil {
		return ListingReport{}, fmt.Errorf("listing scrape interrupted: %w", firstErr)
	}

	return s.Ingest(ctx, snapshots)
}

type listingVerdict int

const (
	listingAccepted listingVerdict = iota
	listingMalformed
	listingFiltered
)

func normalizeListing(raw models.RawListing, fallbackRegion string) (models.ListingRecord, listingVerdict) {
	id := strings.TrimSpace(raw.SourceID)
	if id == "" || raw.AskingPrice == nil || *raw.AskingPrice <= 0 {
		return models.ListingRecord{SourceID: id}, listingMalformed
	}

	region := strings.TrimSpace(raw.Region)
	if region == "" {
		region = fallbackRegion
	}
	if region == "" {
		return models.ListingRecord{SourceID: id}, listingMalformed
	}

	price := *raw.AskingPrice
	if price < MinAskingPrice || price > MaxAskingPrice {
		return models.ListingRecord{SourceID: id}, listingFiltered
	}
	if raw.Area != nil && *raw.Area < MinListingArea {
		return models.ListingRecord{SourceID: id}, listingFiltered
	}

	return models.ListingRecord{
		SourceID:         id,
		PropertyName:     strings.TrimSpace(raw.PropertyName),
		RegionName:       region,
		Address:          NormalizeAddress(raw.Address),
		AskingPrice:      price,
		Area:             raw.Area,
		BuildingYear:     raw.BuildingYear,
		FloorPlan:        optionalString(raw.FloorPlan),
		StationName:      optionalString(raw.StationName),
		MinutesToStation: raw.MinutesToStation,
		Floor:            raw.Floor,
		TotalFloors:      raw.TotalFloors,
		SourceURL:        optionalString(raw.SourceURL),
		Status:           models.ListingActive,
	}, listingAccepted
}
