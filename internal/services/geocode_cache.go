package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/stwalsh4118/kakaku/internal/logger"
	"github.com/stwalsh4118/kakaku/internal/models"
	"github.com/stwalsh4118/kakaku/internal/repository"
)

// Geocoder resolves an address with an external service. found is false
// with a nil error when the service has no match.
type Geocoder interface {
	Lookup(ctx context.Context, address string) (coords models.Coordinates, found bool, err error)
}

// GeocodeReport summarizes one geocoding run.
type GeocodeReport struct {
	Addresses       int
	CacheHits       int
	Resolved        int
	Unresolved      int
	ListingsUpdated int
}

// Fields renders the report for structured logging.
func (r GeocodeReport) Fields() logger.Fields {
	return logger.Fields{
		"addresses":        r.Addresses,
		"cache_hits":       r.CacheHits,
		"resolved":         r.Resolved,
		"unresolved":       r.Unresolved,
		"listings_updated": r.ListingsUpdated,
	}
}

type resolution int

const (
	resolvedFromCache resolution = iota
	resolvedFromLookup
	unresolved
)

// GeocodeCache resolves addresses through the persisted cache, calling the
// geocoder only on a miss. Failed lookups are not cached, so a later run
// retries them.
type GeocodeCache struct {
	cache    repository.GeocodeRepository
	listings repository.ListingRepository
	geocoder Geocoder
	memo     *xsync.Map[string, models.Coordinates]
	log      *logger.Logger
	workers  int
}

// NewGeocodeCache creates a GeocodeCache. listings may be nil when only
// Resolve is used.
func NewGeocodeCache(cache repository.GeocodeRepository, listings repository.ListingRepository, geocoder Geocoder, workers int, log *logger.Logger) *GeocodeCache {
	if workers < 1 {
		workers = 1
	}
	return &GeocodeCache{
		cache:    cache,
		listings: listings,
		geocoder: geocoder,
		memo:     xsync.NewMap[string, models.Coordinates](),
		log:      log,
		workers:  workers,
	}
}

// Resolve returns the coordinates of address. It reports false when the
// address cannot be resolved right now, including when the cache itself is
// unavailable.
func (g *GeocodeCache) Resolve(ctx context.Context, address string) (models.Coordinates, bool) {
	coords, how, err := g.resolve(ctx, address)
	if err != nil {
		g.log.Error("Geocode cache unavailable", err, logger.Fields{"address": address})
		return models.Coordinates{}, false
	}
	return coords, how != unresolved
}

func (g *GeocodeCache) resolve(ctx context.Context, address string) (models.Coordinates, resolution, error) {
	key := NormalizeAddress(address)
	if key == "" {
		return models.Coordinates{}, unresolved, nil
	}

	if coords, ok := g.memo.Load(key); ok {
		return coords, resolvedFromCache, nil
	}

	entry, err := g.cache.Get(ctx, key)
	if err != nil {
		return models.Coordinates{}, unresolved, storageErr("read geocode cache", err)
	}
	if entry != nil {
		coords := models.Coordinates{Latitude: entry.Latitude, Longitude: entry.Longitude}
		g.memo.Store(key, coords)
		return coords, resolvedFromCache, nil
	}

	coords, found, err := g.geocoder.Lookup(ctx, key)
	if err != nil {
		g.log.Warn("Geocode lookup failed", logger.Fields{"address": key, "error": err.Error()})
		return models.Coordinates{}, unresolved, nil
	}
	if !found {
		g.log.Debug("No geocode match", logger.Fields{"address": key})
		return models.Coordinates{}, unresolved, nil
	}

	if err := g.cache.Put(ctx, models.GeocodeCacheEntry{
		NormalizedAddress: key,
		Latitude:          coords.Latitude,
		Longitude:         coords.Longitude,
	}); err != nil {
		return models.Coordinates{}, unresolved, storageErr("write geocode cache", err)
	}
	g.memo.Store(key, coords)
	return coords, resolvedFromLookup, nil
}

// GeocodeListings fills coordinates on every listing that has none. Each
// distinct normalized address is resolved once. A storage failure stops the
// run; coordinates already written stay valid.
func (g *GeocodeCache) GeocodeListings(ctx context.Context) (GeocodeReport, error) {
	if g.listings == nil {
		return GeocodeReport{}, fmt.Errorf("%w: no listing repository configured", ErrConfiguration)
	}

	addresses, err := g.listings.UngeocodedAddresses(ctx)
	if err != nil {
		return GeocodeReport{}, storageErr("load ungeocoded addresses", err)
	}

	byKey := make(map[string][]string)
	var keys []string
	for _, addr := range addresses {
		key := NormalizeAddress(addr)
		if _, ok := byKey[key]; !ok {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], addr)
	}

	var (
		hits, resolved, failed, updated atomic.Int32
		mu                              sync.Mutex
		firstErr                        error
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := pond.NewPool(g.workers)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(runCtx)
	groupCtx := group.Context()

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}

	for _, key := range keys {
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}

			coords, how, err := g.resolve(groupCtx, key)
			if err != nil {
				fail(err)
				return
			}
			switch how {
			case unresolved:
				failed.Add(1)
				return
			case resolvedFromCache:
				hits.Add(1)
			case resolvedFromLookup:
				resolved.Add(1)
			}

			for _, addr := range byKey[key] {
				n, err := g.listings.SetCoordinates(groupCtx, addr, coords)
				if err != nil {
					fail(storageErr("set listing coordinates", err))
					return
				}
				updated.Add(int32(n))
			}
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		g.log.Warn("Geocode group encountered error", logger.Fields{"error": err.Error()})
	}

	report := GeocodeReport{
		Addresses:       len(keys),
		CacheHits:       int(hits.Load()),
		Resolved:        int(resolved.Load()),
		Unresolved:      int(failed.Load()),
		ListingsUpdated: int(updated.Load()),
	}
	if firstErr != nil {
		return report, firstErr
	}
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("geocoding interrupted: %w", err)
	}
	return report, nil
}
