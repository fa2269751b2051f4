// Command geocode fills coordinates on listings that have none.
package main

import (
	"context"

	"github.com/stwalsh4118/kakaku/internal/repository"
	"github.com/stwalsh4118/kakaku/internal/retry"
	"github.com/stwalsh4118/kakaku/internal/services"
	"github.com/stwalsh4118/kakaku/internal/sources/gsi"
	"github.com/stwalsh4118/kakaku/internal/stage"
)

func main() {
	stage.Main("geocode", func(ctx context.Context, env *stage.Env) (stage.Report, error) {
		cfg := env.Config
		cache := services.NewGeocodeCache(
			repository.NewGeocodeRepository(env.DB),
			repository.NewListingRepository(env.DB),
			gsi.NewClient(cfg.Sources, retry.FromConfig(cfg.Retry), env.Log),
			cfg.Pipeline.Workers,
			env.Log,
		)
		return cache.GeocodeListings(ctx)
	})
}
