// Command ingest-listings scrapes the listing source for every target region
// and reconciles the listings table with what is currently offered.
package main

import (
	"context"

	"github.com/stwalsh4118/kakaku/internal/repository"
	"github.com/stwalsh4118/kakaku/internal/retry"
	"github.com/stwalsh4118/kakaku/internal/services"
	"github.com/stwalsh4118/kakaku/internal/sources/suumo"
	"github.com/stwalsh4118/kakaku/internal/stage"
)

func main() {
	stage.Main("ingest-listings", func(ctx context.Context, env *stage.Env) (stage.Report, error) {
		cfg := env.Config
		client := suumo.NewClient(cfg.Sources, cfg.Pipeline.Regions, retry.FromConfig(cfg.Retry), env.Log)
		ingestor := services.NewListingIngestor(
			repository.NewListingRepository(env.DB),
			client,
			cfg.Pipeline.Workers,
			env.Log,
		)
		return ingestor.ScrapeAndIngest(ctx, cfg.Pipeline.Regions)
	})
}
