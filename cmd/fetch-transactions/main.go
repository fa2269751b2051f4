// Command fetch-transactions downloads recent resale trades for every target
// region and appends the ones not stored yet.
package main

import (
	"context"

	"github.com/stwalsh4118/kakaku/internal/repository"
	"github.com/stwalsh4118/kakaku/internal/retry"
	"github.com/stwalsh4118/kakaku/internal/services"
	"github.com/stwalsh4118/kakaku/internal/sources/reinfolib"
	"github.com/stwalsh4118/kakaku/internal/stage"
)

func main() {
	stage.Main("fetch-transactions", func(ctx context.Context, env *stage.Env) (stage.Report, error) {
		cfg := env.Config
		if err := cfg.RequireTransactionCredential(); err != nil {
			return nil, err
		}

		client := reinfolib.NewClient(cfg.Sources, retry.FromConfig(cfg.Retry), env.Log)
		ingestor := services.NewTransactionIngestor(
			repository.NewTransactionRepository(env.DB),
			client,
			cfg.Sources.LookbackYears,
			env.Log,
		)
		return ingestor.FetchAndIngest(ctx, cfg.Pipeline.Regions)
	})
}
