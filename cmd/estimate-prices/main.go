// Command estimate-prices rebuilds the market price bracket table from every
// stored transaction.
package main

import (
	"context"

	"github.com/stwalsh4118/kakaku/internal/bracket"
	"github.com/stwalsh4118/kakaku/internal/repository"
	"github.com/stwalsh4118/kakaku/internal/services"
	"github.com/stwalsh4118/kakaku/internal/stage"
)

func main() {
	stage.Main("estimate-prices", func(ctx context.Context, env *stage.Env) (stage.Report, error) {
		cfg := env.Config.Pipeline
		estimator := services.NewMarketPriceEstimator(
			repository.NewTransactionRepository(env.DB),
			repository.NewMarketPriceRepository(env.DB),
			bracket.New(cfg),
			cfg.MinSampleCount,
			env.Log,
		)
		return estimator.Run(ctx)
	})
}
