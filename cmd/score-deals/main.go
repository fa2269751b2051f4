// Command score-deals recomputes market price and deal score for every
// active listing.
package main

import (
	"context"

	"github.com/stwalsh4118/kakaku/internal/bracket"
	"github.com/stwalsh4118/kakaku/internal/repository"
	"github.com/stwalsh4118/kakaku/internal/services"
	"github.com/stwalsh4118/kakaku/internal/stage"
)

func main() {
	stage.Main("score-deals", func(ctx context.Context, env *stage.Env) (stage.Report, error) {
		cfg := env.Config.Pipeline
		calculator := services.NewDealScoreCalculator(
			repository.NewListingRepository(env.DB),
			repository.NewMarketPriceRepository(env.DB),
			bracket.New(cfg),
			cfg.MinSampleCount,
			env.Log,
		)
		return calculator.Run(ctx)
	})
}
