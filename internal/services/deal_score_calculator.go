package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stwalsh4118/kakaku/internal/bracket"
	"github.com/stwalsh4118/kakaku/internal/logger"
	"github.com/stwalsh4118/kakaku/internal/models"
	"github.com/stwalsh4118/kakaku/internal/repository"
)

// ScoreReport summarizes one scoring run.
type ScoreReport struct {
	Listings       int
	Scored         int
	Unbucketed     int
	NoBracket      int
	BelowThreshold int
	Changed        int
}

// Fields renders the report for structured logging.
func (r ScoreReport) Fields() logger.Fields {
	return logger.Fields{
		"listings":        r.Listings,
		"scored":          r.Scored,
		"unbucketed":      r.Unbucketed,
		"no_bracket":      r.NoBracket,
		"below_threshold": r.BelowThreshold,
		"changed":         r.Changed,
	}
}

// DealScoreCalculator scores active listings against the bracket table.
type DealScoreCalculator struct {
	listings       repository.ListingRepository
	prices         repository.MarketPriceRepository
	bucketer       bracket.Bucketer
	log            *logger.Logger
	now            func() time.Time
	minSampleCount int
}

// NewDealScoreCalculator creates a DealScoreCalculator.
func NewDealScoreCalculator(listings repository.ListingRepository, prices repository.MarketPriceRepository, bucketer bracket.Bucketer, minSampleCount int, log *logger.Logger) *DealScoreCalculator {
	return &DealScoreCalculator{
		listings:       listings,
		prices:         prices,
		bucketer:       bucketer,
		log:            log,
		now:            time.Now,
		minSampleCount: minSampleCount,
	}
}

// DealScore is the percentage by which marketPrice exceeds askingPrice,
// rounded to two decimals. It is unbounded in both directions.
func DealScore(marketPrice, askingPrice int64) float64 {
	market := decimal.NewFromInt(marketPrice)
	score := market.Sub(decimal.NewFromInt(askingPrice)).
		Div(market).
		Mul(decimal.NewFromInt(100)).
		Round(2)
	f, _ := score.Float64()
	return f
}

// Run recomputes market price and deal score for every active listing. A
// listing without area, building year or region, or whose bracket is missing
// or below the sample threshold, gets both fields cleared.
func (c *DealScoreCalculator) Run(ctx context.Context) (ScoreReport, error) {
	brackets, err := c.prices.List(ctx, "")
	if err != nil {
		return ScoreReport{}, storageErr("load market prices", err)
	}
	byKey := make(map[bracket.Key]models.MarketPriceBracket, len(brackets))
	for _, b := range brackets {
		byKey[bracket.Key{Region: b.Region, Age: b.AgeBracket, Area: b.AreaBracket}] = b
	}

	listings, err := c.listings.ListActive(ctx)
	if err != nil {
		return ScoreReport{}, storageErr("load active listings", err)
	}

	report := ScoreReport{Listings: len(listings)}
	currentYear := c.now().Year()
	updates := make([]repository.ScoreUpdate, 0, len(listings))

	for _, l := range listings {
		update := repository.ScoreUpdate{SourceID: l.SourceID}

		key, ok := c.bucketer.KeyFor(l.RegionName, currentYear, l.BuildingYear, l.Area)
		switch b, found := byKey[key]; {
		case !ok:
			report.Unbucketed++
		case !found:
			report.NoBracket++
		case !b.Usable(c.minSampleCount):
			report.BelowThreshold++
		default:
			market := b.AvgPrice
			score := DealScore(market, l.AskingPrice)
			update.MarketPrice = &market
			update.DealScore = &score
			report.Scored++
		}
		updates = append(updates, update)
	}

	changed, err := c.listings.ApplyScores(ctx, updates)
	if err != nil {
		return report, storageErr("write deal scores", err)
	}
	report.Changed = changed
	return report, nil
}
