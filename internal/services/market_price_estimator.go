package services

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stwalsh4118/kakaku/internal/bracket"
	"github.com/stwalsh4118/kakaku/internal/logger"
	"github.com/stwalsh4118/kakaku/internal/models"
	"github.com/stwalsh4118/kakaku/internal/repository"
)

// EstimateReport summarizes one bracket regeneration.
type EstimateReport struct {
	Transactions int
	Unbucketed   int
	Brackets     int
	Usable       int
}

// Fields renders the report for structured logging.
func (r EstimateReport) Fields() logger.Fields {
	return logger.Fields{
		"transactions": r.Transactions,
		"unbucketed":   r.Unbucketed,
		"brackets":     r.Brackets,
		"usable":       r.Usable,
	}
}

// MarketPriceEstimator rebuilds the bracket table from every stored trade.
type MarketPriceEstimator struct {
	transactions   repository.TransactionRepository
	prices         repository.MarketPriceRepository
	bucketer       bracket.Bucketer
	log            *logger.Logger
	now            func() time.Time
	minSampleCount int
}

// NewMarketPriceEstimator creates a MarketPriceEstimator.
func NewMarketPriceEstimator(transactions repository.TransactionRepository, prices repository.MarketPriceRepository, bucketer bracket.Bucketer, minSampleCount int, log *logger.Logger) *MarketPriceEstimator {
	return &MarketPriceEstimator{
		transactions:   transactions,
		prices:         prices,
		bucketer:       bucketer,
		log:            log,
		now:            time.Now,
		minSampleCount: minSampleCount,
	}
}

type accumulator struct {
	sum   decimal.Decimal
	count int64
}

// Estimate groups records by bracket key and returns one bracket per
// non-empty group, sorted by key. Records without a building year cannot be
// bucketed and are counted separately. The result depends only on the set of
// records, never on their order.
func Estimate(records []models.TransactionRecord, bucketer bracket.Bucketer) (brackets []models.MarketPriceBracket, unbucketed int) {
	groups := make(map[bracket.Key]*accumulator)
	for i := range records {
		rec := &records[i]
		area := rec.Area
		key, ok := bucketer.KeyFor(rec.Region, rec.TradeYear, rec.BuildingYear, &area)
		if !ok {
			unbucketed++
			continue
		}
		acc, exists := groups[key]
		if !exists {
			acc = &accumulator{sum: decimal.Zero}
			groups[key] = acc
		}
		acc.sum = acc.sum.Add(decimal.NewFromInt(rec.TradePrice))
		acc.count++
	}

	keys := make([]bracket.Key, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Region != keys[j].Region {
			return keys[i].Region < keys[j].Region
		}
		if keys[i].Age != keys[j].Age {
			return keys[i].Age < keys[j].Age
		}
		return keys[i].Area < keys[j].Area
	})

	brackets = make([]models.MarketPriceBracket, 0, len(keys))
	for _, key := range keys {
		acc := groups[key]
		avg := acc.sum.Div(decimal.NewFromInt(acc.count)).Round(0)
		brackets = append(brackets, models.MarketPriceBracket{
			Region:      key.Region,
			AgeBracket:  key.Age,
			AreaBracket: key.Area,
			AvgPrice:    avg.IntPart(),
			SampleCount: int(acc.count),
		})
	}
	return brackets, unbucketed
}

// Run reads the whole transaction table and atomically replaces the bracket
// table with the result. An empty transaction table yields an empty bracket
// table.
func (e *MarketPriceEstimator) Run(ctx context.Context) (EstimateReport, error) {
	records, err := e.transactions.ListAll(ctx)
	if err != nil {
		return EstimateReport{}, storageErr("load transactions", err)
	}

	brackets, unbucketed := Estimate(records, e.bucketer)
	report := EstimateReport{
		Transactions: len(records),
		Unbucketed:   unbucketed,
		Brackets:     len(brackets),
	}
	for _, b := range brackets {
		if b.Usable(e.minSampleCount) {
			report.Usable++
		}
	}

	if err := e.prices.ReplaceAll(ctx, brackets, e.now()); err != nil {
		return report, storageErr("replace market prices", err)
	}
	return report, nil
}
