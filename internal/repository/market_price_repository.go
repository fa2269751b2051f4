package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stwalsh4118/kakaku/internal/database"
	"github.com/stwalsh4118/kakaku/internal/models"
)

// MarketPriceRepository defines data access for the bracket snapshot.
type MarketPriceRepository interface {
	// ReplaceAll swaps the whole bracket table for brackets in one
	// transaction. Readers see either the old snapshot or the new one.
	ReplaceAll(ctx context.Context, brackets []models.MarketPriceBracket, calculatedAt time.Time) error

	// List returns brackets ordered by key. An empty region returns all of them.
	List(ctx context.Context, region string) ([]models.MarketPriceBracket, error)
}

type marketPriceRepository struct {
	db *database.Database
}

// NewMarketPriceRepository creates a new instance of MarketPriceRepository.
func NewMarketPriceRepository(db *database.Database) MarketPriceRepository {
	return &marketPriceRepository{db: db}
}

var marketPriceColumns = []string{
	"region", "age_bracket", "area_bracket", "avg_price", "sample_count", "calculated_at",
}

func (r *marketPriceRepository) ReplaceAll(ctx context.Context, brackets []models.MarketPriceBracket, calculatedAt time.Time) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM market_prices`); err != nil {
			return fmt.Errorf("failed to clear market prices: %w", err)
		}
		if len(brackets) == 0 {
			return nil
		}

		rows := make([][]interface{}, 0, len(brackets))
		for _, b := range brackets {
			rows = append(rows, []interface{}{
				b.Region, b.AgeBracket, b.AreaBracket, b.AvgPrice, b.SampleCount, calculatedAt,
			})
		}

		copied, err := tx.CopyFrom(ctx,
			pgx.Identifier{"market_prices"},
			marketPriceColumns,
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to copy market prices: %w", err)
		}
		if int(copied) != len(brackets) {
			return fmt.Errorf("copied %d market prices, expected %d", copied, len(brackets))
		}
		return nil
	})
}

func (r *marketPriceRepository) List(ctx context.Context, region string) ([]models.MarketPriceBracket, error) {
	query := `
		SELECT region, age_bracket, area_bracket, avg_price, sample_count, calculated_at
		FROM market_prices
	`
	args := []interface{}{}
	if region != "" {
		query += ` WHERE region = $1`
		args = append(args, region)
	}
	query += ` ORDER BY region, age_bracket, area_bracket`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query market prices: %w", err)
	}
	brackets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.MarketPriceBracket, error) {
		var b models.MarketPriceBracket
		err := row.Scan(&b.Region, &b.AgeBracket, &b.AreaBracket, &b.AvgPrice, &b.SampleCount, &b.CalculatedAt)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect market prices: %w", err)
	}
	return brackets, nil
}
