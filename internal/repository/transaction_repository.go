package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stwalsh4118/kakaku/internal/database"
	"github.com/stwalsh4118/kakaku/internal/models"
)

// TransactionRepository defines data access for historical trades.
type TransactionRepository interface {
	// InsertNew stores every record whose natural key is not yet present and
	// returns how many were inserted. All records are written in one
	// transaction; on error nothing is stored.
	InsertNew(ctx context.Context, records []models.TransactionRecord) (int, error)

	// ListAll returns every stored transaction ordered by natural key.
	ListAll(ctx context.Context) ([]models.TransactionRecord, error)

	// Count returns the number of stored transactions.
	Count(ctx context.Context) (int64, error)
}

type transactionRepository struct {
	db *database.Database
}

// NewTransactionRepository creates a new instance of TransactionRepository.
func NewTransactionRepository(db *database.Database) TransactionRepository {
	return &transactionRepository{db: db}
}

const insertTransactionSQL = `
	INSERT INTO transactions (
		natural_key, region, region_code, trade_price, area,
		building_year, trade_year, trade_quarter, floor_plan
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (natural_key) DO NOTHING
`

func (r *transactionRepository) InsertNew(ctx context.Context, records []models.TransactionRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	inserted := 0
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range records {
			batch.Queue(insertTransactionSQL,
				rec.NaturalKey,
				rec.Region,
				rec.RegionCode,
				rec.TradePrice,
				rec.Area,
				rec.BuildingYear,
				rec.TradeYear,
				rec.TradeQuarter,
				rec.FloorPlan,
			)
		}

		results := tx.SendBatch(ctx, batch)
		for i := range records {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return fmt.Errorf("failed to insert transaction %s: %w", records[i].NaturalKey, err)
			}
			inserted += int(tag.RowsAffected())
		}
		return results.Close()
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *transactionRepository) ListAll(ctx context.Context) ([]models.TransactionRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT natural_key, region, region_code, trade_price, area,
		       building_year, trade_year, trade_quarter, floor_plan, created_at
		FROM transactions
		ORDER BY natural_key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	records := []models.TransactionRecord{}
	for rows.Next() {
		var rec models.TransactionRecord
		if err := rows.Scan(
			&rec.NaturalKey,
			&rec.Region,
			&rec.RegionCode,
			&rec.TradePrice,
			&rec.Area,
			&rec.BuildingYear,
			&rec.TradeYear,
			&rec.TradeQuarter,
			&rec.FloorPlan,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return records, nil
}

func (r *transactionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}
