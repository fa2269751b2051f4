package services

import (
	"context"
	"fmt"
	"time"

	"github.com/stwalsh4118/kakaku/internal/config"
	"github.com/stwalsh4118/kakaku/internal/logger"
	"github.com/stwalsh4118/kakaku/internal/models"
	"github.com/stwalsh4118/kakaku/internal/repository"
	"github.com/stwalsh4118/kakaku/internal/sources/reinfolib"
)

// TransactionSource returns the raw trades for one region and quarter.
type TransactionSource interface {
	Fetch(ctx context.Context, region config.Region, period reinfolib.Period) ([]models.RawTransaction, error)
}

// IngestReport summarizes one transaction ingest run.
type IngestReport struct {
	Pages       int
	FailedPages int
	Received    int
	Inserted    int
	Duplicates  int
	Malformed   int
}

// Fields renders the report for structured logging.
func (r IngestReport) Fields() logger.Fields {
	return logger.Fields{
		"pages":        r.Pages,
		"failed_pages": r.FailedPages,
		"received":     r.Received,
		"inserted":     r.Inserted,
		"duplicates":   r.Duplicates,
		"malformed":    r.Malformed,
	}
}

// TransactionIngestor normalizes trades and appends the ones not yet stored.
type TransactionIngestor struct {
	repo          repository.TransactionRepository
	source        TransactionSource
	log           *logger.Logger
	now           func() time.Time
	lookbackYears int
}

// NewTransactionIngestor creates a TransactionIngestor. source may be nil
// when only Ingest is used.
func NewTransactionIngestor(repo repository.TransactionRepository, source TransactionSource, lookbackYears int, log *logger.Logger) *TransactionIngestor {
	return &TransactionIngestor{
		repo:          repo,
		source:        source,
		log:           log,
		now:           time.Now,
		lookbackYears: lookbackYears,
	}
}

// Ingest stores every well-formed record whose natural key is new. Records
// missing a price, area or region are counted as malformed and skipped.
// Only a storage failure is returned as an error, in which case nothing from
// this batch is stored.
func (s *TransactionIngestor) Ingest(ctx context.Context, raws []models.RawTransaction) (IngestReport, error) {
	report := IngestReport{Received: len(raws)}

	seen := make(map[string]struct{}, len(raws))
	records := make([]models.TransactionRecord, 0, len(raws))
	for _, raw := range raws {
		rec, ok := normalizeTransaction(raw)
		if !ok {
			report.Malformed++
			s.log.Debug("Skipping malformed transaction", logger.Fields{
				"region":      raw.Region,
				"trade_price": raw.TradePrice,
				"area":        raw.Area,
			})
			continue
		}
		if _, dup := seen[rec.NaturalKey]; dup {
			report.Duplicates++
			continue
		}
		seen[rec.NaturalKey] = struct{}{}
		records = append(records, rec)
	}

	inserted, err := s.repo.InsertNew(ctx, records)
	if err != nil {
		return report, storageErr("insert transactions", err)
	}
	report.Inserted = inserted
	report.Duplicates += len(records) - inserted
	return report, nil
}

// FetchAndIngest pulls every quarter in the lookback window for each region
// and ingests the combined result in one write. A quarter that still fails
// after retries is counted and skipped.
func (s *TransactionIngestor) FetchAndIngest(ctx context.Context, regions []config.Region) (IngestReport, error) {
	if s.source == nil {
		return IngestReport{}, fmt.Errorf("%w: no transaction source configured", ErrConfiguration)
	}

	periods := reinfolib.Periods(s.now(), s.lookbackYears)

	var (
		raws   []models.RawTransaction
		pages  int
		failed int
	)
	for _, region := range regions {
		regionLog := s.log.With(logger.Fields{"region": region.Name, "code": region.Code})
		for _, period := range periods {
			if err := ctx.Err(); err != nil {
				return IngestReport{Pages: pages, FailedPages: failed}, fmt.Errorf("transaction fetch interrupted: %w", err)
			}

			pages++
			batch, err := s.source.Fetch(ctx, region, period)
			if err != nil {
				failed++
				regionLog.Warn("Failed to fetch transactions", logger.Fields{
					"year":    period.Year,
					"quarter": period.Quarter,
					"error":   err.Error(),
				})
				continue
			}
			regionLog.Debug("Fetched transactions", logger.Fields{
				"year":    period.Year,
				"quarter": period.Quarter,
				"count":   len(batch),
			})
			raws = append(raws, batch...)
		}
	}

	report, err := s.Ingest(ctx, raws)
	report.Pages = pages
	report.FailedPages = failed
	return report, err
}

func normalizeTransaction(raw models.RawTransaction) (models.TransactionRecord, bool) {
	if raw.Region == "" {
		return models.TransactionRecord{}, false
	}
	price, ok := parsePositiveInt(raw.TradePrice)
	if !ok {
		return models.TransactionRecord{}, false
	}
	area, ok := parsePositiveFloat(raw.Area)
	if !ok {
		return models.TransactionRecord{}, false
	}
	year, quarter := ParsePeriod(raw.Period, raw.RequestYear, raw.RequestQuarter)
	if year <= 0 || quarter < 1 || quarter > 4 {
		return models.TransactionRecord{}, false
	}

	rec := models.TransactionRecord{
		Region:       raw.Region,
		RegionCode:   raw.RegionCode,
		TradePrice:   price,
		Area:         area,
		BuildingYear: ParseBuildingYear(raw.BuildingYear),
		TradeYear:    year,
		TradeQuarter: quarter,
		FloorPlan:    optionalString(raw.FloorPlan),
	}
	rec.NaturalKey = NaturalKey(rec)
	return rec, true
}
