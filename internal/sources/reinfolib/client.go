// Package reinfolib fetches historical resale trades from the MLIT real
// estate information library API.
package reinfolib

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/stwalsh4118/kakaku/internal/config"
	"github.com/stwalsh4118/kakaku/internal/logger"
	"github.com/stwalsh4118/kakaku/internal/models"
	"github.com/stwalsh4118/kakaku/internal/pacing"
	"github.com/stwalsh4118/kakaku/internal/retry"
	"github.com/stwalsh4118/kakaku/internal/sources"
)

const (
	// PropertyTypeUsedCondo is the only trade type the pipeline keeps.
	PropertyTypeUsedCondo = "中古マンション等"

	// priceClassificationContract selects closing prices rather than
	// reported transaction prices.
	priceClassificationContract = "02"

	apiKeyHeader = "Ocp-Apim-Subscription-Key"
)

// Period is one calendar quarter.
type Period struct {
	Year    int
	Quarter int
}

// Periods returns every quarter from the start of lookbackYears-1 years ago
// through the quarter containing now, oldest first.
func Periods(now time.Time, lookbackYears int) []Period {
	if lookbackYears < 1 {
		lookbackYears = 1
	}
	currentQuarter := (int(now.Month())-1)/3 + 1

	var periods []Period
	for year := now.Year() - lookbackYears + 1; year <= now.Year(); year++ {
		for quarter := 1; quarter <= 4; quarter++ {
			if year == now.Year() && quarter > currentQuarter {
				break
			}
			periods = append(periods, Period{Year: year, Quarter: quarter})
		}
	}
	return periods
}

// Client calls the transaction API. Calls made through one Client are paced
// together.
type Client struct {
	http    *resty.Client
	pacer   *pacing.Pacer
	log     *logger.Logger
	baseURL string
	apiKey  string
	retry   retry.Config
}

// NewClient creates a Client from source settings.
func NewClient(cfg config.SourcesConfig, retryCfg retry.Config, log *logger.Logger) *Client {
	return &Client{
		http:    sources.NewHTTPClient(),
		pacer:   pacing.New(cfg.ReinfolibInterval),
		log:     log,
		baseURL: cfg.ReinfolibBaseURL,
		apiKey:  cfg.ReinfolibAPIKey,
		retry:   retryCfg,
	}
}

type apiResponse struct {
	Status string      `json:"status"`
	Data   []apiRecord `json:"data"`
}

type apiRecord struct {
	Type             text `json:"Type"`
	TradePrice       text `json:"TradePrice"`
	Area             text `json:"Area"`
	BuildingYear     text `json:"BuildingYear"`
	Period           text `json:"Period"`
	MunicipalityCode text `json:"MunicipalityCode"`
	Municipality     text `json:"Municipality"`
	FloorPlan        text `json:"FloorPlan"`
}

// text accepts a JSON string, number or null.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*t = text(n.String())
	return nil
}

// Fetch returns the used-condo trades for region in one quarter.
func (c *Client) Fetch(ctx context.Context, region config.Region, period Period) ([]models.RawTransaction, error) {
	operation := fmt.Sprintf("reinfolib %s %d-Q%d", region.Code, period.Year, period.Quarter)

	var body []byte
	err := retry.WithBackoff(ctx, c.retry, c.log, operation, func() error {
		if err := c.pacer.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}

		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader(apiKeyHeader, c.apiKey).
			SetQueryParams(map[string]string{
				"year":                strconv.Itoa(period.Year),
				"quarter":             strconv.Itoa(period.Quarter),
				"city":                region.Code,
				"priceClassification": priceClassificationContract,
			}).
			Get(c.baseURL)
		if err != nil {
			return err
		}
		if err := sources.CheckResponse(resp); err != nil {
			return err
		}
		body = resp.Body()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return decode(body, region, period)
}

func decode(body []byte, region config.Region, period Period) ([]models.RawTransaction, error) {
	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode transaction response: %w", err)
	}
	if parsed.Status != "OK" {
		return nil, fmt.Errorf("transaction API returned status %q", parsed.Status)
	}

	records := make([]models.RawTransaction, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		if string(d.Type) != PropertyTypeUsedCondo {
			continue
		}
		code := string(d.MunicipalityCode)
		if code == "" {
			code = region.Code
		}
		records = append(records, models.RawTransaction{
			Region:         region.Name,
			RegionCode:     code,
			Type:           string(d.Type),
			TradePrice:     string(d.TradePrice),
			Area:           string(d.Area),
			BuildingYear:   string(d.BuildingYear),
			Period:         string(d.Period),
			FloorPlan:      string(d.FloorPlan),
			RequestYear:    period.Year,
			RequestQuarter: period.Quarter,
		})
	}
	return records, nil
}
