// Package gsi resolves Japanese addresses to coordinates with the GSI
// address search API.
package gsi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/stwalsh4118/kakaku/internal/config"
	"github.com/stwalsh4118/kakaku/internal/logger"
	"github.com/stwalsh4118/kakaku/internal/models"
	"github.com/stwalsh4118/kakaku/internal/pacing"
	"github.com/stwalsh4118/kakaku/internal/retry"
	"github.com/stwalsh4118/kakaku/internal/sources"
)

// Client calls the address search API. Lookups through one Client are paced
// together.
type Client struct {
	http    *resty.Client
	pacer   *pacing.Pacer
	log     *logger.Logger
	baseURL string
	retry   retry.Config
}

// NewClient creates a Client from source settings.
func NewClient(cfg config.SourcesConfig, retryCfg retry.Config, log *logger.Logger) *Client {
	return &Client{
		http:    sources.NewHTTPClient(),
		pacer:   pacing.New(cfg.GeocodeInterval),
		log:     log,
		baseURL: cfg.GeocodeBaseURL,
		retry:   retryCfg,
	}
}

type searchResult struct {
	Geometry models.Point `json:"geometry"`
}

// Lookup returns the coordinates of the best match for address. found is
// false with a nil error when the API has no match.
func (c *Client) Lookup(ctx context.Context, address string) (models.Coordinates, bool, error) {
	var body []byte
	err := retry.WithBackoff(ctx, c.retry, c.log, "gsi address search", func() error {
		if err := c.pacer.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("q", address).
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
		return models.Coordinates{}, false, err
	}

	var results []json.RawMessage
	if err := json.Unmarshal(body, &results); err != nil {
		return models.Coordinates{}, false, fmt.Errorf("failed to decode address search response: %w", err)
	}
	for _, raw := range results {
		var r searchResult
		if err := json.Unmarshal(raw, &r); err != nil {
			continue
		}
		return r.Geometry.LatLng(), true, nil
	}
	return models.Coordinates{}, false, nil
}
