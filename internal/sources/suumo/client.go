// Package suumo scrapes resale condo listings from SUUMO search pages.
package suumo

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/stwalsh4118/kakaku/internal/config"
	"github.com/stwalsh4118/kakaku/internal/logger"
	"github.com/stwalsh4118/kakaku/internal/models"
	"github.com/stwalsh4118/kakaku/internal/pacing"
	"github.com/stwalsh4118/kakaku/internal/retry"
	"github.com/stwalsh4118/kakaku/internal/sources"
)

// Client fetches search result pages. Page fetches made through one Client
// are paced together, across every goroutine using it.
type Client struct {
	http     *resty.Client
	pacer    *pacing.Pacer
	log      *logger.Logger
	baseURL  string
	regions  []string
	maxPages int
	retry    retry.Config
}

// NewClient creates a Client. targets are the regions a card address may be
// attributed to.
func NewClient(cfg config.SourcesConfig, targets []config.Region, retryCfg retry.Config, log *logger.Logger) *Client {
	names := make([]string, 0, len(targets))
	for _, r := range targets {
		names = append(names, r.Name)
	}

	client := sources.NewHTTPClient()
	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	return &Client{
		http:     client,
		pacer:    pacing.New(cfg.SuumoInterval),
		log:      log,
		baseURL:  strings.TrimRight(cfg.SuumoBaseURL, "/"),
		regions:  names,
		maxPages: cfg.SuumoMaxPages,
		retry:    retryCfg,
	}
}

// SearchURL returns the URL of one result page for region.
func (c *Client) SearchURL(region config.Region, page int) string {
	u := fmt.Sprintf("%s/%s/%s/", c.baseURL, region.Prefecture, region.AreaCode)
	if page > 1 {
		u += fmt.Sprintf("?page=%d", page)
	}
	return u
}

// ScrapeRegion walks every result page for region. The snapshot is Complete
// only when pages 1..N were all fetched and parsed, N being the last page the
// pagination links advertise. A failed page, a page with no property cards or
// a result set longer than the page limit all leave it incomplete. The error
// is non-nil only when ctx ends.
func (c *Client) ScrapeRegion(ctx context.Context, region config.Region) (models.RegionSnapshot, error) {
	snap := models.RegionSnapshot{Region: region.Name}
	log := c.log.With(logger.Fields{"region": region.Name})

	for page, total := 1, 1; page <= total; page++ {
		if page > c.maxPages {
			log.Warn("Result set exceeds page limit", logger.Fields{
				"total_pages": total,
				"max_pages":   c.maxPages,
			})
			return snap, nil
		}

		parsed, err := c.fetchPage(ctx, region, page)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return snap, ctxErr
			}
			snap.PagesFailed++
			log.Warn("Failed to fetch listing page", logger.Fields{
				"page":  page,
				"error": err.Error(),
			})
			return snap, nil
		}
		snap.PagesFetched++

		if parsed.Cards == 0 {
			log.Warn("Listing page has no property cards", logger.Fields{"page": page})
			return snap, nil
		}
		if parsed.Malformed > 0 {
			log.Debug("Skipped unidentifiable property cards", logger.Fields{
				"page":      page,
				"malformed": parsed.Malformed,
			})
		}

		snap.Listings = append(snap.Listings, parsed.Listings...)
		if parsed.TotalPages > total {
			total = parsed.TotalPages
		}
	}

	snap.Complete = true
	return snap, nil
}

func (c *Client) fetchPage(ctx context.Context, region config.Region, page int) (Page, error) {
	pageURL := c.SearchURL(region, page)

	var body []byte
	err := retry.WithBackoff(ctx, c.retry, c.log, "suumo "+pageURL, func() error {
		if err := c.pacer.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		resp, err := c.http.R().SetContext(ctx).Get(pageURL)
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
		return Page{}, err
	}

	parsed, err := ParsePage(bytes.NewReader(body), region.Name, c.regions)
	if err != nil {
		return Page{}, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}
	return parsed, nil
}
