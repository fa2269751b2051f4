package suumo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/kakaku/internal/config"
	"github.com/stwalsh4118/kakaku/internal/logger"
	"github.com/stwalsh4118/kakaku/internal/retry"
)

var koto = config.Region{Name: "江東区", Code: "13108", Prefecture: "tokyo", AreaCode: "sc_koto"}

func resultPage(ids []int, totalPages int) string {
	html := "<html><body>"
	for _, id := range ids {
		html += fmt.Sprintf(`<div class="property_unit"><a href="/ms/chuko/tokyo/sc_koto/nc_%d/">物件%d</a> 5000万円 東京都江東区東陽1 60.1m2</div>`, id, id)
	}
	html += `<div class="pagination_set">`
	for p := 1; p <= totalPages; p++ {
		html += fmt.Sprintf("<a>%d</a>", p)
	}
	return html + "</div></body></html>"
}

func newTestClient(baseURL string, maxPages int) *Client {
	return NewClient(config.SourcesConfig{
		SuumoBaseURL:  baseURL,
		SuumoInterval: time.Millisecond,
		SuumoMaxPages: maxPages,
	}, []config.Region{koto}, retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, Multiplier: 1}, logger.Nop())
}

func TestSearchURL(t *testing.T) {
	c := newTestClient("https://suumo.jp/ms/chuko/", 5)
	assert.Equal(t, "https://suumo.jp/ms/chuko/tokyo/sc_koto/", c.SearchURL(koto, 1))
	assert.Equal(t, "https://suumo.jp/ms/chuko/tokyo/sc_koto/?page=3", c.SearchURL(koto, 3))
}

func TestScrapeRegion_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tokyo/sc_koto/", r.URL.Path)
		switch r.URL.Query().Get("page") {
		case "":
			_, _ = w.Write([]byte(resultPage([]int{1, 2}, 2)))
		case "2":
			_, _ = w.Write([]byte(resultPage([]int{3}, 2)))
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
		}
	}))
	defer server.Close()

	snap, err := newTestClient(server.URL, 5).ScrapeRegion(context.Background(), koto)
	require.NoError(t, err)
	assert.True(t, snap.Complete)
	assert.Equal(t, "江東区", snap.Region)
	assert.Equal(t, 2, snap.PagesFetched)
	require.Len(t, snap.Listings, 3)
	assert.Equal(t, "suumo_3", snap.Listings[2].SourceID)
}

func TestScrapeRegion_FailedPageIsIncomplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(resultPage([]int{1}, 3)))
	}))
	defer server.Close()

	snap, err := newTestClient(server.URL, 5).ScrapeRegion(context.Background(), koto)
	require.NoError(t, err)
	assert.False(t, snap.Complete)
	assert.Equal(t, 1, snap.PagesFetched)
	assert.Equal(t, 1, snap.PagesFailed)
	assert.Len(t, snap.Listings, 1)
}

func TestScrapeRegion_PageLimitIsIncomplete(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(resultPage([]int{int(n)}, 4)))
	}))
	defer server.Close()

	snap, err := newTestClient(server.URL, 2).ScrapeRegion(context.Background(), koto)
	require.NoError(t, err)
	assert.False(t, snap.Complete)
	assert.Equal(t, 2, snap.PagesFetched)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestScrapeRegion_EmptyPageIsIncomplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>アクセスが集中しています</p></body></html>`))
	}))
	defer server.Close()

	snap, err := newTestClient(server.URL, 5).ScrapeRegion(context.Background(), koto)
	require.NoError(t, err)
	assert.False(t, snap.Complete)
	assert.Empty(t, snap.Listings)
}

func TestScrapeRegion_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(resultPage([]int{1}, 1)))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap, err := newTestClient(server.URL, 5).ScrapeRegion(ctx, koto)
	require.Error(t, err)
	assert.False(t, snap.Complete)
}
