// Package sources holds the HTTP plumbing shared by the external data
// collaborators.
package sources

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/stwalsh4118/kakaku/internal/retry"
)

// UserAgent is sent on every collaborator request.
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultTimeout bounds a single collaborator request.
const DefaultTimeout = 30 * time.Second

// NewHTTPClient returns a resty client with the shared timeout and headers.
func NewHTTPClient() *resty.Client {
	client := resty.New()
	client.SetTimeout(DefaultTimeout)
	client.SetHeader("User-Agent", UserAgent)
	client.SetHeader("Accept-Language", "ja,en-US;q=0.7,en;q=0.3")
	return client
}

// CheckResponse turns an HTTP error status into an error. Rate limiting and
// server errors are transient; every other 4xx is marked permanent so it is
// not retried.
func CheckResponse(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	err := fmt.Errorf("unexpected status %d from %s", resp.StatusCode(), resp.Request.URL)
	if resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= http.StatusInternalServerError {
		return err
	}
	return retry.Permanent(err)
}
