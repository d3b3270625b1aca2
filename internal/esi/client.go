// File: internal/esi/client.go
package esi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultRequestTimeout bounds a single catalog request when no timeout is configured.
const DefaultRequestTimeout = 30 * time.Second

// HTTPClient is the subset of *http.Client the catalog client needs.
// Tests inject fakes through it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues GET requests against the REST catalog.
// It performs exactly one attempt per call; retries and pacing live in the Fetcher.
type Client struct {
	baseURL   string
	userAgent string
	http      HTTPClient
	logger    *zap.Logger
}

// NewClient creates a catalog client. A nil httpClient gets a standard client
// with DefaultRequestTimeout.
func NewClient(baseURL, userAgent string, httpClient HTTPClient, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      httpClient,
		logger:    logger.Named("esi_client"),
	}
}

// ListURL returns the bulk id list address for a resource path.
func (c *Client) ListURL(resourcePath string) string {
	return c.baseURL + resourcePath
}

// DetailURL returns the detail address for one id of a resource path.
func (c *Client) DetailURL(resourcePath string, id int64) string {
	return c.baseURL + resourcePath + strconv.FormatInt(id, 10) + "/"
}

// Get performs one GET and returns the body. Transport failures and non-2xx
// statuses come back as *AcquisitionError.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug("fetching URL", zap.String("url", url))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &AcquisitionError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AcquisitionError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &AcquisitionError{URL: url, StatusCode: resp.StatusCode, Body: truncate(body, 256)}
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
