// Package nightscout provides a client for the Nightscout REST API.
package nightscout

import (
	"context"
	"crypto/sha1" //nolint:gosec // Required for Nightscout API secret hashing (legacy API requirement)
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/mrcode/glucopilot/internal/models"
)

// Client handles communication with the Nightscout API. Transient failures
// are retried with jittered backoff; permanent ones (auth, bad request)
// fail immediately.
type Client struct {
	baseURL    string
	apiSecret  string
	apiToken   string
	useToken   bool
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Nightscout client.
func NewClient(baseURL, apiSecret, apiToken string, useToken bool, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiSecret: apiSecret,
		apiToken:  apiToken,
		useToken:  useToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// hashSecret generates SHA1 hash of the API secret.
// Note: SHA1 is required for Nightscout API compatibility.
func hashSecret(secret string) string {
	hasher := sha1.New() //nolint:gosec // Required for Nightscout API
	hasher.Write([]byte(secret))
	return hex.EncodeToString(hasher.Sum(nil))
}

// buildRequest creates an HTTP request with proper authentication.
func (c *Client) buildRequest(ctx context.Context, method, endpoint string, params url.Values) (*http.Request, error) {
	fullURL := c.baseURL + endpoint
	if params != nil {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	if c.useToken && c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	} else if c.apiSecret != "" {
		req.Header.Set("API-SECRET", hashSecret(c.apiSecret))
	}

	return req, nil
}

// doRequest executes an HTTP request with retries and returns the response
// body.
func (c *Client) doRequest(ctx context.Context, req *http.Request) ([]byte, error) {
	var body []byte
	err := retry.Do(func() error {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return retry.Unrecoverable(apiErr)
			}
			return apiErr
		}
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("nightscout request retry",
				"attempt", n+1, "url", req.URL.Path, "error", err)
		}))
	if err != nil {
		return nil, err
	}
	return body, nil
}

// GetStatus retrieves the Nightscout server status.
func (c *Client) GetStatus(ctx context.Context) (*models.ServerStatus, error) {
	req, err := c.buildRequest(ctx, http.MethodGet, "/api/v1/status", nil)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	var status models.ServerStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("parsing status: %w", err)
	}

	return &status, nil
}

// GetCurrentEntry retrieves the most recent glucose entry.
func (c *Client) GetCurrentEntry(ctx context.Context) (*models.GlucoseEntry, error) {
	params := url.Values{}
	params.Set("count", "1")

	req, err := c.buildRequest(ctx, http.MethodGet, "/api/v1/entries/current", params)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	// Current endpoint returns a single object or array.
	var entry models.GlucoseEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		var entries []models.GlucoseEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("parsing entry: %w", err)
		}
		if len(entries) > 0 {
			return &entries[0], nil
		}
		return nil, fmt.Errorf("no entries returned")
	}

	return &entry, nil
}

// GetEntries retrieves glucose entries for a time range.
func (c *Client) GetEntries(ctx context.Context, from, to time.Time, count int) ([]models.GlucoseEntry, error) {
	params := url.Values{}

	if !from.IsZero() {
		params.Set("find[date][$gte]", fmt.Sprintf("%d", from.UnixMilli()))
	}
	if !to.IsZero() {
		params.Set("find[date][$lte]", fmt.Sprintf("%d", to.UnixMilli()))
	}
	if count > 0 {
		params.Set("count", fmt.Sprintf("%d", count))
	}

	req, err := c.buildRequest(ctx, http.MethodGet, "/api/v1/entries/sgv", params)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	var entries []models.GlucoseEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("parsing entries: %w", err)
	}

	return entries, nil
}

// GetEntriesHours retrieves glucose entries for the last N hours.
func (c *Client) GetEntriesHours(ctx context.Context, hours int) ([]models.GlucoseEntry, error) {
	from := time.Now().Add(-time.Duration(hours) * time.Hour)
	return c.GetEntries(ctx, from, time.Time{}, 0)
}

// GetEntriesDays retrieves glucose entries for the last N days.
func (c *Client) GetEntriesDays(ctx context.Context, days int) ([]models.GlucoseEntry, error) {
	from := time.Now().AddDate(0, 0, -days)
	return c.GetEntries(ctx, from, time.Time{}, 0)
}

// GetTreatments retrieves treatments for a time range.
func (c *Client) GetTreatments(ctx context.Context, from, to time.Time, count int) ([]models.Treatment, error) {
	params := url.Values{}

	if !from.IsZero() {
		params.Set("find[created_at][$gte]", from.UTC().Format(time.RFC3339))
	}
	if !to.IsZero() {
		params.Set("find[created_at][$lte]", to.UTC().Format(time.RFC3339))
	}
	if count > 0 {
		params.Set("count", fmt.Sprintf("%d", count))
	}

	req, err := c.buildRequest(ctx, http.MethodGet, "/api/v1/treatments", params)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	var treatments []models.Treatment
	if err := json.Unmarshal(body, &treatments); err != nil {
		return nil, fmt.Errorf("parsing treatments: %w", err)
	}

	return treatments, nil
}

// GetRecentTreatments retrieves treatments from the last N hours.
func (c *Client) GetRecentTreatments(ctx context.Context, hours int) ([]models.Treatment, error) {
	from := time.Now().Add(-time.Duration(hours) * time.Hour)
	return c.GetTreatments(ctx, from, time.Time{}, 0)
}

// TestConnection tests if the connection to Nightscout works.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.GetStatus(ctx)
	return err
}
