// Package adapter provides clients for external data providers.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/coindata-pipeline/internal/errors"
)

// CoinMarketCapClient fetches cryptocurrency listings from the CoinMarketCap
// REST API. One request per snapshot; the client never retries - a transport
// failure or a non-200 response halts the run.
type CoinMarketCapClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// listingsEnvelope is the CoinMarketCap response envelope. On a non-200
// response the data array is empty and status.error_message carries the cause.
type listingsEnvelope struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data []json.RawMessage `json:"data"`
}

// NewCoinMarketCapClient creates a new CoinMarketCap API client
func NewCoinMarketCapClient(baseURL, apiKey string) *CoinMarketCapClient {
	// Basic plan allows 30 requests per minute
	const requestsPerSecond = 0.5

	return &CoinMarketCapClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// Listings fetches one page of asset listings. The returned records preserve
// API order and are kept as raw JSON so the flattener can decode them with
// field order intact.
func (c *CoinMarketCapClient) Listings(ctx context.Context, limit, start int, convert string) ([]json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("coinmarketcap API key not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if start <= 0 {
		return nil, fmt.Errorf("start must be positive, got %d", start)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	reqURL, err := c.buildURL(limit, start, convert)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewTransportError(c.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransportError(c.baseURL, err)
	}

	var envelope listingsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, errors.NewAPIError(resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return nil, errors.NewAPIError(resp.StatusCode, fmt.Sprintf("malformed response body: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewAPIError(resp.StatusCode, envelope.Status.ErrorMessage)
	}

	return envelope.Data, nil
}

// buildURL assembles the listings URL with query parameters
func (c *CoinMarketCapClient) buildURL(limit, start int, convert string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid API URI %q: %w", c.baseURL, err)
	}

	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("start", strconv.Itoa(start))
	q.Set("convert", convert)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
