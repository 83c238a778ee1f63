// Package marketdata provides a client for fetching reference index series.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mcurrie/stockboard/internal/common"
	"github.com/mcurrie/stockboard/internal/models"
)

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
	DefaultCacheTTL  = time.Hour
)

// Client implements the MarketDataSource interface against an EOD price API.
// Fetched series are cached by (symbol, start, end) with a TTL; entries are
// lazily replaced on the next access past expiry and never proactively
// evicted (acceptable at this scale; growth is bounded by distinct windows).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter

	cacheTTL time.Duration
	mu       sync.Mutex
	cache    map[cacheKey]cacheEntry
	now      func() time.Time
}

type cacheKey struct {
	symbol string
	start  string
	end    string
}

type cacheEntry struct {
	points    []models.SeriesPoint
	fetchedAt time.Time
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithCacheTTL sets the series cache expiry
func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// NewClient creates a new market data client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:   common.NewSilentLogger(),
		cacheTTL: DefaultCacheTTL,
		cache:    make(map[cacheKey]cacheEntry),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("market data API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// eodBar is one row of the EOD endpoint response.
type eodBar struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// FetchSeries returns daily closing values for symbol over [start, end].
// Repeated calls for the same window within the cache TTL return the cached
// series without a new upstream request.
func (c *Client) FetchSeries(ctx context.Context, symbol string, start, end time.Time) ([]models.SeriesPoint, error) {
	key := cacheKey{
		symbol: symbol,
		start:  start.Format("2006-01-02"),
		end:    end.Format("2006-01-02"),
	}

	c.mu.Lock()
	if entry, ok := c.cache[key]; ok && c.now().Sub(entry.fetchedAt) < c.cacheTTL {
		c.mu.Unlock()
		c.logger.Debug().Str("symbol", symbol).Msg("Series cache hit")
		return entry.points, nil
	}
	c.mu.Unlock()

	points, err := c.fetch(ctx, symbol, key.start, key.end)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = cacheEntry{points: points, fetchedAt: c.now()}
	c.mu.Unlock()

	return points, nil
}

// fetch performs a rate-limited GET against the EOD endpoint.
func (c *Client) fetch(ctx context.Context, symbol, from, to string) ([]models.SeriesPoint, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")
	params.Set("period", "d")
	params.Set("order", "a")
	params.Set("from", from)
	params.Set("to", to)

	endpoint := fmt.Sprintf("/eod/%s", url.PathEscape(symbol))
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("symbol", symbol).Str("from", from).Str("to", to).Msg("Market data request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   endpoint,
		}
	}

	var bars []eodBar
	if err := json.NewDecoder(resp.Body).Decode(&bars); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	points := make([]models.SeriesPoint, 0, len(bars))
	for _, bar := range bars {
		t, err := time.Parse("2006-01-02", bar.Date)
		if err != nil {
			c.logger.Warn().Str("symbol", symbol).Str("date", bar.Date).Msg("Skipping bar with unparsable date")
			continue
		}
		points = append(points, models.SeriesPoint{Timestamp: t, Value: bar.Close})
	}
	return points, nil
}
