// Package pricing implements the rate-limited client for the external
// pricing provider.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/metrics"
)

const (
	defaultTimeout  = 30 * time.Second
	maxIdleConns    = 10
	idleConnTimeout = 90 * time.Second
	errorBodyLimit  = 512
)

// Config holds pricing client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// MaxConcurrent is the global in-flight ceiling. Every Fetch across
	// every batch draws from the same budget.
	MaxConcurrent int64
}

// Client queries seller listings from the pricing provider. One instance is
// shared by all batches so the concurrency budget is process-wide.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timeout    time.Duration
	sem        *semaphore.Weighted
	logger     logger.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a pricing client with its global request budget.
func NewClient(cfg Config, log logger.Logger, m *metrics.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:    maxIdleConns,
		IdleConnTimeout: idleConnTimeout,
	}

	return &Client{
		httpClient: &http.Client{Transport: transport},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		timeout:    timeout,
		sem:        semaphore.NewWeighted(cfg.MaxConcurrent),
		logger:     log,
		metrics:    m,
	}
}

type listingsResponse struct {
	Identifier  string `json:"identifier"`
	ProductName string `json:"product_name"`
	Listings    []struct {
		Seller string          `json:"seller"`
		Price  decimal.Decimal `json:"price"`
	} `json:"listings"`
}

// Fetch returns the current seller listings for one identifier. It blocks
// while the global budget is exhausted, applies the per-call deadline, and
// classifies failures; it never retries. Retrying is the caller's decision.
func (c *Client) Fetch(ctx context.Context, identifier string) ([]domain.Listing, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire provider budget: %w", err)
	}
	defer c.sem.Release(1)

	c.metrics.ProviderRequestStarted()
	defer c.metrics.ProviderRequestDone()

	start := time.Now()
	listings, err := c.fetch(ctx, identifier)
	c.metrics.RecordProviderRequest(resultLabel(err), time.Since(start))

	if err != nil {
		c.logger.Debug("Provider fetch failed",
			logger.String("identifier", identifier),
			logger.Error(err),
		)
	}

	return listings, err
}

func (c *Client) fetch(ctx context.Context, identifier string) ([]domain.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/v1/products/%s/listings", c.baseURL, url.PathEscape(identifier))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, newProviderError(ErrPermanent, 0, "build request", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if classErr := classifyStatus(resp); classErr != nil {
		return nil, classErr
	}

	var payload listingsResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr != nil {
		return nil, newProviderError(ErrTransient, resp.StatusCode, "decode response", decodeErr)
	}

	listings := make([]domain.Listing, 0, len(payload.Listings))
	for _, l := range payload.Listings {
		// Providers mark unavailable offers with missing sellers or
		// non-positive prices; those are not real listings.
		if l.Seller == "" || !l.Price.IsPositive() {
			continue
		}
		listings = append(listings, domain.Listing{SellerName: l.Seller, Price: l.Price})
	}

	return listings, nil
}

// classifyTransportError maps network-level failures. Timeouts and connection
// faults are transient; a cancelled parent context stays visible through the
// cause chain.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newProviderError(ErrTransient, 0, "request timed out", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newProviderError(ErrTransient, 0, "request timed out", err)
	}
	return newProviderError(ErrTransient, 0, "request failed", err)
}

func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode < http.StatusBadRequest:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return newProviderError(ErrNotFound, resp.StatusCode, "product not found", nil)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return newProviderError(ErrTransient, resp.StatusCode, readErrorBody(resp), nil)
	default:
		return newProviderError(ErrPermanent, resp.StatusCode, readErrorBody(resp), nil)
	}
}

func readErrorBody(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	if err != nil || len(body) == 0 {
		return resp.Status
	}
	return strings.TrimSpace(string(body))
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransient):
		return "transient_error"
	default:
		return "permanent_error"
	}
}
