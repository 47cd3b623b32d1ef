package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"resty.dev/v3"

	"github.com/pricelens/backend/internal/domain"
)

// Config holds configuration for the supplier price feed
type Config struct {
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	RetryWait         time.Duration
	// PriceSelector is the CSS selector used when a supplier has none
	PriceSelector string
	// SearchPath is appended to the supplier URL; {sku} and {name} are
	// replaced with the query-escaped product fields
	SearchPath string
	Workers    int
}

// Client fetches supplier product pages and extracts prices from them
type Client struct {
	httpClient    *resty.Client
	rateLimiter   *rate.Limiter
	priceSelector string
	searchPath    string
	maxRetries    int
	retryWait     time.Duration
	workers       int
	logger        *log.Entry
}

// NewClient creates a new price feed client
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 500 * time.Millisecond
	}
	if cfg.PriceSelector == "" {
		cfg.PriceSelector = ".price"
	}
	if cfg.SearchPath == "" {
		cfg.SearchPath = "/search?q={sku}"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "PriceLens/1.0"
	}

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	return &Client{
		httpClient:    httpClient,
		rateLimiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		priceSelector: cfg.PriceSelector,
		searchPath:    cfg.SearchPath,
		maxRetries:    cfg.MaxRetries,
		retryWait:     cfg.RetryWait,
		workers:       cfg.Workers,
		logger:        log.WithField("component", "pricefeed"),
	}
}

// Close releases the underlying HTTP client
func (c *Client) Close() error {
	return c.httpClient.Close()
}

// GetPrice fetches the supplier's page for the product. A page without a
// matching price element, or a 404, yields an unknown (nil) price.
func (c *Client) GetPrice(ctx context.Context, product domain.Product, supplier domain.Supplier) (*float64, error) {
	pageURL, err := c.productURL(product, supplier)
	if err != nil {
		return nil, err
	}

	html, found, err := c.fetchPage(ctx, pageURL)
	if err != nil || !found {
		return nil, err
	}

	selector := supplier.PriceSelector
	if selector == "" {
		selector = c.priceSelector
	}

	price, err := ExtractPrice(html, selector)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}
	return price, nil
}

// RefreshAll re-fetches every (product, active supplier) pair with bounded
// concurrency. Cells that fail keep their previous value and are reported
// in the result; only cancellation aborts the whole pass.
func (c *Client) RefreshAll(ctx context.Context, snapshot *domain.Snapshot) (*domain.RefreshResult, error) {
	prices := snapshot.Prices.Clone()
	active := snapshot.ActiveSuppliers()

	var mu sync.Mutex
	result := &domain.RefreshResult{Prices: prices}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for _, product := range snapshot.Products {
		for _, supplier := range active {
			g.Go(func() error {
				price, err := c.GetPrice(gctx, product, supplier)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					c.logger.WithFields(log.Fields{
						"product":  product.ID,
						"supplier": supplier.ID,
					}).WithError(err).Warn("price fetch failed, keeping previous value")

					mu.Lock()
					result.Failures = append(result.Failures, domain.CellFailure{
						ProductID:  product.ID,
						SupplierID: supplier.ID,
						Err:        err.Error(),
					})
					mu.Unlock()
					return nil
				}

				mu.Lock()
				row, ok := prices[product.ID]
				if !ok {
					row = map[domain.SupplierID]*float64{}
					prices[product.ID] = row
				}
				row[supplier.ID] = price
				result.Updated++
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.logger.WithFields(log.Fields{
		"updated": result.Updated,
		"failed":  len(result.Failures),
	}).Info("price feed pass finished")

	return result, nil
}

// productURL joins the supplier base URL with the search path
func (c *Client) productURL(product domain.Product, supplier domain.Supplier) (string, error) {
	base := strings.TrimRight(supplier.URL, "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return "", fmt.Errorf("%w: supplier %d has invalid url %q", domain.ErrPriceFeedFailure, supplier.ID, supplier.URL)
	}

	path := strings.NewReplacer(
		"{sku}", url.QueryEscape(product.SKU),
		"{name}", url.QueryEscape(product.Name),
	).Replace(c.searchPath)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return base + path, nil
}

// fetchPage executes a GET with rate limiting and retries on transient
// failures. found is false for a 404.
func (c *Client) fetchPage(ctx context.Context, pageURL string) (string, bool, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return "", false, fmt.Errorf("rate limiter error: %w", err)
		}

		resp, err := c.httpClient.R().
			SetContext(ctx).
			Get(pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return "", false, fmt.Errorf("request cancelled: %w", ctx.Err())
			}
			lastErr = fmt.Errorf("%w: %v", domain.ErrPriceFeedFailure, err)
			c.logger.WithField("attempt", attempt).WithError(err).Debug("request error")
			if !c.sleep(ctx, attempt) {
				return "", false, ctx.Err()
			}
			continue
		}

		switch {
		case resp.StatusCode() == http.StatusNotFound:
			return "", false, nil
		case resp.StatusCode() >= 500 || resp.StatusCode() == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("%w: status %d", domain.ErrPriceFeedFailure, resp.StatusCode())
			if !c.sleep(ctx, attempt) {
				return "", false, ctx.Err()
			}
			continue
		case resp.IsError():
			return "", false, fmt.Errorf("%w: status %d", domain.ErrPriceFeedFailure, resp.StatusCode())
		}

		return resp.String(), true, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	return "", false, lastErr
}

// sleep waits out the backoff for attempt, returning false if ctx ends first
func (c *Client) sleep(ctx context.Context, attempt int) bool {
	timer := time.NewTimer(exponentialBackoff(c.retryWait, attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// exponentialBackoff doubles the wait on every attempt
func exponentialBackoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<(attempt-1))
}
