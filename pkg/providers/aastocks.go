package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/michael-poon/rss-feeds/internal/domain"
	"github.com/michael-poon/rss-feeds/internal/logger"
)

// ErrRetriesExhausted is returned when every attempt for a stock code failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// AAStocksFetcher pulls the stock news listing for a code and parses it.
type AAStocksFetcher struct {
	client   HTTPClient
	provider Provider
	retry    RetryPolicy
	sleep    Sleeper
	dates    DateExtractor
	log      logger.Logger
}

// Option customises an AAStocksFetcher.
type Option func(*AAStocksFetcher)

// WithSleeper replaces the backoff sleeper.
func WithSleeper(s Sleeper) Option {
	return func(f *AAStocksFetcher) {
		if s != nil {
			f.sleep = s
		}
	}
}

// WithDateExtractor replaces the publication date extractor.
func WithDateExtractor(d DateExtractor) Option {
	return func(f *AAStocksFetcher) { f.dates = d }
}

// NewAAStocksFetcher builds a fetcher for the AASTOCKS news listing.
func NewAAStocksFetcher(client HTTPClient, provider Provider, retry RetryPolicy, log logger.Logger, opts ...Option) *AAStocksFetcher {
	provider = provider.withDefaults()
	if client == nil {
		client = DefaultHTTPClient()
	}
	f := &AAStocksFetcher{
		client:   client,
		provider: provider,
		retry:    retry.normalized(),
		sleep:    SleepContext,
		log:      logger.Ensure(log),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ID returns the provider id.
func (f *AAStocksFetcher) ID() string {
	return f.provider.ID
}

// Fetch returns the records listed for stockCode. Transport failures and
// HTTP status >= 400 are retried with exponential backoff; once every attempt
// has failed it returns ErrRetriesExhausted and no records.
func (f *AAStocksFetcher) Fetch(ctx context.Context, stockCode string) ([]domain.NewsRecord, error) {
	listingURL, err := f.provider.ListingURL(stockCode)
	if err != nil {
		return nil, err
	}
	headers := Headers(f.provider)

	var lastErr error
	for attempt := 1; attempt <= f.retry.MaxAttempts; attempt++ {
		body, err := f.get(ctx, listingURL, headers)
		if err == nil {
			f.log.InfoObj("fetched stock news listing", "fetch_success", map[string]any{
				"provider_id": f.provider.ID,
				"stock_code":  stockCode,
				"attempt":     attempt,
			})
			return f.parse(body, stockCode), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		lastErr = err
		f.log.WarnObj("stock news fetch failed", "fetch_retry", map[string]any{
			"provider_id":  f.provider.ID,
			"stock_code":   stockCode,
			"attempt":      attempt,
			"max_attempts": f.retry.MaxAttempts,
			"error":        err.Error(),
		})

		if delay := f.retry.Delay(attempt); delay > 0 {
			if err := f.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	f.log.ErrorObj("giving up on stock code", "fetch_abandoned", map[string]any{
		"provider_id":  f.provider.ID,
		"stock_code":   stockCode,
		"max_attempts": f.retry.MaxAttempts,
		"error":        errString(lastErr),
	})
	return nil, fmt.Errorf("fetch %s: %w after %d attempts: %v", stockCode, ErrRetriesExhausted, f.retry.MaxAttempts, lastErr)
}

// get performs one bounded attempt.
func (f *AAStocksFetcher) get(ctx context.Context, listingURL string, headers map[string]string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.provider.Timeout)
	defer cancel()

	resp, err := f.client.Get(reqCtx, listingURL, headers)
	if err != nil {
		return nil, fmt.Errorf("http fetch: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, fmt.Errorf("status %d body: %s", resp.StatusCode(), responseSnippet(resp.Body()))
	}
	return resp.Body(), nil
}

// parse never fails the fetch: a page without the news container is an empty listing.
func (f *AAStocksFetcher) parse(body []byte, stockCode string) []domain.NewsRecord {
	records, err := ParseNewsPage(body, ParseOptions{
		BaseURL:   f.provider.BaseURL,
		StockCode: stockCode,
		Dates:     f.dates,
		Log:       f.log,
	})
	if err != nil {
		f.log.WarnObj("stock news listing not parsed", "parse_anomaly", map[string]any{
			"provider_id": f.provider.ID,
			"stock_code":  stockCode,
			"error":       err.Error(),
			"body":        responseSnippet(body),
		})
		return nil
	}

	f.log.DebugObj("parsed stock news listing", "parse_done", map[string]any{
		"provider_id": f.provider.ID,
		"stock_code":  stockCode,
		"records":     len(records),
	})
	return records
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

var _ Fetcher = (*AAStocksFetcher)(nil)
