package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/michael-poon/rss-feeds/internal/domain"
	"github.com/michael-poon/rss-feeds/pkg/httpclient"
)

const (
	// AAStocksProviderID identifies the AASTOCKS stock news listing.
	AAStocksProviderID = "aastocks"

	DefaultBaseURL      = "https://www.aastocks.com"
	DefaultPathTemplate = "/tc/stocks/analysis/stock-aafn/{code}/0/hk-stock-news/1"
	DefaultUserAgent    = "Mozilla/5.0"
	DefaultTimeout      = 10 * time.Second

	codePlaceholder = "{code}"
)

// HTTPClient is the transport fetchers depend on.
type HTTPClient = httpclient.Client

// Fetcher retrieves the news records listed for one stock code.
type Fetcher interface {
	ID() string
	Fetch(ctx context.Context, stockCode string) ([]domain.NewsRecord, error)
}

// Provider describes where and how a stock news listing is requested.
type Provider struct {
	ID           string
	BaseURL      string
	PathTemplate string
	UserAgent    string
	Headers      map[string]string
	Timeout      time.Duration
}

// DefaultProvider returns the AASTOCKS provider with its stock defaults.
func DefaultProvider() Provider {
	return Provider{
		ID:           AAStocksProviderID,
		BaseURL:      DefaultBaseURL,
		PathTemplate: DefaultPathTemplate,
		UserAgent:    DefaultUserAgent,
		Timeout:      DefaultTimeout,
	}
}

// withDefaults fills zero-valued fields from DefaultProvider.
func (p Provider) withDefaults() Provider {
	def := DefaultProvider()
	if strings.TrimSpace(p.ID) == "" {
		p.ID = def.ID
	}
	if strings.TrimSpace(p.BaseURL) == "" {
		p.BaseURL = def.BaseURL
	}
	p.BaseURL = strings.TrimRight(p.BaseURL, "/")
	if strings.TrimSpace(p.PathTemplate) == "" {
		p.PathTemplate = def.PathTemplate
	}
	if strings.TrimSpace(p.UserAgent) == "" {
		p.UserAgent = def.UserAgent
	}
	if p.Timeout <= 0 {
		p.Timeout = def.Timeout
	}
	return p
}

// ListingURL embeds the stock code into the provider's path template.
func (p Provider) ListingURL(stockCode string) (string, error) {
	code := strings.TrimSpace(stockCode)
	if code == "" {
		return "", fmt.Errorf("stock code is empty")
	}
	if !strings.Contains(p.PathTemplate, codePlaceholder) {
		return "", fmt.Errorf("provider %q path template has no %s placeholder", p.ID, codePlaceholder)
	}
	path := strings.ReplaceAll(p.PathTemplate, codePlaceholder, url.PathEscape(code))
	return p.BaseURL + path, nil
}

// Headers returns the request headers for the provider.
func Headers(p Provider) map[string]string {
	headers := make(map[string]string, len(p.Headers)+1)
	for k, v := range p.Headers {
		if k = strings.TrimSpace(k); k != "" {
			headers[k] = v
		}
	}
	if ua := strings.TrimSpace(p.UserAgent); ua != "" {
		headers["User-Agent"] = ua
	}
	return headers
}

// DefaultHTTPClient returns the transport used when none is injected.
func DefaultHTTPClient() HTTPClient { return httpclient.NewRestyClient(DefaultTimeout) }
