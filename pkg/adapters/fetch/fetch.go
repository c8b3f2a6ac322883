// Package fetch provides the HTTP adapter strategies use to reach the
// certification directory site: a rate-limited client behind a narrow
// Fetcher interface. Each call makes a single HTTP attempt; a failed
// request is returned as an error and is not retried here.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Fetcher is the external interface strategies depend on. A fake
// implementation backs every stage-actor/batch-actor test.
type Fetcher interface {
	// FetchStatusPage returns the raw body of the directory's landing page,
	// from which total_pages and products_on_last_page are parsed.
	FetchStatusPage(ctx context.Context) ([]byte, error)
	// FetchListPage returns the raw body of one physical list page.
	FetchListPage(ctx context.Context, page int) ([]byte, error)
	// FetchDetail returns the raw body of one product detail page.
	FetchDetail(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher is a rate-limited, timeout-bounded Fetcher backed by
// net/http.
type HTTPFetcher struct {
	baseURL     string
	statusPath  string
	listPathFmt string
	client      *http.Client
	limiter     *rate.Limiter
	userAgent   string
}

// Config configures an HTTPFetcher.
type Config struct {
	BaseURL               string
	StatusPath            string
	ListPathFormat        string // fmt string taking one %d page number
	RequestTimeout        time.Duration
	MaxRequestsPerSecond  float64
	UserAgent             string
}

// NewHTTPFetcher builds an HTTPFetcher from cfg, defaulting timeouts and
// rate limits the way the teacher's scrapers default theirs.
func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.MaxRequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	return &HTTPFetcher{
		baseURL:     cfg.BaseURL,
		statusPath:  cfg.StatusPath,
		listPathFmt: cfg.ListPathFormat,
		client:      &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		userAgent:   cfg.UserAgent,
	}
}

func (f *HTTPFetcher) do(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("fetch %s: server error %d", url, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: client error %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}
	return body, nil
}

// FetchStatusPage fetches the directory's landing/status page. The total
// page count and last-page item count are extracted by the Parser from
// the raw body; this method just performs the rate-limited GET.
func (f *HTTPFetcher) FetchStatusPage(ctx context.Context) ([]byte, error) {
	return f.do(ctx, f.baseURL+f.statusPath)
}

func (f *HTTPFetcher) FetchListPage(ctx context.Context, page int) ([]byte, error) {
	return f.do(ctx, fmt.Sprintf(f.baseURL+f.listPathFmt, page))
}

func (f *HTTPFetcher) FetchDetail(ctx context.Context, url string) ([]byte, error) {
	return f.do(ctx, url)
}
