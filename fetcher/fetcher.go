package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/use-agent/gather/config"
	"github.com/use-agent/gather/models"
)

// Default request headers. Sent with every outbound fetch unless the
// client overrides them.
const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	defaultAccept    = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
)

// Result is the outcome of a successful fetch.
type Result struct {
	// Body is the response body, capped at the configured byte limit.
	Body []byte

	// StatusCode is the target server's HTTP status.
	StatusCode int

	// FinalURL is the request URL after following all redirects.
	FinalURL string
}

// Fetcher performs single outbound HTTP requests. It holds no per-request
// state and is safe for concurrent use.
type Fetcher struct {
	cfg config.FetcherConfig
}

// New creates a Fetcher.
func New(cfg config.FetcherConfig) *Fetcher {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	return &Fetcher{cfg: cfg}
}

// Fetch issues one outbound request for req and returns the response body.
//
// Failure mapping:
//   - dial/TLS/network error        → FETCH_FAILED
//   - context deadline exceeded     → SCRAPE_TIMEOUT
//   - non-2xx upstream status       → UPSTREAM_STATUS (status preserved)
//
// There is deliberately no retry: one request in, one response out.
func (f *Fetcher) Fetch(ctx context.Context, req *models.ScrapeRequest) (*Result, error) {
	httpReq, err := f.buildRequest(ctx, req)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "cannot build request", err)
	}

	client, err := f.newClient(req)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "invalid proxy URL", err)
	}
	defer client.CloseIdleConnections()

	resp, err := client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, models.NewScrapeError(models.ErrCodeTimeout, "fetch timed out", err)
		}
		return nil, models.NewScrapeError(models.ErrCodeFetchFailed, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, models.NewUpstreamStatusError(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, models.NewScrapeError(models.ErrCodeTimeout, "fetch timed out", err)
		}
		return nil, models.NewScrapeError(models.ErrCodeFetchFailed, "read body", err)
	}

	return &Result{
		Body:       body,
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
	}, nil
}

// buildRequest assembles the outbound request with browser-like defaults.
// Client-supplied headers override the defaults.
func (f *Fetcher) buildRequest(ctx context.Context, req *models.ScrapeRequest) (*http.Request, error) {
	var body io.Reader
	if req.Method == http.MethodPost && req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("User-Agent", defaultUserAgent)
	httpReq.Header.Set("Accept", defaultAccept)
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "identity")

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	return httpReq, nil
}

// newClient builds an http.Client for a single request. The transport is
// per-request because proxy and redirect behaviour are request-scoped.
func (f *Fetcher) newClient(req *models.ScrapeRequest) (*http.Client, error) {
	transport := f.newTransport()

	proxy := req.ProxyURL
	if proxy == "" {
		proxy = f.cfg.DefaultProxy
	}
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, err
		}
		if proxyURL.Scheme != "http" && proxyURL.Scheme != "https" {
			return nil, fmt.Errorf("unsupported proxy scheme %q", proxyURL.Scheme)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{Transport: transport}

	if req.FollowRedirects != nil && !*req.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else {
		client.CheckRedirect = func(r *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("too many redirects")
			}
			return nil
		}
	}

	return client, nil
}
