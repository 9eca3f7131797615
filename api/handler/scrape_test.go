package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/gather/api"
	"github.com/use-agent/gather/cache"
	"github.com/use-agent/gather/config"
	"github.com/use-agent/gather/extract"
	"github.com/use-agent/gather/fetcher"
	"github.com/use-agent/gather/models"
)

func testRouterConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Mode: gin.TestMode},
		Fetcher: config.FetcherConfig{
			DefaultTimeout: 30 * time.Second,
			MaxTimeout:     120 * time.Second,
			TLSFingerprint: true,
			MaxBodyBytes:   10 << 20,
		},
		Batch: config.BatchConfig{MaxConcurrent: 4},
		Cache: config.CacheConfig{MaxEntries: 16},
	}
}

func newRouterWith(cfg *config.Config) *gin.Engine {
	f := fetcher.New(cfg.Fetcher)
	ex := extract.New()
	cc := cache.New(cfg.Cache.MaxEntries)
	return api.NewRouter(f, ex, cc, cfg, time.Now())
}

func newTestRouter() *gin.Engine {
	return newRouterWith(testRouterConfig())
}

func postScrape(t *testing.T, router *gin.Engine, payload any) (*httptest.ResponseRecorder, models.ScrapeResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scrape", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	var resp models.ScrapeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
	}
	return w, resp
}

const upstreamPage = `<html><head><title>Upstream</title></head><body>
<ul><li>alpha</li><li>beta</li><li>gamma</li></ul>
</body></html>`

func newUpstream() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(upstreamPage))
	}))
}

func TestScrape_SelectorMatches(t *testing.T) {
	upstream := newUpstream()
	defer upstream.Close()

	router := newTestRouter()
	w, resp := postScrape(t, router, map[string]any{
		"url":      upstream.URL,
		"selector": "li",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !resp.Success {
		t.Fatalf("success = false: %+v", resp.Error)
	}
	if resp.Count != 3 || len(resp.Results) != 3 {
		t.Errorf("got %d results, want 3: %v", len(resp.Results), resp.Results)
	}
	if resp.Results[0] != "alpha" {
		t.Errorf("results[0] = %q, want alpha", resp.Results[0])
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("upstream status = %d, want 200", resp.StatusCode)
	}
	if resp.Title != "Upstream" {
		t.Errorf("title = %q, want Upstream", resp.Title)
	}
}

func TestScrape_NoSelectorYieldsSingleResult(t *testing.T) {
	upstream := newUpstream()
	defer upstream.Close()

	router := newTestRouter()
	w, resp := postScrape(t, router, map[string]any{"url": upstream.URL})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(resp.Results) != 1 {
		t.Errorf("got %d results, want exactly 1 (whole document)", len(resp.Results))
	}
}

func TestScrape_ZeroMatchesIsEmptyList(t *testing.T) {
	upstream := newUpstream()
	defer upstream.Close()

	router := newTestRouter()
	w, resp := postScrape(t, router, map[string]any{
		"url":      upstream.URL,
		"selector": "table.prices",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !resp.Success {
		t.Fatalf("zero matches must not be an error: %+v", resp.Error)
	}
	if len(resp.Results) != 0 || resp.Count != 0 {
		t.Errorf("got %d results, want 0", len(resp.Results))
	}
}

func TestScrape_InvalidJSON(t *testing.T) {
	router := newTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scrape", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestScrape_MalformedURL(t *testing.T) {
	router := newTestRouter()
	w, resp := postScrape(t, router, map[string]any{"url": "not a url"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if resp.Error == nil || resp.Error.Code != models.ErrCodeInvalidInput {
		t.Errorf("error = %+v, want INVALID_INPUT", resp.Error)
	}
}

func TestScrape_InvalidSelector(t *testing.T) {
	upstream := newUpstream()
	defer upstream.Close()

	router := newTestRouter()
	w, resp := postScrape(t, router, map[string]any{
		"url":      upstream.URL,
		"selector": "li[",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if resp.Error == nil || resp.Error.Code != models.ErrCodeInvalidSelector {
		t.Errorf("error = %+v, want INVALID_SELECTOR", resp.Error)
	}
}

func TestScrape_UnreachableHost(t *testing.T) {
	upstream := newUpstream()
	url := upstream.URL
	upstream.Close()

	router := newTestRouter()
	w, resp := postScrape(t, router, map[string]any{"url": url})

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
	if resp.Error == nil || resp.Error.Code != models.ErrCodeFetchFailed {
		t.Errorf("error = %+v, want FETCH_FAILED", resp.Error)
	}
}

func TestScrape_UpstreamErrorStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	router := newTestRouter()
	w, resp := postScrape(t, router, map[string]any{"url": upstream.URL})

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
	if resp.Error == nil || resp.Error.Code != models.ErrCodeUpstreamStatus {
		t.Fatalf("error = %+v, want UPSTREAM_STATUS", resp.Error)
	}
	if resp.Error.UpstreamStatus != http.StatusInternalServerError {
		t.Errorf("upstream_status = %d, want 500", resp.Error.UpstreamStatus)
	}
}

func TestScrape_ServerDefaultTimeoutApplies(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(upstreamPage))
	}))
	defer upstream.Close()

	cfg := testRouterConfig()
	cfg.Fetcher.DefaultTimeout = 50 * time.Millisecond
	router := newRouterWith(cfg)

	// No per-request timeout, so the configured default must apply.
	w, resp := postScrape(t, router, map[string]any{"url": upstream.URL})

	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", w.Code)
	}
	if resp.Error == nil || resp.Error.Code != models.ErrCodeTimeout {
		t.Errorf("error = %+v, want SCRAPE_TIMEOUT", resp.Error)
	}
}

func TestScrape_AttributeExtraction(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><a href="/a">A</a><a href="/b">B</a></body></html>`))
	}))
	defer upstream.Close()

	router := newTestRouter()
	_, resp := postScrape(t, router, map[string]any{
		"url":       upstream.URL,
		"selector":  "a",
		"attribute": "href",
	})

	if len(resp.Results) != 2 || resp.Results[0] != "/a" || resp.Results[1] != "/b" {
		t.Errorf("results = %v, want [/a /b]", resp.Results)
	}
}

func TestScrape_CacheHit(t *testing.T) {
	var hits int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(upstreamPage))
	}))
	defer upstream.Close()

	router := newTestRouter()
	payload := map[string]any{
		"url":      upstream.URL,
		"selector": "li",
		"max_age":  60000,
	}

	_, first := postScrape(t, router, payload)
	if first.CacheStatus != "miss" {
		t.Errorf("first cache_status = %q, want miss", first.CacheStatus)
	}

	_, second := postScrape(t, router, payload)
	if second.CacheStatus != "hit" {
		t.Errorf("second cache_status = %q, want hit", second.CacheStatus)
	}
	if hits != 1 {
		t.Errorf("upstream was fetched %d times, want 1", hits)
	}
	if len(second.Results) != 3 {
		t.Errorf("cached results = %v, want 3 entries", second.Results)
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp models.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
}
