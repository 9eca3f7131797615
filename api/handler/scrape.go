package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/gather/cache"
	"github.com/use-agent/gather/config"
	"github.com/use-agent/gather/extract"
	"github.com/use-agent/gather/fetcher"
	"github.com/use-agent/gather/models"
)

// Scrape returns a handler for POST /api/v1/scrape.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Cache lookup (GET requests with max_age only).
//  3. Fetcher.Fetch     → body + upstream status   (records fetch_ms)
//  4. Extractor.Extract → results + title          (records extract_ms)
//  5. Fill timing, store in cache, return 200.
func Scrape(f *fetcher.Fetcher, ex *extract.Extractor, cc *cache.Cache, cfg config.FetcherConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ScrapeResponse{
				Success: false,
				Results: []string{},
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		if cc != nil && req.Cacheable() {
			if cached, hit := cc.Get(cache.Key(&req), req.MaxAge); hit {
				out := *cached
				out.CacheStatus = "hit"
				out.Timing = models.TimingInfo{
					TotalMs: time.Since(totalStart).Milliseconds(),
				}
				c.JSON(http.StatusOK, out)
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), effectiveTimeout(&req, cfg))
		defer cancel()

		fetchStart := time.Now()
		result, err := f.Fetch(ctx, &req)
		fetchMs := time.Since(fetchStart).Milliseconds()

		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
				FetchMs: fetchMs,
			})
			return
		}

		extractStart := time.Now()
		extraction, err := ex.Extract(result.Body, &req, result.FinalURL)
		extractMs := time.Since(extractStart).Milliseconds()

		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs:   time.Since(totalStart).Milliseconds(),
				FetchMs:   fetchMs,
				ExtractMs: extractMs,
			})
			return
		}

		resp := models.ScrapeResponse{
			Success:    true,
			StatusCode: result.StatusCode,
			FinalURL:   result.FinalURL,
			Title:      extraction.Title,
			Results:    extraction.Results,
			Count:      len(extraction.Results),
			Timing: models.TimingInfo{
				TotalMs:   time.Since(totalStart).Milliseconds(),
				FetchMs:   fetchMs,
				ExtractMs: extractMs,
			},
		}

		if cc != nil && req.Cacheable() {
			cc.Set(cache.Key(&req), &resp)
			resp.CacheStatus = "miss"
		}

		c.JSON(http.StatusOK, resp)
	}
}

// effectiveTimeout resolves the fetch deadline for a request: the
// per-request timeout when given, otherwise the configured default,
// capped at the configured maximum.
func effectiveTimeout(req *models.ScrapeRequest, cfg config.FetcherConfig) time.Duration {
	timeout := cfg.DefaultTimeout
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout) * time.Second
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cfg.MaxTimeout > 0 && timeout > cfg.MaxTimeout {
		timeout = cfg.MaxTimeout
	}
	return timeout
}

// respondError maps a ScrapeError to the correct HTTP status code and
// writes a structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	scrapeErr, ok := err.(*models.ScrapeError)
	if !ok {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(scrapeErr), models.ScrapeResponse{
		Success: false,
		Results: []string{},
		Error:   scrapeErr.ToDetail(),
		Timing:  timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput, models.ErrCodeInvalidSelector:
		return http.StatusBadRequest // 400
	case models.ErrCodeFetchFailed, models.ErrCodeUpstreamStatus, models.ErrCodeParseFailed:
		return http.StatusBadGateway // 502
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}
