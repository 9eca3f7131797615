package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/gather/config"
	"github.com/use-agent/gather/extract"
	"github.com/use-agent/gather/fetcher"
	"github.com/use-agent/gather/models"
	"github.com/use-agent/gather/webhook"
)

// batchStore holds all in-flight and completed batch jobs.
var batchStore sync.Map

func init() {
	// Background goroutine to expire batch jobs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour).Unix()
			batchStore.Range(func(key, value any) bool {
				job := value.(*models.BatchJob)
				if job.CreatedAt < cutoff {
					batchStore.Delete(key)
				}
				return true
			})
		}
	}()
}

// PostBatch returns a handler for POST /api/v1/batch/scrape.
// It validates the request, creates a batch job, and launches a background
// goroutine to scrape each URL concurrently.
func PostBatch(f *fetcher.Fetcher, ex *extract.Extractor, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		job := models.NewBatchJob("batch-"+randomID(), len(req.URLs))
		batchStore.Store(job.ID, job)

		go runBatch(f, ex, cfg, job, req)

		c.JSON(http.StatusOK, models.BatchResponse{
			ID:     job.ID,
			Status: "processing",
			Total:  len(req.URLs),
		})
	}
}

// GetBatch returns a handler for GET /api/v1/batch/:id.
// It serializes a snapshot so in-flight workers never race the encoder.
func GetBatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		val, ok := batchStore.Load(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "batch job not found",
				},
			})
			return
		}

		job := val.(*models.BatchJob)
		c.JSON(http.StatusOK, job.Snapshot())
	}
}

// runBatch processes all URLs in a batch job with concurrency limited by
// a semaphore.
func runBatch(f *fetcher.Fetcher, ex *extract.Extractor, cfg config.Config, job *models.BatchJob, req models.BatchRequest) {
	maxConcurrent := cfg.Batch.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	sem := make(chan struct{}, maxConcurrent)

	var wg sync.WaitGroup
	var failed atomic.Int32

	for i, rawURL := range req.URLs {
		wg.Add(1)
		go func(idx int, targetURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			resp := scrapeOne(f, ex, cfg.Fetcher, req.Options.Request(targetURL))
			job.SetResult(idx, resp)

			if !resp.Success {
				failed.Add(1)
			}
		}(i, rawURL)
	}

	wg.Wait()

	total := len(req.URLs)
	failedCount := int(failed.Load())

	var status string
	switch {
	case failedCount == total:
		status = "failed"
	case failedCount > 0:
		status = "partial"
	default:
		status = "completed"
	}
	job.Finish(status)

	slog.Info("batch job finished",
		"id", job.ID,
		"status", status,
		"completed", total-failedCount,
		"failed", failedCount,
		"total", total,
	)

	if req.WebhookURL != "" {
		snap := job.Snapshot()
		snap.Results = nil // event carries counts, clients poll for bodies
		webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
			Type:      "batch.completed",
			JobID:     job.ID,
			Timestamp: time.Now().Unix(),
			Data:      snap,
		})
	}
}

// scrapeOne performs a single fetch+extract for one URL of a batch.
func scrapeOne(f *fetcher.Fetcher, ex *extract.Extractor, cfg config.FetcherConfig, req *models.ScrapeRequest) *models.ScrapeResponse {
	totalStart := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), effectiveTimeout(req, cfg))
	defer cancel()

	fetchStart := time.Now()
	result, err := f.Fetch(ctx, req)
	fetchMs := time.Since(fetchStart).Milliseconds()

	if err != nil {
		return failureResponse(err, models.TimingInfo{
			TotalMs: time.Since(totalStart).Milliseconds(),
			FetchMs: fetchMs,
		})
	}

	extractStart := time.Now()
	extraction, err := ex.Extract(result.Body, req, result.FinalURL)
	extractMs := time.Since(extractStart).Milliseconds()

	if err != nil {
		return failureResponse(err, models.TimingInfo{
			TotalMs:   time.Since(totalStart).Milliseconds(),
			FetchMs:   fetchMs,
			ExtractMs: extractMs,
		})
	}

	return &models.ScrapeResponse{
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
}

// failureResponse converts an internal error into a per-URL batch result.
func failureResponse(err error, timing models.TimingInfo) *models.ScrapeResponse {
	scrapeErr, ok := err.(*models.ScrapeError)
	if !ok {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}
	return &models.ScrapeResponse{
		Success: false,
		Results: []string{},
		Error:   scrapeErr.ToDetail(),
		Timing:  timing,
	}
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
