package models

import (
	"sync"
	"time"
)

// BatchRequest is the payload for POST /api/v1/batch/scrape.
type BatchRequest struct {
	// URLs is the list of target pages to scrape. Required.
	URLs []string `json:"urls" binding:"required,min=1,max=100,dive,url"`

	// Options contains shared scrape options applied to all URLs.
	Options BatchOptions `json:"options"`

	// WebhookURL, when set, receives a signed "batch.completed" event
	// once the job finishes.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret is the HMAC-SHA256 signing key for webhook payloads.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// BatchOptions are the shared scrape settings applied to every URL in a batch.
type BatchOptions struct {
	Selector        string            `json:"selector,omitempty"`
	Attribute       string            `json:"attribute,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	Method          string            `json:"method,omitempty" binding:"omitempty,oneof=GET POST"`
	Format          string            `json:"format,omitempty" binding:"omitempty,oneof=text html markdown"`
	ExtractMode     string            `json:"extract_mode,omitempty" binding:"omitempty,oneof=raw article"`
	Exclude         []string          `json:"exclude,omitempty"`
	Timeout         int               `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`
	FollowRedirects *bool             `json:"follow_redirects,omitempty"`
}

// Request builds the per-URL ScrapeRequest from the shared options.
func (o BatchOptions) Request(url string) *ScrapeRequest {
	req := &ScrapeRequest{
		URL:             url,
		Selector:        o.Selector,
		Attribute:       o.Attribute,
		Headers:         o.Headers,
		Method:          o.Method,
		Format:          o.Format,
		ExtractMode:     o.ExtractMode,
		Exclude:         o.Exclude,
		Timeout:         o.Timeout,
		FollowRedirects: o.FollowRedirects,
	}
	req.Defaults()
	return req
}

// BatchResponse is the immediate response for POST /api/v1/batch/scrape.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Completed int               `json:"completed"`
	Total     int               `json:"total"`
	Results   []*ScrapeResponse `json:"results,omitempty"`
}

// BatchJob tracks an in-progress batch scrape operation. Worker
// goroutines record results while status polls read them, so all
// mutable state sits behind the mutex; ID and CreatedAt are fixed at
// creation.
type BatchJob struct {
	ID        string
	CreatedAt int64 // unix timestamp

	mu        sync.Mutex
	status    string // "processing", "completed", "failed", "partial"
	completed int
	results   []*ScrapeResponse
}

// NewBatchJob creates a processing job with one result slot per URL.
func NewBatchJob(id string, total int) *BatchJob {
	return &BatchJob{
		ID:        id,
		CreatedAt: time.Now().Unix(),
		status:    "processing",
		results:   make([]*ScrapeResponse, total),
	}
}

// SetResult records the outcome for one URL slot.
func (j *BatchJob) SetResult(idx int, resp *ScrapeResponse) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results[idx] = resp
	j.completed++
}

// Finish moves the job to its terminal status.
func (j *BatchJob) Finish(status string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
}

// Snapshot returns a consistent view for serialization. The result
// slice is copied so callers never observe a slot mid-write; the
// responses themselves are immutable once set.
func (j *BatchJob) Snapshot() BatchStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	results := make([]*ScrapeResponse, len(j.results))
	copy(results, j.results)
	return BatchStatusResponse{
		ID:        j.ID,
		Status:    j.status,
		Completed: j.completed,
		Total:     len(j.results),
		Results:   results,
	}
}
