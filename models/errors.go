package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeInvalidSelector = "INVALID_SELECTOR"
	ErrCodeFetchFailed     = "FETCH_FAILED"
	ErrCodeUpstreamStatus  = "UPSTREAM_STATUS"
	ErrCodeParseFailed     = "PARSE_FAILED"
	ErrCodeTimeout         = "SCRAPE_TIMEOUT"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// UpstreamStatus carries the target server's HTTP status when the
	// failure was a non-2xx upstream response.
	UpstreamStatus int `json:"upstream_status,omitempty"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code           string
	Message        string
	UpstreamStatus int
	Err            error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// NewUpstreamStatusError creates a ScrapeError for a non-2xx upstream
// response, preserving the upstream status code.
func NewUpstreamStatusError(status int) *ScrapeError {
	return &ScrapeError{
		Code:           ErrCodeUpstreamStatus,
		Message:        fmt.Sprintf("target returned status %d", status),
		UpstreamStatus: status,
	}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{
		Code:           e.Code,
		Message:        e.Message,
		UpstreamStatus: e.UpstreamStatus,
	}
}
