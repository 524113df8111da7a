package models

import (
	"context"
	"errors"
	"fmt"
)

// Error codes used in logs and internal error handling.
const (
	ErrCodeInvalidQuery    = "INVALID_QUERY"
	ErrCodePageMismatch    = "PAGE_MISMATCH"
	ErrCodeHitsMismatch    = "HITS_MISMATCH"
	ErrCodeNavigation      = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash    = "BROWSER_CRASH"
	ErrCodeExtract         = "EXTRACT_FAILED"
	ErrCodeDownloadTimeout = "DOWNLOAD_TIMEOUT"
	ErrCodeTimeout         = "CRAWL_TIMEOUT"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// CrawlError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type CrawlError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *CrawlError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CrawlError) Unwrap() error {
	return e.Err
}

// NewCrawlError creates a new CrawlError.
func NewCrawlError(code, message string, err error) *CrawlError {
	return &CrawlError{Code: code, Message: message, Err: err}
}

// CategorizeError wraps raw errors into typed CrawlErrors so callers can
// tell a deadline from a page that genuinely failed to load.
func CategorizeError(err error, msg string) *CrawlError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewCrawlError(ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return NewCrawlError(ErrCodeTimeout, "operation canceled", err)
	default:
		return NewCrawlError(ErrCodeNavigation, msg, err)
	}
}
