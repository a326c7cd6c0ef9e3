package shopify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/fekuna/omnipos-erp-sync/internal/model"
)

// Error is a failed Admin API call.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Details    []string
	RetryAfter int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("shopify %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("shopify %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Temporary reports failures worth another attempt: throttling, gateway
// errors and transport failures.
func (e *Error) Temporary() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	case 0:
		return e.Err != nil && !errors.Is(e.Err, context.Canceled)
	}
	return false
}

// Failure converts the error into the diagnostics stored on a sync log.
func (e *Error) Failure() *model.APIFailure {
	body := model.JSONMap{"message": e.Message}
	if len(e.Details) > 0 {
		details := make([]interface{}, len(e.Details))
		for i, d := range e.Details {
			details[i] = d
		}
		body["errors"] = details
	}
	if e.RetryAfter > 0 {
		body["retry_after"] = e.RetryAfter
	}
	return &model.APIFailure{
		StatusCode: e.StatusCode,
		Body:       body,
		Trace:      model.JSONMap{"operation": e.Op},
	}
}

func wrap(op string, err error) error {
	var rl goshopify.RateLimitError
	if errors.As(err, &rl) {
		return &Error{
			Op:         op,
			StatusCode: rateLimitStatus(rl.Status),
			Message:    rl.Message,
			Details:    rl.Errors,
			RetryAfter: rl.RetryAfter,
			Err:        err,
		}
	}
	var re goshopify.ResponseError
	if errors.As(err, &re) {
		return &Error{Op: op, StatusCode: re.Status, Message: re.Message, Details: re.Errors, Err: err}
	}
	return &Error{Op: op, Err: err}
}

func rateLimitStatus(status int) int {
	if status == 0 {
		return http.StatusTooManyRequests
	}
	return status
}

// IsTemporary reports whether err is a retryable Admin API failure.
func IsTemporary(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Temporary()
}

// FailureOf extracts API diagnostics, or nil for errors that never reached
// Shopify.
func FailureOf(err error) *model.APIFailure {
	var e *Error
	if errors.As(err, &e) {
		return e.Failure()
	}
	return nil
}
