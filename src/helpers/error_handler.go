package helpers

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"market-pulse/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type MarketPulseError struct {
	Message string
	Cause   error
}

func (e *MarketPulseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *MarketPulseError) Unwrap() error {
	return e.Cause
}

// Distinct error kinds so callers can errors.As on the failure class.
type ConfigurationError struct{ MarketPulseError }
type NetworkError struct{ MarketPulseError }
type DataSourceError struct{ MarketPulseError }
type DatabaseError struct{ MarketPulseError }
type ValidationError struct{ MarketPulseError }
type HandlerError struct{ MarketPulseError }

// -----------------------------------------------------------------------------

func NewConfigurationError(msg string, cause error) error {
	return &ConfigurationError{MarketPulseError{Message: msg, Cause: cause}}
}

func NewNetworkError(msg string, cause error) error {
	return &NetworkError{MarketPulseError{Message: msg, Cause: cause}}
}

func NewDataSourceError(msg string, cause error) error {
	return &DataSourceError{MarketPulseError{Message: msg, Cause: cause}}
}

func NewDatabaseError(msg string, cause error) error {
	return &DatabaseError{MarketPulseError{Message: msg, Cause: cause}}
}

func NewValidationError(msg string) error {
	return &ValidationError{MarketPulseError{Message: msg}}
}

func NewHandlerError(msg string, cause error) error {
	return &HandlerError{MarketPulseError{Message: msg, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to maxRetries+1 times, waiting baseDelay * attempt
// between attempts. It stops early when ctx is done.
func RetryWithBackoff[T any](ctx context.Context, log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(attempt)
			if log != nil {
				log.Warning("%s failed (attempt %d/%d): %v. Retrying in %v", operation, attempt, maxRetries+1, lastErr, delay)
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return zero, lastErr
}

// -----------------------------------------------------------------------------
// Panic isolation
// -----------------------------------------------------------------------------

// SafeCall runs fn and converts a panic into an error.
func SafeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{MarketPulseError{Message: fmt.Sprintf("panic: %v\n%s", r, debug.Stack())}}
		}
	}()
	return fn()
}

// -----------------------------------------------------------------------------

// Go starts fn in a goroutine, logging instead of crashing on panic.
func Go(log *logger.Logger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil && log != nil {
				log.Error("goroutine %s panicked: %v", name, r)
			}
		}()
		fn()
	}()
}
