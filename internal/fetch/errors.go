package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

// Error is a classified extraction failure. The category drives retry
// behavior: transient and timeout failures count toward suspension but are
// worth retrying on a later run, permanent failures indicate the pair itself
// is broken.
type Error struct {
	Category types.FailureCategory
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Category, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps an error as retryable.
func Transient(op string, err error) *Error {
	return &Error{Category: types.FailureTransient, Op: op, Err: err}
}

// Permanent wraps an error as non-retryable.
func Permanent(op string, err error) *Error {
	return &Error{Category: types.FailurePermanent, Op: op, Err: err}
}

// Timeout wraps an error as a deadline failure.
func Timeout(op string, err error) *Error {
	return &Error{Category: types.FailureTimeout, Op: op, Err: err}
}

// CategoryOf extracts the failure category from an error chain, defaulting to
// transient for unclassified errors.
func CategoryOf(err error) types.FailureCategory {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.FailureTimeout
	}
	return types.FailureTransient
}

// classifyTransport maps a transport-level error from http.Client.Do to a
// failure category.
func classifyTransport(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout(op, err)
	}
	return Transient(op, err)
}
