package catalog

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
)

type Category string

const (
	CategoryTimeout     Category = "timeout"
	CategoryServerError Category = "server_error"
	CategoryUnknown     Category = "unknown"
)

const (
	MessageTimeout     = "O servidor demorou para responder, tente mais tarde"
	MessageServerError = "O servidor falhou em responder, tente recarregar a página"
	MessageUnknown     = "O servidor não conseguiu responder por agora, tente novamente mais tarde"
)

// ServerErrorStatuses are the response codes reported as CategoryServerError.
var ServerErrorStatuses = []int{500, 502, 503, 504, 507, 508, 509}

func (c Category) Message() string {
	switch c {
	case CategoryTimeout:
		return MessageTimeout
	case CategoryServerError:
		return MessageServerError
	default:
		return MessageUnknown
	}
}

// FetchError is the only error type returned by Client.Fetch.
type FetchError struct {
	Category   Category
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("catalog fetch failed (%s, HTTP %d): %v", e.Category, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("catalog fetch failed (%s): %v", e.Category, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Message() string {
	return e.Category.Message()
}

// StatusError reports a completed request with a non-200 response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s", e.StatusCode, e.Status)
}

// Classify maps any fetch failure onto exactly one category. It returns nil
// only for a nil error.
func Classify(err error) *FetchError {
	if err == nil {
		return nil
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		category := CategoryUnknown
		if slices.Contains(ServerErrorStatuses, statusErr.StatusCode) {
			category = CategoryServerError
		}
		return &FetchError{Category: category, StatusCode: statusErr.StatusCode, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Category: CategoryTimeout, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Category: CategoryTimeout, Err: err}
	}

	return &FetchError{Category: CategoryUnknown, Err: err}
}
