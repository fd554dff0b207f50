package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrQueueClosed is returned by Dequeue once the queue is closed and drained.
var ErrQueueClosed = errors.New("queue closed")

// ErrorKind classifies fetch failures.
type ErrorKind string

// Fetch failure kinds.
const (
	KindNetwork  ErrorKind = "network"
	KindServer   ErrorKind = "server"
	KindClient   ErrorKind = "client"
	KindCanceled ErrorKind = "canceled"
)

// FetchError describes a failed attempt.
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindServer, KindClient:
		return fmt.Sprintf("%s error: GET %s: status %d %s", e.Kind, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	default:
		if e.Err == nil {
			return fmt.Sprintf("%s error: GET %s", e.Kind, e.URL)
		}
		return fmt.Sprintf("%s error: GET %s: %v", e.Kind, e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindServer:
		return true
	case KindClient:
		return e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}

// StatusError classifies a non-2xx/3xx response. It returns nil for statuses
// that carry a usable page.
func StatusError(url string, status int) error {
	switch {
	case status >= 500:
		return &FetchError{Kind: KindServer, URL: url, StatusCode: status}
	case status >= 400:
		return &FetchError{Kind: KindClient, URL: url, StatusCode: status}
	default:
		return nil
	}
}

// TransportError wraps a failure that happened before a status was received.
// Only the caller's context decides cancellation: a per-attempt timeout is a
// network error and stays retryable.
func TransportError(ctx context.Context, url string, err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	if ctx.Err() != nil {
		return &FetchError{Kind: KindCanceled, URL: url, Err: ctx.Err()}
	}
	return &FetchError{Kind: KindNetwork, URL: url, Err: err}
}

// IsCanceled reports whether err stems from job cancellation.
func IsCanceled(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind == KindCanceled
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
