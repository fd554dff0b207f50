package collyfetcher

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/yokurang/logo-crawler/internal/metrics"
)

// meteredTransport records every round trip, redirect hops included.
type meteredTransport struct {
	base http.RoundTripper
}

func newMeteredTransport(base http.RoundTripper) *meteredTransport {
	return &meteredTransport{base: base}
}

func (t *meteredTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("metered transport received nil request")
	}
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("metered transport roundtrip: %w", err)
	}
	metrics.ObserveHTTPResponse(resp.StatusCode, time.Since(start))
	return resp, nil
}
