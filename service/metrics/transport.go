package metrics

import (
	"net/http"
	"time"
)

// InstrumentedTransport wraps an http.RoundTripper and records explorer request
// metrics for every round trip. If m is nil the base transport is returned as-is.
// If base is nil, http.DefaultTransport is used.
func InstrumentedTransport(m *Metrics, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if m == nil {
		return base
	}
	return &roundTripper{metrics: m, next: base}
}

// roundTripper captures the status code and latency of each request.
type roundTripper struct {
	metrics *Metrics
	next    http.RoundTripper
}

// RoundTrip performs the request and records its outcome.
func (t *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)

	statusCode := 0
	if err == nil {
		statusCode = resp.StatusCode
	}
	t.metrics.RecordExplorerRequest(req.URL.Host, statusCode, time.Since(start).Seconds())

	return resp, err
}
