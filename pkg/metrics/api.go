package metrics

import "time"

// APIMetrics provides observability for the HTTP API.
type APIMetrics interface {
	// RecordRequest records a completed HTTP request.
	//
	// Parameters:
	//   - method: HTTP method
	//   - route: Route template (e.g., "/api/files/:id"), never the raw path
	//   - status: HTTP status code
	//   - duration: Time taken to serve the request
	RecordRequest(method, route string, status int, duration time.Duration)

	// RecordRateLimited records a request rejected by the upload rate limiter.
	RecordRateLimited()
}

// NewNoopAPIMetrics returns an APIMetrics that discards everything.
func NewNoopAPIMetrics() APIMetrics {
	return noopAPIMetrics{}
}

type noopAPIMetrics struct{}

func (noopAPIMetrics) RecordRequest(string, string, int, time.Duration) {}
func (noopAPIMetrics) RecordRateLimited()                               {}
