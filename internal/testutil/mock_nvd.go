// Package testutil provides testing utilities for the NVD connector.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
)

// MockNVDResponse defines the behavior for one scripted response.
type MockNVDResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockNVD is a configurable mock NVD API server. Responses are served in the
// scripted order; once the script is exhausted the last response repeats.
type MockNVD struct {
	server *httptest.Server
	mu     sync.Mutex

	responses []MockNVDResponse

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	LastQuery         map[string]string
}

// NewMockNVD creates a mock server serving the given response sequence.
func NewMockNVD(responses ...MockNVDResponse) *MockNVD {
	if len(responses) == 0 {
		responses = []MockNVDResponse{NewVulnerabilitiesResponse(`[]`)}
	}
	mock := &MockNVD{responses: responses}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		idx := mock.RequestCount
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastQuery = map[string]string{}
		for key, values := range r.URL.Query() {
			if len(values) > 0 {
				mock.LastQuery[key] = values[0]
			}
		}
		if idx >= len(mock.responses) {
			idx = len(mock.responses) - 1
		}
		resp := mock.responses[idx]
		mock.mu.Unlock()

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockNVD) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockNVD) Close() {
	m.server.Close()
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockNVD) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

// NewVulnerabilitiesResponse creates a 200 response with the given
// vulnerabilities array JSON.
func NewVulnerabilitiesResponse(vulnerabilitiesJSON string) MockNVDResponse {
	return MockNVDResponse{
		StatusCode: http.StatusOK,
		Body:       `{"resultsPerPage": 100, "vulnerabilities": ` + vulnerabilitiesJSON + `}`,
	}
}

// NewRateLimitResponse creates a 429 response; retryAfter is sent verbatim as
// the Retry-After header when non-empty.
func NewRateLimitResponse(retryAfter string) MockNVDResponse {
	resp := MockNVDResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "Rate limit exceeded"}`,
	}
	if retryAfter != "" {
		resp.Headers = map[string]string{"Retry-After": retryAfter}
	}
	return resp
}

// NewServerErrorResponse creates a 503 response.
func NewServerErrorResponse() MockNVDResponse {
	return MockNVDResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       `{"message": "Service unavailable"}`,
	}
}
