package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimit(t *testing.T) {
	h := newTestRouter(t, &Config{RequestsPerSecond: 0.001, Burst: 2})

	for i := 0; i < 2; i++ {
		res := call(t, h, http.MethodGet, "/leaderboard", nil)
		assert.Equal(t, http.StatusOK, res.Code)
	}
	res := call(t, h, http.MethodGet, "/leaderboard", nil)
	assert.Equal(t, http.StatusTooManyRequests, res.Code)
	assert.Equal(t, CodeRateLimited, res.errorCode())
	assert.NotEmpty(t, res.Head.Get("Retry-After"))

	// health checks are never limited
	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/health", nil).Code)
}

func TestIPRateLimiter_PerClient(t *testing.T) {
	l := newIPRateLimiter(0.001, 1)
	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"))
}

func TestRecoverer(t *testing.T) {
	h := requestLogger(recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/explode", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeInternal)
}

func TestRequestID(t *testing.T) {
	h := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "trace-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "trace-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

func TestClassify(t *testing.T) {
	status, code := classify(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, CodeStorageUnavailable, code)
}
