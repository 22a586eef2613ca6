package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(GetTenantFromContext(r.Context())))
}

func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth(map[string]string{"bess": "k1", "ecb": "k2"})(http.HandlerFunc(okHandler))

	cases := []struct {
		header string
		status int
		tenant string
	}{
		{"", http.StatusUnauthorized, ""},
		{"Bearer ", http.StatusUnauthorized, ""},
		{"Bearer nope", http.StatusUnauthorized, ""},
		{"Bearer k1", http.StatusOK, "bess"},
		{"k2", http.StatusOK, "ecb"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/v1/analyze", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, tc.status, rec.Code, "header %q", tc.header)
		if tc.status == http.StatusOK {
			assert.Equal(t, tc.tenant, rec.Body.String())
		}
	}
}

func TestAPIKeyAuthDisabledWithoutKeys(t *testing.T) {
	h := APIKeyAuth(nil)(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/analyze", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenBucket(t *testing.T) {
	tb := NewTokenBucket(2, 1)
	now := tb.lastRefill

	assert.True(t, tb.allowAt(now))
	assert.True(t, tb.allowAt(now))
	assert.False(t, tb.allowAt(now))

	// one second refills one token, never above capacity
	assert.True(t, tb.allowAt(now.Add(time.Second)))
	assert.False(t, tb.allowAt(now.Add(time.Second)))
	assert.True(t, tb.allowAt(now.Add(time.Hour)))
	assert.True(t, tb.allowAt(now.Add(time.Hour)))
	assert.False(t, tb.allowAt(now.Add(time.Hour)))
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Close()
	h := rl.Middleware(http.HandlerFunc(okHandler))

	do := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/analyze", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1111").Code)
	// same IP, different port shares the bucket
	rec := do("10.0.0.1:2222")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do("10.0.0.2:1111").Code)
}

func TestRateLimiterEvictsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Close()

	rl.Allow("a:1")
	rl.evictIdle(time.Now())
	assert.Len(t, rl.buckets, 1)

	rl.evictIdle(time.Now().Add(bucketIdleTTL + time.Minute))
	assert.Empty(t, rl.buckets)
}

func TestRateLimiterCloseTwice(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.Close()
	rl.Close()
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, ":192.0.2.7", ClientKey(req))

	req = req.WithContext(context.WithValue(req.Context(), TenantKey, "bess"))
	assert.Equal(t, "bess:192.0.2.7", ClientKey(req))
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	m.RecordSubmission("none", false)
	m.RecordSubmission("none", true)
	m.RecordSubmission("empty_input", false)
	m.RecordSubmission("service_error", false)

	rec := httptest.NewRecorder()
	m.Handler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 2, got["requests_total"])
	assert.EqualValues(t, 1, got["requests_success"])
	assert.EqualValues(t, 1, got["requests_failed"])
	assert.EqualValues(t, 0, got["requests_in_progress"])
	assert.EqualValues(t, 4, got["submissions_total"])
	assert.EqualValues(t, 2, got["submissions_succeeded"])
	assert.EqualValues(t, 1, got["not_significant"])
	assert.EqualValues(t, 1, got["submissions_rejected"])
	assert.EqualValues(t, 1, got["submissions_failed"])
}

type checkerFunc func(context.Context) error

func (f checkerFunc) Check(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	healthy := checkerFunc(func(context.Context) error { return nil })
	down := checkerFunc(func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{"inference": healthy})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{"inference": down})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, CheckStatus{Status: "unhealthy", Message: "connection refused"}, status.Checks["inference"])
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/analyze", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/analyze", fields["path"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
	assert.EqualValues(t, len("short and stout"), fields["bytes"])
}

func TestLoggingRecordsTenantFromInnerAuth(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := Logging(zap.New(core))(APIKeyAuth(map[string]string{"bess": "k1"})(http.HandlerFunc(okHandler)))

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", nil)
	req.Header.Set("Authorization", "Bearer k1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/v1/analyze", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "bess", logs.All()[0].ContextMap()["tenant"])
	_, anonymous := logs.All()[1].ContextMap()["tenant"]
	assert.False(t, anonymous)
}
