package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores process counters. The zero value is not usable; call NewMetrics.
type Metrics struct {
	requestsTotal      atomic.Uint64
	requestsInProgress atomic.Int64
	requestsSuccess    atomic.Uint64
	requestsFailed     atomic.Uint64

	submissionsTotal     atomic.Uint64
	submissionsSucceeded atomic.Uint64
	submissionsFailed    atomic.Uint64
	submissionsRejected  atomic.Uint64
	notSignificant       atomic.Uint64

	startTime time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordSubmission counts one finished submission. kind is the error kind
// ("none" on success); rejected kinds never reached the inference service.
func (m *Metrics) RecordSubmission(kind string, notSignificant bool) {
	m.submissionsTotal.Add(1)
	switch kind {
	case "none":
		m.submissionsSucceeded.Add(1)
		if notSignificant {
			m.notSignificant.Add(1)
		}
	case "empty_input", "invalid_mode", "invalid_input", "in_flight", "busy":
		m.submissionsRejected.Add(1)
	default:
		m.submissionsFailed.Add(1)
	}
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]any {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]any{
		"requests_total":        m.requestsTotal.Load(),
		"requests_in_progress":  m.requestsInProgress.Load(),
		"requests_success":      m.requestsSuccess.Load(),
		"requests_failed":       m.requestsFailed.Load(),
		"submissions_total":     m.submissionsTotal.Load(),
		"submissions_succeeded": m.submissionsSucceeded.Load(),
		"submissions_failed":    m.submissionsFailed.Load(),
		"submissions_rejected":  m.submissionsRejected.Load(),
		"not_significant":       m.notSignificant.Load(),
		"uptime_seconds":        time.Since(m.startTime).Seconds(),
		"memory": map[string]any{
			"alloc_bytes":       mem.Alloc,
			"total_alloc_bytes": mem.TotalAlloc,
			"sys_bytes":         mem.Sys,
			"num_gc":            mem.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Middleware tracks request counters
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requestsTotal.Add(1)
		m.requestsInProgress.Add(1)
		defer m.requestsInProgress.Add(-1)

		wrapped := wrapWriter(w)
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			m.requestsSuccess.Add(1)
		} else {
			m.requestsFailed.Add(1)
		}
	})
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m.Snapshot())
}
