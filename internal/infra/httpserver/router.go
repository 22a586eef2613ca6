package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appanalysis "github.com/bryanwahyu/deciphering-cb/internal/application/analysis"
	domain "github.com/bryanwahyu/deciphering-cb/internal/domain/analysis"
	"github.com/bryanwahyu/deciphering-cb/internal/middleware"
)

const sessionCookie = "cb_session"

// Deps is everything the router needs. Limiter may be nil to disable rate limiting.
type Deps struct {
	Service        *appanalysis.Service
	Metrics        *middleware.Metrics
	Limiter        *middleware.RateLimiter
	Checkers       map[string]middleware.HealthChecker
	Logger         *zap.Logger
	APIKeys        map[string]string
	AllowedOrigins []string
	MaxBodyBytes   int64
	SecureCookies  bool
}

type Router struct {
	svc          *appanalysis.Service
	metrics      *middleware.Metrics
	logger       *zap.Logger
	maxBodyBytes int64
	secure       bool
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = middleware.NewMetrics()
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 1 << 20
	}
	if len(d.AllowedOrigins) == 0 {
		d.AllowedOrigins = []string{"*"}
	}
	r := &Router{
		svc:          d.Service,
		metrics:      d.Metrics,
		logger:       d.Logger,
		maxBodyBytes: d.MaxBodyBytes,
		secure:       d.SecureCookies,
	}

	mux := chi.NewRouter()
	mux.Use(chimw.Recoverer)
	mux.Use(d.Metrics.Middleware)
	mux.Use(middleware.Logging(d.Logger))
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.HealthHandler(d.Checkers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", d.Metrics.Handler)

	limited := func(h http.Handler) http.Handler { return h }
	if d.Limiter != nil {
		limited = d.Limiter.Middleware
	}

	mux.Get("/", r.handleHome)
	mux.Get("/faq", r.handleStatic("faq", "FAQs"))
	mux.Get("/about", r.handleStatic("about", "About"))
	mux.With(limited).Post("/analyze", r.handleAnalyzeForm)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Use(middleware.APIKeyAuth(d.APIKeys))
		rt.Use(limited)
		rt.Post("/analyze", r.wrap(r.handleAnalyzeAPI))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// submissionError carries the outcome id of a failed submission to wrap.
type submissionError struct {
	id  string
	err error
}

func (e *submissionError) Error() string { return e.err.Error() }
func (e *submissionError) Unwrap() error { return e.err }

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

type failedResponse struct {
	ID    string    `json:"id,omitempty"`
	State string    `json:"state"`
	Error errorBody `json:"error"`
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		resp := failedResponse{
			State: string(appanalysis.StateFailed),
			Error: errorBody{
				Kind:    domain.Kind(err),
				Message: err.Error(),
				Status:  domain.StatusOf(err),
			},
		}
		var se *submissionError
		if errors.As(err, &se) {
			resp.ID = se.id
		}

		status := statusFor(err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		if status == http.StatusInternalServerError {
			r.logger.Error("unhandled api error", zap.Error(err))
		}

		writeJSON(w, status, resp)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyInput),
		errors.Is(err, domain.ErrInvalidMode),
		errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSubmissionInFlight):
		return http.StatusConflict
	case errors.Is(err, domain.ErrBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUnreachable),
		errors.Is(err, domain.ErrServiceError),
		errors.Is(err, domain.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
