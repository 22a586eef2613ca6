package httpserver

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appanalysis "github.com/bryanwahyu/deciphering-cb/internal/application/analysis"
	domain "github.com/bryanwahyu/deciphering-cb/internal/domain/analysis"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"prob": formatProbability,
}).ParseFS(templateFS, "templates/*.html"))

const (
	msgEmptyInput     = "Please input some text or a URL for analysis."
	msgNotSignificant = "The input was not significant enough to produce results."
	msgServiceError   = "Error: Could not retrieve results from the API."
	msgInFlight       = "An analysis is already running for this session. Please wait for it to finish."
	msgBusy           = "The analysis service is busy. Please try again in a moment."
)

type notice struct {
	Level string // info, warning, error
	Text  string
}

type resultView struct {
	Rows          []domain.Row
	Probabilities bool
}

type pageData struct {
	Title  string
	Active string
	Modes  []domain.Mode
	Mode   domain.Mode
	Input  string
	// Busy disables the Analyze button while this session has a submission in flight.
	Busy   bool
	Notice *notice
	Result *resultView
}

func newPage(active, title string) pageData {
	return pageData{
		Title:  title + " - Deciphering Central Banks",
		Active: active,
		Modes:  []domain.Mode{domain.ModeText, domain.ModeURL},
		Mode:   domain.ModeText,
	}
}

// GET /
func (r *Router) handleHome(w http.ResponseWriter, req *http.Request) {
	page := newPage("home", "Text & URL Analysis")
	if r.svc.State(r.session(w, req)) == appanalysis.StateSubmitted {
		page.Busy = true
		page.Notice = &notice{Level: "info", Text: msgInFlight}
	}
	r.render(w, "home", page)
}

func (r *Router) handleStatic(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		r.render(w, name, newPage(name, title))
	}
}

// POST /analyze
// Form: type=text|url, text=..., url=...
func (r *Router) handleAnalyzeForm(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxBodyBytes)
	if err := req.ParseForm(); err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}

	page := newPage("home", "Text & URL Analysis")
	rawMode := req.PostForm.Get("type")
	if m, err := domain.ParseMode(rawMode); err == nil {
		page.Mode = m
	}
	page.Input = formPayload(req, page.Mode)

	out, err := r.svc.Submit(req.Context(), appanalysis.SubmitCommand{
		SessionID: r.session(w, req),
		Mode:      rawMode,
		Payload:   page.Input,
	})
	r.metrics.RecordSubmission(domain.Kind(err), out.NotSignificant())

	switch {
	case err != nil:
		page.Notice = noticeFor(err)
	case out.NotSignificant():
		page.Notice = &notice{Level: "info", Text: msgNotSignificant}
	default:
		page.Result = &resultView{
			Rows:          out.Result.Rows,
			Probabilities: out.Result.HasProbabilities(),
		}
	}
	r.render(w, "home", page)
}

// formPayload reads the field matching the selected mode; "input" wins for
// non-browser clients that post the API field names.
func formPayload(req *http.Request, mode domain.Mode) string {
	if v := req.PostForm.Get("input"); v != "" {
		return v
	}
	return req.PostForm.Get(string(mode))
}

func noticeFor(err error) *notice {
	switch {
	case errors.Is(err, domain.ErrEmptyInput):
		return &notice{Level: "warning", Text: msgEmptyInput}
	case errors.Is(err, domain.ErrSubmissionInFlight):
		return &notice{Level: "warning", Text: msgInFlight}
	case errors.Is(err, domain.ErrBusy):
		return &notice{Level: "warning", Text: msgBusy}
	case errors.Is(err, domain.ErrServiceError):
		return &notice{Level: "error", Text: msgServiceError}
	default:
		return &notice{Level: "error", Text: "Error: " + err.Error()}
	}
}

// session returns the dashboard session id, issuing a cookie on first visit.
func (r *Router) session(w http.ResponseWriter, req *http.Request) string {
	if c, err := req.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (r *Router) render(w http.ResponseWriter, name string, data pageData) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		r.logger.Error("render template", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func formatProbability(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', 3, 64)
}
