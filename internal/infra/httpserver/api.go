package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	appanalysis "github.com/bryanwahyu/deciphering-cb/internal/application/analysis"
	domain "github.com/bryanwahyu/deciphering-cb/internal/domain/analysis"
	"github.com/bryanwahyu/deciphering-cb/internal/middleware"
)

type analyzeResponse struct {
	ID          string       `json:"id"`
	State       string       `json:"state"`
	Significant bool         `json:"significant"`
	Rows        []domain.Row `json:"rows"`
	DurationMS  int64        `json:"duration_ms"`
}

// POST /v1/analyze
// Body: {"input": "...", "type": "text"|"url"}
func (r *Router) handleAnalyzeAPI(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxBodyBytes)

	var body struct {
		Input string `json:"input"`
		Type  string `json:"type"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: decode body: %w", domain.ErrInvalidInput, err)
	}

	out, err := r.svc.Submit(req.Context(), appanalysis.SubmitCommand{
		SessionID: "api:" + middleware.ClientKey(req),
		Mode:      body.Type,
		Payload:   body.Input,
	})
	r.metrics.RecordSubmission(domain.Kind(err), out.NotSignificant())
	if err != nil {
		return &submissionError{id: out.ID, err: err}
	}

	rows := []domain.Row{}
	if out.Result != nil && out.Result.Rows != nil {
		rows = out.Result.Rows
	}
	writeJSON(w, http.StatusOK, analyzeResponse{
		ID:          out.ID,
		State:       string(out.State),
		Significant: out.Result.Significant(),
		Rows:        rows,
		DurationMS:  out.Duration.Milliseconds(),
	})
	return nil
}
