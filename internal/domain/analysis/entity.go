package analysis

import (
	"fmt"
	"strings"
)

// Mode enum
type Mode string

const (
	ModeText Mode = "text"
	ModeURL  Mode = "url"
)

// ParseMode accepts "Text", "url", " URL " etc. Anything else is ErrInvalidMode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeText:
		return ModeText, nil
	case ModeURL:
		return ModeURL, nil
	default:
		return "", fmt.Errorf("%w: %q (allowed: text, url)", ErrInvalidMode, s)
	}
}

// Label is the form label shown on the dashboard radio buttons.
func (m Mode) Label() string {
	switch m {
	case ModeText:
		return "Text"
	case ModeURL:
		return "URL"
	default:
		return string(m)
	}
}

// Contract selects the request/response shape spoken by the inference service.
type Contract string

const (
	// ContractGeneric posts {"input","type"} to a single endpoint and gets parallel arrays back.
	ContractGeneric Contract = "generic"
	// ContractModeRouted uses /predict and /predict_by_url and gets 5-tuples back.
	ContractModeRouted Contract = "mode-routed"
)

func ParseContract(s string) (Contract, error) {
	switch Contract(strings.ToLower(strings.TrimSpace(s))) {
	case ContractGeneric, "a":
		return ContractGeneric, nil
	case ContractModeRouted, "b", "mode_routed":
		return ContractModeRouted, nil
	default:
		return "", fmt.Errorf("unknown inference contract %q (allowed: generic, mode-routed)", s)
	}
}

// Request is one user submission. Payload is raw text or a URL.
type Request struct {
	Mode    Mode   `json:"type"`
	Payload string `json:"input"`
}

// Row is one sentence of the analysis table.
type Row struct {
	Sentence             string   `json:"sentence"`
	Agent                string   `json:"agent"`
	AgentProbability     *float64 `json:"agent_probability,omitempty"`
	Sentiment            string   `json:"sentiment"`
	SentimentProbability *float64 `json:"sentiment_probability,omitempty"`
}

// Result keeps the rows in the order returned by the service.
type Result struct {
	Rows []Row `json:"rows"`
}

// Significant reports whether the service found anything to classify.
// An empty result is a valid answer, not an error.
func (r *Result) Significant() bool {
	return r != nil && len(r.Rows) > 0
}

// HasProbabilities is true when any row carries a probability, which
// decides whether the optional table columns are rendered.
func (r *Result) HasProbabilities() bool {
	if r == nil {
		return false
	}
	for _, row := range r.Rows {
		if row.AgentProbability != nil || row.SentimentProbability != nil {
			return true
		}
	}
	return false
}

// Probability returns a pointer suitable for the optional Row fields.
func Probability(p float64) *float64 {
	return &p
}
