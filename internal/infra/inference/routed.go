package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	domain "github.com/bryanwahyu/deciphering-cb/internal/domain/analysis"
)

// RoutedClient speaks the mode-routed contract:
//
//	text: POST <base>/predict         body = JSON string literal
//	url:  GET  <base>/predict_by_url?url=<payload>
//
// and expects [[sentence, agent, agent_prob, sentiment, sentiment_prob], ...].
type RoutedClient struct {
	*transport
	baseURL string
}

const tupleArity = 5

func (c *RoutedClient) Analyze(ctx context.Context, req domain.Request) (*domain.Result, error) {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("dispatching analysis",
		zap.String("contract", string(domain.ContractModeRouted)),
		zap.String("mode", string(req.Mode)),
		zap.String("path", httpReq.URL.Path),
		zap.Int("payload_len", len(req.Payload)),
	)

	raw, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	return decodeRouted(raw)
}

func (c *RoutedClient) newRequest(ctx context.Context, req domain.Request) (*http.Request, error) {
	switch req.Mode {
	case domain.ModeText:
		body, err := json.Marshal(req.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal text payload: %w", err)
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create predict request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		return httpReq, nil
	case domain.ModeURL:
		q := url.Values{"url": {req.Payload}}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predict_by_url?"+q.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("create predict_by_url request: %w", err)
		}
		return httpReq, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMode, req.Mode)
	}
}

func decodeRouted(raw []byte) (*domain.Result, error) {
	var tuples []json.RawMessage
	if err := json.Unmarshal(raw, &tuples); err != nil {
		return nil, domain.Malformed("decode mode-routed response", err)
	}
	if tuples == nil {
		return nil, domain.Malformed("expected a JSON array, got null", nil)
	}

	rows := make([]domain.Row, 0, len(tuples))
	for i, t := range tuples {
		row, err := decodeTuple(t)
		if err != nil {
			return nil, domain.Malformed(fmt.Sprintf("row %d", i), err)
		}
		rows = append(rows, row)
	}
	return &domain.Result{Rows: rows}, nil
}

func decodeTuple(raw json.RawMessage) (domain.Row, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.Row{}, err
	}
	if len(fields) != tupleArity {
		return domain.Row{}, fmt.Errorf("expected %d fields, got %d", tupleArity, len(fields))
	}

	var (
		sentence, agent, sentiment *string
		agentProb, sentiProb       *float64
	)
	targets := []struct {
		name string
		dst  any
	}{
		{"sentence", &sentence},
		{"agent", &agent},
		{"agent_probability", &agentProb},
		{"sentiment", &sentiment},
		{"sentiment_probability", &sentiProb},
	}
	for i, tgt := range targets {
		if err := json.Unmarshal(fields[i], tgt.dst); err != nil {
			return domain.Row{}, fmt.Errorf("%s: %w", tgt.name, err)
		}
	}
	for _, f := range []struct {
		name string
		v    *string
	}{{"sentence", sentence}, {"agent", agent}, {"sentiment", sentiment}} {
		if f.v == nil {
			return domain.Row{}, fmt.Errorf("%s is null", f.name)
		}
	}

	// null probabilities stay absent
	if err := checkProbability("agent_probability", agentProb); err != nil {
		return domain.Row{}, err
	}
	if err := checkProbability("sentiment_probability", sentiProb); err != nil {
		return domain.Row{}, err
	}
	return domain.Row{
		Sentence:             *sentence,
		Agent:                *agent,
		AgentProbability:     agentProb,
		Sentiment:            *sentiment,
		SentimentProbability: sentiProb,
	}, nil
}

func checkProbability(name string, p *float64) error {
	if p != nil && (*p < 0 || *p > 1) {
		return fmt.Errorf("%s %v outside [0,1]", name, *p)
	}
	return nil
}
