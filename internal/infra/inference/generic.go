package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	domain "github.com/bryanwahyu/deciphering-cb/internal/domain/analysis"
)

// GenericClient speaks the single-endpoint contract:
// POST {"input": ..., "type": "text"|"url"} and get parallel arrays back.
type GenericClient struct {
	*transport
	endpoint string
}

type genericRequest struct {
	Input string `json:"input"`
	Type  string `json:"type"`
}

// genericResponse uses pointers so missing keys and null entries are told apart
// from empty strings.
type genericResponse struct {
	TextFragments []*string `json:"text_fragments"`
	Sentiments    []*string `json:"sentiments"`
	Agents        []*string `json:"agents"`
}

func (c *GenericClient) Analyze(ctx context.Context, req domain.Request) (*domain.Result, error) {
	body, err := json.Marshal(genericRequest{Input: req.Payload, Type: string(req.Mode)})
	if err != nil {
		return nil, fmt.Errorf("marshal analysis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create analysis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("dispatching analysis",
		zap.String("contract", string(domain.ContractGeneric)),
		zap.String("mode", string(req.Mode)),
		zap.Int("payload_len", len(req.Payload)),
	)

	raw, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	return decodeGeneric(raw)
}

func decodeGeneric(raw []byte) (*domain.Result, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, domain.Malformed("expected a JSON object, got null", nil)
	}
	var resp genericResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, domain.Malformed("decode generic response", err)
	}

	columns := []struct {
		name   string
		values []*string
	}{
		{"text_fragments", resp.TextFragments},
		{"sentiments", resp.Sentiments},
		{"agents", resp.Agents},
	}
	for _, col := range columns {
		if col.values == nil {
			return nil, domain.Malformed(fmt.Sprintf("missing or null %s", col.name), nil)
		}
		for i, v := range col.values {
			if v == nil {
				return nil, domain.Malformed(fmt.Sprintf("%s[%d] is null", col.name, i), nil)
			}
		}
	}

	n := len(resp.TextFragments)
	if len(resp.Sentiments) != n || len(resp.Agents) != n {
		return nil, domain.Malformed(fmt.Sprintf(
			"parallel arrays differ in length (text_fragments=%d, sentiments=%d, agents=%d)",
			n, len(resp.Sentiments), len(resp.Agents)), nil)
	}

	rows := make([]domain.Row, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, domain.Row{
			Sentence:  *resp.TextFragments[i],
			Agent:     *resp.Agents[i],
			Sentiment: *resp.Sentiments[i],
		})
	}
	return &domain.Result{Rows: rows}, nil
}
