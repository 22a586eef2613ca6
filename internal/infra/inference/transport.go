package inference

import (
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	domain "github.com/bryanwahyu/deciphering-cb/internal/domain/analysis"
)

// errorSnippetBytes bounds how much of a non-200 body ends up in the log.
const errorSnippetBytes = 512

type transport struct {
	client           *http.Client
	maxResponseBytes int64
	legacyASCII      bool
	logger           *zap.Logger
}

// do sends exactly one request and returns the normalized body of a 200 response.
func (t *transport) do(req *http.Request) ([]byte, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &domain.UnreachableError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorSnippetBytes))
		t.logger.Warn("inference service returned non-200",
			zap.String("method", req.Method),
			zap.String("url", req.URL.Redacted()),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet),
		)
		return nil, &domain.ServiceError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxResponseBytes+1))
	if err != nil {
		return nil, &domain.UnreachableError{Message: fmt.Sprintf("read response body: %v", err), Err: err}
	}
	if int64(len(body)) > t.maxResponseBytes {
		return nil, domain.Malformed(fmt.Sprintf("response exceeded limit (%d bytes)", t.maxResponseBytes), nil)
	}

	normalized, err := normalizeBody(body, t.legacyASCII)
	if err != nil {
		return nil, domain.Malformed("decode response text", err)
	}
	return normalized, nil
}
