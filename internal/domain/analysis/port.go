package analysis

import "context"

// Client port (interface for the remote inference service).
// Implementations issue exactly one outbound call per Analyze and never retry.
type Client interface {
	Analyze(ctx context.Context, req Request) (*Result, error)
}
