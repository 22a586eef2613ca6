package inference

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/bryanwahyu/deciphering-cb/internal/domain/analysis"
)

const (
	defaultTimeout          = 30 * time.Second
	defaultMaxResponseBytes = 4 * 1024 * 1024
)

// Options configures the adapter. Endpoint is used by the generic contract,
// BaseURL by the mode-routed one.
type Options struct {
	Contract          domain.Contract
	Endpoint          string
	BaseURL           string
	Timeout           time.Duration
	MaxResponseBytes  int64
	LegacyASCIIFilter bool

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// New builds the client for the configured contract.
func New(opts Options) (domain.Client, error) {
	t := newTransport(opts)
	switch opts.Contract {
	case domain.ContractGeneric:
		if strings.TrimSpace(opts.Endpoint) == "" {
			return nil, fmt.Errorf("generic contract requires an endpoint")
		}
		return &GenericClient{transport: t, endpoint: opts.Endpoint}, nil
	case domain.ContractModeRouted:
		if strings.TrimSpace(opts.BaseURL) == "" {
			return nil, fmt.Errorf("mode-routed contract requires a base_url")
		}
		return &RoutedClient{transport: t, baseURL: strings.TrimRight(opts.BaseURL, "/")}, nil
	default:
		return nil, fmt.Errorf("unknown inference contract %q", opts.Contract)
	}
}

func newTransport(opts Options) *transport {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxBytes := opts.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxResponseBytes
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &transport{
		client:           client,
		maxResponseBytes: maxBytes,
		legacyASCII:      opts.LegacyASCIIFilter,
		logger:           logger,
	}
}
