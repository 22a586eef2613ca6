package inference

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"
)

// Probe checks that the inference host accepts TCP connections.
// It never sends an analysis request.
type Probe struct {
	Address string
	Timeout time.Duration
}

// NewProbe derives host:port from the configured endpoint or base URL.
func NewProbe(rawURL string, timeout time.Duration) (*Probe, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse inference url: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("inference url %q has no host", rawURL)
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Probe{Address: net.JoinHostPort(u.Hostname(), port), Timeout: timeout}, nil
}

func (p *Probe) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return err
	}
	return conn.Close()
}
