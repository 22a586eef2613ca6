package analysis

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"unicode"
)

// NewRequest parses the mode and checks the payload. Nothing that fails here
// ever reaches the inference service.
func NewRequest(mode, payload string) (Request, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return Request{}, err
	}
	req := Request{Mode: m, Payload: payload}
	if err := req.Normalize(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Normalize trims and sanitizes the payload in place and validates it for its mode.
func (r *Request) Normalize() error {
	switch r.Mode {
	case ModeText:
		r.Payload = SanitizeString(r.Payload)
		if r.Payload == "" {
			return ErrEmptyInput
		}
	case ModeURL:
		r.Payload = strings.TrimSpace(r.Payload)
		if r.Payload == "" {
			return ErrEmptyInput
		}
		if err := ValidateURL(r.Payload); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, r.Mode)
	}
	return nil
}

// ValidateURL checks that a URL-mode payload is an absolute http(s) URL
// that does not point at loopback or private addresses.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid URL format: %v", ErrInvalidInput, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: invalid URL scheme %q (allowed: http, https)", ErrInvalidInput, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: URL has no host", ErrInvalidInput)
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: localhost/internal hosts are not allowed", ErrInvalidInput)
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() {
			return fmt.Errorf("%w: private IP ranges are not allowed", ErrInvalidInput)
		}
	}

	return nil
}

// SanitizeString removes NUL and control characters, keeping tabs and newlines.
func SanitizeString(input string) string {
	var result strings.Builder
	result.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}
