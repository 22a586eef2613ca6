package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap/zapcore"

	domain "github.com/bryanwahyu/deciphering-cb/internal/domain/analysis"
)

// Validate checks required fields and normalizes the contract name.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}

	contract, err := domain.ParseContract(cfg.Inference.Contract)
	if err != nil {
		return fmt.Errorf("inference.contract: %w", err)
	}
	cfg.Inference.Contract = string(contract)

	switch contract {
	case domain.ContractGeneric:
		if err := validateServiceURL("inference.endpoint", cfg.Inference.Endpoint); err != nil {
			return err
		}
	case domain.ContractModeRouted:
		if err := validateServiceURL("inference.base_url", cfg.Inference.BaseURL); err != nil {
			return err
		}
	}

	if cfg.Inference.Timeout <= 0 {
		return errors.New("inference.timeout must be positive")
	}
	// the response is written after the upstream call returns
	if wt := cfg.Server.WriteTimeout; wt > 0 && cfg.Inference.Timeout >= wt {
		return fmt.Errorf("inference.timeout %s must be below server.write_timeout %s", cfg.Inference.Timeout, wt)
	}
	if cfg.Inference.MaxResponseBytes <= 0 {
		return errors.New("inference.max_response_bytes must be positive")
	}
	if cfg.Inference.MaxInFlight <= 0 {
		return errors.New("inference.max_in_flight must be positive")
	}

	for tenant, key := range cfg.Auth.APIKeys {
		if strings.TrimSpace(tenant) == "" {
			return errors.New("auth.api_keys has an empty tenant")
		}
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("auth.api_keys[%q] is empty", tenant)
		}
	}

	if _, err := zapcore.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

func validateServiceURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s must be set", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", field)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", field)
	}
	return nil
}
