package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	domain "github.com/bryanwahyu/deciphering-cb/internal/domain/analysis"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Inference InferenceConfig `yaml:"inference"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	// SecureCookies marks the dashboard session cookie Secure; enable behind TLS.
	SecureCookies bool `yaml:"secure_cookies"`
}

// InferenceConfig points at the remote sentiment/agent service.
// Endpoint is used by the generic contract, BaseURL by mode-routed.
type InferenceConfig struct {
	Contract          string        `yaml:"contract"`
	Endpoint          string        `yaml:"endpoint"`
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxResponseBytes  int64         `yaml:"max_response_bytes"`
	MaxInFlight       int           `yaml:"max_in_flight"`
	LegacyASCIIFilter bool          `yaml:"legacy_ascii_filter"`
}

// AuthConfig maps tenant -> API key for the JSON API. Empty disables auth.
type AuthConfig struct {
	APIKeys map[string]string `yaml:"api_keys"`
}

type RateLimitConfig struct {
	Capacity        int `yaml:"capacity"`
	RefillPerSecond int `yaml:"refill_per_second"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Load reads config.yaml. A missing file yields the defaults; environment
// variables override whatever the file says.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

// LoadEnvFile loads a .env file into the process environment if one exists.
func LoadEnvFile(paths ...string) (bool, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return false, nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return false, err
	}
	return true, nil
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   45 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxBodyBytes:   1 << 20,
			AllowedOrigins: []string{"*"},
		},
		Inference: InferenceConfig{
			Contract:         string(domain.ContractGeneric),
			Timeout:          30 * time.Second,
			MaxResponseBytes: 4 << 20,
			MaxInFlight:      8,
		},
		RateLimit: RateLimitConfig{
			Capacity:        30,
			RefillPerSecond: 1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func applyDefaults(cfg *Config) {
	d := Default()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = d.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = d.Server.WriteTimeout
	}
	if cfg.Server.IdleTimeout <= 0 {
		cfg.Server.IdleTimeout = d.Server.IdleTimeout
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		cfg.Server.MaxBodyBytes = d.Server.MaxBodyBytes
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = d.Server.AllowedOrigins
	}
	if cfg.Inference.Contract == "" {
		cfg.Inference.Contract = d.Inference.Contract
	}
	if cfg.Inference.Timeout <= 0 {
		cfg.Inference.Timeout = d.Inference.Timeout
	}
	if cfg.Inference.MaxResponseBytes <= 0 {
		cfg.Inference.MaxResponseBytes = d.Inference.MaxResponseBytes
	}
	if cfg.Inference.MaxInFlight <= 0 {
		cfg.Inference.MaxInFlight = d.Inference.MaxInFlight
	}
	if cfg.RateLimit.Capacity <= 0 {
		cfg.RateLimit.Capacity = d.RateLimit.Capacity
	}
	if cfg.RateLimit.RefillPerSecond <= 0 {
		cfg.RateLimit.RefillPerSecond = d.RateLimit.RefillPerSecond
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("INFERENCE_CONTRACT"); v != "" {
		cfg.Inference.Contract = v
	}
	if v := os.Getenv("INFERENCE_ENDPOINT"); v != "" {
		cfg.Inference.Endpoint = v
	}
	if v := os.Getenv("INFERENCE_BASE_URL"); v != "" {
		cfg.Inference.BaseURL = v
	}
	if v := os.Getenv("INFERENCE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("INFERENCE_TIMEOUT: %w", err)
		}
		cfg.Inference.Timeout = d
	}
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// InferenceURL is the URL the configured contract talks to.
func (c *Config) InferenceURL() string {
	if c.Inference.Contract == string(domain.ContractModeRouted) {
		return c.Inference.BaseURL
	}
	return c.Inference.Endpoint
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
