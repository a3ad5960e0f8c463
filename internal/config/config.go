// Package config provides configuration management for the bridge server.
// It loads YAML or TOML files (chosen by extension), applies environment
// overrides, fills defaults and validates the result.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort           = 4242
	DefaultBackendURL     = "https://api.a4f.co/v1"
	DefaultProviderPrefix = "provider-7"
	DefaultModelFamily    = "claude"
	DefaultTimeoutSeconds = 300
	DefaultEncoding       = "cl100k_base"
	DefaultLogDir         = "logs"
)

// Environment variables that override file settings.
const (
	EnvPort           = "PORT"
	EnvBackendURL     = "CLAUDEBRIDGE_BACKEND_URL"
	EnvProviderPrefix = "CLAUDEBRIDGE_PROVIDER_PREFIX"
	EnvLogLevel       = "CLAUDEBRIDGE_LOG_LEVEL"
)

// Config represents the application's configuration.
type Config struct {
	// Host is the interface to bind. Empty binds all interfaces.
	Host string `yaml:"host" toml:"host" json:"host"`

	// Port is the listening port.
	Port int `yaml:"port" toml:"port" json:"port"`

	// Debug enables gin debug mode and debug logging.
	Debug bool `yaml:"debug" toml:"debug" json:"debug"`

	// LogLevel is one of debug, info, warn, error or quiet.
	LogLevel string `yaml:"log-level" toml:"log-level" json:"log-level"`

	// LoggingToFile routes logs to a rotating file under LogDir.
	LoggingToFile bool `yaml:"logging-to-file" toml:"logging-to-file" json:"logging-to-file"`

	// LogDir is the directory of the log file.
	LogDir string `yaml:"log-dir" toml:"log-dir" json:"log-dir"`

	// RequestLog logs translated request bodies (redacted) at debug level.
	RequestLog bool `yaml:"request-log" toml:"request-log" json:"request-log"`

	// Metrics enables Prometheus collection and the /metrics endpoint.
	// nil means default (true).
	Metrics *bool `yaml:"metrics,omitempty" toml:"metrics,omitempty" json:"metrics,omitempty"`

	// ModelFamily is the token a requested model must contain.
	ModelFamily string `yaml:"model-family" toml:"model-family" json:"model-family"`

	Backend   BackendConfig   `yaml:"backend" toml:"backend" json:"backend"`
	Tokenizer TokenizerConfig `yaml:"tokenizer" toml:"tokenizer" json:"tokenizer"`
}

// BackendConfig describes the OpenAI-compatible upstream.
type BackendConfig struct {
	// BaseURL is the API root; requests go to BaseURL + "/chat/completions".
	BaseURL string `yaml:"base-url" toml:"base-url" json:"base-url"`

	// ProviderPrefix is prepended to the front model name, "prefix/model".
	ProviderPrefix string `yaml:"provider-prefix" toml:"provider-prefix" json:"provider-prefix"`

	// TimeoutSeconds bounds the wait for response headers, a whole non-stream
	// call, and the gap between two stream reads. <= 0 means default.
	TimeoutSeconds int `yaml:"timeout-seconds" toml:"timeout-seconds" json:"timeout-seconds"`

	// ProxyURL is an optional http, https or socks5 proxy for outbound requests.
	ProxyURL string `yaml:"proxy-url" toml:"proxy-url" json:"proxy-url"`
}

// TokenizerConfig selects the tokenizer used for input token estimates.
type TokenizerConfig struct {
	Encoding string `yaml:"encoding" toml:"encoding" json:"encoding"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c == nil {
		return
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogDir == "" {
		c.LogDir = DefaultLogDir
	}
	if c.ModelFamily == "" {
		c.ModelFamily = DefaultModelFamily
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = DefaultBackendURL
	}
	if c.Backend.ProviderPrefix == "" {
		c.Backend.ProviderPrefix = DefaultProviderPrefix
	}
	if c.Backend.TimeoutSeconds <= 0 {
		c.Backend.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Tokenizer.Encoding == "" {
		c.Tokenizer.Encoding = DefaultEncoding
	}
}

// MetricsEnabled reports whether Prometheus metrics are on, defaulting to true.
func (c *Config) MetricsEnabled() bool {
	if c == nil || c.Metrics == nil {
		return true
	}
	return *c.Metrics
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	if c == nil {
		return fmt.Sprintf(":%d", DefaultPort)
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Timeout returns the backend timeout as a duration.
func (b *BackendConfig) Timeout() time.Duration {
	if b == nil || b.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// ChatCompletionsURL returns the backend chat-completions endpoint.
func (b *BackendConfig) ChatCompletionsURL() string {
	base := DefaultBackendURL
	if b != nil && b.BaseURL != "" {
		base = b.BaseURL
	}
	return strings.TrimSuffix(base, "/") + "/chat/completions"
}

// LoadConfig reads the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	return LoadConfigOptional(path, false)
}

// LoadConfigOptional reads the configuration file at path. When optional is
// true a missing or unparsable file yields the default configuration.
func LoadConfigOptional(path string, optional bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := parse(path, data)
	if err != nil {
		if optional {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func parse(path string, data []byte) (*Config, error) {
	cfg := &Config{}
	if strings.TrimSpace(string(data)) == "" {
		return cfg, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// ApplyEnv overrides file settings from the environment. lookup is usually
// os.LookupEnv. Invalid values are reported and leave the setting unchanged.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if c == nil || lookup == nil {
		return nil
	}
	var errs []error
	if v, ok := lookup(EnvPort); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvPort, err))
		} else {
			c.Port = port
		}
	}
	if v, ok := lookup(EnvBackendURL); ok && strings.TrimSpace(v) != "" {
		c.Backend.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvProviderPrefix); ok {
		c.Backend.ProviderPrefix = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		c.LogLevel = strings.TrimSpace(v)
	}
	return errors.Join(errs...)
}

// ValidateConfig checks cfg and returns non-fatal warnings.
func ValidateConfig(cfg *Config) ([]string, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	var warnings []string
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d: must be between 1 and 65535", cfg.Port)
	}
	if cfg.Backend.BaseURL != "" {
		u, err := url.Parse(cfg.Backend.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid backend base-url %q", cfg.Backend.BaseURL)
		}
		if u.Scheme != "https" {
			warnings = append(warnings, fmt.Sprintf("backend base-url %q is not https", cfg.Backend.BaseURL))
		}
	}
	if cfg.Backend.ProxyURL != "" {
		u, err := url.Parse(cfg.Backend.ProxyURL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid backend proxy-url %q", cfg.Backend.ProxyURL)
		}
		switch u.Scheme {
		case "http", "https", "socks5", "socks5h":
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
		}
	}
	if cfg.ModelFamily == "" {
		warnings = append(warnings, "model-family is empty: every model will be accepted")
	}
	return warnings, nil
}
