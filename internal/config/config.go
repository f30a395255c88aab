// Package config loads agentctl's configuration from a YAML file and the
// environment. Environment variables override the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/langgraph-agents/internal/logging"
)

// Providers accepted in Provider and per-agent overrides.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderMock      = "mock"
)

var storeSchemes = []string{"memory", "mem", "sqlite", "sqlite3", "mysql", "redis", "rediss"}

// Config is the application configuration.
type Config struct {
	// Store is a checkpoint store locator such as memory://,
	// sqlite:///var/lib/agents.db or redis://localhost:6379/0.
	Store string `yaml:"store"`

	// Provider and Model select the chat model every agent uses unless
	// Agents overrides it.
	Provider string                 `yaml:"provider"`
	Model    string                 `yaml:"model"`
	Agents   map[string]ModelConfig `yaml:"agents"`

	MaxSteps    int           `yaml:"max_steps"`
	NodeTimeout time.Duration `yaml:"node_timeout"`

	// Latency is the simulated wait of the demo tools.
	Latency time.Duration `yaml:"latency"`

	// Retries re-attempts failed model turns with RetryDelay base backoff.
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`

	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
	Tracing TracingConfig `yaml:"tracing"`

	// Keys are read from the environment only.
	Keys APIKeys `yaml:"-"`
}

// ModelConfig selects a provider and model for one agent.
type ModelConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// TracingConfig enables OpenTelemetry spans for engine events.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// APIKeys holds provider credentials.
type APIKeys struct {
	OpenAI    string
	Anthropic string
	Google    string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Store:    "memory://",
		Provider: ProviderMock,
		MaxSteps: 25,
		Log:      LogConfig{Level: "info", Format: "text"},
		Server:   ServerConfig{Addr: ":8080"},
		Tracing:  TracingConfig{ServiceName: "langgraph-agents"},
	}
}

// Load reads path (optional) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse yaml: %w", err)
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("AGENTS_STORE", &c.Store)
	str("AGENTS_PROVIDER", &c.Provider)
	str("AGENTS_MODEL", &c.Model)
	str("AGENTS_LOG_LEVEL", &c.Log.Level)
	str("AGENTS_ADDR", &c.Server.Addr)
	str("OPENAI_API_KEY", &c.Keys.OpenAI)
	str("ANTHROPIC_API_KEY", &c.Keys.Anthropic)
	str("GOOGLE_API_KEY", &c.Keys.Google)

	if v, ok := lookup("AGENTS_MAX_STEPS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AGENTS_MAX_STEPS: %w", err)
		}
		c.MaxSteps = n
	}
	return nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	scheme, _, ok := strings.Cut(c.Store, "://")
	if !ok || !contains(storeSchemes, scheme) {
		errs = append(errs, fmt.Errorf("store %q: unsupported locator", c.Store))
	}
	if err := validProvider(c.Provider); err != nil {
		errs = append(errs, err)
	}
	for name, mc := range c.Agents {
		if err := validProvider(mc.Provider); err != nil {
			errs = append(errs, fmt.Errorf("agents.%s: %w", name, err))
		}
	}
	if c.MaxSteps <= 0 {
		errs = append(errs, fmt.Errorf("max_steps must be positive, got %d", c.MaxSteps))
	}
	if c.Retries < 0 || c.RetryDelay < 0 {
		errs = append(errs, errors.New("retries and retry_delay must not be negative"))
	}
	if c.NodeTimeout < 0 {
		errs = append(errs, errors.New("node_timeout must not be negative"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log format %q: want text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// APIKey returns the credential for provider.
func (c Config) APIKey(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return c.Keys.OpenAI
	case ProviderAnthropic:
		return c.Keys.Anthropic
	case ProviderGoogle:
		return c.Keys.Google
	}
	return ""
}

func validProvider(p string) error {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderMock:
		return nil
	}
	return fmt.Errorf("provider %q: want openai, anthropic, google or mock", p)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
