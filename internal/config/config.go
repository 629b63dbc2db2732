package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort              = "5001"
	DefaultUpstreamURL       = "https://api.openai.com/v1/chat/completions"
	DefaultModel             = "gpt-4o-mini"
	DefaultTemperature       = 0.3
	DefaultMaxTokens         = 5000
	DefaultUpstreamTimeout   = 120 * time.Second
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultMockDelay         = 30 * time.Millisecond
	DefaultMinWords          = 5
	DefaultMaxWords          = 500
)

type Config struct {
	Port     string         `yaml:"port"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Relay    RelayConfig    `yaml:"relay"`
	Log      LogConfig      `yaml:"log"`
	Client   ClientConfig   `yaml:"client"`
}

// UpstreamConfig describes the chat-completion endpoint the relay forwards to.
type UpstreamConfig struct {
	URL         string        `yaml:"url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	// Fingerprint selects the TLS ClientHello ("" or "safari").
	Fingerprint string `yaml:"fingerprint"`
	Verbose     bool   `yaml:"verbose"`
}

type RelayConfig struct {
	MinWords          int           `yaml:"min_words"`
	MaxWords          int           `yaml:"max_words"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	MockDelay         time.Duration `yaml:"mock_delay"`
	AccessKey         string        `yaml:"access_key"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ClientConfig holds settings for the analyze/history/settings commands.
type ClientConfig struct {
	StoragePath string `yaml:"storage_path"`
}

func Default() *Config {
	return &Config{
		Port: DefaultPort,
		Upstream: UpstreamConfig{
			URL:         DefaultUpstreamURL,
			Model:       DefaultModel,
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
			Timeout:     DefaultUpstreamTimeout,
		},
		Relay: RelayConfig{
			MinWords:          DefaultMinWords,
			MaxWords:          DefaultMaxWords,
			HeartbeatInterval: DefaultHeartbeatInterval,
			MockDelay:         DefaultMockDelay,
		},
		Log:    LogConfig{Level: "info", Format: "text"},
		Client: ClientConfig{StoragePath: defaultStoragePath()},
	}
}

// Load builds the configuration from defaults, then the optional YAML file at
// path, then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.Upstream.APIKey, "OPENAI_API_KEY")
	setString(&c.Upstream.URL, "GRAMMARRELAY_UPSTREAM_URL")
	setString(&c.Upstream.Model, "GRAMMARRELAY_MODEL")
	setString(&c.Upstream.Fingerprint, "GRAMMARRELAY_TLS_FINGERPRINT")
	setString(&c.Relay.AccessKey, "GRAMMARRELAY_ACCESS_KEY")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Client.StoragePath, "GRAMMARRELAY_STORAGE")

	if v := env("GRAMMARRELAY_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("GRAMMARRELAY_TEMPERATURE: %w", err)
		}
		c.Upstream.Temperature = float32(f)
	}
	if v := env("GRAMMARRELAY_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GRAMMARRELAY_MAX_TOKENS: %w", err)
		}
		c.Upstream.MaxTokens = n
	}
	if v := env("GRAMMARRELAY_VERBOSE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GRAMMARRELAY_VERBOSE: %w", err)
		}
		c.Upstream.Verbose = b
	}
	for key, dst := range map[string]*time.Duration{
		"GRAMMARRELAY_UPSTREAM_TIMEOUT": &c.Upstream.Timeout,
		"GRAMMARRELAY_HEARTBEAT":        &c.Relay.HeartbeatInterval,
		"GRAMMARRELAY_MOCK_DELAY":       &c.Relay.MockDelay,
	} {
		v := env(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if strings.TrimSpace(c.Upstream.URL) == "" {
		errs = append(errs, errors.New("upstream.url is required"))
	}
	if c.Upstream.MaxTokens <= 0 {
		errs = append(errs, errors.New("upstream.max_tokens must be positive"))
	}
	switch strings.ToLower(c.Upstream.Fingerprint) {
	case "", "none", "safari":
	default:
		errs = append(errs, fmt.Errorf("upstream.fingerprint %q is not supported", c.Upstream.Fingerprint))
	}
	if c.Relay.MinWords <= 0 || c.Relay.MaxWords < c.Relay.MinWords {
		errs = append(errs, fmt.Errorf("relay word bounds [%d, %d] are invalid", c.Relay.MinWords, c.Relay.MaxWords))
	}
	if c.Relay.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("relay.heartbeat_interval must be positive"))
	}
	if c.Relay.MockDelay < 0 {
		errs = append(errs, errors.New("relay.mock_delay must not be negative"))
	}
	return errors.Join(errs...)
}

// HasCredential reports whether an upstream API key is configured.
func (c UpstreamConfig) HasCredential() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".", "grammarrelay-storage.yaml")
	}
	return filepath.Join(dir, "grammarrelay", "storage.yaml")
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, key string) {
	if v := env(key); v != "" {
		*dst = v
	}
}
