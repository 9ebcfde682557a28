package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultDispatchTimeout      = 30 * time.Second
	DefaultMaxResponseBodyBytes = int64(1 << 20)
	DefaultDispatchUserAgent    = "go-postwork/1"
	DefaultRunnerWorkers        = 2
	DefaultRunnerPollInterval   = time.Second
)

type DispatchConfig struct {
	Timeout              time.Duration `koanf:"timeout" mapstructure:"timeout"`
	InsecureSkipVerify   bool          `koanf:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
	MaxResponseBodyBytes int64         `koanf:"max_response_body_bytes" mapstructure:"max_response_body_bytes"`
	UserAgent            string        `koanf:"user_agent" mapstructure:"user_agent"`
}

type CallbackConfig struct {
	URL    string `koanf:"url" mapstructure:"url"`
	APIKey string `koanf:"api_key" mapstructure:"api_key"`
}

type RunnerConfig struct {
	Workers      int           `koanf:"workers" mapstructure:"workers"`
	PollInterval time.Duration `koanf:"poll_interval" mapstructure:"poll_interval"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Dispatch    DispatchConfig `koanf:"dispatch" mapstructure:"dispatch"`
	Callback    CallbackConfig `koanf:"callback" mapstructure:"callback"`
	Runner      RunnerConfig   `koanf:"runner" mapstructure:"runner"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "postwork",
		Dispatch: DispatchConfig{
			Timeout:              DefaultDispatchTimeout,
			MaxResponseBodyBytes: DefaultMaxResponseBodyBytes,
			UserAgent:            DefaultDispatchUserAgent,
		},
		Runner: RunnerConfig{
			Workers:      DefaultRunnerWorkers,
			PollInterval: DefaultRunnerPollInterval,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Dispatch.Timeout < 0 {
		return fmt.Errorf("core: dispatch.timeout must not be negative")
	}
	if c.Dispatch.MaxResponseBodyBytes < 0 {
		return fmt.Errorf("core: dispatch.max_response_body_bytes must not be negative")
	}
	if c.Runner.Workers < 0 {
		return fmt.Errorf("core: runner.workers must not be negative")
	}
	if raw := strings.TrimSpace(c.Callback.URL); raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || !parsed.IsAbs() {
			return fmt.Errorf("core: callback.url must be an absolute url")
		}
	}
	return nil
}

// WithDefaults fills zero-valued tunables.
func (c DispatchConfig) WithDefaults() DispatchConfig {
	out := c
	if out.Timeout <= 0 {
		out.Timeout = DefaultDispatchTimeout
	}
	if out.MaxResponseBodyBytes <= 0 {
		out.MaxResponseBodyBytes = DefaultMaxResponseBodyBytes
	}
	if strings.TrimSpace(out.UserAgent) == "" {
		out.UserAgent = DefaultDispatchUserAgent
	}
	return out
}

func (c RunnerConfig) WithDefaults() RunnerConfig {
	out := c
	if out.Workers <= 0 {
		out.Workers = DefaultRunnerWorkers
	}
	if out.PollInterval <= 0 {
		out.PollInterval = DefaultRunnerPollInterval
	}
	return out
}
