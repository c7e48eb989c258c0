package modem

import (
	"log/slog"
	"time"
)

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

// Config holds the settings of a Modem. It is created with a ConfigBuilder.
type Config struct {
	dialer       Dialer
	atTimeout    time.Duration
	pollInterval time.Duration
	maxResponse  int
	logger       *slog.Logger
}

func (c *Config) setDefaults() {
	if c.atTimeout == 0 {
		c.atTimeout = 2 * time.Second
	}
	if c.pollInterval == 0 {
		c.pollInterval = 100 * time.Millisecond
	}
	if c.maxResponse == 0 {
		c.maxResponse = 4096
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
}

// ConfigBuilder assembles a Config step by step.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithATTimeout sets how long a single command may take before its
// response is reported Incomplete.
func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.atTimeout = d
	return b
}

// WithPollInterval sets the transport read timeout, the granularity at
// which the command deadline is checked.
func (b *ConfigBuilder) WithPollInterval(d time.Duration) *ConfigBuilder {
	b.config.pollInterval = d
	return b
}

func (b *ConfigBuilder) WithMaxResponseLength(n int) *ConfigBuilder {
	b.config.maxResponse = n
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// Build validates the configuration and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
