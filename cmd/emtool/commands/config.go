package commands

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the serve command listens on (e.g. "127.0.0.1:8080")
	BindAddress string `yaml:"bind_address"`
	// SerialPort is the modem's AT port (e.g. "/dev/ttyUSB2"). Empty selects
	// the port of the first attached EM7455.
	SerialPort string `yaml:"serial_port"`
	// BaudRate is the baud rate for serial communication with the modem (e.g. 115200)
	BaudRate int `yaml:"baud_rate"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log_level"`
	// ATTimeout bounds a single AT command round trip
	ATTimeout time.Duration `yaml:"at_timeout"`
	// Keygen selects the key derivation used to answer unlock challenges
	Keygen KeygenConfig `yaml:"keygen"`
}

// KeygenConfig configures either an external key generator command or a
// remote key service reached over MQTT. The command wins when both are set.
type KeygenConfig struct {
	Command      string        `yaml:"command"`
	Args         []string      `yaml:"args"`
	MQTTBroker   string        `yaml:"mqtt_broker"`
	MQTTTopic    string        `yaml:"mqtt_topic"`
	MQTTUsername string        `yaml:"mqtt_username"`
	MQTTPassword string        `yaml:"mqtt_password"`
	Timeout      time.Duration `yaml:"timeout"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "127.0.0.1:8080"
		c.SerialPort = ""
		c.BaudRate = 115200
		c.LogLevel = "info"
		c.ATTimeout = 2 * time.Second
		c.Keygen.MQTTTopic = "emtool/keygen"
		c.Keygen.Timeout = 10 * time.Second
		return nil
	}
}

// WithFile loads configuration from a YAML file. An empty path is ignored.
// Keys missing from the file keep their current value.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if timeout := os.Getenv("AT_TIMEOUT"); timeout != "" {
			d, err := time.ParseDuration(timeout)
			if err != nil {
				return fmt.Errorf("AT_TIMEOUT: %w", err)
			}
			c.ATTimeout = d
		}

		if command := os.Getenv("KEYGEN_COMMAND"); command != "" {
			c.Keygen.Command = command
		}

		if broker := os.Getenv("KEYGEN_MQTT_BROKER"); broker != "" {
			c.Keygen.MQTTBroker = broker
		}

		if topic := os.Getenv("KEYGEN_MQTT_TOPIC"); topic != "" {
			c.Keygen.MQTTTopic = topic
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags. Only flags set on
// the command line override earlier sources.
func WithFlags(fSet *pflag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var err error
		fSet.Visit(func(f *pflag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, convErr := strconv.Atoi(f.Value.String()); convErr == nil {
					c.BaudRate = b
				}
			case "log-level":
				c.LogLevel = f.Value.String()
			case "at-timeout":
				d, parseErr := time.ParseDuration(f.Value.String())
				if parseErr != nil {
					err = fmt.Errorf("--at-timeout: %w", parseErr)
					return
				}
				c.ATTimeout = d
			case "keygen-command":
				c.Keygen.Command = f.Value.String()
			case "keygen-mqtt-broker":
				c.Keygen.MQTTBroker = f.Value.String()
			case "keygen-mqtt-topic":
				c.Keygen.MQTTTopic = f.Value.String()
			}
		})
		return err
	}
}
