package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mattcip/srf01"
)

// Config is the root configuration structure for the srf01-mqtt daemon,
// loaded from YAML. Durations are plain millisecond integers.
type Config struct {
	Serial         SerialConfig   `yaml:"serial"`
	MQTT           MQTTConfig     `yaml:"mqtt"`
	Logging        LoggingConfig  `yaml:"logging"`
	PollIntervalMs int            `yaml:"poll_interval_ms"`
	Unit           string         `yaml:"unit"`
	Sensors        []SensorConfig `yaml:"sensors"`
}

// SerialConfig contains the sensor bus connection settings.
type SerialConfig struct {
	Port      string `yaml:"port"`
	Baud      int    `yaml:"baud"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	TLS         bool   `yaml:"tls"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// SensorConfig names one sensor on the bus.
type SensorConfig struct {
	Address int    `yaml:"address"`
	Name    string `yaml:"name"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Serial.Baud == 0 {
		c.Serial.Baud = srf01.DefaultBaudRate
	}
	if c.Serial.TimeoutMs == 0 {
		c.Serial.TimeoutMs = int(srf01.DefaultTimeout / time.Millisecond)
	}
	if c.MQTT.Port == 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "srf01-mqtt"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "srf01"
	}
	if c.PollIntervalMs == 0 {
		c.PollIntervalMs = 2000
	}
	if c.Unit == "" {
		c.Unit = "cm"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks the configuration for values the driver would reject.
func (c *Config) Validate() error {
	if c.Serial.Port == "" {
		return fmt.Errorf("serial.port is required")
	}
	if c.MQTT.Host == "" {
		return fmt.Errorf("mqtt.host is required")
	}
	if _, err := srf01.ParseUnit(c.Unit); err != nil {
		return fmt.Errorf("unit: %w", err)
	}
	if len(c.Sensors) == 0 {
		return fmt.Errorf("at least one sensor must be configured")
	}

	seen := make(map[int]string, len(c.Sensors))
	for _, s := range c.Sensors {
		if s.Address < srf01.MinAddr || s.Address > srf01.MaxAddr {
			return fmt.Errorf("sensor %q: address %d out of range 1-16", s.Name, s.Address)
		}
		if s.Name == "" {
			return fmt.Errorf("sensor at address %d: name is required", s.Address)
		}
		if prev, dup := seen[s.Address]; dup {
			return fmt.Errorf("sensors %q and %q share address %d", prev, s.Name, s.Address)
		}
		seen[s.Address] = s.Name
	}

	return nil
}

// ReadTimeout returns the serial read timeout as a Duration.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Serial.TimeoutMs) * time.Millisecond
}

// PollInterval returns the poll interval as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}
