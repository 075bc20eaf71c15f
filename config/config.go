// Package config loads the YAML configuration a gwshell-style client reads
// at startup to decide how to open a Gateway.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GatewayConfig mirrors the parameters OpenTCP/OpenSerial take, plus the
// subscriptions to apply immediately after open.
type GatewayConfig struct {
	Transport string `yaml:"transport"` // "tcp" or "serial"
	Debug     bool   `yaml:"debug"`

	TCP struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"tcp"`

	Serial struct {
		Device   string `yaml:"device"`
		Baud     int    `yaml:"baud"`
		Settings string `yaml:"settings"`
	} `yaml:"serial"`

	Subscribe []string `yaml:"subscribe"`
}

// Load reads and parses filename, applying the same defaults the teacher's
// config loader applies: a default TCP port, default serial framing, and
// "tcp" as the assumed transport when unset.
func Load(filename string) (*GatewayConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg GatewayConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if cfg.Transport == "" {
		cfg.Transport = "tcp"
	}
	if cfg.TCP.Port == 0 {
		cfg.TCP.Port = 5081
	}
	if cfg.Serial.Settings == "" {
		cfg.Serial.Settings = "N81"
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = 9600
	}

	switch cfg.Transport {
	case "tcp":
		if cfg.TCP.Host == "" {
			return nil, fmt.Errorf("config: tcp transport requires tcp.host")
		}
	case "serial":
		if cfg.Serial.Device == "" {
			return nil, fmt.Errorf("config: serial transport requires serial.device")
		}
	default:
		return nil, fmt.Errorf("config: unknown transport %q (want \"tcp\" or \"serial\")", cfg.Transport)
	}

	return &cfg, nil
}

// Addr returns the "host:port" dial string for a tcp-transport config.
func (c *GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.TCP.Host, c.TCP.Port)
}
