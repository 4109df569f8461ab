// Package config loads the YAML configuration used by the leo-server and
// leo-client command-line entrypoints, with LEO_* environment variables
// overlaid on top. This is scaffolding around the protocol core: the
// session actor and client engine never import this package, they take
// plain values.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Credentials holds the single username/password pair the server accepts.
type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ServerConfig is the recognized shape of a leo-server YAML config file.
type ServerConfig struct {
	Host                    string      `yaml:"host"`
	Port                    int         `yaml:"port"`
	StoragePath             string      `yaml:"storagePath"`
	Credentials             Credentials `yaml:"credentials"`
	ProtocolVersion         int         `yaml:"protocolVersion"`
	Capabilities            []string    `yaml:"capabilities"`
	MaxUploadSize           int64       `yaml:"maxUploadSize"`
	MaxFrameSize            uint32      `yaml:"maxFrameSize"`
	GetRateLimitBytesPerSec int64       `yaml:"getRateLimitBytesPerSec"`
	LogPath                 string      `yaml:"logPath"`
	LogLevel                string      `yaml:"logLevel"`
}

// ClientConfig is the recognized shape of a leo-client YAML config file.
type ClientConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	TimeoutMs int    `yaml:"timeoutMs"`
}

var defaultCapabilities = []string{"AUTH", "PUT", "GET", "LIST", "DEL", "INFO", "BYE"}

// LoadServerConfig reads path if non-empty, applies defaults, overlays
// LEO_* environment variables, and validates the result. path may be
// empty, in which case the config is built from defaults and environment
// alone.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := &ServerConfig{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read server config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse server config file: %w", err)
		}
	}

	cfg.applyServerEnv()
	cfg.setServerDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: invalid server configuration: %w", err)
	}
	return cfg, nil
}

func (c *ServerConfig) applyServerEnv() {
	if v := os.Getenv("LEO_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("LEO_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("LEO_STORAGE"); v != "" {
		c.StoragePath = v
	}
	if v := os.Getenv("LEO_USER"); v != "" {
		c.Credentials.Username = v
	}
	if v := os.Getenv("LEO_PASS"); v != "" {
		c.Credentials.Password = v
	}
}

func (c *ServerConfig) setServerDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 9443
	}
	if c.ProtocolVersion == 0 {
		c.ProtocolVersion = 1
	}
	if len(c.Capabilities) == 0 {
		c.Capabilities = append([]string(nil), defaultCapabilities...)
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = 16 * 1024 * 1024
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *ServerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.StoragePath == "" {
		return fmt.Errorf("storagePath is required")
	}
	if c.Credentials.Username == "" {
		return fmt.Errorf("credentials.username is required")
	}
	if c.Credentials.Password == "" {
		return fmt.Errorf("credentials.password is required")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	return nil
}

// LoadClientConfig reads path if non-empty, applies defaults, overlays
// LEO_* environment variables, and validates the result.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read client config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse client config file: %w", err)
		}
	}

	cfg.applyClientEnv()
	cfg.setClientDefaults()

	if err := cfg.validateClient(); err != nil {
		return nil, fmt.Errorf("config: invalid client configuration: %w", err)
	}
	return cfg, nil
}

func (c *ClientConfig) applyClientEnv() {
	if v := os.Getenv("LEO_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("LEO_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("LEO_USER"); v != "" {
		c.Username = v
	}
	if v := os.Getenv("LEO_PASS"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("LEO_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.TimeoutMs = ms
		}
	}
}

func (c *ClientConfig) setClientDefaults() {
	if c.Port == 0 {
		c.Port = 9443
	}
	if c.TimeoutMs == 0 {
		c.TimeoutMs = 15000
	}
}

func (c *ClientConfig) validateClient() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}
