// Package config loads mcpconn settings using Viper.
//
// Configuration sources (in priority order):
//  1. Environment variables (MCPCONN_*, dots replaced by underscores)
//  2. Config file (--config, ./config.yaml or ~/.config/mcpconn/config.yaml)
//  3. Built-in defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vikashloomba/mcp-connection-manager-go/pkg/mcpmgr"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "MCPCONN"

// Config is the decoded configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Log     LogConfig     `mapstructure:"log"`
	MCP     MCPConfig     `mapstructure:"mcp"`
	Breaker BreakerConfig `mapstructure:"breaker"`
	Metrics MetricsConfig `mapstructure:"metrics"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StoreConfig struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	JSONRPC bool   `mapstructure:"jsonrpc"`
}

type MCPConfig struct {
	ClientName     string        `mapstructure:"client_name"`
	ClientVersion  string        `mapstructure:"client_version"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	// AutoConnect connects every stored config marked active on startup.
	AutoConnect bool `mapstructure:"autoconnect"`
}

type BreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads configuration from all sources. An explicit path must exist; the
// default search locations are optional.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "mcpconn"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", describePath(path), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("store.path", filepath.Join("data", "servers"))
	v.SetDefault("store.in_memory", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.jsonrpc", false)
	v.SetDefault("mcp.client_name", "mcp-connection-manager")
	v.SetDefault("mcp.client_version", "1.0.0")
	v.SetDefault("mcp.connect_timeout", mcpmgr.DefaultConnectTimeout)
	v.SetDefault("mcp.max_retries", 0)
	v.SetDefault("mcp.autoconnect", false)
	v.SetDefault("breaker.enabled", true)
	v.SetDefault("breaker.max_requests", 3)
	v.SetDefault("breaker.interval", 10*time.Second)
	v.SetDefault("breaker.timeout", 30*time.Second)
	v.SetDefault("breaker.min_requests", 5)
	v.SetDefault("breaker.failure_ratio", 0.6)
	v.SetDefault("metrics.enabled", true)
}

func describePath(path string) string {
	if path == "" {
		return "config file"
	}
	return path
}

// Validate rejects values the rest of the program cannot work with.
func (c *Config) Validate() error {
	if c.MCP.ConnectTimeout <= 0 {
		return fmt.Errorf("config: mcp.connect_timeout must be positive, got %s", c.MCP.ConnectTimeout)
	}
	if c.Breaker.FailureRatio < 0 || c.Breaker.FailureRatio > 1 {
		return fmt.Errorf("config: breaker.failure_ratio must be within [0, 1], got %v", c.Breaker.FailureRatio)
	}
	if !c.Store.InMemory && strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("config: store.path is required unless store.in_memory is set")
	}
	return nil
}

// BreakerSettings converts the breaker section for mcpmgr.
func (c *Config) BreakerSettings() mcpmgr.BreakerSettings {
	return mcpmgr.BreakerSettings{
		Disabled:     !c.Breaker.Enabled,
		MaxRequests:  c.Breaker.MaxRequests,
		Interval:     c.Breaker.Interval,
		Timeout:      c.Breaker.Timeout,
		MinRequests:  c.Breaker.MinRequests,
		FailureRatio: c.Breaker.FailureRatio,
	}
}
