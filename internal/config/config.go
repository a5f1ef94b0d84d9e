// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	TQ       TQConfig       `yaml:"tq"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	System   SystemConfig   `yaml:"system"`
	Timing   TimingConfig   `yaml:"timing"`
}

// TQConfig contains the broker gateway account settings
type TQConfig struct {
	GatewayURL  string `yaml:"gateway_url"`
	BrokerID    string `yaml:"broker_id"`
	AccountID   string `yaml:"account_id"`
	Password    string `yaml:"password"`
	AuthUser    string `yaml:"auth_user"`
	AuthPass    string `yaml:"auth_pass"`
	PortfolioID string `yaml:"portfolio_id"`
	// ReferenceQuote is subscribed at session start so the first drains have
	// data flowing before any order activity.
	ReferenceQuote string `yaml:"reference_quote"`
}

// RabbitMQConfig contains message bus connection settings
type RabbitMQConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig contains cache connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DatabaseConfig contains relational store settings. Driver is selected from
// the DSN: a "postgres://" DSN uses lib/pq, anything else is treated as a
// sqlite file path.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel      string `yaml:"log_level"`
	MetricsPort   int    `yaml:"metrics_port"`
	EnableMetrics bool   `yaml:"enable_metrics"`
}

// TimingConfig contains timing-related settings, all in seconds
type TimingConfig struct {
	BlockTimeout            int `yaml:"block_timeout"`
	BlockCounterMax         int `yaml:"block_counter_max"`
	PositionLoopInterval    int `yaml:"position_loop_interval"`
	PositionTTL             int `yaml:"position_ttl"`
	AccountTTL              int `yaml:"account_ttl"`
	OrderExpireAllowMax     int `yaml:"order_expire_allow_max"`
	SessionEndBuffer        int `yaml:"session_end_buffer"`
	UniverseRefreshInterval int `yaml:"universe_refresh_interval"`
	BusReconnectDelay       int `yaml:"bus_reconnect_delay"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// DefaultConfigPaths are tried in order when no explicit path is given.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config/config.yaml",
	"/etc/tqbridge/config.yaml",
}

// Load loads configuration from the first existing path, or from the
// explicit path when one is given.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadConfig(path)
	}
	for _, candidate := range DefaultConfigPaths {
		if _, err := os.Stat(candidate); err == nil {
			return LoadConfig(candidate)
		}
	}
	return nil, fmt.Errorf("no config file found in %s", strings.Join(DefaultConfigPaths, ", "))
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := expandEnvVars(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expandedData), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateTQConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.validateConnections(); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.validateSystemConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.validateTimingConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateTQConfig() error {
	if c.TQ.GatewayURL == "" {
		return ValidationError{
			Field:   "tq.gateway_url",
			Message: "broker gateway URL is required",
		}
	}
	if c.TQ.AccountID == "" {
		return ValidationError{
			Field:   "tq.account_id",
			Message: "broker account id is required",
		}
	}
	if c.TQ.PortfolioID == "" {
		return ValidationError{
			Field:   "tq.portfolio_id",
			Message: "portfolio id is required",
		}
	}
	return nil
}

func (c *Config) validateConnections() error {
	if c.RabbitMQ.URL == "" {
		return ValidationError{
			Field:   "rabbitmq.url",
			Message: "rabbitmq URL is required",
		}
	}
	if c.Redis.Addr == "" {
		return ValidationError{
			Field:   "redis.addr",
			Message: "redis address is required",
		}
	}
	if c.Database.DSN == "" {
		return ValidationError{
			Field:   "database.dsn",
			Message: "database DSN is required",
		}
	}
	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validateTimingConfig() error {
	if c.Timing.BlockTimeout < 1 {
		return ValidationError{
			Field:   "timing.block_timeout",
			Value:   c.Timing.BlockTimeout,
			Message: "block timeout must be at least 1 second",
		}
	}
	if c.Timing.BlockCounterMax < 1 {
		return ValidationError{
			Field:   "timing.block_counter_max",
			Value:   c.Timing.BlockCounterMax,
			Message: "block counter max must be at least 1",
		}
	}
	if c.Timing.PositionTTL < c.Timing.PositionLoopInterval {
		return ValidationError{
			Field:   "timing.position_ttl",
			Value:   c.Timing.PositionTTL,
			Message: "position TTL must not be shorter than the loop interval",
		}
	}
	return nil
}

// Duration helpers

func (t TimingConfig) BlockTimeoutDuration() time.Duration {
	return time.Duration(t.BlockTimeout) * time.Second
}

func (t TimingConfig) PositionLoopIntervalDuration() time.Duration {
	return time.Duration(t.PositionLoopInterval) * time.Second
}

func (t TimingConfig) PositionTTLDuration() time.Duration {
	return time.Duration(t.PositionTTL) * time.Second
}

func (t TimingConfig) AccountTTLDuration() time.Duration {
	return time.Duration(t.AccountTTL) * time.Second
}

func (t TimingConfig) OrderExpireAllowMaxDuration() time.Duration {
	return time.Duration(t.OrderExpireAllowMax) * time.Second
}

func (t TimingConfig) SessionEndBufferDuration() time.Duration {
	return time.Duration(t.SessionEndBuffer) * time.Second
}

func (t TimingConfig) UniverseRefreshIntervalDuration() time.Duration {
	return time.Duration(t.UniverseRefreshInterval) * time.Second
}

func (t TimingConfig) BusReconnectDelayDuration() time.Duration {
	return time.Duration(t.BusReconnectDelay) * time.Second
}

// String returns a string representation of the configuration (with sensitive data masked)
func (c *Config) String() string {
	// Create a copy with sensitive data masked
	configCopy := *c
	configCopy.TQ.Password = maskString(c.TQ.Password)
	configCopy.TQ.AuthPass = maskString(c.TQ.AuthPass)
	configCopy.Redis.Password = maskString(c.Redis.Password)
	configCopy.RabbitMQ.URL = maskString(c.RabbitMQ.URL)
	configCopy.Database.DSN = maskString(c.Database.DSN)

	data, _ := yaml.Marshal(configCopy)
	return string(data)
}

// Helper functions

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func maskString(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// DefaultConfig returns a configuration populated with the timing defaults
func DefaultConfig() *Config {
	return &Config{
		System: SystemConfig{
			LogLevel:      "INFO",
			MetricsPort:   9090,
			EnableMetrics: true,
		},
		Timing: TimingConfig{
			BlockTimeout:            10,
			BlockCounterMax:         3,
			PositionLoopInterval:    5,
			PositionTTL:             15,
			AccountTTL:              3600,
			OrderExpireAllowMax:     5,
			SessionEndBuffer:        15,
			UniverseRefreshInterval: 1800,
			BusReconnectDelay:       5,
		},
	}
}
