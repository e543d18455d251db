// Package config handles configuration management with validation
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"signalbridge/internal/transport"
	"signalbridge/internal/venue"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	Processor ProcessorConfig `yaml:"processor"`
	Venue     VenueConfig     `yaml:"venue"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	System    SystemConfig    `yaml:"system"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Router    RouterConfig    `yaml:"router"`
	Alerts    AlertsConfig    `yaml:"alerts"`
}

// BridgeConfig describes the dealer connection to the router
type BridgeConfig struct {
	Scheme      string `yaml:"scheme"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Path        string `yaml:"path"` // ws only
	ServerName  string `yaml:"server_name"`
	IdleSleepMs int    `yaml:"idle_sleep_ms"`
	HeartbeatMs int    `yaml:"heartbeat_ms"`
	AuthKey     Secret `yaml:"auth_key" json:"auth_key"`
}

// ProcessorConfig contains signal processor settings
type ProcessorConfig struct {
	AutoExecution     bool `yaml:"auto_execution"`
	WorkerPoolSize    int  `yaml:"worker_pool_size"`
	WorkerPoolBuffer  int  `yaml:"worker_pool_buffer"`
	PendingTTLSeconds int  `yaml:"pending_ttl_seconds"`
}

// VenueConfig configures the paper venue
type VenueConfig struct {
	ConfirmDelayMs int                           `yaml:"confirm_delay_ms"`
	InitialBalance float64                       `yaml:"initial_balance"`
	Symbols        map[string]venue.SymbolConfig `yaml:"symbols"`
}

// ReconnectConfig bounds the reconnect supervisor
type ReconnectConfig struct {
	MaxAttempts      int `yaml:"max_attempts"` // 0 retries until shutdown
	InitialBackoffMs int `yaml:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms"`
	CheckIntervalMs  int `yaml:"check_interval_ms"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel  string `yaml:"log_level"`
	DebugMode bool   `yaml:"debug_mode"`
	LogFile   string `yaml:"log_file"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	AdminPort      int  `yaml:"admin_port"`
	GRPCHealthPort int  `yaml:"grpc_health_port"`
	EnableMetrics  bool `yaml:"enable_metrics"`
}

// RouterConfig configures the dev router peer
type RouterConfig struct {
	Listen      string   `yaml:"listen" json:"listen"`
	Name        string   `yaml:"name" json:"name"`
	AuthKeys    []Secret `yaml:"auth_keys" json:"auth_keys"`
	MetricsPort int      `yaml:"metrics_port" json:"metrics_port"` // 0 disables
}

// AlertsConfig enables chat notifications on connection health changes
type AlertsConfig struct {
	SlackWebhook   Secret `yaml:"slack_webhook" json:"slack_webhook"`
	TelegramToken  Secret `yaml:"telegram_token" json:"telegram_token"`
	TelegramChatID string `yaml:"telegram_chat_id" json:"telegram_chat_id"`
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

// LoadConfig loads configuration from a YAML file with environment variable
// expansion. A .env file next to the working directory is loaded first.
func LoadConfig(filename string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := expandEnvVars(string(data))

	// unset keys keep their defaults; a symbols section replaces the default set
	config := DefaultConfig()
	defaultSymbols := config.Venue.Symbols
	config.Venue.Symbols = nil
	if err := yaml.Unmarshal([]byte(expandedData), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if len(config.Venue.Symbols) == 0 {
		config.Venue.Symbols = defaultSymbols
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// ApplyEnvOverrides applies BRIDGE_HOST, BRIDGE_PORT and SERVER_NAME
func (c *Config) ApplyEnvOverrides() error {
	if host := os.Getenv("BRIDGE_HOST"); host != "" {
		c.Bridge.Host = host
	}
	if port := os.Getenv("BRIDGE_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return ValidationError{Field: "BRIDGE_PORT", Value: port, Message: "must be an integer"}
		}
		c.Bridge.Port = p
	}
	if name := os.Getenv("SERVER_NAME"); name != "" {
		c.Bridge.ServerName = name
	}
	return nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errs []string

	for _, check := range []func() error{
		c.validateBridgeConfig,
		c.validateProcessorConfig,
		c.validateVenueConfig,
		c.validateReconnectConfig,
		c.validateSystemConfig,
		c.validateTelemetryConfig,
	} {
		if err := check(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}

	return nil
}

func (c *Config) validateBridgeConfig() error {
	if _, err := c.Endpoint(); err != nil {
		return ValidationError{
			Field:   "bridge",
			Value:   fmt.Sprintf("%s://%s:%d", c.Bridge.Scheme, c.Bridge.Host, c.Bridge.Port),
			Message: err.Error(),
		}
	}
	if strings.TrimSpace(c.Bridge.ServerName) == "" {
		return ValidationError{
			Field:   "bridge.server_name",
			Message: "server name is the routing identity and must not be empty",
		}
	}
	if c.Bridge.IdleSleepMs < 0 || c.Bridge.HeartbeatMs < 0 {
		return ValidationError{
			Field:   "bridge.idle_sleep_ms",
			Value:   c.Bridge.IdleSleepMs,
			Message: "durations must not be negative",
		}
	}
	return nil
}

func (c *Config) validateProcessorConfig() error {
	if c.Processor.WorkerPoolSize < 1 || c.Processor.WorkerPoolSize > 100 {
		return ValidationError{
			Field:   "processor.worker_pool_size",
			Value:   c.Processor.WorkerPoolSize,
			Message: "must be between 1 and 100",
		}
	}
	if c.Processor.WorkerPoolBuffer < 1 || c.Processor.WorkerPoolBuffer > 100000 {
		return ValidationError{
			Field:   "processor.worker_pool_buffer",
			Value:   c.Processor.WorkerPoolBuffer,
			Message: "must be between 1 and 100000",
		}
	}
	if c.Processor.PendingTTLSeconds < 0 {
		return ValidationError{
			Field:   "processor.pending_ttl_seconds",
			Value:   c.Processor.PendingTTLSeconds,
			Message: "must not be negative (0 disables expiry)",
		}
	}
	return nil
}

func (c *Config) validateVenueConfig() error {
	for name, sym := range c.Venue.Symbols {
		if sym.Bid <= 0 || sym.Ask <= 0 || sym.Ask < sym.Bid {
			return ValidationError{
				Field:   fmt.Sprintf("venue.symbols.%s", name),
				Value:   fmt.Sprintf("bid=%v ask=%v", sym.Bid, sym.Ask),
				Message: "bid and ask must be positive with ask >= bid",
			}
		}
	}
	return nil
}

func (c *Config) validateReconnectConfig() error {
	r := c.Reconnect
	if r.MaxAttempts < 0 {
		return ValidationError{Field: "reconnect.max_attempts", Value: r.MaxAttempts, Message: "must not be negative"}
	}
	if r.InitialBackoffMs <= 0 || r.MaxBackoffMs < r.InitialBackoffMs {
		return ValidationError{
			Field:   "reconnect.initial_backoff_ms",
			Value:   r.InitialBackoffMs,
			Message: "must be positive and not exceed max_backoff_ms",
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

func (c *Config) validateTelemetryConfig() error {
	for field, port := range map[string]int{
		"telemetry.admin_port":       c.Telemetry.AdminPort,
		"telemetry.grpc_health_port": c.Telemetry.GRPCHealthPort,
		"router.metrics_port":        c.Router.MetricsPort,
	} {
		if port < 0 || port > 65535 {
			return ValidationError{Field: field, Value: port, Message: "must be a port number, 0 disables"}
		}
	}
	return nil
}

// Endpoint builds the router endpoint the bridge connects to
func (c *Config) Endpoint() (transport.Endpoint, error) {
	ep, err := transport.NewEndpoint(c.Bridge.Scheme, c.Bridge.Host, c.Bridge.Port)
	if err != nil {
		return transport.Endpoint{}, err
	}
	if ep.Scheme == transport.SchemeWS && c.Bridge.Path != "" {
		ep.Path = c.Bridge.Path
	}
	return ep, nil
}

// LogLevel returns the effective log level; debug mode forces DEBUG
func (c *Config) LogLevel() string {
	if c.System.DebugMode {
		return "DEBUG"
	}
	return strings.ToUpper(c.System.LogLevel)
}

func (c *Config) IdleSleep() time.Duration {
	return time.Duration(c.Bridge.IdleSleepMs) * time.Millisecond
}

func (c *Config) Heartbeat() time.Duration {
	return time.Duration(c.Bridge.HeartbeatMs) * time.Millisecond
}

func (c *Config) PendingTTL() time.Duration {
	return time.Duration(c.Processor.PendingTTLSeconds) * time.Second
}

func (c *Config) ConfirmDelay() time.Duration {
	return time.Duration(c.Venue.ConfirmDelayMs) * time.Millisecond
}

// String returns a YAML rendering with secrets redacted
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
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

// DefaultConfig returns the configuration used when no file is present
func DefaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			Scheme:      transport.SchemeTCP,
			Host:        "127.0.0.1",
			Port:        2222,
			ServerName:  "Server",
			IdleSleepMs: 1,
		},
		Processor: ProcessorConfig{
			WorkerPoolSize:   8,
			WorkerPoolBuffer: 1024,
		},
		Venue: VenueConfig{
			ConfirmDelayMs: 50,
			InitialBalance: 10000,
			Symbols: map[string]venue.SymbolConfig{
				"EURUSD": {Bid: 1.1050, Ask: 1.1052, Digits: 5},
				"GBPUSD": {Bid: 1.2700, Ask: 1.2702, Digits: 5},
				"USDJPY": {Bid: 150.10, Ask: 150.12, Digits: 3},
			},
		},
		Reconnect: ReconnectConfig{
			InitialBackoffMs: 200,
			MaxBackoffMs:     5000,
			CheckIntervalMs:  500,
		},
		System: SystemConfig{
			LogLevel: "INFO",
		},
		Telemetry: TelemetryConfig{
			AdminPort:      8081,
			GRPCHealthPort: 50052,
			EnableMetrics:  true,
		},
		Router: RouterConfig{
			Listen: "tcp://127.0.0.1:2222",
			Name:   "Router",
		},
	}
}
