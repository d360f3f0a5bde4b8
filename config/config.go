package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"
)

// Config holds all runtime configuration for the gateway. Timing contracts of
// the core components (retry ceilings, state machine timeouts, buffer capacity)
// are compile-time constants in their owning packages, not configuration.
type Config struct {
	// Gateway identity
	GatewayID string `yaml:"gatewayId" env:"GATEWAY_ID" env-default:"gateway-01"`

	// Backend configuration
	BackendURL string `yaml:"backendUrl" env:"BACKEND_URL" env-required:"true"`

	// Station-mode Wi-Fi credentials. Empty SSID means the gateway starts
	// straight in access-point mode.
	Wifi WifiConfig `yaml:"wifi"`

	// Radio bridge (MQTT) producer configuration
	Radio RadioConfig `yaml:"radio"`

	// Local sensor simulator configuration
	Simulator SimulatorConfig `yaml:"simulator"`

	// Outer loop configuration
	TickMillis           int    `yaml:"tickMillis" env:"TICK_MILLIS" env-default:"200"`
	StatusReportSchedule string `yaml:"statusReportSchedule" env:"STATUS_REPORT_SCHEDULE" env-default:"@every 30s"`

	// Status/metrics server configuration
	StatusPort int `yaml:"statusPort" env:"STATUS_PORT" env-default:"8080"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging"`
}

// WifiConfig contains station-mode credentials, settable at runtime via env.
type WifiConfig struct {
	SSID     string `yaml:"ssid" env:"WIFI_SSID"`
	Password string `yaml:"password" env:"WIFI_PASSWORD"`
}

// RadioConfig contains the MQTT bridge settings for radio-linked sensor nodes.
type RadioConfig struct {
	Enabled   bool   `yaml:"enabled" env:"RADIO_ENABLED" env-default:"false"`
	BrokerURL string `yaml:"brokerUrl" env:"RADIO_BROKER_URL"`
	Topic     string `yaml:"topic" env:"RADIO_TOPIC" env-default:"greenhouse/readings"`
	ClientID  string `yaml:"clientId" env:"RADIO_CLIENT_ID" env-default:"greenhouse-gateway"`
}

// SimulatorConfig contains the local simulated sensor settings.
type SimulatorConfig struct {
	Enabled         bool   `yaml:"enabled" env:"SIMULATOR_ENABLED" env-default:"true"`
	NodeID          string `yaml:"nodeId" env:"SIMULATOR_NODE_ID" env-default:"sim-node-01"`
	IntervalSeconds int    `yaml:"intervalSeconds" env:"SIMULATOR_INTERVAL_SECONDS" env-default:"10"`
}

// Load reads configuration from the specified file path and applies environment
// variable overrides.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from %s: %w", configPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks that all configuration parameters are valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.GatewayID) == "" {
		return fmt.Errorf("gatewayId cannot be empty")
	}

	if _, err := url.ParseRequestURI(c.BackendURL); err != nil {
		return fmt.Errorf("invalid backendUrl: %w", err)
	}

	if c.Radio.Enabled && strings.TrimSpace(c.Radio.BrokerURL) == "" {
		return fmt.Errorf("radio.brokerUrl is required when the radio bridge is enabled")
	}

	if c.Simulator.Enabled && c.Simulator.IntervalSeconds <= 0 {
		return fmt.Errorf("simulator.intervalSeconds must be positive, got %d", c.Simulator.IntervalSeconds)
	}

	if c.TickMillis <= 0 || c.TickMillis > 1000 {
		return fmt.Errorf("tickMillis must be between 1 and 1000, got %d", c.TickMillis)
	}

	if strings.TrimSpace(c.StatusReportSchedule) == "" {
		return fmt.Errorf("statusReportSchedule cannot be empty")
	}

	if c.StatusPort <= 0 || c.StatusPort > 65535 {
		return fmt.Errorf("statusPort must be between 1 and 65535, got %d", c.StatusPort)
	}

	if err := ValidateLogging(&c.Logging); err != nil {
		return fmt.Errorf("logging validation failed: %w", err)
	}

	return nil
}

// Redacted returns a copy of the config with sensitive fields redacted for logging.
func (c *Config) Redacted() map[string]interface{} {
	return map[string]interface{}{
		"gatewayId":  c.GatewayID,
		"backendUrl": c.BackendURL,
		"wifi": map[string]interface{}{
			"ssid":        c.Wifi.SSID,
			"passwordSet": c.Wifi.Password != "",
		},
		"radio": map[string]interface{}{
			"enabled":   c.Radio.Enabled,
			"brokerUrl": c.Radio.BrokerURL,
			"topic":     c.Radio.Topic,
			"clientId":  c.Radio.ClientID,
		},
		"simulator": map[string]interface{}{
			"enabled":         c.Simulator.Enabled,
			"nodeId":          c.Simulator.NodeID,
			"intervalSeconds": c.Simulator.IntervalSeconds,
		},
		"tickMillis":           c.TickMillis,
		"statusReportSchedule": c.StatusReportSchedule,
		"statusPort":           c.StatusPort,
		"logging": map[string]interface{}{
			"logFormat": c.Logging.Format,
			"logLevel":  c.Logging.Level,
		},
	}
}

// NewLogger creates a zap logger based on the configuration.
func (c *Config) NewLogger() (*zap.Logger, error) {
	return NewLogger(&c.Logging)
}
