package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for PestGuard Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Actuators ActuatorsConfig `yaml:"actuators"`
	Motors    MotorsConfig    `yaml:"motors"`
	Sensors   []SensorConfig  `yaml:"sensors"`
	Risk      RiskConfig      `yaml:"risk"`
}

// SiteConfig contains rig-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// The broker carries inbound detection events and outbound status/readings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	CORS      CORSConfig       `yaml:"cors"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
}

// WebSocketConfig contains WebSocket connection settings.
type WebSocketConfig struct {
	PingInterval   int `yaml:"ping_interval"`    // seconds between protocol pings
	PongTimeout    int `yaml:"pong_timeout"`     // seconds to wait for a pong
	MaxMessageSize int `yaml:"max_message_size"` // bytes
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// InfluxDBConfig contains InfluxDB connection settings for telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ActuatorsConfig describes the relay bank.
//
// Channels lists every wired relay channel id. Roles map functional
// roles onto channel ids so the dispatcher never hard-codes wiring:
// the pump relay sprays pesticide, the trap relay powers the trap motor.
type ActuatorsConfig struct {
	Channels []int          `yaml:"channels"`
	Roles    ActuatorRoles  `yaml:"roles"`
	Pins     map[int]int    `yaml:"pins,omitempty"`
	Labels   map[int]string `yaml:"labels,omitempty"`
}

// ActuatorRoles maps functional roles to relay channel ids.
type ActuatorRoles struct {
	Pump int `yaml:"pump"`
	Trap int `yaml:"trap"`
}

// MotorsConfig describes the motion hardware.
type MotorsConfig struct {
	Stepper StepperConfig `yaml:"stepper"`
	Servo   ServoConfig   `yaml:"servo"`
}

// StepperConfig contains stepper motor settings.
type StepperConfig struct {
	Pins        []int   `yaml:"pins"`
	StepDelayMS float64 `yaml:"step_delay_ms"`
}

// ServoConfig contains servo motor settings.
type ServoConfig struct {
	ID            int `yaml:"id"`
	Pin           int `yaml:"pin"`
	SettleDelayMS int `yaml:"settle_delay_ms"`
}

// StepDelay returns the pause between stepper steps as a Duration.
func (s StepperConfig) StepDelay() time.Duration {
	return time.Duration(s.StepDelayMS * float64(time.Millisecond))
}

// SettleDelay returns the servo settle delay as a Duration.
func (s ServoConfig) SettleDelay() time.Duration {
	return time.Duration(s.SettleDelayMS) * time.Millisecond
}

// SensorConfig describes one polled sensor.
type SensorConfig struct {
	ID         string `yaml:"id"`
	Type       string `yaml:"type"`
	Unit       string `yaml:"unit"`
	IntervalMS int    `yaml:"interval_ms"`
}

// Interval returns the polling interval as a Duration.
func (s SensorConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMS) * time.Millisecond
}

// RiskConfig contains the three ordered confidence thresholds used to
// classify pest detections. Validate() enforces high >= medium >= low.
type RiskConfig struct {
	HighRisk   float64 `yaml:"high_risk"`
	MediumRisk float64 `yaml:"medium_risk"`
	LowRisk    float64 `yaml:"low_risk"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PESTGUARD_SECTION_KEY
// For example: PESTGUARD_DATABASE_PATH, PESTGUARD_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// The defaults mirror a four-relay rig with the standard sensor set.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "rig-001",
			Name:     "PestGuard",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/pestguard.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "pestguard-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				PingInterval:   30,
				PongTimeout:    60,
				MaxMessageSize: 65536,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Actuators: ActuatorsConfig{
			Channels: []int{0, 1, 2, 3},
			Roles: ActuatorRoles{
				Pump: 0,
				Trap: 1,
			},
		},
		Motors: MotorsConfig{
			Stepper: StepperConfig{
				Pins:        []int{14, 15, 16, 17},
				StepDelayMS: 10,
			},
			Servo: ServoConfig{
				ID:            0,
				SettleDelayMS: 100,
			},
		},
		Sensors: []SensorConfig{
			{ID: "temperature", Type: "temperature", Unit: "°C", IntervalMS: 5000},
			{ID: "humidity", Type: "humidity", Unit: "%", IntervalMS: 5000},
			{ID: "soil_moisture", Type: "soil_moisture", Unit: "%", IntervalMS: 10000},
			{ID: "light", Type: "light", Unit: "lux", IntervalMS: 5000},
		},
		Risk: RiskConfig{
			HighRisk:   0.8,
			MediumRisk: 0.5,
			LowRisk:    0.3,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PESTGUARD_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("PESTGUARD_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("PESTGUARD_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PESTGUARD_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PESTGUARD_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("PESTGUARD_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("PESTGUARD_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("PESTGUARD_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Malformed configuration is an initialisation-time failure: a config
// that fails validation never reaches the orchestrator.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Site validation
	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Actuator validation
	if len(c.Actuators.Channels) == 0 {
		errs = append(errs, "actuators.channels must list at least one relay channel")
	}
	channelSet := make(map[int]struct{}, len(c.Actuators.Channels))
	for _, ch := range c.Actuators.Channels {
		if _, dup := channelSet[ch]; dup {
			errs = append(errs, fmt.Sprintf("actuators.channels contains duplicate channel %d", ch))
		}
		channelSet[ch] = struct{}{}
	}
	if _, ok := channelSet[c.Actuators.Roles.Pump]; !ok {
		errs = append(errs, fmt.Sprintf("actuators.roles.pump references unknown channel %d", c.Actuators.Roles.Pump))
	}
	if _, ok := channelSet[c.Actuators.Roles.Trap]; !ok {
		errs = append(errs, fmt.Sprintf("actuators.roles.trap references unknown channel %d", c.Actuators.Roles.Trap))
	}

	// Sensor validation
	sensorIDs := make(map[string]struct{}, len(c.Sensors))
	for i, s := range c.Sensors {
		if s.ID == "" {
			errs = append(errs, fmt.Sprintf("sensors[%d].id is required", i))
			continue
		}
		if _, dup := sensorIDs[s.ID]; dup {
			errs = append(errs, fmt.Sprintf("sensors contains duplicate id %q", s.ID))
		}
		sensorIDs[s.ID] = struct{}{}
		if s.IntervalMS <= 0 {
			errs = append(errs, fmt.Sprintf("sensors[%q].interval_ms must be positive", s.ID))
		}
	}

	// Risk threshold validation: each in [0,1], monotonically ordered.
	for _, t := range []struct {
		name  string
		value float64
	}{
		{"risk.high_risk", c.Risk.HighRisk},
		{"risk.medium_risk", c.Risk.MediumRisk},
		{"risk.low_risk", c.Risk.LowRisk},
	} {
		if t.value < 0 || t.value > 1 {
			errs = append(errs, fmt.Sprintf("%s must be within [0,1]", t.name))
		}
	}
	if c.Risk.HighRisk < c.Risk.MediumRisk || c.Risk.MediumRisk < c.Risk.LowRisk {
		errs = append(errs, "risk thresholds must satisfy high_risk >= medium_risk >= low_risk")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
