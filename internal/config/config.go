package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// Driver
	Driver            string // "sim" is the only built-in driver
	ConnectRetryDelay int    // milliseconds
	CommandDelay      int    // milliseconds before time-gated commands (tare, remap, disable)

	// Simulation
	SimSeed      int64
	SimDropEvery int

	// MQTT (empty broker disables publishing)
	MQTTBroker          string
	MQTTClientIDSuite   string
	MQTTClientIDWeb     string
	MQTTClientIDDisplay string
	MQTTClientIDConsole string
	TopicPrefix         string

	// Interactive save trigger (empty port reads stdin)
	TriggerSerialPort string
	TriggerBaudRate   int

	// Metrics (empty address disables the endpoint)
	MetricsAddr string

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported state for the singleton: InitGlobal sets it once,
// Get reads it under the read lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Driver:                "sim",
		ConnectRetryDelay:     500,
		CommandDelay:          2000,
		SimSeed:               1,
		MQTTClientIDSuite:     "bno-suite",
		MQTTClientIDWeb:       "bno-web",
		MQTTClientIDDisplay:   "bno-display",
		MQTTClientIDConsole:   "bno-console",
		TopicPrefix:           "bno",
		TriggerBaudRate:       115200,
		WebServerPort:         8080,
		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 250,
	}
}

// Load reads the configuration file and returns a Config struct.
// Keys absent from the file keep their defaults.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines from r. Blank lines and lines starting with
// '#' are ignored; unknown keys are errors.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Driver
	case "DRIVER":
		c.Driver = strings.ToLower(value)
	case "CONNECT_RETRY_DELAY":
		v, err := positiveInt(key, value)
		if err != nil {
			return err
		}
		c.ConnectRetryDelay = v
	case "COMMAND_DELAY":
		v, err := positiveInt(key, value)
		if err != nil {
			return err
		}
		c.CommandDelay = v

	// Simulation
	case "SIM_SEED":
		seed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid SIM_SEED %q: %w", value, err)
		}
		c.SimSeed = seed
	case "SIM_DROP_EVERY":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SIM_DROP_EVERY %q: %w", value, err)
		}
		if v < 0 {
			return fmt.Errorf("SIM_DROP_EVERY must be >= 0, got %d", v)
		}
		c.SimDropEvery = v

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_SUITE":
		c.MQTTClientIDSuite = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "TOPIC_PREFIX":
		c.TopicPrefix = strings.TrimSuffix(value, "/")

	// Trigger
	case "TRIGGER_SERIAL_PORT":
		c.TriggerSerialPort = value
	case "TRIGGER_BAUD_RATE":
		v, err := positiveInt(key, value)
		if err != nil {
			return err
		}
		c.TriggerBaudRate = v

	// Metrics
	case "METRICS_ADDR":
		c.MetricsAddr = value

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", port)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, err)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		v, err := positiveInt(key, value)
		if err != nil {
			return err
		}
		c.DisplayUpdateInterval = v

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func positiveInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, v)
	}
	return v, nil
}

// validate checks cross-field requirements.
func (c *Config) validate() error {
	if c.Driver != "sim" {
		return fmt.Errorf("DRIVER %q is not supported (available: sim)", c.Driver)
	}
	if c.TopicPrefix == "" {
		return errors.New("TOPIC_PREFIX must not be empty")
	}
	if c.MQTTBroker != "" && c.MQTTClientIDSuite == "" {
		return errors.New("MQTT_CLIENT_ID_SUITE is required when MQTT_BROKER is set")
	}
	return nil
}

// InitGlobal initializes the global configuration from file. An empty path
// installs Default(). Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		if configPath == "" {
			globalConfig = Default()
			return
		}
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
