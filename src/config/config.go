package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"market-pulse/src/helpers"
	"market-pulse/src/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file. An empty path
// yields the built-in defaults. Values from .env and MARKET_* environment
// variables override the file.
func NewConfig(configPath string) (*Config, error) {
	// 1. Load .env into the process environment if present
	_ = godotenv.Load()

	var modelConfig models.MConfig

	// 2. Read and unmarshal the YAML file, expanding ${VAR} references
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, helpers.NewConfigurationError(fmt.Sprintf("failed to read config file '%s'", configPath), err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &modelConfig); err != nil {
			return nil, helpers.NewConfigurationError("failed to parse config from YAML", err)
		}
	}

	config := &Config{MConfig: &modelConfig}

	// 3. Fill unset fields, then apply environment overrides
	config.applyDefaults()
	if err := config.applyEnv(); err != nil {
		return nil, helpers.NewConfigurationError("environment override", err)
	}

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, helpers.NewConfigurationError("config validation failed", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Server
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d", c.GrpcPort)
	}

	// Storage
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
		}
	case "":
		return fmt.Errorf("database type cannot be empty")
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}

	// Network
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider base url cannot be empty")
	}

	// Session
	if c.Session.TickMillis <= 0 {
		return fmt.Errorf("session tick must be greater than 0")
	}
	if c.Session.Calendar != "store" && c.Session.Calendar != "exchange" {
		return fmt.Errorf("unknown calendar source: %s", c.Session.Calendar)
	}

	// Feeds
	seen := make(map[string]bool, len(c.Feeds))
	for i, feed := range c.Feeds {
		if feed.Name == "" {
			return fmt.Errorf("feed %d must have a name", i)
		}
		if seen[feed.Name] {
			return fmt.Errorf("duplicate feed name '%s'", feed.Name)
		}
		seen[feed.Name] = true

		if !knownKinds[feed.Kind] {
			return fmt.Errorf("feed '%s' has unknown kind '%s'", feed.Name, feed.Kind)
		}
		switch feed.Gate {
		case models.GateTrading, models.GateAlways, models.GateStale:
		default:
			return fmt.Errorf("feed '%s' has unknown gate '%s'", feed.Name, feed.Gate)
		}
		if feed.IntervalSeconds <= 0 {
			return fmt.Errorf("feed '%s' interval must be greater than 0", feed.Name)
		}
		if feed.TimeoutSeconds <= 0 {
			return fmt.Errorf("feed '%s' timeout must be greater than 0", feed.Name)
		}
		if feed.MaxItems < 0 {
			return fmt.Errorf("feed '%s' max items cannot be negative", feed.Name)
		}
		if feed.Kind == models.FeedRss && feed.URL == "" {
			return fmt.Errorf("rss feed '%s' must have a url", feed.Name)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}

// -----------------------------------------------------------------------------

// Feed returns the enabled feed with the given name.
func (c *Config) Feed(name string) (models.MFeedConfig, bool) {
	for _, f := range c.Feeds {
		if f.Name == name && !f.Disabled {
			return f, true
		}
	}
	return models.MFeedConfig{}, false
}

// -----------------------------------------------------------------------------

func (c *Config) applyEnv() error {
	if v := os.Getenv("MARKET_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("MARKET_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MARKET_PORT '%s': %w", v, err)
		}
		c.Port = port
	}
	if v := os.Getenv("MARKET_GRPC_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MARKET_GRPC_PORT '%s': %w", v, err)
		}
		c.GrpcPort = port
	}
	if v := os.Getenv("MARKET_LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToUpper(v)
	}
	if v := os.Getenv("MARKET_DB_TYPE"); v != "" {
		c.Storage.DBType = v
	}
	if v := os.Getenv("MARKET_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("MARKET_DB_DSN"); v != "" {
		c.Storage.DBConnectionString = v
	}
	if v := os.Getenv("MARKET_PROVIDER_URL"); v != "" {
		c.Provider.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("MARKET_PROXIES"); v != "" {
		c.Network.Proxies = strings.Split(v, ",")
		c.Network.Enabled = true
	}
	return nil
}
