package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config represents the Keystone configuration
type Config struct {
	ProjectName string          `mapstructure:"project_name"`
	Metadata    MetadataConfig  `mapstructure:"metadata"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Inspector   InspectorConfig `mapstructure:"inspector"`
}

// MetadataConfig controls how class metadata is resolved
type MetadataConfig struct {
	// TreeStrategy is the default inheritance strategy when a class
	// hierarchy declares none: single_table, joined or table_per_class
	TreeStrategy string `mapstructure:"tree_strategy"`

	// Enhancing makes recoverable metadata problems fatal, the way an
	// ahead-of-time enhancer needs them to be
	Enhancing bool `mapstructure:"enhancing"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// InspectorConfig represents the introspection server configuration
type InspectorConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// Load loads the configuration from keystone.yml or keystone.yaml
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("metadata.tree_strategy", "single_table")
	v.SetDefault("metadata.enhancing", false)
	v.SetDefault("inspector.port", 7070)
	v.SetDefault("inspector.host", "localhost")

	// Set config name and paths
	v.SetConfigName("keystone")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Enable environment variable support
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// GetDatabaseURL returns the database URL from config or environment
func GetDatabaseURL() string {
	// First check environment variable
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	cfg, err := Load()
	if err != nil {
		return ""
	}

	return cfg.Database.URL
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	switch cfg.Metadata.TreeStrategy {
	case "single_table", "joined", "table_per_class":
	default:
		return fmt.Errorf("metadata.tree_strategy must be single_table, joined or table_per_class, got: %s",
			cfg.Metadata.TreeStrategy)
	}

	if cfg.Inspector.Port <= 0 || cfg.Inspector.Port > 65535 {
		return fmt.Errorf("inspector.port must be between 1 and 65535, got: %d", cfg.Inspector.Port)
	}
	return nil
}
