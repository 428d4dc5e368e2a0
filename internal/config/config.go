package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config structure represents the application configuration
type Config struct {
	Database struct {
		Host            string `yaml:"host" env:"DB_HOST"`
		Port            string `yaml:"port" env:"DB_PORT"`
		User            string `yaml:"user" env:"DB_USER"`
		Password        string `yaml:"password" env:"DB_PASSWORD"`
		DBName          string `yaml:"dbname" env:"DB_NAME"`
		SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE"`
		MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
		MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
	} `yaml:"database"`

	Engine struct {
		// BaselineStatus is the status written on auto-created whole-day
		// baseline entries. School-configurable; the engine validates it
		// against the status enumeration at startup.
		BaselineStatus string `yaml:"baseline_status" env:"ENGINE_BASELINE_STATUS"`
		// BaselineNote is the note attached to auto-created baselines.
		BaselineNote string `yaml:"baseline_note" env:"ENGINE_BASELINE_NOTE"`
	} `yaml:"engine"`

	AutoMark struct {
		// Cutoff is the HH:MM clock time after which the daily batch may run.
		Cutoff string `yaml:"cutoff" env:"AUTOMARK_CUTOFF"`
		// DefaultStatus is written for students with no entry and no
		// approved leave covering the day.
		DefaultStatus string `yaml:"default_status" env:"AUTOMARK_DEFAULT_STATUS"`
	} `yaml:"automark"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"logging"`
}

// LoadConfig loads configuration from a file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	setDefaults(config)

	// Config file is optional; env vars alone can carry the configuration.
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Override with environment variables
	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	config.Database.Host = "localhost"
	config.Database.Port = "5432"
	config.Database.User = "postgres"
	config.Database.Password = "postgres"
	config.Database.DBName = "attendix"
	config.Database.SSLMode = "disable"
	config.Database.MaxIdleConns = 5
	config.Database.MaxOpenConns = 20
	config.Database.ConnMaxLifetime = "1h"

	config.Engine.BaselineStatus = "present"
	config.Engine.BaselineNote = "auto-created baseline"

	config.AutoMark.Cutoff = "16:30"
	config.AutoMark.DefaultStatus = "present"

	config.Logging.Level = "info"
	config.Logging.Format = "json"
}

// validateConfig ensures that the configuration is valid
func validateConfig(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database host cannot be empty")
	}
	if config.Database.DBName == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if config.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database max_open_conns must be positive")
	}
	if config.Engine.BaselineStatus == "" {
		return fmt.Errorf("engine baseline_status cannot be empty")
	}
	if config.AutoMark.Cutoff == "" {
		return fmt.Errorf("automark cutoff cannot be empty")
	}
	return nil
}

// GetPostgresConnectionString builds the connection string for pgx
func (c *Config) GetPostgresConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}
