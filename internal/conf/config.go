// config.go: loading and accessing the migration pipeline settings
package conf

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled    bool   // true to enable this log
	Path       string // path to log file
	MaxSize    int    // max log file size in MB before rotation
	MaxBackups int    // number of rotated files to keep
	MaxAge     int    // days to retain rotated files
}

// DatabaseConfig holds the connection settings for one relational store
type DatabaseConfig struct {
	Type     string // "mysql" or "sqlite"
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Path     string // sqlite file path, ":memory:" allowed
	Debug    bool   // true to log SQL statements
}

// QueueConfig holds the migration job queue settings
type QueueConfig struct {
	Broker            string // MQTT broker URL, e.g. tcp://localhost:1883
	Topic             string // job topic; empty means no queue is configured
	ClientID          string
	Username          string
	Password          string
	PublishBatchLimit int // max messages per publish group
}

// EnqueueConfig holds enqueuer behavior settings
type EnqueueConfig struct {
	DefaultBatchSize int // cap used when the trigger supplies no batch size
}

// WebServerConfig holds the HTTP trigger server settings
type WebServerConfig struct {
	Enabled bool
	Port    string
	Debug   bool
}

// MainConfig holds top-level application settings
type MainConfig struct {
	Name string    // client/application name
	Log  LogConfig // application log settings
}

// Settings is the root configuration for the migration pipeline
type Settings struct {
	Debug bool // true to enable debug logging

	Main      MainConfig
	Source    DatabaseConfig // legacy Waterdeep store (read + checkpoint writes)
	Dest      DatabaseConfig // user service store (upsert target)
	Queue     QueueConfig
	Enqueue   EnqueueConfig
	WebServer WebServerConfig
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
	once             sync.Once
)

// Load reads the configuration into a new Settings instance and makes it the
// current one. Missing config file is not an error, defaults apply.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Environment overrides, e.g. USERSYNC_QUEUE_TOPIC
	viper.SetEnvPrefix("usersync")
	viper.AutomaticEnv()

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file is fine, run on defaults and environment
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the list of directories searched for config.yaml,
// current working directory first.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Home directory may be unavailable in minimal containers
		return paths, nil //nolint:nilerr // fall back to cwd only
	}

	paths = append(paths, filepath.Join(homeDir, ".config", "usersync"))
	return paths, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig writes the settings to the given path as YAML. It overwrites
// the existing file via a temporary file for an atomic replace.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempName := tempFile.Name()

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		os.Remove(tempName)
		return fmt.Errorf("error writing temporary config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error closing temporary config file: %w", err)
	}

	if err := os.Rename(tempName, configPath); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
