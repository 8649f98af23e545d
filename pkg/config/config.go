// Package config provides configuration loading and management for dicfield.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"dicfield/pkg/correlation"
	"dicfield/pkg/logging"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Correlation parameters
	Correlation struct {
		// SubsetSize is the side of the square correlation window in pixels
		SubsetSize int `yaml:"subsetSize"`

		// Step is the spacing between grid points in pixels
		Step int `yaml:"step"`

		// MaxIter caps the optimizer iterations per grid point
		MaxIter int `yaml:"maxIter"`

		// MinCorrelation is the ZNCC threshold for a reliable point
		MinCorrelation float64 `yaml:"minCorrelation"`
	} `yaml:"correlation"`

	// Processing parameters
	Processing struct {
		// NumWorkers specifies how many grid points are solved in parallel
		NumWorkers int `yaml:"numWorkers"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// ResultsDir is the root directory for per-test result folders
		ResultsDir string `yaml:"resultsDir"`

		// SaveImages determines whether the preprocessed images and the displacement map are written
		SaveImages bool `yaml:"saveImages"`

		// SavePDF additionally renders the displacement map as PDF
		SavePDF bool `yaml:"savePDF"`

		// Verbose controls the level of console output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Logging parameters
	Logging struct {
		// File is the log file path; empty logs to stderr
		File string `yaml:"file"`

		// Level is one of debug, info, warn, error
		Level string `yaml:"level"`

		// MaxSize is the size in megabytes before the log file is rotated
		MaxSize int `yaml:"maxSize"`

		// MaxBackups is the number of rotated files kept
		MaxBackups int `yaml:"maxBackups"`

		// MaxAge is the number of days rotated files are kept
		MaxAge int `yaml:"maxAge"`

		// Compress gzips rotated files
		Compress bool `yaml:"compress"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default correlation parameters
	defaults := correlation.DefaultParams()
	cfg.Correlation.SubsetSize = defaults.SubsetSize
	cfg.Correlation.Step = defaults.Step
	cfg.Correlation.MaxIter = defaults.MaxIter
	cfg.Correlation.MinCorrelation = defaults.MinCorrelation

	// Set default processing parameters
	cfg.Processing.NumWorkers = runtime.NumCPU() // Use all available cores by default

	// Set default output parameters
	cfg.Output.ResultsDir = "results"
	cfg.Output.SaveImages = true
	cfg.Output.SavePDF = false
	cfg.Output.Verbose = true

	// Set default logging parameters
	cfg.Logging.File = ""
	cfg.Logging.Level = "info"
	cfg.Logging.MaxSize = 10
	cfg.Logging.MaxBackups = 3
	cfg.Logging.MaxAge = 7
	cfg.Logging.Compress = false

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// CorrelationParams returns the correlation section as normalized run parameters
func (c *Config) CorrelationParams() correlation.Params {
	return correlation.Params{
		SubsetSize:     c.Correlation.SubsetSize,
		Step:           c.Correlation.Step,
		MaxIter:        c.Correlation.MaxIter,
		MinCorrelation: c.Correlation.MinCorrelation,
		Workers:        c.Processing.NumWorkers,
	}.Normalize()
}

// LoggingConfig returns the logging section in the form expected by logging.New
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		File:       c.Logging.File,
		Level:      c.Logging.Level,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
		Compress:   c.Logging.Compress,
	}
}
