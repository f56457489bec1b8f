// Package config provides configuration loading and management for
// mriregrid. It handles loading configuration from YAML files and provides
// default values.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Resampling parameters
	Resample struct {
		// Interpolation selects the sampling strategy: nearest, linear
		// or cubic
		Interpolation string `yaml:"interpolation"`

		// Oversample holds explicit per-axis oversampling factors;
		// leave empty to derive them from the composed transform
		Oversample []int `yaml:"oversample"`

		// OutOfBounds is the substitution value for samples outside the
		// source volume (.nan selects the no-data sentinel)
		OutOfBounds float64 `yaml:"outOfBounds"`

		// NumCores specifies how many CPU cores to use for parallel
		// regridding
		NumCores int `yaml:"numCores"`

		// SliceGap is the physical distance between consecutive input
		// slices in mm, used when loading a slice stack
		SliceGap float64 `yaml:"sliceGap"`
	} `yaml:"resample"`

	// Output parameters
	Output struct {
		// SaveSlices determines whether slice previews of the result
		// are exported
		SaveSlices bool `yaml:"saveSlices"`

		// SlicesDir is the directory to save slice previews
		SlicesDir string `yaml:"slicesDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default resampling parameters
	cfg.Resample.Interpolation = "linear"
	cfg.Resample.OutOfBounds = math.NaN()
	cfg.Resample.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Resample.SliceGap = 1.0

	// Set default output parameters
	cfg.Output.SaveSlices = false
	cfg.Output.SlicesDir = "resampled_slices"
	cfg.Output.Verbose = true

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

// CreateDefaultConfigFile creates a default configuration file at the
// specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
