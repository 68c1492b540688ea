// Package config provides configuration loading and management for ctstackto3d.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`

		// SpacingX, SpacingY and SpacingZ are the physical voxel dimensions.
		// SpacingZ is the distance between consecutive slices.
		SpacingX float64 `yaml:"spacingX"`
		SpacingY float64 `yaml:"spacingY"`
		SpacingZ float64 `yaml:"spacingZ"`
	} `yaml:"processing"`

	// Sweep parameters for the two-phase parameter exploration
	Sweep struct {
		// ThresholdStart, ThresholdEnd and ThresholdStep define the coarse
		// threshold scan of the first phase. ThresholdEnd is inclusive.
		ThresholdStart float64 `yaml:"thresholdStart"`
		ThresholdEnd   float64 `yaml:"thresholdEnd"`
		ThresholdStep  float64 `yaml:"thresholdStep"`

		// BaseReduction is the decimation fraction used during the
		// threshold scan
		BaseReduction float64 `yaml:"baseReduction"`

		// RefinementThreshold is the fixed threshold of the second phase
		RefinementThreshold float64 `yaml:"refinementThreshold"`

		// Reductions is the list of decimation fractions tested at the
		// refinement threshold
		Reductions []float64 `yaml:"reductions"`
	} `yaml:"sweep"`

	// Render parameters for the preview images
	Render struct {
		// Width and Height are the preview image dimensions in pixels
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"render"`

	// Output parameters
	Output struct {
		// SummaryFile is the name of the CSV summary written next to the
		// exported models
		SummaryFile string `yaml:"summaryFile"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.SpacingX = 1.0
	cfg.Processing.SpacingY = 1.0
	cfg.Processing.SpacingZ = 1.0

	// Set default sweep parameters: a coarse threshold scan without
	// decimation, then a decimation series at a mid-range threshold
	cfg.Sweep.ThresholdStart = 0
	cfg.Sweep.ThresholdEnd = 250
	cfg.Sweep.ThresholdStep = 10
	cfg.Sweep.BaseReduction = 0
	cfg.Sweep.RefinementThreshold = 120
	cfg.Sweep.Reductions = []float64{0.0, 0.5, 0.9, 0.99}

	// Set default render parameters
	cfg.Render.Width = 800
	cfg.Render.Height = 800

	// Set default output parameters
	cfg.Output.SummaryFile = "comparison_summary.csv"
	cfg.Output.Verbose = true

	return cfg
}

// Validate checks the configuration for values the pipeline cannot run
// with.
func (cfg *Config) Validate() error {
	if cfg.Processing.NumCores < 1 {
		return fmt.Errorf("processing.numCores must be at least 1, got %d", cfg.Processing.NumCores)
	}
	if cfg.Processing.SpacingX <= 0 || cfg.Processing.SpacingY <= 0 || cfg.Processing.SpacingZ <= 0 {
		return fmt.Errorf("voxel spacing must be positive, got (%g, %g, %g)",
			cfg.Processing.SpacingX, cfg.Processing.SpacingY, cfg.Processing.SpacingZ)
	}
	if cfg.Sweep.ThresholdStep <= 0 {
		return fmt.Errorf("sweep.thresholdStep must be positive, got %g", cfg.Sweep.ThresholdStep)
	}
	if cfg.Sweep.ThresholdEnd < cfg.Sweep.ThresholdStart {
		return fmt.Errorf("sweep.thresholdEnd %g is below sweep.thresholdStart %g",
			cfg.Sweep.ThresholdEnd, cfg.Sweep.ThresholdStart)
	}
	if cfg.Sweep.BaseReduction < 0 || cfg.Sweep.BaseReduction >= 1 {
		return fmt.Errorf("sweep.baseReduction must be in [0, 1), got %g", cfg.Sweep.BaseReduction)
	}
	for _, r := range cfg.Sweep.Reductions {
		if r < 0 || r >= 1 {
			return fmt.Errorf("sweep.reductions entries must be in [0, 1), got %g", r)
		}
	}
	if cfg.Render.Width < 1 || cfg.Render.Height < 1 {
		return fmt.Errorf("render dimensions must be positive, got %dx%d", cfg.Render.Width, cfg.Render.Height)
	}
	return nil
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
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
