// Package config provides configuration loading and management for dicomto3d.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"dicomto3d/pkg/segmentation"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Processing parameters
	Processing struct {
		// Workers caps how many tissue classes are processed at once.
		Workers int `yaml:"workers"`

		// PreviewStride is the voxel stride used by the preview path.
		PreviewStride int `yaml:"previewStride"`

		// SmoothIterations is the Taubin iteration count for final surfaces.
		SmoothIterations int `yaml:"smoothIterations"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output.
		Verbose bool `yaml:"verbose"`

		// ExportSlices saves windowed slice images next to the meshes.
		ExportSlices bool `yaml:"exportSlices"`
	} `yaml:"output"`

	// Presets lists the tissue classes to extract.
	Presets []PresetConfig `yaml:"presets"`
}

// PresetConfig is the YAML shape of one tissue-class configuration.
type PresetConfig struct {
	Name           string  `yaml:"name"`
	ThresholdHU    float64 `yaml:"thresholdHU"`
	TriangleBudget int     `yaml:"triangleBudget"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.Workers = runtime.NumCPU()
	cfg.Processing.PreviewStride = 4
	cfg.Processing.SmoothIterations = 20

	cfg.Output.Verbose = true
	cfg.Output.ExportSlices = false

	for _, p := range segmentation.DefaultPresets() {
		cfg.Presets = append(cfg.Presets, PresetConfig{
			Name:           p.Name,
			ThresholdHU:    p.ThresholdHU,
			TriangleBudget: p.TriangleBudget,
		})
	}
	return cfg
}

// TissuePresets converts the configured tissue classes to segmentation
// presets, applying the processing-section stride and smoothing settings.
func (c *Config) TissuePresets() []segmentation.Preset {
	presets := make([]segmentation.Preset, 0, len(c.Presets))
	for _, p := range c.Presets {
		presets = append(presets, segmentation.Preset{
			Name:             p.Name,
			ThresholdHU:      p.ThresholdHU,
			PreviewStride:    c.Processing.PreviewStride,
			SmoothIterations: c.Processing.SmoothIterations,
			TriangleBudget:   p.TriangleBudget,
		})
	}
	return presets
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	defaults := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return defaults, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	mergeDefaults(cfg, defaults)
	return cfg, nil
}

// mergeDefaults backfills unset fields in cfg from defaults.
func mergeDefaults(cfg, defaults *Config) {
	if cfg.Processing.Workers <= 0 {
		cfg.Processing.Workers = defaults.Processing.Workers
	}
	if cfg.Processing.PreviewStride <= 0 {
		cfg.Processing.PreviewStride = defaults.Processing.PreviewStride
	}
	if cfg.Processing.SmoothIterations <= 0 {
		cfg.Processing.SmoothIterations = defaults.Processing.SmoothIterations
	}
	if len(cfg.Presets) == 0 {
		cfg.Presets = defaults.Presets
	}
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}
