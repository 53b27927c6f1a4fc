package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Batch     BatchConfig     `json:"batch" yaml:"batch"`
	Output    OutputConfig    `json:"output" yaml:"output"`
	Detection DetectionConfig `json:"detection" yaml:"detection"`
	Server    ServerConfig    `json:"server" yaml:"server"`
}

// BatchConfig holds configuration for batch processing.
type BatchConfig struct {
	Workers      int    `json:"workers" yaml:"workers"`
	Resume       bool   `json:"resume" yaml:"resume"`
	ProgressFile string `json:"progress_file" yaml:"progress_file"`
	DebugOverlay bool   `json:"debug_overlay" yaml:"debug_overlay"`
}

// OutputConfig holds configuration for output generation.
type OutputConfig struct {
	Dir      string `json:"dir" yaml:"dir"`
	Prefix   string `json:"prefix" yaml:"prefix"`
	Format   string `json:"format" yaml:"format"`
	Quality  int    `json:"quality" yaml:"quality"`
	Lossless bool   `json:"lossless" yaml:"lossless"`
}

// DetectionConfig holds configuration for the overlay presence check.
type DetectionConfig struct {
	Threshold      float64 `json:"threshold" yaml:"threshold"`
	SkipUndetected bool    `json:"skip_undetected" yaml:"skip_undetected"`
}

// ServerConfig holds configuration for the HTTP API.
type ServerConfig struct {
	Addr        string `json:"addr" yaml:"addr"`
	MaxFileSize int64  `json:"max_file_size" yaml:"max_file_size"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Batch: BatchConfig{
			Workers:      0, // 0 = NumCPU
			ProgressFile: ".unwatermark_progress.json",
		},
		Output: OutputConfig{
			Dir:     "out",
			Prefix:  "unwatermarked_",
			Format:  "png",
			Quality: 90,
		},
		Detection: DetectionConfig{
			Threshold: 25.0,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MaxFileSize: 50 << 20,
		},
	}
}

// LoadFromFile loads configuration from a JSON or YAML file, selected by
// extension.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file.
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Batch.Workers < 0 {
		return fmt.Errorf("batch.workers must not be negative")
	}

	switch strings.ToLower(c.Output.Format) {
	case "png", "jpg", "jpeg", "webp":
	default:
		return fmt.Errorf("output.format must be one of png, jpg, jpeg, webp")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if c.Detection.Threshold < 0 || c.Detection.Threshold > 100 {
		return fmt.Errorf("detection.threshold must be between 0 and 100")
	}

	if c.Server.MaxFileSize < 1 {
		return fmt.Errorf("server.max_file_size must be positive")
	}

	return nil
}

// GetConfigPath returns the default configuration file path.
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "unwatermark", "config.json")
}
