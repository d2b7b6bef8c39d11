package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags. flags
// may be nil.
func Load(flags *Flags) (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Try to load from file (explicit path takes priority)
	configPath := flags.ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	// Apply CLI flags (highest priority)
	flags.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./rpftool.yaml",
		DefaultPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "rpfkit")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "rpfkit")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "rpfkit")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "rpfkit")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate rejects settings the tool cannot run with.
func (c *Config) Validate() error {
	switch c.Export.ImageFormat {
	case "png", "bmp":
	default:
		return fmt.Errorf("export.image_format: unsupported format %q", c.Export.ImageFormat)
	}
	if c.Decode.Workers < 0 {
		return fmt.Errorf("decode.workers: must not be negative, got %d", c.Decode.Workers)
	}
	if c.Decode.WindowBits < 15 || c.Decode.WindowBits > 21 {
		return fmt.Errorf("decode.lzx_window_bits: %d outside 15..21", c.Decode.WindowBits)
	}
	return nil
}
