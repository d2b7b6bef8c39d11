// Package config handles rpftool configuration loading and management.
package config

import "github.com/Faultbox/rpfkit/pkg/lzx"

// Config holds all tool settings.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Decode  DecodeConfig  `yaml:"decode"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
}

// DataConfig holds game data locations.
type DataConfig struct {
	ArchivePaths []string `yaml:"archive_paths"` // .rpf files or directories holding them
	StringsFile  string   `yaml:"strings_file"`  // one name per line, used to resolve entry hashes
	CacheDir     string   `yaml:"cache_dir"`
	SkipPrefixes []string `yaml:"skip_prefixes"` // archives never streamed from
}

// DecodeConfig holds resource decoding settings.
type DecodeConfig struct {
	Workers    int `yaml:"workers"` // 0 uses one per CPU
	WindowBits int `yaml:"lzx_window_bits"`
}

// ExportConfig holds texture export settings.
type ExportConfig struct {
	ImageFormat string `yaml:"image_format"` // png or bmp
	OutputDir   string `yaml:"output_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
	JSON    bool   `yaml:"json"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			ArchivePaths: []string{"."},
			CacheDir:     "cache",
			SkipPrefixes: []string{"backup"},
		},
		Decode: DecodeConfig{
			Workers:    0,
			WindowBits: lzx.DefaultWindowBits,
		},
		Export: ExportConfig{
			ImageFormat: "png",
			OutputDir:   "out",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
