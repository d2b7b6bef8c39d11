package config

import (
	"flag"
	"strings"
)

// Flags holds the command-line overrides bound to one flag set.
type Flags struct {
	Config      string
	Debug       bool
	Archives    string
	StringsFile string
	CacheDir    string
	Workers     int
	Format      string
	Out         string
	LogFile     string
	JSONLogs    bool
}

// BindFlags registers the shared flags on fs. Each subcommand binds its own
// flag set.
func BindFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.Archives, "archives", "", "Comma-separated archive files or directories")
	fs.StringVar(&f.StringsFile, "strings", "", "Strings file for resolving name hashes")
	fs.StringVar(&f.CacheDir, "cache-dir", "", "Startup cache directory")
	fs.IntVar(&f.Workers, "workers", 0, "Decode workers (0 = one per CPU)")
	fs.StringVar(&f.Format, "format", "", "Texture export format (png or bmp)")
	fs.StringVar(&f.Out, "out", "", "Output directory")
	fs.StringVar(&f.LogFile, "log", "", "Log file path")
	fs.BoolVar(&f.JSONLogs, "json-logs", false, "Write logs as JSON")
	return f
}

// ConfigPath returns the explicit config path if provided via --config.
func (f *Flags) ConfigPath() string {
	if f == nil {
		return ""
	}
	return f.Config
}

// apply applies flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.Archives != "" {
		cfg.Data.ArchivePaths = splitList(f.Archives)
	}
	if f.StringsFile != "" {
		cfg.Data.StringsFile = f.StringsFile
	}
	if f.CacheDir != "" {
		cfg.Data.CacheDir = f.CacheDir
	}
	if f.Workers > 0 {
		cfg.Decode.Workers = f.Workers
	}
	if f.Format != "" {
		cfg.Export.ImageFormat = strings.ToLower(f.Format)
	}
	if f.Out != "" {
		cfg.Export.OutputDir = f.Out
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
	if f.JSONLogs {
		cfg.Logging.JSON = true
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
