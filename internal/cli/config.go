package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tobert/traceview/internal/timeline"
)

// Config holds the runtime configuration shared by all subcommands.
// It can be populated from CLI flags, config files, or both.
type Config struct {
	// Comment field for user documentation (ignored by the application)
	Comment string `json:"comment,omitempty"`

	// Trace sources. TraceFile is a native trace JSON document; JSONLDirs
	// hold OTLP JSONL written by a collector file exporter; OtelConfig is a
	// collector config whose file exporters name more JSONL directories.
	TraceFile  string   `json:"trace_file,omitempty"`
	JSONLDirs  []string `json:"jsonl_dirs,omitempty"`
	OtelConfig string   `json:"otel_config,omitempty"`
	ActiveOnly bool     `json:"active_only,omitempty"`
	Watch      *bool    `json:"watch,omitempty"`

	// Live span buffer size for OTLP and JSONL input
	TraceBufferSize int `json:"trace_buffer_size,omitempty"`

	// OTLP server configuration
	OTLPHost string `json:"otlp_host,omitempty"`
	OTLPPort int    `json:"otlp_port,omitempty"`

	// Web UI / MCP HTTP configuration
	HTTPHost string `json:"http_host,omitempty"`
	HTTPPort int    `json:"http_port,omitempty"`

	// Layout overrides applied on top of the stock viewer layout, keyed by
	// the ViewerConfig JSON names (e.g. "span_height").
	Layout map[string]json.RawMessage `json:"layout,omitempty"`

	// Logging configuration
	Verbose bool `json:"verbose,omitempty"`
}

// DefaultConfig returns a Config with sensible default values:
// - 10,000 buffered spans for live input
// - OTLP on localhost, ephemeral port
// - web UI on localhost:4380
// - trace files are watched for changes
func DefaultConfig() *Config {
	watch := true
	return &Config{
		TraceBufferSize: 10_000,
		OTLPHost:        "127.0.0.1",
		OTLPPort:        0, // 0 means ephemeral port assignment
		HTTPHost:        "127.0.0.1",
		HTTPPort:        4380,
		Watch:           &watch,
		Verbose:         false,
	}
}

// WatchEnabled reports whether trace files should be reloaded on change.
func (c *Config) WatchEnabled() bool {
	return c.Watch == nil || *c.Watch
}

// ViewerConfig returns the stock viewer layout with the Layout overrides
// applied.
func (c *Config) ViewerConfig() (timeline.ViewerConfig, error) {
	cfg := timeline.DefaultViewerConfig()
	if len(c.Layout) == 0 {
		return cfg, nil
	}
	data, err := json.Marshal(c.Layout)
	if err != nil {
		return cfg, fmt.Errorf("failed to encode layout overrides: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid layout overrides: %w", err)
	}
	return cfg, nil
}

// LoadConfigFromFile loads configuration from a JSON file at the given path.
// It returns an error if the file cannot be read or parsed.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &config, nil
}

// FindProjectConfig searches for a .traceview.json config file.
// It starts in the current directory and walks up looking for the file,
// stopping when it finds a .git directory (project root) or reaches root.
func FindProjectConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return findProjectConfigFrom(dir)
}

func findProjectConfigFrom(dir string) (string, error) {
	for {
		configPath := filepath.Join(dir, ".traceview.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		// Stop at the repository root even if no config was found
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", os.ErrNotExist
}

// GlobalConfigPath returns the path to the global config file.
// This is ~/.config/traceview/config.json
func GlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "traceview", "config.json")
}

// MergeConfigs merges two configs with the overlay taking precedence.
// Fields in overlay override corresponding fields in base; layout
// overrides are merged key by key.
// Returns a new Config with the merged values.
func MergeConfigs(base, overlay *Config) *Config {
	if base == nil {
		base = &Config{}
	}
	if overlay == nil {
		return base
	}

	merged := *base

	if overlay.TraceFile != "" {
		merged.TraceFile = overlay.TraceFile
	}
	if len(overlay.JSONLDirs) > 0 {
		merged.JSONLDirs = overlay.JSONLDirs
	}
	if overlay.OtelConfig != "" {
		merged.OtelConfig = overlay.OtelConfig
	}
	if overlay.ActiveOnly {
		merged.ActiveOnly = overlay.ActiveOnly
	}
	if overlay.Watch != nil {
		merged.Watch = overlay.Watch
	}

	if overlay.TraceBufferSize > 0 {
		merged.TraceBufferSize = overlay.TraceBufferSize
	}
	if overlay.OTLPHost != "" {
		merged.OTLPHost = overlay.OTLPHost
	}
	if overlay.OTLPPort != 0 {
		merged.OTLPPort = overlay.OTLPPort
	}
	if overlay.HTTPHost != "" {
		merged.HTTPHost = overlay.HTTPHost
	}
	if overlay.HTTPPort > 0 {
		merged.HTTPPort = overlay.HTTPPort
	}

	if len(overlay.Layout) > 0 {
		layout := make(map[string]json.RawMessage, len(base.Layout)+len(overlay.Layout))
		for k, v := range base.Layout {
			layout[k] = v
		}
		for k, v := range overlay.Layout {
			layout[k] = v
		}
		merged.Layout = layout
	}

	if overlay.Verbose {
		merged.Verbose = overlay.Verbose
	}

	return &merged
}

// LoadEffectiveConfig loads the effective configuration by merging:
// 1. Built-in defaults
// 2. Global config file (if exists)
// 3. Project config file (if exists)
// 4. Explicit config file (if specified via configPath)
// Later sources override earlier ones.
func LoadEffectiveConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if globalPath := GlobalConfigPath(); globalPath != "" {
		if globalCfg, err := LoadConfigFromFile(globalPath); err == nil {
			config = MergeConfigs(config, globalCfg)
		}
		// Ignore errors for global config (it's optional)
	}

	if configPath == "" {
		if projectPath, err := FindProjectConfig(); err == nil {
			projectCfg, err := LoadConfigFromFile(projectPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load project config: %w", err)
			}
			config = MergeConfigs(config, projectCfg)
		}
	} else {
		explicitCfg, err := LoadConfigFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config = MergeConfigs(config, explicitCfg)
	}

	return config, nil
}
