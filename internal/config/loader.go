package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// BatchEntry configures batching for one model type (or the "default"
// fallback). Size must be positive; the delay is expressed in seconds
// and may be zero.
type BatchEntry struct {
	Size                int     `json:"size" yaml:"size" toml:"size"`
	CollectDelaySeconds float64 `json:"collect_delay_s" yaml:"collect_delay_s" toml:"collect_delay_s"`
}

// Delay returns the collect delay as a duration.
func (e BatchEntry) Delay() time.Duration {
	return time.Duration(e.CollectDelaySeconds * float64(time.Second))
}

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	// Batching maps a model type, or the literal key "default", to its
	// batching policy. Absence of an entry means no batching.
	Batching map[string]BatchEntry `json:"batching" yaml:"batching" toml:"batching"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	for key, e := range c.Batching {
		if e.Size <= 0 {
			return fmt.Errorf("batching %q: size must be > 0, got %d", key, e.Size)
		}
		if e.CollectDelaySeconds < 0 {
			return fmt.Errorf("batching %q: collect_delay_s must be >= 0, got %v", key, e.CollectDelaySeconds)
		}
	}
	return nil
}
