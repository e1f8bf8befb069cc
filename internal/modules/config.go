package modules

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/markstur/caikit/internal/status"
)

// ConfigFileName is the fixed, well-known manifest name at the root of
// every model artifact directory.
const ConfigFileName = "config.yml"

// Config is the parsed model manifest. It is read once at load time and
// not retained by the loader beyond the load call.
type Config struct {
	// ModelType is the type recorded in the manifest, used when the
	// caller does not declare one explicitly.
	ModelType string
	// Backend optionally names a backend kind the artifact prefers.
	Backend string
	// Path is the directory the manifest was read from.
	Path string
	// Params holds every manifest key, including the reserved ones
	// above, for implementation factories to pull their settings from.
	Params map[string]any
}

// Param returns the named manifest parameter, or nil when absent.
func (c *Config) Param(key string) any {
	if c == nil || c.Params == nil {
		return nil
	}
	return c.Params[key]
}

// StringParam returns the named parameter as a string, or def when the
// parameter is absent or not a string.
func (c *Config) StringParam(key, def string) string {
	if s, ok := c.Param(key).(string); ok {
		return s
	}
	return def
}

// LoadConfig reads and parses the manifest in dir. A missing manifest is
// a not-found failure naming both the directory and the manifest file; a
// manifest that is present but not a YAML mapping is an internal failure.
// The read is side-effect free and never retried here.
func LoadConfig(dir string) (*Config, error) {
	p := filepath.Join(dir, ConfigFileName)
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, status.Wrap(status.CodeNotFound, err,
			"no %s found in model directory %s", ConfigFileName, dir)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, status.Wrap(status.CodeInternal, err,
			"invalid %s in model directory %s", ConfigFileName, dir)
	}
	if raw == nil {
		return nil, status.Errorf(status.CodeInternal,
			"invalid %s in model directory %s: manifest is empty", ConfigFileName, dir)
	}
	cfg := &Config{Path: dir, Params: raw}
	if v, ok := raw["model_type"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, status.Errorf(status.CodeInternal,
				"invalid %s in model directory %s: model_type must be a string, got %T",
				ConfigFileName, dir, v)
		}
		cfg.ModelType = s
	}
	if v, ok := raw["backend"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, status.Errorf(status.CodeInternal,
				"invalid %s in model directory %s: backend must be a string, got %T",
				ConfigFileName, dir, v)
		}
		cfg.Backend = s
	}
	return cfg, nil
}

// WriteConfig serializes params as a manifest into dir. Used by tooling
// and tests that produce model artifacts.
func WriteConfig(dir string, params map[string]any) error {
	b, err := yaml.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ConfigFileName, err)
	}
	return os.WriteFile(filepath.Join(dir, ConfigFileName), b, 0o644)
}
