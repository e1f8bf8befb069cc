package modules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/markstur/caikit/internal/status"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	d := t.TempDir()
	writeManifest(t, d, "model_type: sample\nbackend: MOCK\ngreeting_prefix: hello\nthreshold: 0.5\n")
	cfg, err := LoadConfig(d)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ModelType != "sample" || cfg.Backend != "MOCK" || cfg.Path != d {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.StringParam("greeting_prefix", "") != "hello" {
		t.Fatalf("StringParam missed greeting_prefix")
	}
	if cfg.StringParam("missing", "def") != "def" {
		t.Fatalf("StringParam default not applied")
	}
	if cfg.Param("threshold") == nil {
		t.Fatalf("Param missed threshold")
	}
}

func TestLoadConfigMissing(t *testing.T) {
	d := t.TempDir()
	_, err := LoadConfig(d)
	if !status.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if !strings.Contains(err.Error(), ConfigFileName) || !strings.Contains(err.Error(), d) {
		t.Fatalf("message must name the manifest file and directory: %v", err)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	cases := map[string]string{
		"not yaml":    "\t{{nope",
		"scalar doc":  "just a string\n",
		"empty doc":   "",
		"typed wrong": "model_type: [a, b]\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			d := t.TempDir()
			writeManifest(t, d, content)
			_, err := LoadConfig(d)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !status.IsInternal(err) {
				t.Fatalf("expected internal, got %v", err)
			}
		})
	}
}

func TestWriteConfigRoundTrip(t *testing.T) {
	d := t.TempDir()
	if err := WriteConfig(d, map[string]any{"model_type": "sample", "n": 3}); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}
	cfg, err := LoadConfig(d)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ModelType != "sample" {
		t.Fatalf("round trip lost model_type: %+v", cfg)
	}
}
