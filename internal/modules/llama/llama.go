// Package llama implements the text-generation model type on top of
// llama.cpp via the go-llama.cpp bindings. The real implementation is
// compiled with -tags=llama; default builds get a stub factory that
// fails at load time, keeping CI and dev builds CGO-free.
package llama

import (
	"github.com/markstur/caikit/internal/backends"
	"github.com/markstur/caikit/internal/modules"
)

// ModelType is the type key the llama module registers under.
const ModelType = "text-generation"

// params holds the manifest settings understood by the module. The
// manifest names a weights file relative to the artifact directory plus
// the usual sampling knobs.
type params struct {
	ModelFile   string
	ContextSize int
	Threads     int
	MaxTokens   int
	Temperature float32
	TopP        float32
	TopK        int
}

func paramsFrom(cfg *modules.Config) params {
	return params{
		ModelFile:   cfg.StringParam("model_file", "model.gguf"),
		ContextSize: intParam(cfg, "context_size", 2048),
		Threads:     intParam(cfg, "threads", 4),
		MaxTokens:   intParam(cfg, "max_tokens", 256),
		Temperature: floatParam(cfg, "temperature", 0.8),
		TopP:        floatParam(cfg, "top_p", 0.95),
		TopK:        intParam(cfg, "top_k", 40),
	}
}

// YAML numbers decode as int or float64 depending on how they were
// written, so both shapes are accepted.
func intParam(cfg *modules.Config, key string, def int) int {
	switch v := cfg.Param(key).(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

func floatParam(cfg *modules.Config, key string, def float32) float32 {
	switch v := cfg.Param(key).(type) {
	case float64:
		return float32(v)
	case int:
		return float32(v)
	}
	return def
}

// Register wires the text-generation type into reg. Only a local,
// in-process implementation exists for this type.
func Register(reg *backends.Registry) error {
	return reg.Register(ModelType, backends.KindLocal, New, backends.KindLocal)
}
