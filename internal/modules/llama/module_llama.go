//go:build llama

package llama

import (
	"context"
	"path/filepath"
	"sync"

	gollama "github.com/go-skynet/go-llama.cpp"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/markstur/caikit/internal/modules"
	"github.com/markstur/caikit/internal/status"
)

// Module owns one loaded llama.cpp model. Prediction is serialized on a
// mutex because the underlying bindings are not reentrant.
type Module struct {
	mu    sync.Mutex
	model *gollama.LLama
	p     params
}

var _ modules.Module = (*Module)(nil)
var _ modules.Closer = (*Module)(nil)

// New loads the weights file named by the manifest and returns a ready
// module. Weights paths are resolved relative to the artifact directory.
func New(cfg *modules.Config) (modules.Module, error) {
	p := paramsFrom(cfg)
	path := p.ModelFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.Path, path)
	}
	m, err := gollama.New(path, gollama.SetContext(p.ContextSize))
	if err != nil {
		return nil, status.Wrap(status.CodeInternal, err, "failed to load weights from %s", path)
	}
	return &Module{model: m, p: p}, nil
}

// Run generates a completion for the "prompt" field of the input and
// returns it as {"generated_text": ...}.
func (m *Module) Run(ctx context.Context, input *structpb.Struct) (*structpb.Struct, error) {
	prompt := ""
	if input != nil {
		if f, ok := input.Fields["prompt"]; ok {
			prompt = f.GetStringValue()
		}
	}
	if prompt == "" {
		return nil, status.Errorf(status.CodeInvalidArgument, "input is missing a prompt field")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Token callback checks cancellation between tokens; returning false
	// stops generation.
	m.model.SetTokenCallback(func(string) bool {
		return ctx.Err() == nil
	})
	text, err := m.model.Predict(prompt,
		gollama.SetTokens(m.p.MaxTokens),
		gollama.SetThreads(m.p.Threads),
		gollama.SetTemperature(m.p.Temperature),
		gollama.SetTopP(m.p.TopP),
		gollama.SetTopK(m.p.TopK),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, status.Wrap(status.CodeInternal, err, "text generation failed")
	}
	return structpb.NewStruct(map[string]any{"generated_text": text})
}

// Close frees the native model.
func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model != nil {
		m.model.Free()
		m.model = nil
	}
	return nil
}
