// Package sample provides small reference modules used by the default
// daemon wiring, examples and tests. The local implementation produces
// a greeting for a named input; the mock implementation stands in for a
// remote backend of the same type.
package sample

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/markstur/caikit/internal/backends"
	"github.com/markstur/caikit/internal/modules"
)

// ModelType is the type key the sample modules register under.
const ModelType = "sample"

// Module greets the "name" field of its input. It supports batched
// dispatch, one output per input.
type Module struct {
	prefix string
}

var _ modules.BatchModule = (*Module)(nil)

// New instantiates the local sample module from its manifest. The
// optional "greeting_prefix" parameter overrides the greeting.
func New(cfg *modules.Config) (modules.Module, error) {
	return &Module{prefix: cfg.StringParam("greeting_prefix", "Hello")}, nil
}

// Run produces {"greeting": "<prefix> <name>"}.
func (m *Module) Run(ctx context.Context, input *structpb.Struct) (*structpb.Struct, error) {
	outs, err := m.RunBatch(ctx, []*structpb.Struct{input})
	if err != nil {
		return nil, err
	}
	return outs[0], nil
}

// RunBatch greets each input in order.
func (m *Module) RunBatch(_ context.Context, inputs []*structpb.Struct) ([]*structpb.Struct, error) {
	outs := make([]*structpb.Struct, 0, len(inputs))
	for _, in := range inputs {
		name := ""
		if in != nil {
			if f, ok := in.Fields["name"]; ok {
				name = f.GetStringValue()
			}
		}
		out, err := structpb.NewStruct(map[string]any{
			"greeting": fmt.Sprintf("%s %s", m.prefix, name),
		})
		if err != nil {
			return nil, err
		}
		outs = append(outs, out)
	}
	return outs, nil
}

// MockModule mimics a remote implementation of the sample type. It
// tags its output so callers can tell which backend served them.
type MockModule struct {
	prefix string
}

var _ modules.BatchModule = (*MockModule)(nil)

// NewMock instantiates the mock sample module.
func NewMock(cfg *modules.Config) (modules.Module, error) {
	return &MockModule{prefix: cfg.StringParam("greeting_prefix", "Hello")}, nil
}

func (m *MockModule) Run(ctx context.Context, input *structpb.Struct) (*structpb.Struct, error) {
	outs, err := m.RunBatch(ctx, []*structpb.Struct{input})
	if err != nil {
		return nil, err
	}
	return outs[0], nil
}

func (m *MockModule) RunBatch(_ context.Context, inputs []*structpb.Struct) ([]*structpb.Struct, error) {
	outs := make([]*structpb.Struct, 0, len(inputs))
	for _, in := range inputs {
		name := ""
		if in != nil {
			if f, ok := in.Fields["name"]; ok {
				name = f.GetStringValue()
			}
		}
		out, err := structpb.NewStruct(map[string]any{
			"greeting": fmt.Sprintf("%s %s", m.prefix, name),
			"backend":  string(backends.KindMock),
		})
		if err != nil {
			return nil, err
		}
		outs = append(outs, out)
	}
	return outs, nil
}

// Register wires the sample type into reg with the local implementation
// preferred and the mock as the alternate kind.
func Register(reg *backends.Registry) error {
	if err := reg.Register(ModelType, backends.KindLocal, New, backends.KindLocal, backends.KindMock); err != nil {
		return err
	}
	return reg.Register(ModelType, backends.KindMock, NewMock)
}
