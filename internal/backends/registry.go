// Package backends maps (model type, backend kind) pairs onto the
// concrete implementation factories that instantiate modules. The table
// is populated once during process startup and is read-only afterwards,
// which lets a model type run identically whether its execution is local
// or remote; the choice is made at configuration time, not at call sites.
package backends

import (
	"sync"

	"github.com/markstur/caikit/internal/modules"
	"github.com/markstur/caikit/internal/status"
)

// Kind names an implementation strategy for a model type.
type Kind string

const (
	// KindLocal is the in-process implementation, typically first in a
	// type's support order.
	KindLocal Kind = "LOCAL"
	// KindMock is a stand-in implementation used in tests and dry runs.
	KindMock Kind = "MOCK"
)

// Factory instantiates a module from its parsed manifest.
type Factory func(cfg *modules.Config) (modules.Module, error)

// Override selects a specific backend kind for a model type together
// with an implementation-specific configuration blob. Immutable once
// attached to a registration.
type Override struct {
	Kind   Kind
	Config map[string]any
}

type registration struct {
	factories map[Kind]Factory
	supported []Kind
	override  *Override
}

// Registry resolves model types to implementation factories.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*registration)}
}

// Register adds a factory for (modelType, kind) and records the type's
// backend preference order. The first registration of a type fixes its
// support order; later registrations for other kinds may extend it with
// kinds not yet listed. Re-registering an existing (type, kind) pair is
// a conflict.
func (r *Registry) Register(modelType string, kind Kind, factory Factory, supportedOrder ...Kind) error {
	if modelType == "" {
		return status.Errorf(status.CodeInvalidArgument, "backend registration requires a model type")
	}
	if factory == nil {
		return status.Errorf(status.CodeInvalidArgument, "backend registration for type %s requires a factory", modelType)
	}
	if len(supportedOrder) == 0 {
		supportedOrder = []Kind{kind}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	reg := r.types[modelType]
	if reg == nil {
		reg = &registration{factories: make(map[Kind]Factory)}
		r.types[modelType] = reg
	}
	if _, dup := reg.factories[kind]; dup {
		return status.Errorf(status.CodeConflict,
			"backend %s already registered for model type %s", kind, modelType)
	}
	reg.factories[kind] = factory
	for _, k := range supportedOrder {
		if !containsKind(reg.supported, k) {
			reg.supported = append(reg.supported, k)
		}
	}
	return nil
}

// RegisterOverride attaches a backend override to a model type. The
// override redirects resolution for that type to the given kind and
// carries a configuration blob merged into the manifest parameters at
// instantiation. Attaching a second override is a conflict.
func (r *Registry) RegisterOverride(modelType string, kind Kind, config map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg := r.types[modelType]
	if reg == nil {
		return status.Errorf(status.CodeInternal,
			"cannot attach backend override: model type %s is not registered", modelType)
	}
	if reg.override != nil {
		return status.Errorf(status.CodeConflict,
			"backend override already attached to model type %s", modelType)
	}
	cp := make(map[string]any, len(config))
	for k, v := range config {
		cp[k] = v
	}
	reg.override = &Override{Kind: kind, Config: cp}
	return nil
}

// Registered reports whether modelType has at least one backend factory.
func (r *Registry) Registered(modelType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[modelType] != nil
}

// Resolve picks the implementation factory for modelType. When override
// names a kind, only that kind is acceptable. Otherwise the registered
// per-type override applies, and failing that the type's support order
// is walked and the first kind with a factory wins.
func (r *Registry) Resolve(modelType string, override *Override) (Factory, Kind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg := r.types[modelType]
	if reg == nil {
		return nil, "", status.Errorf(status.CodeInternal,
			"model type %s has no registered backends", modelType)
	}
	if override == nil {
		override = reg.override
	}
	if override != nil {
		f := reg.factories[override.Kind]
		if f == nil {
			return nil, "", status.Errorf(status.CodeInternal,
				"unsupported backend %s for model type %s", override.Kind, modelType)
		}
		return withOverrideConfig(f, override.Config), override.Kind, nil
	}
	for _, k := range reg.supported {
		if f := reg.factories[k]; f != nil {
			return f, k, nil
		}
	}
	return nil, "", status.Errorf(status.CodeInternal,
		"no usable backend implementation for model type %s", modelType)
}

// withOverrideConfig layers the override's configuration blob on top of
// the manifest parameters before the factory sees them. Manifest values
// win ties so an artifact can still pin its own settings.
func withOverrideConfig(f Factory, config map[string]any) Factory {
	if len(config) == 0 {
		return f
	}
	return func(cfg *modules.Config) (modules.Module, error) {
		merged := make(map[string]any, len(config)+len(cfg.Params))
		for k, v := range config {
			merged[k] = v
		}
		for k, v := range cfg.Params {
			merged[k] = v
		}
		layered := *cfg
		layered.Params = merged
		return f(&layered)
	}
}

func containsKind(kinds []Kind, k Kind) bool {
	for _, have := range kinds {
		if have == k {
			return true
		}
	}
	return false
}
