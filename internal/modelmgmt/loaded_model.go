package modelmgmt

import (
	"context"
	"os"
	"sync/atomic"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/markstur/caikit/internal/backends"
	"github.com/markstur/caikit/internal/batching"
	"github.com/markstur/caikit/internal/modules"
)

// LoadedModel is the handle returned by Load. It owns the instantiated
// module (possibly batch-wrapped) and, for archives, the temp directory
// the artifact was extracted into. The module reference never changes
// identity for the lifetime of the handle.
type LoadedModel struct {
	id        string
	modelType string
	path      string
	dir       string
	tempDir   string
	backend   backends.Kind
	module    modules.Module
	raw       modules.Module
	batcher   *batching.Batcher

	// sizeBytes starts at zero; a sizing collaborator fills it in after
	// load. The loader itself never computes it.
	sizeBytes atomic.Int64
	released  atomic.Bool
}

// ID returns the caller-supplied model id.
func (m *LoadedModel) ID() string { return m.id }

// Type returns the effective model type the handle was loaded as.
func (m *LoadedModel) Type() string { return m.modelType }

// Path returns the source path given to Load.
func (m *LoadedModel) Path() string { return m.path }

// Dir returns the resolved model directory (the extraction dir for
// archives, the source path otherwise).
func (m *LoadedModel) Dir() string { return m.dir }

// Backend returns the backend kind serving this instance.
func (m *LoadedModel) Backend() backends.Kind { return m.backend }

// Module returns the invocable module, batch-wrapped when batching is
// configured for the model's type.
func (m *LoadedModel) Module() modules.Module { return m.module }

// Batcher returns the batch wrapper and true when this handle is
// batched.
func (m *LoadedModel) Batcher() (*batching.Batcher, bool) {
	return m.batcher, m.batcher != nil
}

// SizeBytes returns the sized footprint of the artifact, zero until a
// sizer populates it.
func (m *LoadedModel) SizeBytes() int64 { return m.sizeBytes.Load() }

// SetSizeBytes records the artifact footprint measured by a sizer.
func (m *LoadedModel) SetSizeBytes(n int64) { m.sizeBytes.Store(n) }

// Run invokes the model with a single input.
func (m *LoadedModel) Run(ctx context.Context, input *structpb.Struct) (*structpb.Struct, error) {
	return m.module.Run(ctx, input)
}

// Release tears the handle down: stops a batch wrapper, closes the
// underlying module when it holds resources, and removes the extraction
// directory. Safe to call more than once.
func (m *LoadedModel) Release() error {
	if !m.released.CompareAndSwap(false, true) {
		return nil
	}
	var firstErr error
	if m.batcher != nil {
		m.batcher.Stop()
	}
	if c, ok := m.raw.(modules.Closer); ok {
		if err := c.Close(); err != nil {
			firstErr = err
		}
	}
	if m.tempDir != "" {
		if err := os.RemoveAll(m.tempDir); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
