package modelmgmt

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/markstur/caikit/internal/backends"
	"github.com/markstur/caikit/internal/common/fsutil"
	"github.com/markstur/caikit/internal/status"
	"github.com/markstur/caikit/pkg/types"
)

// Manager keeps the table of loaded models for the serving layer and
// enforces the id-uniqueness policy the loader deliberately does not.
// It also acts as the sizing collaborator, filling in each handle's
// size after a successful load.
type Manager struct {
	mu     sync.RWMutex
	loader *Loader
	models map[string]*LoadedModel
	log    zerolog.Logger
}

// NewManager builds a manager around the process-wide loader.
func NewManager(loader *Loader, log zerolog.Logger) *Manager {
	return &Manager{
		loader: loader,
		models: make(map[string]*LoadedModel),
		log:    log,
	}
}

// Load loads the artifact at path under id. A duplicate id is a
// conflict. Concurrent loads of distinct ids proceed independently.
func (m *Manager) Load(ctx context.Context, id, path, declaredType string, override *backends.Override) (*LoadedModel, error) {
	m.mu.RLock()
	_, dup := m.models[id]
	m.mu.RUnlock()
	if dup {
		return nil, status.Errorf(status.CodeConflict, "model %s is already loaded", id)
	}

	lm, err := m.loader.Load(ctx, id, path, declaredType, override)
	if err != nil {
		return nil, err
	}

	// Size the artifact after the fact; the loader leaves size at zero.
	if n, err := fsutil.DirSizeBytes(lm.Dir()); err == nil {
		lm.SetSizeBytes(n)
	} else {
		m.log.Warn().Err(err).Str("model", id).Msg("model sizing failed")
	}

	m.mu.Lock()
	if _, raced := m.models[id]; raced {
		m.mu.Unlock()
		_ = lm.Release()
		return nil, status.Errorf(status.CodeConflict, "model %s is already loaded", id)
	}
	m.models[id] = lm
	m.mu.Unlock()

	loadedModels.Inc()
	return lm, nil
}

// Predict invokes the loaded model id with a single input.
func (m *Manager) Predict(ctx context.Context, id string, input *structpb.Struct) (*structpb.Struct, error) {
	m.mu.RLock()
	lm := m.models[id]
	m.mu.RUnlock()
	if lm == nil {
		return nil, status.Errorf(status.CodeNotFound, "model %s is not loaded", id)
	}
	return lm.Run(ctx, input)
}

// Get returns the handle for id when loaded.
func (m *Manager) Get(id string) (*LoadedModel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lm, ok := m.models[id]
	return lm, ok
}

// Unload removes and releases the model id.
func (m *Manager) Unload(id string) error {
	m.mu.Lock()
	lm := m.models[id]
	delete(m.models, id)
	m.mu.Unlock()
	if lm == nil {
		return status.Errorf(status.CodeNotFound, "model %s is not loaded", id)
	}
	loadedModels.Dec()
	if err := lm.Release(); err != nil {
		m.log.Warn().Err(err).Str("model", id).Msg("model release reported an error")
	}
	m.log.Info().Str("model", id).Msg("model unloaded")
	return nil
}

// List returns a snapshot of the loaded models.
func (m *Manager) List() []types.ModelInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.ModelInfo, 0, len(m.models))
	for _, lm := range m.models {
		_, batched := lm.Batcher()
		out = append(out, types.ModelInfo{
			ID:        lm.ID(),
			ModelType: lm.Type(),
			Path:      lm.Path(),
			Backend:   string(lm.Backend()),
			SizeBytes: lm.SizeBytes(),
			Batched:   batched,
		})
	}
	return out
}

// Status reports the runtime summary for the status endpoint.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total int64
	for _, lm := range m.models {
		total += lm.SizeBytes()
	}
	return types.StatusResponse{
		Ready:          true,
		ModelCount:     len(m.models),
		TotalSizeBytes: total,
	}
}

// Ready reports whether the manager can serve requests.
func (m *Manager) Ready() bool { return m.loader != nil }

// Close unloads every model and releases the loader.
func (m *Manager) Close() error {
	m.mu.Lock()
	models := m.models
	m.models = make(map[string]*LoadedModel)
	m.mu.Unlock()
	for id, lm := range models {
		loadedModels.Dec()
		if err := lm.Release(); err != nil {
			m.log.Warn().Err(err).Str("model", id).Msg("model release reported an error")
		}
	}
	return m.loader.Close()
}
