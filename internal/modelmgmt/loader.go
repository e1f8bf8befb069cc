// Package modelmgmt orchestrates model loading: archive extraction,
// manifest reading, backend resolution, instantiation and batch
// wrapping. The Manager on top keeps the table of loaded models for the
// serving layer.
package modelmgmt

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/markstur/caikit/internal/backends"
	"github.com/markstur/caikit/internal/batching"
	"github.com/markstur/caikit/internal/common/fsutil"
	"github.com/markstur/caikit/internal/modules"
	"github.com/markstur/caikit/internal/status"
)

// BatchConfig is the per-model-type batching policy.
type BatchConfig struct {
	Size         int
	CollectDelay time.Duration
}

// BatchingTable maps a model type, or the literal key "default", to its
// batching policy. Absence of both entries means no batching.
type BatchingTable map[string]BatchConfig

// DefaultBatchKey is the fallback entry consulted when a model type has
// no batching policy of its own.
const DefaultBatchKey = "default"

// loaderActive guards against a second live loader in the process.
// Loading is wired up once at startup; a re-construction indicates a
// wiring bug, so NewLoader fails fast instead of silently coexisting.
var loaderActive atomic.Bool

// Loader turns on-disk model artifacts into LoadedModel handles. It
// holds no mutable shared state beyond the registry and batching table
// it delegates to, so concurrent loads of distinct ids are independent.
type Loader struct {
	registry *backends.Registry
	batching BatchingTable
	log      zerolog.Logger
	closed   atomic.Bool
}

// NewLoader constructs the process-wide loader. Constructing a second
// loader while one is alive fails; Close releases the slot.
func NewLoader(registry *backends.Registry, table BatchingTable, log zerolog.Logger) (*Loader, error) {
	if registry == nil {
		return nil, status.Errorf(status.CodeInvalidArgument, "loader requires a backend registry")
	}
	if !loaderActive.CompareAndSwap(false, true) {
		return nil, status.Errorf(status.CodeConflict,
			"a model loader is already constructed in this process")
	}
	return &Loader{registry: registry, batching: table, log: log}, nil
}

// Close releases the process-wide loader slot. Models loaded through
// this loader stay valid; their lifecycle belongs to the caller.
func (l *Loader) Close() error {
	if l.closed.CompareAndSwap(false, true) {
		loaderActive.Store(false)
	}
	return nil
}

// Load resolves path to a model directory (extracting archives), reads
// the manifest, resolves and instantiates the backend implementation,
// and wraps it with a batcher when the model type is configured for
// batching. It never returns a partially constructed handle.
func (l *Loader) Load(ctx context.Context, id, path, declaredType string, override *backends.Override) (*LoadedModel, error) {
	if l.closed.Load() {
		return nil, status.Errorf(status.CodeUnavailable, "model loader is closed")
	}
	if id == "" {
		return nil, status.Errorf(status.CodeInvalidArgument, "model id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	dir, tempDir, err := l.resolveDir(id, path)
	if err != nil {
		loadsTotal.WithLabelValues(status.CodeOf(err).String()).Inc()
		return nil, err
	}
	cleanup := func() {
		if tempDir != "" {
			_ = os.RemoveAll(tempDir)
		}
	}

	lm, err := l.assemble(id, path, dir, declaredType, override)
	if err != nil {
		cleanup()
		loadsTotal.WithLabelValues(status.CodeOf(err).String()).Inc()
		return nil, err
	}
	lm.tempDir = tempDir

	loadsTotal.WithLabelValues("ok").Inc()
	loadDuration.Observe(time.Since(start).Seconds())
	l.log.Info().Str("model", id).Str("type", lm.modelType).Str("backend", string(lm.backend)).
		Bool("batched", lm.batcher != nil).Dur("dur", time.Since(start)).Msg("model loaded")
	return lm, nil
}

// resolveDir maps the caller's path onto the directory holding the
// manifest, extracting single-file archives into an isolated temp dir.
func (l *Loader) resolveDir(id, path string) (dir, tempDir string, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", "", status.Wrap(status.CodeNotFound, err,
			"model %s: path %s does not exist", id, path)
	}
	if fi.IsDir() {
		return path, "", nil
	}
	tempDir, err = os.MkdirTemp("", "caikit-model-")
	if err != nil {
		return "", "", status.Wrap(status.CodeInternal, err,
			"model %s: cannot create extraction directory", id)
	}
	if err := fsutil.ExtractZip(path, tempDir); err != nil {
		_ = os.RemoveAll(tempDir)
		return "", "", status.Wrap(status.CodeNotFound, err,
			"model %s: %s is not a valid model archive containing %s", id, path, modules.ConfigFileName)
	}
	return tempDir, tempDir, nil
}

// assemble runs manifest read, backend resolution, instantiation and
// batch wrapping against an already-resolved model directory.
func (l *Loader) assemble(id, path, dir, declaredType string, override *backends.Override) (*LoadedModel, error) {
	cfg, err := modules.LoadConfig(dir)
	if err != nil {
		return nil, status.Wrap(status.CodeOf(err), err,
			"model %s: cannot read manifest under %s", id, path)
	}

	effType := declaredType
	if effType == "" {
		effType = cfg.ModelType
	}
	if effType == "" {
		return nil, status.Errorf(status.CodeInternal,
			"model %s: no model type declared by caller or manifest", id)
	}
	if !l.registry.Registered(effType) {
		return nil, status.Errorf(status.CodeInternal,
			"model %s: model type %s is not registered", id, effType)
	}

	if override == nil && cfg.Backend != "" {
		override = &backends.Override{Kind: backends.Kind(cfg.Backend)}
	}
	factory, kind, err := l.registry.Resolve(effType, override)
	if err != nil {
		return nil, status.Wrap(status.CodeOf(err), err,
			"model %s: backend resolution failed", id)
	}

	instance, err := instantiate(factory, cfg)
	if err != nil {
		return nil, status.Wrap(status.CodeInternal, err,
			"model %s: %s implementation failed to instantiate", id, kind)
	}

	lm := &LoadedModel{
		id:        id,
		modelType: effType,
		path:      path,
		dir:       dir,
		backend:   kind,
		module:    instance,
		raw:       instance,
	}
	if bc, ok := l.batchConfigFor(effType); ok {
		bm, batchable := instance.(modules.BatchModule)
		if !batchable {
			l.log.Warn().Str("model", id).Str("type", effType).
				Msg("batching configured but module has no batch entry point, serving unbatched")
			return lm, nil
		}
		b, err := batching.New(id, bm, batching.Config{
			BatchSize:    bc.Size,
			CollectDelay: bc.CollectDelay,
			Logger:       l.log,
		})
		if err != nil {
			return nil, status.Wrap(status.CodeInternal, err,
				"model %s: invalid batching configuration for type %s", id, effType)
		}
		lm.module = b
		lm.batcher = b
	}
	return lm, nil
}

// batchConfigFor resolves the batching policy for a model type: exact
// match first, then the "default" entry.
func (l *Loader) batchConfigFor(modelType string) (BatchConfig, bool) {
	if bc, ok := l.batching[modelType]; ok {
		return bc, true
	}
	if bc, ok := l.batching[DefaultBatchKey]; ok {
		return bc, true
	}
	return BatchConfig{}, false
}

// instantiate invokes the factory, converting a panic in implementation
// code into an error instead of tearing the process down.
func instantiate(factory backends.Factory, cfg *modules.Config) (m modules.Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during instantiation: %v", r)
		}
	}()
	m, err = factory(cfg)
	if err == nil && m == nil {
		err = fmt.Errorf("implementation factory returned no module")
	}
	return m, err
}
