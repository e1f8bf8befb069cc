// Package batching reshapes concurrent single-item inference calls into
// grouped calls against a module's batch entry point. One coordinator
// goroutine per wrapped module owns the pending-call queue and the
// collect-delay timer; callers communicate with it through a buffered
// result channel per pending call, never through shared state.
package batching

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/markstur/caikit/internal/modules"
	"github.com/markstur/caikit/internal/status"
)

const defaultQueueSize = 256

// Config controls how a wrapped module accumulates batches. BatchSize
// must be positive; CollectDelay may be zero, meaning a batch is flushed
// as soon as no further call is immediately available. Once attached to
// a batcher the config is immutable.
type Config struct {
	BatchSize    int
	CollectDelay time.Duration
	// QueueSize bounds the pending-call queue; zero means the default.
	QueueSize int
	Logger    zerolog.Logger
}

type pendingCall struct {
	ctx    context.Context
	input  *structpb.Struct
	result chan callResult
}

type callResult struct {
	output *structpb.Struct
	err    error
}

// Batcher wraps a BatchModule behind the single-item Module contract.
type Batcher struct {
	name   string
	module modules.BatchModule

	size         int
	collectDelay time.Duration

	queue    chan pendingCall
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	log      zerolog.Logger
}

var _ modules.Module = (*Batcher)(nil)

// New builds and starts a batcher around module. The name identifies the
// wrapped model in logs and metrics.
func New(name string, module modules.BatchModule, cfg Config) (*Batcher, error) {
	if module == nil {
		return nil, status.Errorf(status.CodeInternal, "batcher for %s requires a module", name)
	}
	if cfg.BatchSize <= 0 {
		return nil, status.Errorf(status.CodeInternal,
			"batcher for %s requires a positive batch size, got %d", name, cfg.BatchSize)
	}
	if cfg.CollectDelay < 0 {
		return nil, status.Errorf(status.CodeInternal,
			"batcher for %s requires a non-negative collect delay, got %s", name, cfg.CollectDelay)
	}
	qs := cfg.QueueSize
	if qs <= 0 {
		qs = defaultQueueSize
	}
	b := &Batcher{
		name:         name,
		module:       module,
		size:         cfg.BatchSize,
		collectDelay: cfg.CollectDelay,
		queue:        make(chan pendingCall, qs),
		stop:         make(chan struct{}),
		log:          cfg.Logger,
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.run()
	}()
	return b, nil
}

// BatchSize returns the configured maximum batch size.
func (b *Batcher) BatchSize() int { return b.size }

// CollectDelay returns the configured collect delay.
func (b *Batcher) CollectDelay() time.Duration { return b.collectDelay }

// Run enqueues a single-item call and suspends the caller until its batch
// is dispatched and the result slot is filled. A caller whose context
// ends before dispatch is dropped from its batch; after dispatch the
// underlying call still completes for the other entries.
func (b *Batcher) Run(ctx context.Context, input *structpb.Struct) (*structpb.Struct, error) {
	call := pendingCall{ctx: ctx, input: input, result: make(chan callResult, 1)}

	select {
	case <-b.stop:
		return nil, status.Errorf(status.CodeUnavailable, "model %s: batcher is stopped", b.name)
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	select {
	case b.queue <- call:
	default:
		return nil, status.Errorf(status.CodeUnavailable,
			"model %s: batch queue is full (%d pending)", b.name, cap(b.queue))
	}

	select {
	case res := <-call.result:
		return res.output, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.stop:
		return nil, status.Errorf(status.CodeUnavailable, "model %s: batcher is stopped", b.name)
	}
}

// Stop shuts down the coordinator and fails every call still queued.
// Safe to call more than once.
func (b *Batcher) Stop() {
	b.stopOnce.Do(func() {
		close(b.stop)
		b.wg.Wait()
		for {
			select {
			case call := <-b.queue:
				call.result <- callResult{err: status.Errorf(status.CodeUnavailable,
					"model %s: batcher is stopped", b.name)}
			default:
				return
			}
		}
	})
}

// Close implements modules.Closer so releasing a wrapped model tears the
// coordinator down.
func (b *Batcher) Close() error {
	b.Stop()
	return nil
}

func (b *Batcher) run() {
	for {
		// Stop wins over queued work so Stop can drain the queue itself.
		select {
		case <-b.stop:
			return
		default:
		}
		select {
		case <-b.stop:
			return
		case first := <-b.queue:
			batch := b.collect(first)
			b.dispatch(batch)
		}
	}
}

// collect accumulates a batch starting from first. With a zero collect
// delay only calls already sitting in the queue join the batch; with a
// positive delay the window stays open until the deadline or until the
// batch fills, whichever comes first.
func (b *Batcher) collect(first pendingCall) []pendingCall {
	batch := []pendingCall{first}
	if b.collectDelay == 0 {
		for len(batch) < b.size {
			select {
			case next := <-b.queue:
				batch = append(batch, next)
			default:
				return batch
			}
		}
		return batch
	}
	timer := time.NewTimer(b.collectDelay)
	defer timer.Stop()
	for len(batch) < b.size {
		select {
		case <-b.stop:
			return batch
		case next := <-b.queue:
			batch = append(batch, next)
		case <-timer.C:
			return batch
		}
	}
	return batch
}

func (b *Batcher) dispatch(batch []pendingCall) {
	// Calls abandoned before dispatch give their slot back; the batch
	// proceeds with the remaining entries.
	live := batch[:0]
	for _, call := range batch {
		if call.ctx.Err() != nil {
			canceledTotal.WithLabelValues(b.name).Inc()
			continue
		}
		live = append(live, call)
	}
	if len(live) == 0 {
		return
	}

	inputs := make([]*structpb.Struct, len(live))
	for i, call := range live {
		inputs[i] = call.input
	}

	start := time.Now()
	outputs, err := b.module.RunBatch(context.Background(), inputs)
	elapsed := time.Since(start)

	batchSizes.WithLabelValues(b.name).Observe(float64(len(live)))
	dispatchDuration.WithLabelValues(b.name).Observe(elapsed.Seconds())

	if err != nil {
		b.log.Error().Err(err).Str("model", b.name).Int("batch_size", len(live)).
			Dur("dur", elapsed).Msg("batch dispatch failed")
		b.failAll(live, err)
		return
	}
	if len(outputs) != len(inputs) {
		mismatch := status.Errorf(status.CodeInternal,
			"model %s returned %d outputs for %d batched inputs", b.name, len(outputs), len(inputs))
		b.log.Error().Err(mismatch).Str("model", b.name).Msg("batch dispatch failed")
		b.failAll(live, mismatch)
		return
	}
	b.log.Debug().Str("model", b.name).Int("batch_size", len(live)).
		Dur("dur", elapsed).Msg("batch dispatched")
	for i := range live {
		live[i].result <- callResult{output: outputs[i]}
	}
}

// failAll delivers err to every waiting caller in the batch. No pending
// call is dropped silently.
func (b *Batcher) failAll(batch []pendingCall, err error) {
	for _, call := range batch {
		call.result <- callResult{err: err}
	}
}
