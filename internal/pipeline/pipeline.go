package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"github.com/panjf2000/ants/v2"

	"github.com/couchcryptid/outage-equity-service/internal/domain"
	"github.com/couchcryptid/outage-equity-service/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer converts a raw message into an enriched outage event.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.OutageEvent, error)
}

// BatchLoader folds a batch of outage events into the county tables.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutageEvent) error
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Pipeline orchestrates the extract-transform-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
	workers     int
	pool        *ants.Pool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTransformWorkers transforms each batch on up to n pooled goroutines.
// Event order within a batch is kept. n <= 1 keeps transforms sequential.
func WithTransformWorkers(n int) Option {
	return func(p *Pipeline) { p.workers = n }
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once the pipeline has loaded at least one event.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not loaded any events yet")
	}
	return nil
}

// Run executes the batch ETL loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.workers > 1 {
		pool, err := ants.NewPool(p.workers, ants.WithPanicHandler(func(v any) {
			p.logger.Error("transform panicked", "panic", v)
		}))
		if err != nil {
			return fmt.Errorf("transform pool: %w", err)
		}
		p.pool = pool
		defer func() {
			pool.Release()
			p.pool = nil
		}()
	}

	p.logger.Info("pipeline started", "batch_size", p.batchSize, "transform_workers", max(p.workers, 1))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	b := &backoff{current: initialBackoff, max: maxBackoff}
	for ctx.Err() == nil {
		if !p.processBatch(ctx, b) {
			break
		}
	}
	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	return nil
}

// processBatch runs one extract-transform-load cycle. It returns false when
// the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, b *backoff) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return b.wait(ctx)
	}
	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	b.reset()

	events, committable := p.transformAll(ctx, rawBatch)
	if len(events) == 0 {
		return true
	}

	if err := p.loader.LoadBatch(ctx, events); err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("load batch failed", "error", err, "batch_size", len(events))
		return b.wait(ctx)
	}
	p.metrics.EventsLoaded.Add(float64(len(events)))
	for _, raw := range committable {
		p.commitOffset(ctx, raw)
	}

	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	return true
}

// transformAll transforms every message in the batch. Messages that fail are
// logged, counted, and committed immediately so one bad record never blocks
// the partition; the rest are returned with their raw messages for commit
// after a successful load.
func (p *Pipeline) transformAll(ctx context.Context, rawBatch []domain.RawEvent) ([]domain.OutageEvent, []domain.RawEvent) {
	results := make([]transformResult, len(rawBatch))
	p.forEach(len(rawBatch), func(i int) {
		results[i].err = errTransformPanicked
		results[i].event, results[i].err = p.transformer.Transform(ctx, rawBatch[i])
	})

	events := make([]domain.OutageEvent, 0, len(rawBatch))
	ok := make([]domain.RawEvent, 0, len(rawBatch))
	for i, raw := range rawBatch {
		event, err := results[i].event, results[i].err
		if err != nil {
			p.logger.Warn("transform failed, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			p.commitOffset(ctx, raw)
			continue
		}
		events = append(events, event)
		ok = append(ok, raw)
	}
	return events, ok
}

type transformResult struct {
	event domain.OutageEvent
	err   error
}

var errTransformPanicked = errors.New("transform panicked")

// forEach calls fn for 0..n-1 on the worker pool when one is running and
// inline otherwise, returning once every call has finished.
func (p *Pipeline) forEach(n int, fn func(i int)) {
	if p.pool == nil {
		for i := range n {
			p.guarded(fn, i)
		}
		return
	}
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			fn(i)
		})
		if err != nil {
			p.guarded(fn, i)
			wg.Done()
		}
	}
	wg.Wait()
}

// guarded calls fn(i) and logs a panic instead of propagating it. Pooled
// calls get the same treatment from the pool's panic handler.
func (p *Pipeline) guarded(fn func(int), i int) {
	defer func() {
		if v := recover(); v != nil {
			p.logger.Error("transform panicked", "panic", v)
		}
	}()
	fn(i)
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

// backoff is an exponential retry delay: it starts at the initial value and
// doubles after every wait up to max.
type backoff struct {
	current time.Duration
	max     time.Duration
}

func (b *backoff) reset() { b.current = initialBackoff }

// wait sleeps for the current delay and advances it. It returns false if
// the context ends first.
func (b *backoff) wait(ctx context.Context) bool {
	if !sharedretry.SleepWithContext(ctx, b.current) {
		return false
	}
	b.current = sharedretry.NextBackoff(b.current, b.max)
	return true
}
