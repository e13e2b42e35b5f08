// Package batch accumulates directly-submitted embedding requests into bounded
// batches and drains them on size, schedule, or per-item timeout, with bounded
// per-item retries.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"vektor/apps/embedder/internal/embedding"
	"vektor/apps/embedder/internal/metrics"
)

var ErrStopped = errors.New("batch coordinator stopped")

// Processor runs one request. Satisfied by *embedding.Orchestrator.
type Processor interface {
	Generate(ctx context.Context, req embedding.Request) (*embedding.Response, error)
}

// FailureSink receives items that exhausted their retry budget.
type FailureSink func(ctx context.Context, req embedding.Request, failure error, attempts int)

type itemState string

const (
	statePending    itemState = "PENDING"
	stateBatched    itemState = "BATCHED"
	stateProcessing itemState = "PROCESSING"
)

type item struct {
	req         embedding.Request
	handle      *Handle
	ctx         context.Context
	submittedAt time.Time
	retryCount  int
	state       itemState
}

type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	ItemTimeout   time.Duration
	SweepInterval time.Duration
	MaxRetries    int
	PoolSize      int
	Parallel      bool
}

// Coordinator owns the pending queue. Submitters enqueue concurrently; drains
// are mutually exclusive across all three triggers via a single-flight flag,
// and items leave the queue before dispatch so a concurrent submit can never
// land in an in-flight drain.
type Coordinator struct {
	cfg  Config
	proc Processor
	sink FailureSink

	mu      sync.Mutex
	pending []*item

	draining atomic.Bool
	pool     *ants.Pool

	processed atomic.Int64
	failed    atomic.Int64

	stopOnce sync.Once
	stopped  atomic.Bool
	quit     chan struct{}
	wg       sync.WaitGroup
}

func NewCoordinator(cfg Config, proc Processor, sink FailureSink) (*Coordinator, error) {
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("batch size must be >= 1, got %d", cfg.BatchSize)
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = 60 * time.Second
	}
	if cfg.PoolSize < 1 {
		cfg.PoolSize = 1
	}

	c := &Coordinator{
		cfg:  cfg,
		proc: proc,
		sink: sink,
		quit: make(chan struct{}),
	}

	if cfg.Parallel {
		pool, err := ants.NewPool(cfg.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("worker pool: %w", err)
		}
		c.pool = pool
	}
	return c, nil
}

// Start launches the schedule flush and the timeout sweep.
func (c *Coordinator) Start() {
	c.wg.Add(2)

	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.cfg.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.drain("schedule", false)
			case <-c.quit:
				return
			}
		}
	}()

	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.drain("timeout", true)
			case <-c.quit:
				return
			}
		}
	}()
}

// Submit enqueues the request and returns immediately. The handle always
// resolves: with the real response, or a synthetic FAILURE once retries are
// exhausted or the coordinator shuts down.
func (c *Coordinator) Submit(ctx context.Context, req embedding.Request) (*Handle, error) {
	if c.stopped.Load() {
		return nil, ErrStopped
	}

	it := &item{
		req:    req,
		handle: newHandle(),
		// Detach from the submitter's cancellation but keep its values
		// (correlation id) for the async processing path.
		ctx:         context.WithoutCancel(ctx),
		submittedAt: time.Now(),
		state:       statePending,
	}

	c.mu.Lock()
	c.pending = append(c.pending, it)
	reached := len(c.pending) >= c.cfg.BatchSize
	metrics.BatchPendingItems.Set(float64(len(c.pending)))
	c.mu.Unlock()

	if reached {
		go c.drain("size", false)
	}
	return it.handle, nil
}

// drain moves pending items out of the queue and dispatches them. With
// timedOutOnly set, only items waiting past the item timeout are taken.
func (c *Coordinator) drain(trigger string, timedOutOnly bool) {
	if !c.draining.CompareAndSwap(false, true) {
		return // another drain in flight
	}
	defer c.draining.Store(false)

	c.mu.Lock()
	var taken []*item
	if timedOutOnly {
		cutoff := time.Now().Add(-c.cfg.ItemTimeout)
		var rest []*item
		for _, it := range c.pending {
			if it.submittedAt.Before(cutoff) {
				taken = append(taken, it)
			} else {
				rest = append(rest, it)
			}
		}
		c.pending = rest
	} else {
		taken = c.pending
		c.pending = nil
	}
	metrics.BatchPendingItems.Set(float64(len(c.pending)))
	c.mu.Unlock()

	if len(taken) == 0 {
		return
	}

	metrics.BatchFlushSize.WithLabelValues(trigger).Observe(float64(len(taken)))
	slog.Debug("draining batch", "trigger", trigger, "items", len(taken))

	for _, it := range taken {
		it.state = stateBatched
		c.dispatch(it)
	}
}

// dispatch hands one item to the pool (parallel) or processes it inline
// (sequential). A failure in one item never affects the others.
func (c *Coordinator) dispatch(it *item) {
	if c.pool == nil {
		c.process(it)
		return
	}
	c.wg.Add(1)
	err := c.pool.Submit(func() {
		defer c.wg.Done()
		c.process(it)
	})
	if err != nil {
		c.wg.Done()
		c.process(it)
	}
}

func (c *Coordinator) process(it *item) {
	it.state = stateProcessing

	resp, err := c.proc.Generate(it.ctx, it.req)
	failure := err
	if failure == nil && resp.Status == embedding.StatusFailure {
		failure = errors.New(firstError(resp))
	}

	if failure == nil {
		c.processed.Add(1)
		it.handle.resolve(resp)
		return
	}

	if it.retryCount < c.cfg.MaxRetries && !c.stopped.Load() {
		it.retryCount++
		slog.WarnContext(it.ctx, "batch item failed, re-enqueueing", "retry", it.retryCount, "max_retries", c.cfg.MaxRetries, "error", failure)
		it.state = statePending
		c.mu.Lock()
		c.pending = append(c.pending, it)
		metrics.BatchPendingItems.Set(float64(len(c.pending)))
		c.mu.Unlock()
		return
	}

	c.failed.Add(1)
	attempts := it.retryCount + 1
	slog.ErrorContext(it.ctx, "batch item exhausted retries", "attempts", attempts, "error", failure)
	if c.sink != nil {
		c.sink(it.ctx, it.req, failure, attempts)
	}
	it.handle.resolve(syntheticFailure(it.req, failure))
}

// Stop drains whatever is still pending, waits for in-flight work, and
// releases the pool. Handles of unprocessed items resolve through the final
// drain, so no submitter is left hanging.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.stopped.Store(true)
		close(c.quit)
		// A concurrent size-trigger drain can hold the single-flight flag;
		// keep draining until the queue is observed empty.
		for {
			c.drain("schedule", false)
			c.mu.Lock()
			n := len(c.pending)
			c.mu.Unlock()
			if n == 0 {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		c.wg.Wait()
		if c.pool != nil {
			c.pool.Release()
		}
	})
}

// Stats reports the atomic counters and current queue depth.
func (c *Coordinator) Stats() (processed, failed int64, pending int) {
	c.mu.Lock()
	pending = len(c.pending)
	c.mu.Unlock()
	return c.processed.Load(), c.failed.Load(), pending
}

func syntheticFailure(req embedding.Request, failure error) *embedding.Response {
	results := make([]embedding.Result, len(req.Texts))
	for i, text := range req.Texts {
		results[i] = embedding.Result{
			ChunkID: req.ChunkID(i),
			Text:    text,
			Status:  embedding.ResultFailed,
			Error:   fmt.Sprintf("%s: %v", "max retries exceeded", failure),
		}
	}
	return &embedding.Response{
		TenantID:   req.TenantID,
		DocumentID: req.DocumentID,
		ModelName:  req.ModelName,
		Results:    results,
		Status:     embedding.StatusFailure,
	}
}

func firstError(resp *embedding.Response) string {
	for _, r := range resp.Results {
		if r.Status == embedding.ResultFailed && r.Error != "" {
			return r.Error
		}
	}
	return "all results failed"
}
