// Package workerpool provides a bounded worker pool used to fan batch
// conversion requests out across a fixed number of goroutines.
package workerpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of conversion work. Each task carries its own result
// channel so concurrent submitters never contend for each other's results.
type Task struct {
	ID      string
	Payload any

	result chan *Result
}

// Result is the outcome of a processed task.
type Result struct {
	TaskID  string
	Success bool
	Err     error
	Data    any
}

// WorkerFunc processes a single task. Conversions are deterministic, so a
// failed task is reported as failed rather than retried.
type WorkerFunc func(ctx context.Context, task *Task) *Result

// Config holds worker pool configuration.
type Config struct {
	Workers         int
	QueueSize       int
	ShutdownTimeout time.Duration
}

// DefaultConfig sizes the pool for interactive batch conversion rather than
// bulk throughput.
func DefaultConfig() Config {
	return Config{
		Workers:         8,
		QueueSize:       256,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Pool manages the workers.
type Pool struct {
	cfg    Config
	fn     WorkerFunc
	logger *zap.Logger

	tasks    chan *Task
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once

	// mu serializes enqueues against the close of tasks in Stop.
	mu     sync.Mutex
	closed bool

	submitted int64
	completed int64
	failed    int64
	active    int64
}

// New creates a pool. Start must be called before submitting work.
func New(cfg Config, fn WorkerFunc, logger *zap.Logger) (*Pool, error) {
	if fn == nil {
		return nil, fmt.Errorf("worker function is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:    cfg,
		fn:     fn,
		logger: logger,
		tasks:  make(chan *Task, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started",
		zap.Int("workers", p.cfg.Workers),
		zap.Int("queue_size", p.cfg.QueueSize))
}

// Submit enqueues a task and returns its result channel. The channel
// receives exactly one result. Safe to call concurrently with Stop.
func (p *Pool) Submit(task *Task) (<-chan *Result, error) {
	task.result = make(chan *Result, 1)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("pool is shutting down")
	}

	select {
	case p.tasks <- task:
		atomic.AddInt64(&p.submitted, 1)
		return task.result, nil
	default:
		return nil, fmt.Errorf("task queue is full")
	}
}

// Do submits a task and waits for its result or context cancellation.
func (p *Pool) Do(ctx context.Context, id string, payload any) (*Result, error) {
	ch, err := p.Submit(&Task{ID: id, Payload: payload})
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-ch:
		return result, nil
	}
}

// Map fans the payloads out across the pool and collects results in input
// order. A submission failure is folded into the corresponding slot.
func (p *Pool) Map(ctx context.Context, payloads []any) []*Result {
	results := make([]*Result, len(payloads))
	channels := make([]<-chan *Result, len(payloads))

	for i, payload := range payloads {
		id := fmt.Sprintf("batch-%d", i)
		ch, err := p.Submit(&Task{ID: id, Payload: payload})
		if err != nil {
			results[i] = &Result{TaskID: id, Success: false, Err: err}
			continue
		}
		channels[i] = ch
	}

	for i, ch := range channels {
		if ch == nil {
			continue
		}
		select {
		case <-ctx.Done():
			results[i] = &Result{TaskID: fmt.Sprintf("batch-%d", i), Success: false, Err: ctx.Err()}
		case result := <-ch:
			results[i] = result
		}
	}

	return results
}

// Stop drains the queue and waits for workers, up to the shutdown timeout.
// Safe to call more than once.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("stopping worker pool")
		p.cancel()

		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			p.logger.Info("worker pool stopped")
		case <-time.After(p.cfg.ShutdownTimeout):
			p.logger.Warn("worker pool shutdown timed out")
		}
	})
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	atomic.AddInt64(&p.active, 1)
	defer atomic.AddInt64(&p.active, -1)

	for task := range p.tasks {
		result := p.run(task)
		if result.Success {
			atomic.AddInt64(&p.completed, 1)
		} else {
			atomic.AddInt64(&p.failed, 1)
			p.logger.Warn("task failed",
				zap.String("task_id", task.ID),
				zap.Int("worker_id", id),
				zap.Error(result.Err))
		}
		task.result <- result
	}
}

// run executes the worker function, converting a panic into a failed result
// so one poisoned payload cannot take a worker down.
func (p *Pool) run(task *Task) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			result = &Result{TaskID: task.ID, Success: false, Err: fmt.Errorf("task panicked: %v", r)}
		}
	}()

	ctx := p.ctx
	select {
	case <-ctx.Done():
		return &Result{TaskID: task.ID, Success: false, Err: ctx.Err()}
	default:
	}
	return p.fn(ctx, task)
}

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	Submitted     int64
	Completed     int64
	Failed        int64
	ActiveWorkers int64
	QueueDepth    int
	QueueCapacity int
	Workers       int
}

// Stats returns current pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted:     atomic.LoadInt64(&p.submitted),
		Completed:     atomic.LoadInt64(&p.completed),
		Failed:        atomic.LoadInt64(&p.failed),
		ActiveWorkers: atomic.LoadInt64(&p.active),
		QueueDepth:    len(p.tasks),
		QueueCapacity: p.cfg.QueueSize,
		Workers:       p.cfg.Workers,
	}
}

// Healthy reports whether the queue has headroom.
func (p *Pool) Healthy() bool {
	stats := p.Stats()
	return float64(stats.QueueDepth)/float64(stats.QueueCapacity) < 0.9
}
