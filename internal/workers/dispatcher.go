// Package workers runs the engine's background side: a bounded worker
// pool consuming named jobs, the two rolling-wave tasks and the yearly
// cleanup.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/metrics"
)

// Handler executes one job payload.
type Handler func(ctx context.Context, payload []byte) error

type task struct {
	id      string
	name    string
	payload []byte
}

// Pool is the production Dispatcher: a fixed set of goroutines consuming
// a bounded queue. Enqueueing never blocks; a full queue is a transient
// error the caller may retry.
type Pool struct {
	handlers map[string]Handler
	queue    chan task
	logger   *slog.Logger
	workers  int

	wg sync.WaitGroup
}

func NewPool(workers, queueSize int, logger *slog.Logger) *Pool {
	return &Pool{
		handlers: make(map[string]Handler),
		queue:    make(chan task, queueSize),
		logger:   logger,
		workers:  workers,
	}
}

// Register binds a job name to its handler. Call before Start.
func (p *Pool) Register(name string, h Handler) {
	p.handlers[name] = h
}

// Delay enqueues a named job.
func (p *Pool) Delay(_ context.Context, name string, payload []byte) error {
	if _, ok := p.handlers[name]; !ok {
		return errs.Newf(errs.Internal, "no handler registered for job %q", name)
	}
	select {
	case p.queue <- task{id: uuid.NewString(), name: name, payload: payload}:
		return nil
	default:
		return errs.Newf(errs.Transient, "worker queue full, dropping %q", name)
	}
}

// Start launches the workers. They drain until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t := <-p.queue:
					p.run(ctx, t)
				}
			}
		}()
	}
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, t task) {
	start := time.Now()
	err := p.handlers[t.name](ctx, t.payload)
	metrics.ObserveTask(t.name, start, err)
	if err != nil {
		p.logger.Error("job failed", "job", t.name, "task", t.id, "took", time.Since(start), "err", err)
		return
	}
	p.logger.Debug("job done", "job", t.name, "task", t.id, "took", time.Since(start))
}

// SyncDispatcher runs jobs inline on Delay. Tests use it to drive the
// queue deterministically.
type SyncDispatcher struct {
	handlers map[string]Handler

	mu       sync.Mutex
	Enqueued []string
}

func NewSyncDispatcher() *SyncDispatcher {
	return &SyncDispatcher{handlers: make(map[string]Handler)}
}

func (d *SyncDispatcher) Register(name string, h Handler) {
	d.handlers[name] = h
}

func (d *SyncDispatcher) Delay(ctx context.Context, name string, payload []byte) error {
	d.mu.Lock()
	d.Enqueued = append(d.Enqueued, name)
	d.mu.Unlock()
	h, ok := d.handlers[name]
	if !ok {
		return nil
	}
	return h(ctx, payload)
}
