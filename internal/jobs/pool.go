package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hireflow/interview-core/internal/config"
	"github.com/hireflow/interview-core/internal/core"
	"github.com/hireflow/interview-core/internal/storage"
)

// Pool polls the task table for due work and fans it out to a fixed set of
// worker goroutines. Claims carry a lease; a worker that dies mid-task simply
// lets the lease lapse and the task becomes claimable again.
type Pool struct {
	store  storage.Store
	runner *Runner
	clock  core.Clock
	cfg    config.WorkerConfig
	logger *slog.Logger

	taskQueue chan core.Task
	wg        sync.WaitGroup
	cancel    context.CancelFunc
}

// NewPool initializes a worker pool. If MaxWorkers is 0 or negative, it
// defaults to 1.
func NewPool(store storage.Store, runner *Runner, clock core.Clock, cfg config.WorkerConfig, logger *slog.Logger) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Pool{
		store:     store,
		runner:    runner,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
		taskQueue: make(chan core.Task, cfg.ClaimLimit),
	}
}

// Start launches the workers and the claim loop. It returns immediately.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	for i := range p.cfg.MaxWorkers {
		p.wg.Add(1)
		go p.startWorker(ctx, i)
	}

	p.wg.Add(1)
	go p.claimLoop(ctx)
}

// startWorker processes tasks from the queue until the pool is stopped.
func (p *Pool) startWorker(ctx context.Context, workerID int) {
	defer p.wg.Done()
	p.logger.Info("starting task worker", "id", workerID)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutting down task worker", "id", workerID)
			return
		case task := <-p.taskQueue:
			p.logger.Info("worker processing task",
				"worker_id", workerID,
				"task_id", task.ID,
				"kind", task.Kind,
			)
			p.runner.Process(ctx, task)
		}
	}
}

// claimLoop periodically leases due tasks and queues them for the workers.
func (p *Pool) claimLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.claimOnce(ctx)
		}
	}
}

func (p *Pool) claimOnce(ctx context.Context) {
	tasks, err := p.store.ClaimDueTasks(ctx, p.clock.Now(), p.cfg.LeaseDuration, p.cfg.ClaimLimit)
	if err != nil {
		p.logger.Error("failed to claim due tasks", "error", err)
		return
	}
	for _, task := range tasks {
		select {
		case p.taskQueue <- task:
		case <-ctx.Done():
			return
		}
	}
}

// Stop shuts the pool down and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	p.logger.Info("stopping worker pool and waiting for tasks to finish")
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("all task workers have finished")
}
