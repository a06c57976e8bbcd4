package workerpool

import (
	"context"
	"fmt"
	"time"

	cerrors "github.com/vnykmshr/coalesce/pkg/common/errors"
	"github.com/vnykmshr/coalesce/pkg/common/validation"
)

// Submit adds a task to the pool for execution.
func (p *workerPool) Submit(task Task) error {
	return p.SubmitWithContext(context.Background(), task)
}

// SubmitWithContext adds a task to the pool, giving up when ctx is done.
func (p *workerPool) SubmitWithContext(ctx context.Context, task Task) error {
	if err := validation.ValidateNotNil("workerpool", "task", task); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	// Hold the read lock while sending so Shutdown cannot close the
	// queues underneath us.
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.isShutdown {
		return cerrors.NewOperationError("workerpool", "Submit", cerrors.ErrClosed)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("cannot submit task: %w", ctx.Err())
	default:
	}

	select {
	case p.handoff <- task:
	case p.taskQueue <- task:
	case <-p.shutdownCh:
		return cerrors.NewOperationError("workerpool", "Submit", cerrors.ErrClosed)
	case <-ctx.Done():
		return fmt.Errorf("cannot submit task: %w", ctx.Err())
	}
	p.countSubmitted()
	return nil
}

// TrySubmit hands task to a worker that is idle right now.
func (p *workerPool) TrySubmit(task Task) bool {
	if task == nil {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.isShutdown {
		return false
	}

	select {
	case p.handoff <- task:
		p.countSubmitted()
		return true
	default:
		return false
	}
}

func (p *workerPool) countSubmitted() {
	p.totalSubmitted.Add(1)
}

// Shutdown initiates a graceful shutdown of the pool.
func (p *workerPool) Shutdown() <-chan struct{} {
	p.shutdownOnce.Do(func() {
		close(p.shutdownCh)

		p.mu.Lock()
		p.isShutdown = true
		p.mu.Unlock()
		close(p.stopCh)

		go func() {
			p.workerWg.Wait()
			p.logger.Debug().Int("workers", p.config.WorkerCount).Msg("worker pool stopped")
			close(p.done)
		}()
	})

	return p.done
}

// Size returns the number of workers in the pool.
func (p *workerPool) Size() int {
	return p.config.WorkerCount
}

// QueueSize returns the current number of queued tasks waiting for execution.
func (p *workerPool) QueueSize() int {
	return len(p.taskQueue)
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (p *workerPool) ActiveWorkers() int {
	return int(p.activeWorkers.Load())
}

// TotalSubmitted returns the total number of tasks accepted by the pool.
func (p *workerPool) TotalSubmitted() int64 {
	return p.totalSubmitted.Load()
}

// TotalCompleted returns the total number of tasks that finished.
func (p *workerPool) TotalCompleted() int64 {
	return p.totalCompleted.Load()
}

// run is the main loop for a worker.
func (w *worker) run() {
	defer w.pool.workerWg.Done()

	for {
		select {
		case task := <-w.pool.handoff:
			w.executeTask(task)
		case task := <-w.pool.taskQueue:
			w.executeTask(task)
		case <-w.pool.stopCh:
			// Drain whatever was queued before shutdown.
			for {
				select {
				case task := <-w.pool.taskQueue:
					w.executeTask(task)
				default:
					return
				}
			}
		}
	}
}

// executeTask executes a single task and reports its result.
func (w *worker) executeTask(task Task) {
	p := w.pool
	start := time.Now()
	p.activeWorkers.Add(1)

	var err error
	returned := false
	defer func() {
		p.activeWorkers.Add(-1)
		p.totalCompleted.Add(1)

		if !returned {
			if p.config.PanicHandler == nil {
				// Let the panic continue unwinding.
				return
			}
			r := recover()
			err = fmt.Errorf("task panicked: %v", r)
			p.config.PanicHandler(task, r)
		}

		if p.config.OnTaskComplete != nil {
			p.config.OnTaskComplete(Result{
				Task:     task,
				Error:    err,
				Duration: time.Since(start),
				WorkerID: w.id,
			})
		}
	}()

	err = task.Execute(context.Background())
	returned = true
}
