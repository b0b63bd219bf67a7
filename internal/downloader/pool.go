package downloader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"seedharvest/pkg/logger"
)

// Job is one catalog item handed to a worker
type Job struct {
	ID    string
	Title string
	Page  int
}

// Result is what a worker reports for a job
type Result struct {
	Job      Job
	Outcome  string
	Error    error
	Duration time.Duration
}

// Handler processes a single job
type Handler func(job Job) Result

// WorkerPool runs jobs on a fixed number of workers. Once its context is
// cancelled no queued job is started; jobs already running finish.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	handler     Handler
	logger      logger.Logger
	dropped     atomic.Int64
	stopOnce    sync.Once
}

// NewWorkerPool creates a pool that stops taking jobs when ctx is done
func NewWorkerPool(ctx context.Context, numWorkers int, handler Handler, log logger.Logger) *WorkerPool {
	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2), // Buffer size = 2x workers
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		handler:     handler,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue and waits for every worker to return. The result
// channel is closed afterwards, so Results must be drained concurrently.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.jobQueue)
		wp.wg.Wait()
		close(wp.resultQueue)

		wp.logger.DebugWithFields("Worker pool stopped", map[string]interface{}{
			"dropped": wp.dropped.Load(),
		})
	})
}

// Submit adds a job to the queue, blocking while the queue is full
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	default:
	}

	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"item_id": job.ID,
			"page":    job.Page,
		})
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel for consuming job results
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		if wp.ctx.Err() != nil {
			wp.dropped.Add(1)
			wp.logger.DebugWithFields("Dropping queued job", map[string]interface{}{
				"worker_id": id,
				"item_id":   job.ID,
			})
			continue
		}

		start := time.Now()
		result := wp.handler(job)
		result.Job = job
		result.Duration = time.Since(start)

		wp.resultQueue <- result
	}
}

// Dropped returns how many queued jobs were never started
func (wp *WorkerPool) Dropped() int {
	return int(wp.dropped.Load())
}

// GetQueueSize returns the current number of jobs in the queue
func (wp *WorkerPool) GetQueueSize() int {
	return len(wp.jobQueue)
}

// GetActiveWorkers returns the number of workers
func (wp *WorkerPool) GetActiveWorkers() int {
	return wp.numWorkers
}
