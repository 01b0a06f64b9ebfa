package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/zenview/internal/catalog"
	"github.com/dgallion1/zenview/internal/config"
	"github.com/dgallion1/zenview/internal/source"
)

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("pipeline stopped")

// Orchestrator loads documents in the background and caches the prepared
// result per slug.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	loader *source.Loader
	log    *slog.Logger
	cfg    config.Config

	mu      sync.Mutex
	stopped bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, loader *source.Loader, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:   NewJobStore(cfg.DocTTL),
		queue:  make(chan *Job, cfg.MaxQueueSize),
		loader: loader,
		log:    log,
		cfg:    cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.loader, o.log, o.cfg.WordThreshold)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline. Jobs still queued are failed.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	for job := range o.queue {
		job.AddError(ErrStopped.Error())
		job.Finish(nil)
	}
}

// Submit queues a load for entry. A job already in flight or ready for the
// same slug is returned instead of starting another.
func (o *Orchestrator) Submit(entry catalog.Entry) (*Job, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return nil, ErrStopped
	}
	if existing := o.jobs.Get(entry.Slug); existing != nil && existing.Snapshot().Status != StatusFailed {
		return existing, nil
	}

	job := NewJob(entry)
	select {
	case o.queue <- job:
		o.jobs.Put(job)
		return job, nil
	default:
		job.AddError("queue_full")
		job.Finish(nil)
		return nil, fmt.Errorf("load queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// Ensure returns the prepared document for entry, loading it if needed and
// waiting until it is ready or ctx ends.
func (o *Orchestrator) Ensure(ctx context.Context, entry catalog.Entry) (*Prepared, error) {
	job, err := o.Submit(entry)
	if err != nil {
		return nil, err
	}
	select {
	case <-job.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res := job.Result(); res != nil {
		return res, nil
	}
	return nil, fmt.Errorf("load %s failed: %v", entry.Slug, job.Snapshot().Errors)
}

// Preload queues every catalog document so the first request is served from cache.
func (o *Orchestrator) Preload(c *catalog.Catalog) error {
	var errs []error
	for _, e := range c.Documents {
		if _, err := o.Submit(e); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Slug, err))
		}
	}
	return errors.Join(errs...)
}

// Invalidate drops the cached document for slug.
func (o *Orchestrator) Invalidate(slug string) {
	o.jobs.Delete(slug)
}

// GetJob returns the latest job for a slug.
func (o *Orchestrator) GetJob(slug string) *Job {
	return o.jobs.Get(slug)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Cached returns the number of cached documents.
func (o *Orchestrator) Cached() int {
	return o.jobs.Len()
}
