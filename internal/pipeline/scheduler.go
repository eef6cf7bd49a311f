package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/salmlabs/video-pipeline/internal/models"
	"github.com/salmlabs/video-pipeline/pkg/logger"
	"github.com/salmlabs/video-pipeline/pkg/utils"
)

// EncodeFunc is the unit of work a job runs inside a pool slot. It
// must honor ctx cancellation promptly (subprocesses are started with
// CommandContext, so cancellation kills them).
type EncodeFunc func(ctx context.Context) (*models.VideoAsset, error)

// JobHandle is the caller's view of a submitted job: await completion
// or cancel it. Cancelling a running job terminates the subprocess and
// frees the pool slot; cancelling a still-queued job resolves the
// handle without waiting for a worker to reach it.
type JobHandle struct {
	JobID  string
	done   chan struct{}
	asset  *models.VideoAsset
	err    error
	cancel context.CancelFunc
}

// Await blocks until the job reaches a terminal state. If ctx expires
// first the job is cancelled and Await waits for the handle to
// resolve, so cancellation cannot leak a worker.
func (h *JobHandle) Await(ctx context.Context) (*models.VideoAsset, error) {
	select {
	case <-h.done:
	case <-ctx.Done():
		h.cancel()
		<-h.done
	}
	return h.asset, h.err
}

func (h *JobHandle) Cancel() {
	h.cancel()
}

// queuedJob is one channel entry. claimed arbitrates between the
// worker that dequeues the entry and the watcher that resolves it on
// cancellation; exactly one of them completes the handle.
type queuedJob struct {
	ctx     context.Context
	run     EncodeFunc
	handle  *JobHandle
	claimed atomic.Bool
}

func (q *queuedJob) claim() bool {
	return q.claimed.CompareAndSwap(false, true)
}

// Scheduler is the shared, bounded worker pool that admits encode
// work. It decouples in-flight HTTP requests from simultaneous
// transcodes: once the queue bound is reached, submission either
// blocks or rejects with ErrTooManyJobs, per the configured policy.
type Scheduler struct {
	jobs           chan *queuedJob
	quit           chan struct{}
	wg             sync.WaitGroup
	workerCount    int
	maxCPUUsage    float64
	rejectWhenFull bool
	logger         logger.Logger
}

func NewScheduler(workerCount, queueSize int, maxCPUUsage float64, rejectWhenFull bool, log logger.Logger) *Scheduler {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Scheduler{
		jobs:           make(chan *queuedJob, queueSize),
		quit:           make(chan struct{}),
		workerCount:    workerCount,
		maxCPUUsage:    maxCPUUsage,
		rejectWhenFull: rejectWhenFull,
		logger:         log,
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Stop waits for running jobs to finish, then fails every job still
// sitting in the queue so no handle is left unresolved.
func (s *Scheduler) Stop() {
	close(s.quit)
	s.wg.Wait()
	for {
		select {
		case q := <-s.jobs:
			if q.claim() {
				q.handle.err = ErrSchedulerStopped
				close(q.handle.done)
			}
		default:
			return
		}
	}
}

// Submit enqueues work under the configured backpressure policy:
// blocking (returning ctx.Err() if the caller gives up waiting) or
// rejecting with ErrTooManyJobs when the queue is full.
func (s *Scheduler) Submit(ctx context.Context, jobID string, run EncodeFunc) (*JobHandle, error) {
	if s.rejectWhenFull {
		return s.TrySubmit(ctx, jobID, run)
	}
	select {
	case <-s.quit:
		return nil, ErrSchedulerStopped
	default:
	}
	q := s.newQueuedJob(ctx, jobID, run)
	select {
	case s.jobs <- q:
		return q.handle, nil
	case <-ctx.Done():
		q.handle.cancel()
		return nil, ctx.Err()
	case <-s.quit:
		q.handle.cancel()
		return nil, ErrSchedulerStopped
	}
}

// TrySubmit is the rejecting variant: a full queue yields
// ErrTooManyJobs immediately instead of blocking.
func (s *Scheduler) TrySubmit(ctx context.Context, jobID string, run EncodeFunc) (*JobHandle, error) {
	select {
	case <-s.quit:
		return nil, ErrSchedulerStopped
	default:
	}
	q := s.newQueuedJob(ctx, jobID, run)
	select {
	case s.jobs <- q:
		return q.handle, nil
	default:
		q.handle.cancel()
		return nil, ErrTooManyJobs
	}
}

func (s *Scheduler) newQueuedJob(ctx context.Context, jobID string, run EncodeFunc) *queuedJob {
	jobCtx, cancel := context.WithCancel(ctx)
	handle := &JobHandle{
		JobID:  jobID,
		done:   make(chan struct{}),
		cancel: cancel,
	}
	q := &queuedJob{ctx: jobCtx, run: run, handle: handle}

	// Resolve the handle as soon as the job is cancelled while still
	// queued; the worker that later dequeues it sees the claim and
	// skips the entry.
	go func() {
		select {
		case <-jobCtx.Done():
			if q.claim() {
				handle.err = jobCtx.Err()
				close(handle.done)
			}
		case <-handle.done:
		}
	}()
	return q
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case q := <-s.jobs:
			s.runJob(id, q)
		case <-s.quit:
			return
		}
	}
}

func (s *Scheduler) runJob(workerID int, q *queuedJob) {
	if !q.claim() {
		return
	}
	defer q.handle.cancel()
	defer close(q.handle.done)

	if err := q.ctx.Err(); err != nil {
		q.handle.err = err
		return
	}

	if ok, usage := utils.CheckCPUUsage(s.maxCPUUsage); !ok {
		s.logger.Warnf("worker %d: CPU usage is high (%.1f%%), job %s will run anyway", workerID, usage, q.handle.JobID)
	}

	q.handle.asset, q.handle.err = q.run(q.ctx)
}
