package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/salmlabs/video-pipeline/internal/models"
)

func TestSchedulerBoundsConcurrency(t *testing.T) {
	s := NewScheduler(1, 4, 100, false, nopLogger{})
	s.Start()
	defer s.Stop()

	var running, peak int32
	job := func(ctx context.Context) (*models.VideoAsset, error) {
		cur := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return &models.VideoAsset{}, nil
	}

	ctx := context.Background()
	var handles []*JobHandle
	for i := 0; i < 3; i++ {
		h, err := s.Submit(ctx, "job", job)
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		handles = append(handles, h)
	}

	start := time.Now()
	for _, h := range handles {
		if _, err := h.Await(ctx); err != nil {
			t.Fatalf("Await: %v", err)
		}
	}
	elapsed := time.Since(start)

	if got := atomic.LoadInt32(&peak); got != 1 {
		t.Errorf("peak concurrency = %d, want 1", got)
	}
	if elapsed < 280*time.Millisecond {
		t.Errorf("three serialized jobs finished in %v, expected about 300ms", elapsed)
	}
}

func TestSchedulerTrySubmitRejectsWhenFull(t *testing.T) {
	s := NewScheduler(1, 1, 100, false, nopLogger{})
	s.Start()
	defer s.Stop()

	release := make(chan struct{})
	blocker := func(ctx context.Context) (*models.VideoAsset, error) {
		<-release
		return nil, nil
	}

	ctx := context.Background()
	// First job occupies the worker, second fills the single queue slot.
	h1, err := s.Submit(ctx, "running", blocker)
	if err != nil {
		t.Fatalf("Submit running: %v", err)
	}
	// Give the worker time to pick the first job up.
	time.Sleep(20 * time.Millisecond)
	h2, err := s.Submit(ctx, "queued", blocker)
	if err != nil {
		t.Fatalf("Submit queued: %v", err)
	}

	if _, err := s.TrySubmit(ctx, "rejected", blocker); !errors.Is(err, ErrTooManyJobs) {
		t.Errorf("TrySubmit on full queue = %v, want ErrTooManyJobs", err)
	}

	close(release)
	if _, err := h1.Await(ctx); err != nil {
		t.Errorf("Await running: %v", err)
	}
	if _, err := h2.Await(ctx); err != nil {
		t.Errorf("Await queued: %v", err)
	}
}

func TestSchedulerSubmitBlocksUntilCallerGivesUp(t *testing.T) {
	s := NewScheduler(1, 0, 100, false, nopLogger{})
	s.Start()
	defer s.Stop()

	release := make(chan struct{})
	defer close(release)
	blocker := func(ctx context.Context) (*models.VideoAsset, error) {
		<-release
		return nil, nil
	}

	if _, err := s.Submit(context.Background(), "running", blocker); err != nil {
		t.Fatalf("Submit running: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := s.Submit(ctx, "blocked", blocker); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("blocked Submit = %v, want DeadlineExceeded", err)
	}
}

func TestSchedulerAwaitCancellation(t *testing.T) {
	s := NewScheduler(1, 1, 100, false, nopLogger{})
	s.Start()
	defer s.Stop()

	started := make(chan struct{})
	var once sync.Once
	job := func(ctx context.Context) (*models.VideoAsset, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return nil, ctx.Err()
	}

	h, err := s.Submit(context.Background(), "cancelled", job)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := h.Await(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Await after cancellation = %v, want context.Canceled", err)
	}

	// The slot must be free again for the next job.
	h2, err := s.Submit(context.Background(), "next", func(ctx context.Context) (*models.VideoAsset, error) {
		return &models.VideoAsset{}, nil
	})
	if err != nil {
		t.Fatalf("Submit next: %v", err)
	}
	awaitCtx, awaitCancel := context.WithTimeout(context.Background(), time.Second)
	defer awaitCancel()
	if _, err := h2.Await(awaitCtx); err != nil {
		t.Errorf("slot did not free after cancellation: %v", err)
	}
}

func TestSchedulerQueuedJobResolvesOnCancel(t *testing.T) {
	s := NewScheduler(1, 2, 100, false, nopLogger{})
	s.Start()
	defer s.Stop()

	release := make(chan struct{})
	defer close(release)
	blocker := func(ctx context.Context) (*models.VideoAsset, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	}

	if _, err := s.Submit(context.Background(), "running", blocker); err != nil {
		t.Fatalf("Submit running: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	h, err := s.Submit(ctx, "queued", blocker)
	if err != nil {
		t.Fatalf("Submit queued: %v", err)
	}
	cancel()

	// The handle must resolve without waiting for the running job.
	start := time.Now()
	awaitCtx, awaitCancel := context.WithTimeout(context.Background(), time.Second)
	defer awaitCancel()
	if _, err := h.Await(awaitCtx); !errors.Is(err, context.Canceled) {
		t.Errorf("Await of cancelled queued job = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("cancelled queued job took %v to resolve", elapsed)
	}
}

func TestSchedulerStopResolvesQueuedJobs(t *testing.T) {
	s := NewScheduler(1, 2, 100, false, nopLogger{})
	s.Start()

	release := make(chan struct{})
	blocker := func(ctx context.Context) (*models.VideoAsset, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	}

	if _, err := s.Submit(context.Background(), "running", blocker); err != nil {
		t.Fatalf("Submit running: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	h, err := s.Submit(context.Background(), "queued", blocker)
	if err != nil {
		t.Fatalf("Submit queued: %v", err)
	}

	close(release)
	s.Stop()

	select {
	case <-h.done:
	default:
		t.Fatal("queued handle unresolved after Stop")
	}
	// The entry either ran before shutdown finished or was drained.
	if _, err := h.Await(context.Background()); err != nil && !errors.Is(err, ErrSchedulerStopped) {
		t.Errorf("Await after Stop = %v", err)
	}

	if _, err := s.Submit(context.Background(), "late", blocker); !errors.Is(err, ErrSchedulerStopped) {
		t.Errorf("Submit after Stop = %v, want ErrSchedulerStopped", err)
	}
	if _, err := s.TrySubmit(context.Background(), "late", blocker); !errors.Is(err, ErrSchedulerStopped) {
		t.Errorf("TrySubmit after Stop = %v, want ErrSchedulerStopped", err)
	}
}

func TestSchedulerRejectWhenFullPolicy(t *testing.T) {
	s := NewScheduler(1, 0, 100, true, nopLogger{})
	s.Start()
	defer s.Stop()

	release := make(chan struct{})
	defer close(release)
	blocker := func(ctx context.Context) (*models.VideoAsset, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	}

	if _, err := s.Submit(context.Background(), "running", blocker); err != nil {
		t.Fatalf("Submit running: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if _, err := s.Submit(context.Background(), "rejected", blocker); !errors.Is(err, ErrTooManyJobs) {
		t.Errorf("Submit under reject policy = %v, want ErrTooManyJobs", err)
	}
}
