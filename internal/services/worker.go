package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cvmatcher/backend/internal/logger"
	"cvmatcher/backend/internal/repositories"
)

type Worker interface {
	Start(ctx context.Context)
	Stop()
	EnqueueJob(runID uuid.UUID)
}

type worker struct {
	evalRepo     repositories.EvaluationRepository
	runner       EvaluationRunner
	jobQueue     chan uuid.UUID
	concurrency  int
	pollInterval time.Duration
	wg           sync.WaitGroup
	stopChan     chan struct{}
	stopOnce     sync.Once
	startedAt    time.Time
	log          *zap.Logger
}

func NewWorker(
	evalRepo repositories.EvaluationRepository,
	runner EvaluationRunner,
	concurrency int,
	pollInterval time.Duration,
	log *zap.Logger,
) Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	return &worker{
		evalRepo:     evalRepo,
		runner:       runner,
		jobQueue:     make(chan uuid.UUID, 100),
		concurrency:  concurrency,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		startedAt:    time.Now(),
		log:          logger.OrNop(log),
	}
}

// Start requeues runs left in processing by a previous process before
// the workers begin, so a crash or kill never strands a run.
func (w *worker) Start(ctx context.Context) {
	if n, err := w.evalRepo.RequeueStale(w.startedAt); err != nil {
		w.log.Warn("Failed to requeue stale evaluation runs", zap.Error(err))
	} else if n > 0 {
		w.log.Info("Requeued stale evaluation runs", zap.Int64("count", n))
	}

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(ctx, i+1)
	}

	w.wg.Add(1)
	go w.pollPendingJobs(ctx)

	w.log.Info("Evaluation worker started", zap.Int("concurrency", w.concurrency))
}

func (w *worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.log.Info("Evaluation worker stopped")
}

// EnqueueJob blocks while the queue is full and drops the job once the
// worker is stopping; the poller picks it up again after a restart.
func (w *worker) EnqueueJob(runID uuid.UUID) {
	select {
	case w.jobQueue <- runID:
		w.log.Debug("Evaluation run enqueued", zap.String("run_id", runID.String()))
	case <-w.stopChan:
		w.log.Warn("Worker stopped, cannot enqueue run", zap.String("run_id", runID.String()))
	}
}

func (w *worker) processJobs(ctx context.Context, workerID int) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case runID := <-w.jobQueue:
			log := w.log.With(zap.Int("worker", workerID), zap.String("run_id", runID.String()))
			if err := w.runner.Run(ctx, runID); err != nil {
				log.Error("Evaluation run failed", zap.Error(err))
			}
		}
	}
}

func (w *worker) pollPendingJobs(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			pending, err := w.evalRepo.FindPendingRuns(10)
			if err != nil {
				w.log.Warn("Failed to fetch pending evaluation runs", zap.Error(err))
				continue
			}
			if len(pending) > 0 {
				w.log.Info("Re-enqueueing pending evaluation runs", zap.Int("count", len(pending)))
			}
			for _, run := range pending {
				w.EnqueueJob(run.ID)
			}
		}
	}
}
