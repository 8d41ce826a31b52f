package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cvmatcher/backend/internal/models"
	"cvmatcher/backend/internal/repositories"
)

type countingRunner struct {
	mu   sync.Mutex
	seen map[uuid.UUID]int
	done chan uuid.UUID
}

func (r *countingRunner) Run(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	r.seen[id]++
	r.mu.Unlock()
	select {
	case r.done <- id:
	default:
	}
	return nil
}

func TestWorkerProcessesEnqueuedRuns(t *testing.T) {
	db := newTestDB(t)
	runner := &countingRunner{seen: map[uuid.UUID]int{}, done: make(chan uuid.UUID, 10)}
	w := NewWorker(repositories.NewEvaluationRepository(db), runner, 2, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		w.EnqueueJob(id)
	}

	got := map[uuid.UUID]bool{}
	for range ids {
		select {
		case id := <-runner.done:
			got[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for runs")
		}
	}
	assert.Len(t, got, 3)
}

func TestWorkerPollsQueuedRuns(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewEvaluationRepository(db)
	run := &models.EvaluationRun{OwnerID: 1, DatasetKey: "k", CVColumn: "cv", JDColumn: "jd", LabelColumn: "l", Threshold: 0.5, Status: models.StatusQueued}
	require.NoError(t, repo.Create(run))

	runner := &countingRunner{seen: map[uuid.UUID]int{}, done: make(chan uuid.UUID, 10)}
	w := NewWorker(repo, runner, 1, 20*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	select {
	case id := <-runner.done:
		assert.Equal(t, run.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not pick up the queued run")
	}
}

func TestWorkerRequeuesStrandedRuns(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewEvaluationRepository(db)
	run := &models.EvaluationRun{OwnerID: 1, DatasetKey: "k", CVColumn: "cv", JDColumn: "jd", LabelColumn: "l", Threshold: 0.5, Status: models.StatusProcessing}
	require.NoError(t, repo.Create(run))
	time.Sleep(5 * time.Millisecond)

	runner := &countingRunner{seen: map[uuid.UUID]int{}, done: make(chan uuid.UUID, 10)}
	w := NewWorker(repo, runner, 1, 20*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	stored, err := repo.FindByID(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, stored.Status)

	select {
	case id := <-runner.done:
		assert.Equal(t, run.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("stranded run was not picked up again")
	}
}

func TestWorkerStopIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	w := NewWorker(repositories.NewEvaluationRepository(db), &countingRunner{seen: map[uuid.UUID]int{}, done: make(chan uuid.UUID, 1)}, 1, time.Hour, zap.NewNop())
	w.Start(context.Background())

	w.Stop()
	w.Stop()
	// enqueue after stop must not block
	w.EnqueueJob(uuid.New())
}
