package jobs_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	dbfs "github.com/garnizeh/simplymeet/db"
	"github.com/garnizeh/simplymeet/internal/db"
	"github.com/garnizeh/simplymeet/internal/jobs"
)

func newRepo(t *testing.T) *jobs.Repository {
	t.Helper()
	ctx := context.Background()
	// shared in-memory DB per test so pooled connections see the same schema
	name := strings.ReplaceAll(t.Name(), "/", "_")
	d, err := db.New(ctx, "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if err := db.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return jobs.NewRepository(d)
}

func TestEnqueueAndProcess(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	handled := make(chan string, 1)
	handlers := map[string]jobs.Handler{
		"test": func(ctx context.Context, j *jobs.Job) error {
			handled <- string(j.Payload)
			return nil
		},
	}
	pool := jobs.NewWorkerPool(repo, handlers, slog.Default(), 1)
	pool.SetPollInterval(20 * time.Millisecond)
	pool.Start(ctx)
	defer pool.Stop()

	if _, err := pool.Enqueue(ctx, "test", map[string]string{"foo": "bar"}, 10, 3); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case payload := <-handled:
		if payload != `{"foo":"bar"}` {
			t.Fatalf("unexpected payload %s", payload)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("handler was not called")
	}
}

func TestFetchNext_RespectsScheduleAndClaims(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	if _, err := repo.Enqueue(ctx, &jobs.Job{Key: "later", Type: "t", Payload: []byte(`{}`), ScheduledAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("enqueue later: %v", err)
	}
	if _, err := repo.Enqueue(ctx, &jobs.Job{Key: "now", Type: "t", Payload: []byte(`{}`), ScheduledAt: time.Now().Add(-time.Second)}); err != nil {
		t.Fatalf("enqueue now: %v", err)
	}

	j, err := repo.FetchNext(ctx)
	if err != nil || j == nil {
		t.Fatalf("FetchNext: %v %v", j, err)
	}
	if j.Key != "now" || j.Status != jobs.StatusRunning {
		t.Fatalf("unexpected job %#v", j)
	}

	// the claimed job is not handed out twice and the future one is not due
	j, err = repo.FetchNext(ctx)
	if err != nil || j != nil {
		t.Fatalf("expected no due job, got %#v, %v", j, err)
	}
}

func TestEnqueue_DuplicateKey(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	if _, err := repo.Enqueue(ctx, &jobs.Job{Key: "k", Type: "t"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := repo.Enqueue(ctx, &jobs.Job{Key: "k", Type: "t"}); !errors.Is(err, jobs.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestListPendingAndCancel(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	base := time.Now().Add(time.Hour)
	for i, key := range []string{"b", "a", "c"} {
		j := &jobs.Job{Key: key, Type: "reminder", Payload: []byte(`{}`), ScheduledAt: base.Add(time.Duration(i) * time.Minute)}
		if _, err := repo.Enqueue(ctx, j); err != nil {
			t.Fatalf("enqueue %s: %v", key, err)
		}
	}
	if _, err := repo.Enqueue(ctx, &jobs.Job{Key: "other", Type: "other", ScheduledAt: base}); err != nil {
		t.Fatalf("enqueue other: %v", err)
	}

	pending, err := repo.ListPending(ctx, "reminder")
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 3 || pending[0].Key != "b" || pending[2].Key != "c" {
		t.Fatalf("unexpected pending list: %d", len(pending))
	}

	ok, err := repo.Cancel(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("Cancel: %v %v", ok, err)
	}
	ok, err = repo.Cancel(ctx, "a")
	if err != nil || ok {
		t.Fatalf("second cancel should report nothing canceled: %v %v", ok, err)
	}

	pending, _ = repo.ListPending(ctx, "reminder")
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending after cancel, got %d", len(pending))
	}
	j, err := repo.Get(ctx, "a")
	if err != nil || j.Status != jobs.StatusCanceled {
		t.Fatalf("expected canceled job, got %#v %v", j, err)
	}
}

func TestWorker_RetryThenDeadLetter(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	var calls int32
	handlers := map[string]jobs.Handler{
		"flaky": func(ctx context.Context, j *jobs.Job) error {
			atomic.AddInt32(&calls, 1)
			return errors.New("sink down")
		},
	}
	pool := jobs.NewWorkerPool(repo, handlers, slog.Default(), 1)
	pool.SetPollInterval(10 * time.Millisecond)
	pool.Start(ctx)
	defer pool.Stop()

	// a single attempt goes straight to the dead letter table
	if _, err := repo.Enqueue(ctx, &jobs.Job{Key: "x", Type: "flaky", MaxAttempts: 1}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		n, err := repo.DeadLetterCount(ctx, "flaky")
		if err == nil && n == 1 {
			if atomic.LoadInt32(&calls) != 1 {
				t.Fatalf("expected exactly one handler call, got %d", calls)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job was not dead-lettered in time")
}

func TestWorker_UnknownTypeIsDeadLettered(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	pool := jobs.NewWorkerPool(repo, map[string]jobs.Handler{}, nil, 1)
	pool.SetPollInterval(10 * time.Millisecond)
	pool.Start(ctx)
	defer pool.Stop()

	if _, err := repo.Enqueue(ctx, &jobs.Job{Type: "mystery"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if n, _ := repo.DeadLetterCount(ctx, "mystery"); n == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("unknown job type was not dead-lettered")
}

func TestPurgeFinished(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	if _, err := repo.Enqueue(ctx, &jobs.Job{Key: "gone", Type: "t", ScheduledAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := repo.Cancel(ctx, "gone"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	n, err := repo.PurgeFinished(ctx, time.Now().Add(time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("PurgeFinished = %d, %v", n, err)
	}
}

func TestBackoffDuration(t *testing.T) {
	if jobs.BackoffDuration(0) != time.Second || jobs.BackoffDuration(1) != 2*time.Second {
		t.Fatalf("unexpected small backoffs")
	}
	if jobs.BackoffDuration(40) != 5*time.Minute {
		t.Fatalf("expected capped backoff")
	}
}
