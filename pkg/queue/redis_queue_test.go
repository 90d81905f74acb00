package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T, cfg Config) *RedisQueue {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	if cfg.Stream == "" {
		cfg.Stream = "test:jobs"
	}
	if cfg.Group == "" {
		cfg.Group = "test-group"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "consumer-1"
	}
	if cfg.Block == 0 {
		cfg.Block = 20 * time.Millisecond
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Millisecond
	}
	q, err := NewRedisQueue(client, cfg)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	return q
}

func waitForStatus(t *testing.T, q *RedisQueue, jobID, status string) Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, ok, err := q.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if ok && job.Status == status {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %q", jobID, status)
	return Job{}
}

func TestRedisQueueEnqueueRequiresKindAndSubject(t *testing.T) {
	q := newTestQueue(t, Config{})
	if _, err := q.Enqueue(context.Background(), "", "user-1"); err == nil {
		t.Fatalf("expected error for empty kind")
	}
	if _, err := q.Enqueue(context.Background(), KindReconcileStats, " "); err == nil {
		t.Fatalf("expected error for empty subject")
	}
}

func TestRedisQueueRunProcessesBacklog(t *testing.T) {
	q := newTestQueue(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, err := q.Enqueue(ctx, KindReconcileStats, "user-1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	got, ok, err := q.GetJob(ctx, job.ID)
	if err != nil || !ok {
		t.Fatalf("get queued job: ok=%v err=%v", ok, err)
	}
	if got.Status != StatusQueued || got.SubjectID != "user-1" {
		t.Fatalf("unexpected queued job: %+v", got)
	}

	seen := make(chan Job, 1)
	done := make(chan error, 1)
	go func() {
		done <- q.Run(ctx, 2, func(_ context.Context, j Job) error {
			seen <- j
			return nil
		})
	}()

	select {
	case j := <-seen:
		if j.Kind != KindReconcileStats || j.SubjectID != "user-1" || j.Attempts != 1 {
			t.Fatalf("unexpected handled job: %+v", j)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("handler was not called")
	}
	waitForStatus(t, q, job.ID, StatusDone)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("run did not stop after cancel")
	}
}

func TestRedisQueueMarksFailedAfterRetries(t *testing.T) {
	q := newTestQueue(t, Config{MaxRetries: 2})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, err := q.Enqueue(ctx, KindReconcileStats, "user-2")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	var calls atomic.Int32
	go func() {
		_ = q.Run(ctx, 1, func(context.Context, Job) error {
			calls.Add(1)
			return errors.New("store unavailable")
		})
	}()

	failed := waitForStatus(t, q, job.ID, StatusFailed)
	if failed.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", failed.Attempts)
	}
	if failed.ErrorMessage != "store unavailable" {
		t.Fatalf("unexpected error message: %q", failed.ErrorMessage)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected handler to run twice, got %d", calls.Load())
	}
}

func TestRedisQueueRequeueAndAckSuccess(t *testing.T) {
	q, ctx, msgID, job := newPendingQueueMessage(t)

	if err := q.requeueAndAck(ctx, msgID, job); err != nil {
		t.Fatalf("requeue and ack: %v", err)
	}

	pending, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 0 {
		t.Fatalf("expected no pending messages, got %d", pending.Count)
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: "consumer-2",
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    0,
	}).Result()
	if err != nil {
		t.Fatalf("read requeued message: %v", err)
	}
	if len(streams) != 1 || len(streams[0].Messages) != 1 {
		t.Fatalf("expected one requeued message, got %+v", streams)
	}
	got := streams[0].Messages[0].Values
	if got["job_id"] != job.ID || got["kind"] != job.Kind || got["subject_id"] != job.SubjectID {
		t.Fatalf("unexpected requeued payload: %+v", got)
	}
}

func TestRedisQueueRequeueAndAckFailureKeepsPendingMessage(t *testing.T) {
	q, ctx, msgID, job := newPendingQueueMessage(t)

	canceledCtx, cancel := context.WithCancel(ctx)
	cancel()
	if err := q.requeueAndAck(canceledCtx, msgID, job); err == nil {
		t.Fatalf("expected requeueAndAck to fail on canceled context")
	}

	pending, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 1 {
		t.Fatalf("expected original message to remain pending, got %d", pending.Count)
	}
	streamLen, err := q.client.XLen(ctx, q.stream).Result()
	if err != nil {
		t.Fatalf("xlen: %v", err)
	}
	if streamLen != 1 {
		t.Fatalf("expected no new message in stream on failure, got len=%d", streamLen)
	}
}

func newPendingQueueMessage(t *testing.T) (*RedisQueue, context.Context, string, Job) {
	t.Helper()
	q := newTestQueue(t, Config{})
	ctx := context.Background()
	if err := q.ensureGroup(ctx); err != nil {
		t.Fatalf("ensure group: %v", err)
	}

	job, err := q.Enqueue(ctx, KindReconcileStats, "user-1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: "consumer-1",
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    0,
	}).Result()
	if err != nil {
		t.Fatalf("readgroup: %v", err)
	}
	if len(streams) != 1 || len(streams[0].Messages) != 1 {
		t.Fatalf("expected one pending message, got %+v", streams)
	}
	return q, ctx, streams[0].Messages[0].ID, job
}
