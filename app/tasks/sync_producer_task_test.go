package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/bupcache/bupcache/app/feed"
	"github.com/bupcache/bupcache/app/history"
	"github.com/bupcache/bupcache/app/producer"
)

type mockSyncer struct {
	result feed.SyncResult
	err    error
	synced []string
}

func (m *mockSyncer) Sync(_ context.Context, p *producer.Config) (feed.SyncResult, error) {
	m.synced = append(m.synced, p.UID)
	return m.result, m.err
}

type mockRunRecorder struct {
	runs []history.SyncRun
	err  error
}

func (m *mockRunRecorder) RecordRun(run history.SyncRun) error {
	m.runs = append(m.runs, run)
	return m.err
}

func testProducerConfig(uid string) *producer.Config {
	return &producer.Config{Name: "test", UID: uid}
}

func TestSyncProducerTaskExecute(t *testing.T) {
	syncer := &mockSyncer{result: feed.SyncResult{NewItems: 2, Downloads: 4}}
	recorder := &mockRunRecorder{}
	task := NewSyncProducerTask(testProducerConfig("12345"), syncer, recorder)

	if task.GetID() == "" {
		t.Error("Expected a generated task ID")
	}
	if task.GetType() != TaskTypeSyncProducer {
		t.Errorf("Unexpected task type: %s", task.GetType())
	}

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(syncer.synced) != 1 || syncer.synced[0] != "12345" {
		t.Errorf("Expected one sync of producer 12345, got %v", syncer.synced)
	}
	if len(recorder.runs) != 1 {
		t.Fatalf("Expected 1 recorded run, got %d", len(recorder.runs))
	}

	run := recorder.runs[0]
	if run.Status != history.StatusOK {
		t.Errorf("Expected ok status, got %s", run.Status)
	}
	if run.NewItems != 2 || run.Downloads != 4 {
		t.Errorf("Run counters lost: %+v", run)
	}
	if run.FinishedAt.Before(run.StartedAt) {
		t.Error("Run finished before it started")
	}
}

func TestSyncProducerTaskExecuteRecordsFailure(t *testing.T) {
	syncer := &mockSyncer{err: errors.New("page fetch failed")}
	recorder := &mockRunRecorder{}
	task := NewSyncProducerTask(testProducerConfig("12345"), syncer, recorder)

	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected error from failed sync")
	}

	if len(recorder.runs) != 1 {
		t.Fatalf("Expected failed run to be recorded, got %d runs", len(recorder.runs))
	}
	if recorder.runs[0].Status != history.StatusError {
		t.Errorf("Expected error status, got %s", recorder.runs[0].Status)
	}
	if recorder.runs[0].Error == "" {
		t.Error("Expected error text to be recorded")
	}
}

func TestSyncProducerTaskExecuteCancelled(t *testing.T) {
	syncer := &mockSyncer{}
	recorder := &mockRunRecorder{}
	task := NewSyncProducerTask(testProducerConfig("12345"), syncer, recorder)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := task.Execute(ctx); err == nil {
		t.Fatal("Expected context error")
	}
	if len(syncer.synced) != 0 {
		t.Error("Sync must not run under a cancelled context")
	}
}

func TestTaskRetryBookkeeping(t *testing.T) {
	task := NewTask(TaskTypeSyncProducer, "12345")

	if !task.CanRetry() {
		t.Error("Fresh task must be retryable")
	}
	for i := 0; i < DefaultMaxRetries; i++ {
		task.IncrementRetryCount()
	}
	if task.CanRetry() {
		t.Error("Task must not be retryable past the maximum")
	}
	if task.GetRetryCount() != DefaultMaxRetries {
		t.Errorf("Expected retry count %d, got %d", DefaultMaxRetries, task.GetRetryCount())
	}
}
