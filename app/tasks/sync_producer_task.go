package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bupcache/bupcache/app/history"
	"github.com/bupcache/bupcache/app/producer"
)

type SyncProducerTask struct {
	Task
	ProducerConfig *producer.Config
	syncer         Syncer
	runs           RunRecorder
}

func NewSyncProducerTask(producerConfig *producer.Config, syncer Syncer, runs RunRecorder) *SyncProducerTask {
	return &SyncProducerTask{
		Task:           NewTask(TaskTypeSyncProducer, producerConfig.UID),
		ProducerConfig: producerConfig,
		syncer:         syncer,
		runs:           runs,
	}
}

func (t *SyncProducerTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	startedAt := time.Now().UTC()
	result, err := t.syncer.Sync(ctx, t.ProducerConfig)

	run := history.SyncRun{
		ProducerUID: t.ProducerUID,
		StartedAt:   startedAt,
		FinishedAt:  time.Now().UTC(),
		NewItems:    result.NewItems,
		Downloads:   result.Downloads,
		Status:      history.StatusOK,
	}
	if err != nil {
		run.Status = history.StatusError
		run.Error = err.Error()
	}
	if recErr := t.runs.RecordRun(run); recErr != nil {
		slog.Warn("Failed to record sync run", "producer", t.ProducerUID, "error", recErr)
	}

	if err != nil {
		return fmt.Errorf("failed to sync producer %s: %w", t.ProducerUID, err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"producer", t.ProducerUID,
		"duration", t.GetDuration(),
		"new_items", result.NewItems,
		"downloads", result.Downloads)

	return nil
}
