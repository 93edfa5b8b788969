package tasks

import (
	"context"

	"github.com/bupcache/bupcache/app/feed"
	"github.com/bupcache/bupcache/app/history"
	"github.com/bupcache/bupcache/app/producer"
)

// TaskSchedulerInterface defines the interface for task scheduling
// operations. Used by the main application to manage background sync
// processing.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// Syncer runs one sync pass for one producer. Satisfied by
// *feed.Walker.
type Syncer interface {
	Sync(ctx context.Context, p *producer.Config) (feed.SyncResult, error)
}

// RunRecorder persists finished sync passes. Satisfied by
// *history.RunRepository.
type RunRecorder interface {
	RecordRun(run history.SyncRun) error
}

// CommentLatch is flipped once the first full cycle is behind us, so
// auto comments never fire while a backlog is being drained. Satisfied
// by *feed.Walker.
type CommentLatch interface {
	EnableComments()
}
