package api

import (
	"github.com/bupcache/bupcache/app/history"
	"github.com/bupcache/bupcache/app/producer"
	"github.com/bupcache/bupcache/app/tasks"
)

type StatsSource interface {
	GetStats() (history.Stats, error)
	GetRecentRuns(limit int) ([]history.SyncRun, error)
}

var _ StatsSource = (*history.RunRepository)(nil)

type Handler struct {
	configCache *producer.ConfigCache
	stats       StatsSource
	syncer      tasks.Syncer
	runs        tasks.RunRecorder
	scheduler   tasks.TaskSchedulerInterface
}
