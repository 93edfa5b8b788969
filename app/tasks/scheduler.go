package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bupcache/bupcache/app/cfg"
	"github.com/bupcache/bupcache/app/producer"
	"github.com/bupcache/bupcache/app/retry"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler drives sync cycles with a single worker: the upstream rate
// limits aggressively, so producers are synced strictly one at a time
// with spacing in between.
type Scheduler struct {
	configCache     *producer.ConfigCache
	syncer          Syncer
	runs            RunRecorder
	commentLatch    CommentLatch
	interval        time.Duration
	producerSpacing time.Duration
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	latchOnce       sync.Once
	taskQueue       chan TaskInterface
}

func NewScheduler(configCache *producer.ConfigCache, syncer Syncer, runs RunRecorder, commentLatch CommentLatch) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		configCache:     configCache,
		syncer:          syncer,
		runs:            runs,
		commentLatch:    commentLatch,
		interval:        time.Duration(cfg.IntervalSec) * time.Second,
		producerSpacing: time.Duration(cfg.ProducerSpacing) * time.Second,
		ctx:             ctx,
		cancel:          cancel,
		taskQueue:       make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.worker()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueSyncTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				// The first cycle's backlog is drained by now.
				s.latchOnce.Do(s.commentLatch.EnableComments)
				s.enqueueSyncTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueSyncTasks() {
	producerConfigs := s.configCache.GetEnabledConfigs()
	if len(producerConfigs) == 0 {
		slog.Debug("No enabled producer configurations found")
		return
	}

	slog.Debug("Enqueueing producer sync tasks", "count", len(producerConfigs))

	for _, producerConfig := range producerConfigs {
		syncTask := NewSyncProducerTask(producerConfig, s.syncer, s.runs)
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncProducerTask", "producer", producerConfig.UID, "error", err)
		}
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(task)
			if err := retry.Sleep(s.ctx, s.producerSpacing); err != nil {
				return
			}

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 30*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Task execution failed", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "producer", task.GetProducerUID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
