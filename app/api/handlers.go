package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bupcache/bupcache/app/cfg"
	"github.com/bupcache/bupcache/app/producer"
	"github.com/bupcache/bupcache/app/tasks"
)

func NewHandler(configCache *producer.ConfigCache, stats StatsSource,
	syncer tasks.Syncer, runs tasks.RunRecorder, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		configCache: configCache,
		stats:       stats,
		syncer:      syncer,
		runs:        runs,
		scheduler:   scheduler,
	}
}

var startedAt = time.Now()

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"version":   cfg.GetVersion(),
		"uptime":    time.Since(startedAt).Round(time.Second).String(),
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.stats.GetStats()
	if err != nil {
		slog.Error("Database error", "operation", "get_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := map[string]interface{}{
		"producers":       h.configCache.GetConfigCount(),
		"total_runs":      stats.TotalRuns,
		"failed_runs":     stats.FailedRuns,
		"total_new_items": stats.TotalNewItems,
		"total_downloads": stats.TotalDownloads,
	}
	if stats.LastRunAt != nil {
		response["last_run_at"] = stats.LastRunAt.Format(time.RFC3339)
	}

	if runs, err := h.stats.GetRecentRuns(20); err == nil {
		recent := make([]map[string]interface{}, 0, len(runs))
		for _, run := range runs {
			recent = append(recent, map[string]interface{}{
				"producer":    run.ProducerUID,
				"started_at":  run.StartedAt.Format(time.RFC3339),
				"finished_at": run.FinishedAt.Format(time.RFC3339),
				"new_items":   run.NewItems,
				"downloads":   run.Downloads,
				"status":      run.Status,
				"error":       run.Error,
			})
		}
		response["recent_runs"] = recent
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) APIListProducers(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	producers := make([]map[string]interface{}, 0, len(configs))
	for _, producerConfig := range configs {
		producers = append(producers, map[string]interface{}{
			"name":              producerConfig.Name,
			"uid":               producerConfig.UID,
			"enabled":           producerConfig.IsEnabled(),
			"auto_download":     producerConfig.Settings.AutoDownload,
			"download_at_first": producerConfig.DownloadsAtFirst(),
			"auto_comment":      producerConfig.Settings.AutoComment != "",
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"producers": producers,
		"total":     len(producers),
	})
}

// APISyncProducer reloads one producer's configuration and enqueues an
// immediate sync pass for it.
func (h *Handler) APISyncProducer(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing producer name parameter"})
		return
	}

	producerConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading producer configuration", "producer", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Producer configuration not found",
			"details": err.Error(),
		})
		return
	}

	syncTask := tasks.NewSyncProducerTask(producerConfig, h.syncer, h.runs)
	if err := h.scheduler.EnqueueTask(syncTask); err != nil {
		slog.Error("Error enqueueing sync task", "producer", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue sync task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Sync task enqueued successfully",
		"producer": gin.H{
			"name": name,
			"uid":  producerConfig.UID,
		},
		"task": gin.H{
			"id":   syncTask.ID,
			"type": syncTask.Type,
		},
	})
}
