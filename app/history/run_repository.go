package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SyncRun struct {
	ID          string
	ProducerUID string
	StartedAt   time.Time
	FinishedAt  time.Time
	NewItems    int
	Downloads   int
	Status      string
	Error       string
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

type Stats struct {
	TotalRuns      int
	FailedRuns     int
	TotalNewItems  int
	TotalDownloads int
	LastRunAt      *time.Time
}

// RunRepository handles database operations for sync runs
type RunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// RecordRun inserts one finished sync pass. A missing ID is assigned
// here so callers do not have to care about key generation.
func (r *RunRepository) RecordRun(run SyncRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	_, err := r.db.Exec(`
		INSERT INTO sync_runs (id, producer_uid, started_at, finished_at, new_items, downloads, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.ProducerUID, run.StartedAt, run.FinishedAt, run.NewItems, run.Downloads, run.Status, run.Error)

	if err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}

	return nil
}

// GetStats returns the aggregate counters the status endpoint reports.
func (r *RunRepository) GetStats() (Stats, error) {
	var stats Stats
	var lastRun sql.NullTime

	err := r.db.QueryRow(`
		SELECT COUNT(*),
		       COUNT(CASE WHEN status = ? THEN 1 END),
		       COALESCE(SUM(new_items), 0),
		       COALESCE(SUM(downloads), 0),
		       MAX(finished_at)
		FROM sync_runs
	`, StatusError).Scan(&stats.TotalRuns, &stats.FailedRuns, &stats.TotalNewItems, &stats.TotalDownloads, &lastRun)

	if err != nil {
		return Stats{}, fmt.Errorf("failed to get sync stats: %w", err)
	}

	if lastRun.Valid {
		stats.LastRunAt = &lastRun.Time
	}

	return stats, nil
}

// GetRecentRuns returns the latest runs, newest first.
func (r *RunRepository) GetRecentRuns(limit int) ([]SyncRun, error) {
	rows, err := r.db.Query(`
		SELECT id, producer_uid, started_at, finished_at, new_items, downloads, status, error
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent sync runs: %w", err)
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var run SyncRun
		err := rows.Scan(
			&run.ID, &run.ProducerUID, &run.StartedAt, &run.FinishedAt,
			&run.NewItems, &run.Downloads, &run.Status, &run.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync run rows: %w", err)
	}

	return runs, nil
}
