package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// CleanupJob deletes read notifications past the retention period.
type CleanupJob struct {
	repo      Repository
	retention time.Duration
}

// NewCleanupJob creates a cleanup job
func NewCleanupJob(repo Repository, retention time.Duration) *CleanupJob {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &CleanupJob{repo: repo, retention: retention}
}

// Start runs the job immediately and then every interval until ctx is done.
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.run(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Notification cleanup job stopped")
			return
		case <-ticker.C:
			j.run(ctx)
		}
	}
}

func (j *CleanupJob) run(ctx context.Context) {
	rows, err := j.RunOnce(ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("Failed to cleanup old notifications")
		return
	}
	if rows > 0 {
		log.Info().
			Int64("deleted", rows).
			Dur("retention", j.retention).
			Msg("Cleaned up old notifications")
	}
}

// RunOnce deletes read notifications created before now minus retention.
func (j *CleanupJob) RunOnce(ctx context.Context, now time.Time) (int64, error) {
	return j.repo.DeleteReadOlderThan(ctx, now.Add(-j.retention))
}
