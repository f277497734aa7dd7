// Package job holds scheduled maintenance tasks run by robfig/cron.
package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/iliyamo/marketplace-auth/internal/logging"
	"github.com/iliyamo/marketplace-auth/internal/metrics"
)

// Purger deletes expired password reset requests and reports how many.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// PurgeResetsJob removes reset requests that can no longer be consumed.
type PurgeResetsJob struct {
	purger  Purger
	logger  *slog.Logger
	timeout time.Duration
}

func NewPurgeResetsJob(purger Purger, logger *slog.Logger) *PurgeResetsJob {
	return &PurgeResetsJob{purger: purger, logger: logger, timeout: 30 * time.Second}
}

// Run implements cron.Job.
func (j *PurgeResetsJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		logging.LogError(ctx, j.logger, "purge expired resets failed", err)
		return
	}
	if n > 0 {
		metrics.ResetsPurged.Add(float64(n))
		j.logger.Info("purged expired password resets", "count", n)
	}
}

// NewScheduler returns a cron scheduler with the purge job registered on
// schedule.  The caller starts and stops it.
func NewScheduler(schedule string, purger Purger, logger *slog.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddJob(schedule, cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(NewPurgeResetsJob(purger, logger))); err != nil {
		return nil, err
	}
	return c, nil
}
