package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// VolumeResetter zeroes rolling daily volume counters
type VolumeResetter interface {
	ResetDailyVolumes(ctx context.Context) error
}

// VolumeResetJob periodically resets the 24h volume on markets and outcome
// shares.
type VolumeResetJob struct {
	store    VolumeResetter
	interval time.Duration
	log      *logrus.Logger
}

// NewVolumeResetJob creates a new volume reset job
func NewVolumeResetJob(store VolumeResetter, interval time.Duration, log *logrus.Logger) *VolumeResetJob {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &VolumeResetJob{store: store, interval: interval, log: log}
}

// Run resets volumes every interval until ctx is cancelled. Failures are
// logged and retried on the next tick.
func (j *VolumeResetJob) Run(ctx context.Context) error {
	j.log.WithField("interval", j.interval).Info("Starting volume reset job")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.resetOnce(ctx)
		case <-ctx.Done():
			j.log.Info("Stopping volume reset job")
			return nil
		}
	}
}

func (j *VolumeResetJob) resetOnce(ctx context.Context) {
	start := time.Now()
	if err := j.store.ResetDailyVolumes(ctx); err != nil {
		j.log.WithError(err).Error("Failed to reset daily volumes")
		return
	}
	j.log.WithField("duration", time.Since(start).String()).Info("Daily volumes reset")
}
