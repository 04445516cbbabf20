package jobs

import (
	"context"
	"fmt"

	"github.com/grithabit/grithabit/pkg/logger"
)

// Sweeper drops expired entries from a store.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweepVerificationsJob evicts expired PINs from stores that have no
// native expiry, such as the in-process verification store.
type SweepVerificationsJob struct {
	sweeper Sweeper
	log     *logger.Logger
}

// NewSweepVerificationsJob creates the job.
func NewSweepVerificationsJob(sweeper Sweeper, log *logger.Logger) *SweepVerificationsJob {
	if log == nil {
		log = logger.Nop()
	}
	return &SweepVerificationsJob{
		sweeper: sweeper,
		log:     log.With(logger.JobName("sweep_verifications")),
	}
}

func (j *SweepVerificationsJob) Name() string {
	return "sweep_verifications"
}

func (j *SweepVerificationsJob) Description() string {
	return "Evicts expired email verification codes"
}

func (j *SweepVerificationsJob) Run(ctx context.Context) error {
	removed, err := j.sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep verifications: %w", err)
	}
	if removed > 0 {
		j.log.Debug("expired verifications evicted", logger.Int("removed", removed))
	}
	return nil
}
