package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"swapmarket/internal/models"
)

// FeaturedWarmer rebuilds the cached featured listing.
type FeaturedWarmer interface {
	WarmFeatured(ctx context.Context) ([]models.Item, error)
}

type Scheduler struct {
	cron     *cron.Cron
	warmer   FeaturedWarmer
	schedule string
	timeout  time.Duration
	log      zerolog.Logger
}

// NewScheduler runs the featured warm-up on schedule, which accepts cron
// expressions and descriptors such as "@every 5m". An empty schedule
// disables the job.
func NewScheduler(warmer FeaturedWarmer, schedule string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		warmer:   warmer,
		schedule: schedule,
		timeout:  30 * time.Second,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if s.schedule == "" || s.warmer == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.warmFeatured); err != nil {
		return fmt.Errorf("schedule featured warm-up %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.warmFeatured()
	return nil
}

// Stop halts the scheduler and waits for a running job until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) warmFeatured() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	items, err := s.warmer.WarmFeatured(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("featured warm-up failed")
		return
	}
	s.log.Debug().Int("items", len(items)).Msg("featured cache warmed")
}
