package release

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// DefaultSweepSchedule runs the stale draft sweep hourly.
const DefaultSweepSchedule = "@every 1h"

// scheduleParser accepts standard five field specs, an optional leading
// seconds field and descriptors such as "@every 1h".
var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// DraftSweeper periodically withdraws drafts that can no longer be
// submitted because their start date has passed.
type DraftSweeper struct {
	cron     *cron.Cron
	service  interface{ SweepStaleDrafts(ctx context.Context) (int, error) }
	schedule string
}

// NewDraftSweeper creates a new sweeper. An empty schedule uses
// DefaultSweepSchedule.
func NewDraftSweeper(service *Service, schedule string) *DraftSweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &DraftSweeper{
		cron:     cron.New(cron.WithParser(scheduleParser)),
		service:  service,
		schedule: schedule,
	}
}

// Start registers the sweep and starts the scheduler.
func (s *DraftSweeper) Start() error {
	log.Info("Starting draft sweeper...")

	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return fmt.Errorf("scheduling draft sweep %q: %w", s.schedule, err)
	}

	s.cron.Start()
	log.WithField("schedule", s.schedule).Info("Draft sweeper started")
	return nil
}

// Stop gracefully shuts down the scheduler, waiting for a running sweep.
func (s *DraftSweeper) Stop() {
	log.Info("Stopping draft sweeper...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Draft sweeper stopped")
}

func (s *DraftSweeper) sweep() {
	swept, err := s.service.SweepStaleDrafts(context.Background())
	if err != nil {
		log.WithError(err).Error("Failed to sweep stale drafts")
		return
	}
	if swept > 0 {
		log.WithField("count", swept).Info("Withdrew stale drafts")
	}
}
