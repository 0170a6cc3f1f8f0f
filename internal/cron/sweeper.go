package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/neuroleaf/neuroleaf-api/internal/service"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

const sweepTimeout = 5 * time.Minute

// ExpirySweeper periodically downgrades accounts whose paid subscription
// expired without a cancellation webhook arriving.
type ExpirySweeper struct {
	scheduler *cron.Cron
	billing   service.BillingService
	schedule  string
	log       *logger.Logger
}

func NewExpirySweeper(billing service.BillingService, schedule string, log *logger.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		scheduler: cron.New(),
		billing:   billing,
		schedule:  schedule,
		log:       log,
	}
}

// Start registers the sweep job and launches the scheduler.
func (s *ExpirySweeper) Start() error {
	_, err := s.scheduler.AddFunc(s.schedule, s.sweep)
	if err != nil {
		return err
	}
	s.scheduler.Start()
	s.log.Infow("Subscription expiry sweeper started", "schedule", s.schedule)
	return nil
}

func (s *ExpirySweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if err := s.billing.DowngradeExpired(ctx, time.Now()); err != nil {
		s.log.Errorw("Expiry sweep failed", "error", err)
	}
}

// Stop waits for a running sweep to finish.
func (s *ExpirySweeper) Stop() {
	ctx := s.scheduler.Stop()
	<-ctx.Done()
	s.log.Infow("Subscription expiry sweeper stopped")
}
