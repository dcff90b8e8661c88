package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

// Runner is one full collection pass.
type Runner interface {
	Run(ctx context.Context)
}

// Scheduler repeats collection runs on a fixed wall-clock interval. Each run
// is fully independent; overlapping runs are prevented rather than queued.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	interval  time.Duration
	log       *logrus.Entry
}

// New creates a scheduler that invokes the runner every interval.
func New(interval time.Duration, runner Runner, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		runner:    runner,
		interval:  interval,
		log:       log,
	}
}

// Start runs the first collection immediately, then blocks forever repeating
// it on the configured interval.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 1
	}

	_, err := s.scheduler.Every(minutes).Minutes().SingletonMode().StartImmediately().Do(func() {
		s.runner.Run(context.Background())
		s.log.WithField("minutes", minutes).Info("sleeping until next run")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartBlocking()
	return nil
}

// Stop cancels future runs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
