// Package worker runs the periodic maintenance jobs: the outbox relay and
// the reconciliation sweep.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/nick2726/mandir-reservation-hub/internal/core/services"
	"github.com/sirupsen/logrus"
)

type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	sched gocron.Scheduler
	log   logrus.FieldLogger
}

func NewScheduler(log logrus.FieldLogger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return &Scheduler{sched: sched, log: log}, nil
}

// Add registers job to run every Interval starting right away. A run that is
// still going when the next one is due causes that tick to be skipped.
func (s *Scheduler) Add(ctx context.Context, job Job) error {
	entry := s.log.WithField("job", job.Name)

	j, err := s.sched.NewJob(
		gocron.DurationJob(job.Interval),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}

			if err := job.Run(ctx); err != nil {
				entry.WithError(err).Error("Job run failed")
			}
		}),
		gocron.WithName(job.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name, err)
	}

	entry.WithFields(logrus.Fields{
		"job_id":   j.ID().String(),
		"interval": job.Interval.String(),
	}).Info("Job scheduled")

	return nil
}

func (s *Scheduler) Start() {
	s.log.WithField("jobs", len(s.sched.Jobs())).Info("Scheduler started")
	s.sched.Start()
}

// Shutdown waits for running jobs to return.
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

func OutboxRelayJob(relay *services.OutboxRelay, interval time.Duration) Job {
	return Job{
		Name:     "outbox-relay",
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := relay.RelayOnce(ctx)
			return err
		},
	}
}

func ReconcileJob(reconciler *services.Reconciler, interval time.Duration) Job {
	return Job{
		Name:     "reconcile",
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := reconciler.Sweep(ctx)
			return err
		},
	}
}
