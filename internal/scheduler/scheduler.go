// Package scheduler enqueues update runs at a daily time or on an hourly
// interval.
package scheduler

import (
	"context"
	"errors"
	"time"

	"emagsync/internal/logger"
	"emagsync/internal/models"
	"emagsync/internal/pipeline"
	"emagsync/internal/store"
)

type ScheduleStore interface {
	Get(ctx context.Context) (*models.Schedule, error)
	MarkRun(ctx context.Context, at time.Time) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, opts pipeline.Options, trigger models.RunTrigger) (*models.SyncRun, error)
}

type Scheduler struct {
	schedules ScheduleStore
	enqueuer  Enqueuer
	poll      time.Duration
	now       func() time.Time
	logger    *logger.Logger
}

func New(schedules ScheduleStore, enqueuer Enqueuer, poll time.Duration, logger *logger.Logger) *Scheduler {
	if poll <= 0 {
		poll = 30 * time.Second
	}
	return &Scheduler{
		schedules: schedules,
		enqueuer:  enqueuer,
		poll:      poll,
		now:       time.Now,
		logger:    logger,
	}
}

// Run checks the schedule every poll interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	s.logger.Info("Scheduler started, polling every %s", s.poll)
	for {
		if _, err := s.Tick(ctx); err != nil {
			s.logger.Error("Scheduler tick failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick enqueues an update run when one is due and reports whether it did.
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	schedule, err := s.schedules.Get(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	now := s.now()
	if !Due(*schedule, now) {
		return false, nil
	}

	run, err := s.enqueuer.Enqueue(ctx, pipeline.Options{Action: pipeline.ActionUpdate}, models.RunTriggerSchedule)
	if err != nil {
		return false, err
	}
	if err := s.schedules.MarkRun(ctx, now); err != nil {
		return true, err
	}
	s.logger.Info("Scheduled update run %s queued", run.ID)
	return true, nil
}

// Trigger queues an update run right away, outside the schedule.
func (s *Scheduler) Trigger(ctx context.Context) (*models.SyncRun, error) {
	return s.enqueuer.Enqueue(ctx, pipeline.Options{Action: pipeline.ActionUpdate}, models.RunTriggerSchedule)
}

// Due reports whether an enabled schedule has an occurrence at or before
// now that has not run yet. Occurrences are counted from the later of the
// last run and the last change to the schedule.
func Due(s models.Schedule, now time.Time) bool {
	if !s.Enabled {
		return false
	}
	since := s.UpdatedAt
	if s.LastRunAt != nil && s.LastRunAt.After(since) {
		since = *s.LastRunAt
	}

	switch s.Type {
	case models.ScheduleTypeTime:
		last := occurrence(s, now)
		if last.After(now) {
			last = last.AddDate(0, 0, -1)
		}
		return last.After(since)
	case models.ScheduleTypeInterval:
		if s.IntervalHours <= 0 {
			return false
		}
		return !now.Before(since.Add(time.Duration(s.IntervalHours) * time.Hour))
	}
	return false
}

// NextRun is the next time the schedule fires after now. ok is false for a
// disabled or invalid schedule.
func NextRun(s models.Schedule, now time.Time) (time.Time, bool) {
	if !s.Enabled {
		return time.Time{}, false
	}
	switch s.Type {
	case models.ScheduleTypeTime:
		next := occurrence(s, now)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next, true
	case models.ScheduleTypeInterval:
		if s.IntervalHours <= 0 {
			return time.Time{}, false
		}
		since := s.UpdatedAt
		if s.LastRunAt != nil && s.LastRunAt.After(since) {
			since = *s.LastRunAt
		}
		next := since.Add(time.Duration(s.IntervalHours) * time.Hour)
		if next.Before(now) {
			next = now
		}
		return next, true
	}
	return time.Time{}, false
}

// occurrence is today's firing time of a time schedule in now's location.
func occurrence(s models.Schedule, now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), s.Hour, s.Minute, 0, 0, now.Location())
}
