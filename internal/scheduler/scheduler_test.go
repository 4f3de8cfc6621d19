package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emagsync/internal/logger"
	"emagsync/internal/models"
	"emagsync/internal/pipeline"
	"emagsync/internal/store"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 5, 10, hour, minute, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestDueDailyTime(t *testing.T) {
	s := models.Schedule{Type: models.ScheduleTypeTime, Hour: 3, Minute: 30, Enabled: true, UpdatedAt: at(1, 0)}

	assert.False(t, Due(s, at(3, 29)))
	assert.True(t, Due(s, at(3, 30)))
	assert.True(t, Due(s, at(9, 0)), "a missed occurrence still fires")

	s.LastRunAt = ptr(at(3, 30))
	assert.False(t, Due(s, at(9, 0)), "already ran today")
	assert.True(t, Due(s, at(3, 30).AddDate(0, 0, 1)))

	s.Enabled = false
	assert.False(t, Due(s, at(3, 30).AddDate(0, 0, 1)))
}

func TestDueSkipsOccurrenceBeforeScheduleWasSet(t *testing.T) {
	s := models.Schedule{Type: models.ScheduleTypeTime, Hour: 3, Minute: 0, Enabled: true, UpdatedAt: at(8, 0)}
	assert.False(t, Due(s, at(9, 0)))
	assert.True(t, Due(s, at(3, 0).AddDate(0, 0, 1)))
}

func TestDueInterval(t *testing.T) {
	s := models.Schedule{Type: models.ScheduleTypeInterval, IntervalHours: 6, Enabled: true, UpdatedAt: at(0, 0)}
	assert.False(t, Due(s, at(5, 59)))
	assert.True(t, Due(s, at(6, 0)))

	s.LastRunAt = ptr(at(6, 0))
	assert.False(t, Due(s, at(11, 0)))
	assert.True(t, Due(s, at(12, 0)))
}

func TestNextRun(t *testing.T) {
	daily := models.Schedule{Type: models.ScheduleTypeTime, Hour: 3, Minute: 30, Enabled: true}
	next, ok := NextRun(daily, at(1, 0))
	require.True(t, ok)
	assert.Equal(t, at(3, 30), next)

	next, _ = NextRun(daily, at(4, 0))
	assert.Equal(t, at(3, 30).AddDate(0, 0, 1), next)

	interval := models.Schedule{Type: models.ScheduleTypeInterval, IntervalHours: 2, Enabled: true, UpdatedAt: at(1, 0)}
	next, _ = NextRun(interval, at(1, 30))
	assert.Equal(t, at(3, 0), next)

	_, ok = NextRun(models.Schedule{Type: models.ScheduleTypeTime}, at(1, 0))
	assert.False(t, ok)
}

type memorySchedules struct {
	schedule *models.Schedule
	marked   []time.Time
}

func (m *memorySchedules) Get(context.Context) (*models.Schedule, error) {
	if m.schedule == nil {
		return nil, store.ErrNotFound
	}
	s := *m.schedule
	return &s, nil
}

func (m *memorySchedules) MarkRun(_ context.Context, t time.Time) error {
	m.marked = append(m.marked, t)
	m.schedule.LastRunAt = &t
	return nil
}

type memoryEnqueuer struct {
	queued []pipeline.Options
}

func (m *memoryEnqueuer) Enqueue(_ context.Context, opts pipeline.Options, trigger models.RunTrigger) (*models.SyncRun, error) {
	m.queued = append(m.queued, opts)
	return &models.SyncRun{ID: "run", Action: string(opts.Action), Trigger: trigger}, nil
}

func TestTickEnqueuesOncePerOccurrence(t *testing.T) {
	schedules := &memorySchedules{schedule: &models.Schedule{
		Type: models.ScheduleTypeTime, Hour: 3, Minute: 0, Enabled: true, UpdatedAt: at(0, 0),
	}}
	enqueuer := &memoryEnqueuer{}
	s := New(schedules, enqueuer, time.Minute, logger.Nop())

	now := at(3, 0)
	s.now = func() time.Time { return now }

	fired, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, fired)

	now = at(3, 1)
	fired, err = s.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, fired)

	require.Len(t, enqueuer.queued, 1)
	assert.Equal(t, pipeline.ActionUpdate, enqueuer.queued[0].Action)
	assert.Equal(t, []time.Time{at(3, 0)}, schedules.marked)
}

func TestTickWithoutSchedule(t *testing.T) {
	enqueuer := &memoryEnqueuer{}
	s := New(&memorySchedules{}, enqueuer, 0, logger.Nop())

	fired, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Empty(t, enqueuer.queued)
}
