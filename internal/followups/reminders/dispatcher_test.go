package reminders

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"brokerage_backoffice/internal/queue"
	"brokerage_backoffice/internal/queue/queuetest"
	"brokerage_backoffice/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type clock struct {
	now   time.Time
	slept []time.Duration
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func newDispatcher(rec *queuetest.Recorder) (*Dispatcher, *clock) {
	clk := &clock{now: baseTime}
	d := NewDispatcher(rec, rec, DefaultTable(), logger.Discard())
	d.now = clk.Now
	d.sleep = clk.Sleep
	return d, clk
}

func request(in time.Duration) Request {
	return Request{
		LeadID:       "65f1c0ffee0000000000abcd",
		FollowUpID:   "65f1c0ffee0000000000dcba",
		ScheduledAt:  baseTime.Add(in),
		FollowUpType: "FOLLOW_UP",
	}
}

type scheduled struct {
	tier  string
	delay time.Duration
}

func jobsOf(t *testing.T, rec *queuetest.Recorder) []scheduled {
	t.Helper()
	var out []scheduled
	for _, job := range rec.Snapshot() {
		require.Equal(t, queue.TaskSendLeadFollowUpNotification, job.TaskType)
		var p queue.FollowUpNotificationPayload
		require.NoError(t, job.Decode(&p))
		out = append(out, scheduled{tier: p.ReminderType, delay: job.Options.Delay})
	}
	return out
}

func TestScheduleThreeHoursAhead(t *testing.T) {
	rec := &queuetest.Recorder{}
	d, _ := newDispatcher(rec)

	report, err := d.ScheduleFollowUpNotifications(context.Background(), request(3*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, []scheduled{
		{"2H_BEFORE", time.Hour},
		{"5MIN_BEFORE", 2*time.Hour + 55*time.Minute},
		{"DUE", 3 * time.Hour},
	}, jobsOf(t, rec))

	assert.Equal(t, 1, report.Count(StateSkipped))
	assert.Equal(t, 3, report.Count(StateEnqueued))
	assert.Equal(t, Tier24HBefore, report.Outcomes[0].Tier)
	assert.Equal(t, StateSkipped, report.Outcomes[0].State)
}

func TestScheduleTwoDaysAheadUsesEveryTier(t *testing.T) {
	rec := &queuetest.Recorder{}
	d, _ := newDispatcher(rec)

	_, err := d.ScheduleFollowUpNotifications(context.Background(), request(48*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, []scheduled{
		{"24H_BEFORE", 24 * time.Hour},
		{"2H_BEFORE", 46 * time.Hour},
		{"5MIN_BEFORE", 48*time.Hour - 5*time.Minute},
		{"DUE", 48 * time.Hour},
	}, jobsOf(t, rec))
}

func TestScheduleSoonDueForcesImmediateReminder(t *testing.T) {
	rec := &queuetest.Recorder{}
	d, _ := newDispatcher(rec)

	report, err := d.ScheduleFollowUpNotifications(context.Background(), request(3*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, []scheduled{
		{"DUE", 3 * time.Minute},
		{"5MIN_BEFORE", 0},
	}, jobsOf(t, rec))

	last := report.Outcomes[len(report.Outcomes)-1]
	assert.True(t, last.Forced)
	assert.Equal(t, StateEnqueued, last.State)
	assert.Equal(t, 3, report.Count(StateSkipped))
}

func TestSchedulePastEventSkipsEverything(t *testing.T) {
	rec := &queuetest.Recorder{}
	d, _ := newDispatcher(rec)

	report, err := d.ScheduleFollowUpNotifications(context.Background(), request(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, rec.Snapshot())
	assert.Equal(t, 4, report.Count(StateSkipped))
}

func TestScheduleQueueDownIsBestEffort(t *testing.T) {
	rec := &queuetest.Recorder{Down: true}
	d, _ := newDispatcher(rec)

	report, err := d.ScheduleFollowUpNotifications(context.Background(), request(3*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)
	assert.Zero(t, rec.Calls)
}

func TestScheduleJobOptions(t *testing.T) {
	rec := &queuetest.Recorder{}
	d, _ := newDispatcher(rec)

	_, err := d.ScheduleFollowUpNotifications(context.Background(), request(time.Hour))
	require.NoError(t, err)

	jobs := rec.Snapshot()
	require.NotEmpty(t, jobs)
	for _, job := range jobs {
		assert.Equal(t, 5, job.Options.Attempts)
		assert.Equal(t, 60*time.Second, job.Options.Timeout)
		assert.Equal(t, 24*time.Hour, job.Options.Retention)
	}

	var p queue.FollowUpNotificationPayload
	require.NoError(t, jobs[0].Decode(&p))
	assert.Equal(t, "65f1c0ffee0000000000abcd", p.LeadID)
	assert.Equal(t, "65f1c0ffee0000000000dcba", p.FollowUpID)
	assert.True(t, p.ScheduledTime.Equal(baseTime.Add(time.Hour)))
	assert.Equal(t, "FOLLOW_UP", p.FollowUpType)
}

func TestFiveMinuteTierFallsBackOnce(t *testing.T) {
	rec := &queuetest.Recorder{}
	rec.Fail = func(call int, _ string, payload any, _ queue.JobOptions) error {
		p := payload.(queue.FollowUpNotificationPayload)
		if p.ReminderType == "5MIN_BEFORE" && call == 1 {
			return errors.New("OOM command not allowed when used memory > 'maxmemory'")
		}
		return nil
	}
	d, clk := newDispatcher(rec)

	report, err := d.ScheduleFollowUpNotifications(context.Background(), request(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{time.Second}, clk.slept)
	assert.Equal(t, 1, report.Count(StateRetried))
	assert.Zero(t, report.Count(StateFailed))

	jobs := rec.Snapshot()
	require.Len(t, jobs, 2)
	fallback := jobs[0]
	assert.Equal(t, 3, fallback.Options.Attempts)
	assert.Equal(t, 30*time.Second, fallback.Options.Timeout)
	assert.Equal(t, 55*time.Minute-time.Second, fallback.Options.Delay)
}

func TestFallbackSkippedForConnectivityErrors(t *testing.T) {
	rec := &queuetest.Recorder{}
	rec.Fail = func(_ int, _ string, payload any, _ queue.JobOptions) error {
		if payload.(queue.FollowUpNotificationPayload).ReminderType == "5MIN_BEFORE" {
			return fmt.Errorf("enqueue: %w", queue.ErrUnavailable)
		}
		return nil
	}
	d, clk := newDispatcher(rec)

	report, err := d.ScheduleFollowUpNotifications(context.Background(), request(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, clk.slept)
	assert.Equal(t, 1, report.Count(StateFailed))
	assert.Equal(t, 1, report.Count(StateEnqueued))
}

func TestOtherTierFailureDoesNotStopScheduling(t *testing.T) {
	rec := &queuetest.Recorder{}
	rec.Fail = func(_ int, _ string, payload any, _ queue.JobOptions) error {
		if payload.(queue.FollowUpNotificationPayload).ReminderType == "2H_BEFORE" {
			return errors.New("ERR unknown command")
		}
		return nil
	}
	d, clk := newDispatcher(rec)

	report, err := d.ScheduleFollowUpNotifications(context.Background(), request(3*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, clk.slept)
	assert.Equal(t, 1, report.Count(StateFailed))
	assert.Equal(t, 2, report.Count(StateEnqueued))
	assert.Equal(t, StateFailed, report.Outcomes[1].State)
}

func TestScheduleRejectsEmptyRequest(t *testing.T) {
	d, _ := newDispatcher(&queuetest.Recorder{})
	_, err := d.ScheduleFollowUpNotifications(context.Background(), Request{})
	assert.Error(t, err)
}
