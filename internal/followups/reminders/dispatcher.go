package reminders

import (
	"context"
	"errors"
	"time"

	"brokerage_backoffice/internal/queue"
	"brokerage_backoffice/platform/logger"
	"brokerage_backoffice/platform/metrics"
)

// State is where one reminder candidate ended up.
type State string

const (
	StateSkipped  State = "SKIPPED"
	StateEnqueued State = "ENQUEUED"
	// StateRetried means the first enqueue failed and the fallback succeeded.
	StateRetried State = "RETRIED"
	StateFailed  State = "FAILED"
)

// Request describes the follow-up to remind about.
type Request struct {
	LeadID       string
	FollowUpID   string
	ScheduledAt  time.Time
	FollowUpType string
}

// Outcome is the result for one candidate job.
type Outcome struct {
	Tier  Tier
	Delay time.Duration
	// Forced marks the extra immediate 5MIN_BEFORE job for soon-due events.
	Forced bool
	State  State
	TaskID string
	Err    error
}

// Report lists every candidate in scheduling order. A report with no
// outcomes means nothing was attempted.
type Report struct {
	Outcomes []Outcome
}

// Count returns how many outcomes are in state.
func (r Report) Count(state State) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == state {
			n++
		}
	}
	return n
}

// Dispatcher schedules follow-up reminders on the job queue. Scheduling is
// best effort: an unreachable queue or a failing tier never fails the call.
type Dispatcher struct {
	jobs  queue.Enqueuer
	probe queue.Prober
	table Table
	log   *logger.Logger
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(jobs queue.Enqueuer, probe queue.Prober, table Table, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		jobs:  jobs,
		probe: probe,
		table: table,
		log:   log,
		now:   time.Now,
		sleep: sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type candidate struct {
	policy TierPolicy
	delay  time.Duration
	forced bool
}

// candidates computes one delay per tier, plus an immediate 5MIN_BEFORE job
// when the event is closer than that tier's offset.
func (d *Dispatcher) candidates(until time.Duration) []candidate {
	out := make([]candidate, 0, len(d.table.Tiers)+1)
	for _, tp := range d.table.Tiers {
		out = append(out, candidate{policy: tp, delay: until - tp.Offset})
	}

	if soon, ok := d.table.Lookup(Tier5MinBefore); ok && until > 0 && until < soon.Offset {
		out = append(out, candidate{policy: soon, delay: 0, forced: true})
	}
	return out
}

// ScheduleFollowUpNotifications enqueues one delayed reminder per tier whose
// time has not passed yet. It returns an error only for an unusable request
// or a cancelled context; individual tier failures are reported in the
// Report and logged.
func (d *Dispatcher) ScheduleFollowUpNotifications(ctx context.Context, req Request) (Report, error) {
	if req.LeadID == "" || req.ScheduledAt.IsZero() {
		return Report{}, errors.New("reminder request needs a lead id and a scheduled time")
	}
	log := d.log.WithContext(ctx).With("leadId", req.LeadID, "followUpId", req.FollowUpID)

	if d.probe == nil || !d.probe.Available(ctx) {
		log.Warn("job queue unreachable, reminders not scheduled")
		return Report{}, nil
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	now := d.now()
	until := req.ScheduledAt.Sub(now)

	var report Report
	for _, c := range d.candidates(until) {
		outcome := d.dispatch(ctx, req, c, now)
		metrics.RecordReminderEnqueue(string(outcome.Tier), string(outcome.State))

		switch outcome.State {
		case StateSkipped:
			log.Debug("reminder tier already passed", "tier", outcome.Tier, "delay", outcome.Delay)
		case StateFailed:
			log.Error("failed to schedule reminder", "tier", outcome.Tier, "error", outcome.Err)
		default:
			log.Debug("reminder scheduled", "tier", outcome.Tier, "delay", outcome.Delay, "state", outcome.State, "taskId", outcome.TaskID)
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	log.Info("follow-up reminders scheduled",
		"scheduledAt", req.ScheduledAt,
		"enqueued", report.Count(StateEnqueued),
		"retried", report.Count(StateRetried),
		"skipped", report.Count(StateSkipped),
		"failed", report.Count(StateFailed),
	)
	return report, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request, c candidate, now time.Time) Outcome {
	outcome := Outcome{Tier: c.policy.Tier, Delay: c.delay, Forced: c.forced}
	if c.delay <= 0 && !c.forced {
		outcome.State = StateSkipped
		return outcome
	}

	payload := queue.FollowUpNotificationPayload{
		LeadID:        req.LeadID,
		FollowUpID:    req.FollowUpID,
		ScheduledTime: req.ScheduledAt,
		ReminderType:  string(c.policy.Tier),
		FollowUpType:  req.FollowUpType,
	}

	id, err := d.jobs.Enqueue(ctx, queue.TaskSendLeadFollowUpNotification, payload, d.table.jobOptions(c.policy.Policy, c.delay))
	if err == nil {
		outcome.State, outcome.TaskID = StateEnqueued, id
		return outcome
	}

	fb := c.policy.Fallback
	if fb == nil || queue.IsConnectivityError(err) {
		outcome.State, outcome.Err = StateFailed, err
		return outcome
	}

	d.log.WithContext(ctx).Warn("reminder enqueue failed, retrying with fallback policy",
		"tier", c.policy.Tier,
		"wait", fb.Wait,
		"error", err,
	)
	if sleepErr := d.sleep(ctx, fb.Wait); sleepErr != nil {
		outcome.State, outcome.Err = StateFailed, sleepErr
		return outcome
	}

	// Keep the original fire time; the wait has eaten into the delay.
	delay := now.Add(c.delay).Sub(d.now())
	if delay < 0 {
		delay = 0
	}
	id, retryErr := d.jobs.Enqueue(ctx, queue.TaskSendLeadFollowUpNotification, payload, d.table.jobOptions(fb.Policy, delay))
	if retryErr != nil {
		outcome.State, outcome.Err = StateFailed, retryErr
		return outcome
	}
	outcome.State, outcome.TaskID, outcome.Delay = StateRetried, id, delay
	return outcome
}
