// Package reminders turns a follow-up time into a set of delayed reminder
// jobs, one per tier, according to a declarative policy table.
package reminders

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"brokerage_backoffice/internal/queue"

	"github.com/hibiken/asynq"
	"gopkg.in/yaml.v3"
)

// Tier names one reminder offset.
type Tier string

const (
	Tier24HBefore  Tier = "24H_BEFORE"
	Tier2HBefore   Tier = "2H_BEFORE"
	Tier5MinBefore Tier = "5MIN_BEFORE"
	TierDue        Tier = "DUE"
)

const maxRetryDelay = time.Hour

// Policy is the retry behaviour of one enqueued reminder.
type Policy struct {
	Attempts int           `yaml:"attempts"`
	Backoff  time.Duration `yaml:"backoff"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Fallback is a second, reduced enqueue attempt made after Wait when the
// first enqueue of a tier fails.
type Fallback struct {
	Policy `yaml:",inline"`
	Wait   time.Duration `yaml:"wait"`
}

type TierPolicy struct {
	Tier   Tier          `yaml:"tier"`
	Offset time.Duration `yaml:"offset"`
	Policy `yaml:",inline"`
	// Fallback is nil for tiers that get a single enqueue attempt.
	Fallback *Fallback `yaml:"fallback,omitempty"`
}

// Table is the ordered list of reminder tiers. Retention is how long a
// completed reminder task is kept in the queue.
type Table struct {
	Tiers     []TierPolicy  `yaml:"tiers"`
	Retention time.Duration `yaml:"retention"`
}

// tableFile is the on-disk shape of a tier override file. Tier entries are
// kept as nodes so each one can be decoded over its default.
type tableFile struct {
	Tiers     []yaml.Node   `yaml:"tiers"`
	Retention time.Duration `yaml:"retention"`
}

func defaultPolicy() Policy {
	return Policy{Attempts: 5, Backoff: 2 * time.Second, Timeout: 60 * time.Second}
}

// DefaultTable is the stock policy: four tiers with five attempts each and a
// single reduced fallback for 5MIN_BEFORE.
func DefaultTable() Table {
	return Table{
		Retention: 24 * time.Hour,
		Tiers: []TierPolicy{
			{Tier: Tier24HBefore, Offset: 24 * time.Hour, Policy: defaultPolicy()},
			{Tier: Tier2HBefore, Offset: 2 * time.Hour, Policy: defaultPolicy()},
			{
				Tier:   Tier5MinBefore,
				Offset: 5 * time.Minute,
				Policy: defaultPolicy(),
				Fallback: &Fallback{
					Policy: Policy{Attempts: 3, Backoff: 2 * time.Second, Timeout: 30 * time.Second},
					Wait:   time.Second,
				},
			},
			{Tier: TierDue, Offset: 0, Policy: defaultPolicy()},
		},
	}
}

// LoadTable reads tier overrides from a YAML file on top of DefaultTable.
// Tiers missing from the file keep their defaults, and so do fields missing
// from a tier entry. A fallback can be removed with `fallback: null`. An
// empty path returns the defaults unchanged.
func LoadTable(path string) (Table, error) {
	table := DefaultTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read reminder tiers: %w", err)
	}

	var override tableFile
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Table{}, fmt.Errorf("parse reminder tiers: %w", err)
	}

	if override.Retention > 0 {
		table.Retention = override.Retention
	}
	for _, node := range override.Tiers {
		var head struct {
			Tier Tier `yaml:"tier"`
		}
		if err := node.Decode(&head); err != nil {
			return Table{}, fmt.Errorf("parse reminder tiers: %w", err)
		}
		i := table.index(head.Tier)
		if i < 0 {
			return Table{}, fmt.Errorf("unknown reminder tier %q", head.Tier)
		}

		// Fields absent from the entry keep their default values.
		tp := table.Tiers[i]
		if tp.Fallback != nil {
			fallback := *tp.Fallback
			tp.Fallback = &fallback
		}
		if err := node.Decode(&tp); err != nil {
			return Table{}, fmt.Errorf("parse reminder tier %s: %w", head.Tier, err)
		}
		table.Tiers[i] = tp
	}

	if err := table.Validate(); err != nil {
		return Table{}, err
	}
	return table, nil
}

func (t Table) index(tier Tier) int {
	for i, tp := range t.Tiers {
		if tp.Tier == tier {
			return i
		}
	}
	return -1
}

// Lookup returns the policy of tier.
func (t Table) Lookup(tier Tier) (TierPolicy, bool) {
	i := t.index(tier)
	if i < 0 {
		return TierPolicy{}, false
	}
	return t.Tiers[i], true
}

func (p Policy) validate(name string) error {
	if p.Attempts < 1 {
		return fmt.Errorf("reminder tier %s: attempts must be at least 1", name)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("reminder tier %s: timeout must be positive", name)
	}
	if p.Backoff < 0 {
		return fmt.Errorf("reminder tier %s: backoff must not be negative", name)
	}
	return nil
}

func (t Table) Validate() error {
	for _, tp := range t.Tiers {
		if tp.Offset < 0 {
			return fmt.Errorf("reminder tier %s: offset must not be negative", tp.Tier)
		}
		if err := tp.Policy.validate(string(tp.Tier)); err != nil {
			return err
		}
		if tp.Fallback != nil {
			if err := tp.Fallback.Policy.validate(string(tp.Tier) + " fallback"); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t Table) jobOptions(p Policy, delay time.Duration) queue.JobOptions {
	return queue.JobOptions{
		Attempts:  p.Attempts,
		Delay:     delay,
		Timeout:   p.Timeout,
		Retention: t.Retention,
	}
}

// Backoff returns the wait before retry n+1 of a tier: base * 2^n, capped.
func Backoff(base time.Duration, n int) time.Duration {
	if base <= 0 {
		return 0
	}
	if n < 0 {
		n = 0
	}
	d := float64(base) * math.Pow(2, float64(n))
	if d > float64(maxRetryDelay) {
		return maxRetryDelay
	}
	return time.Duration(d)
}

// RetryDelay is the worker's retry delay function. Reminder tasks back off
// exponentially from their tier's base; every other task uses asynq's
// default.
func (t Table) RetryDelay(n int, err error, task *asynq.Task) time.Duration {
	if task == nil || task.Type() != queue.TaskSendLeadFollowUpNotification {
		return asynq.DefaultRetryDelayFunc(n, err, task)
	}

	var payload queue.FollowUpNotificationPayload
	if jsonErr := json.Unmarshal(task.Payload(), &payload); jsonErr != nil {
		return asynq.DefaultRetryDelayFunc(n, err, task)
	}
	tp, ok := t.Lookup(Tier(payload.ReminderType))
	if !ok {
		return asynq.DefaultRetryDelayFunc(n, err, task)
	}
	return Backoff(tp.Backoff, n)
}
