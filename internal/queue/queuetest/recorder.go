// Package queuetest provides an in-memory queue for tests.
package queuetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"brokerage_backoffice/internal/queue"
)

// Job is one recorded enqueue.
type Job struct {
	ID       string
	TaskType string
	Payload  []byte
	Options  queue.JobOptions
}

// Decode unmarshals the recorded payload into v.
func (j Job) Decode(v any) error {
	return json.Unmarshal(j.Payload, v)
}

// Recorder implements queue.Enqueuer and queue.Prober.
// Fail, when set, is consulted before every enqueue; a non-nil result is returned
// as the enqueue error and nothing is recorded.
type Recorder struct {
	mu    sync.Mutex
	Jobs  []Job
	Calls int
	Down  bool
	Fail  func(call int, taskType string, payload any, opts queue.JobOptions) error
}

func (r *Recorder) Enqueue(_ context.Context, taskType string, payload any, opts queue.JobOptions) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Calls++
	if r.Fail != nil {
		if err := r.Fail(r.Calls, taskType, payload, opts); err != nil {
			return "", err
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	id := fmt.Sprintf("task-%d", len(r.Jobs)+1)
	r.Jobs = append(r.Jobs, Job{ID: id, TaskType: taskType, Payload: data, Options: opts})
	return id, nil
}

func (r *Recorder) Available(context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.Down
}

// Snapshot returns a copy of the recorded jobs.
func (r *Recorder) Snapshot() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Job, len(r.Jobs))
	copy(out, r.Jobs)
	return out
}
