package queue

import (
	"context"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBroker holds task states by id and serves as both the asynq client and
// inspector of a Client under test.
type fakeBroker struct {
	states   map[string]asynq.TaskState
	enqueues int
	deleted  []string
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{states: map[string]asynq.TaskState{}}
}

func (b *fakeBroker) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	b.enqueues++
	id := fmt.Sprintf("generated-%d", b.enqueues)
	for _, o := range opts {
		if o.Type() == asynq.TaskIDOpt {
			id = o.Value().(string)
		}
	}
	if _, taken := b.states[id]; taken {
		return nil, asynq.ErrTaskIDConflict
	}
	b.states[id] = asynq.TaskStatePending
	return &asynq.TaskInfo{ID: id, Type: task.Type(), State: asynq.TaskStatePending}, nil
}

func (b *fakeBroker) GetTaskInfo(_, id string) (*asynq.TaskInfo, error) {
	state, ok := b.states[id]
	if !ok {
		return nil, fmt.Errorf("asynq: %w", asynq.ErrTaskNotFound)
	}
	return &asynq.TaskInfo{ID: id, State: state}, nil
}

func (b *fakeBroker) DeleteTask(_, id string) error {
	if _, ok := b.states[id]; !ok {
		return fmt.Errorf("asynq: %w", asynq.ErrTaskNotFound)
	}
	delete(b.states, id)
	b.deleted = append(b.deleted, id)
	return nil
}

func (b *fakeBroker) Close() error { return nil }

func newTestClient(b *fakeBroker) *Client {
	return &Client{client: b, inspector: b, queue: "default"}
}

func TestEnqueueDuplicateTaskID(t *testing.T) {
	broker := newFakeBroker()
	client := newTestClient(broker)
	opts := JobOptions{Attempts: 3, TaskID: "revert:b1"}

	id, err := client.Enqueue(context.Background(), TaskRevertBulkAssign, RevertBulkAssignPayload{BatchID: "b1"}, opts)
	require.NoError(t, err)
	assert.Equal(t, "revert:b1", id)

	_, err = client.Enqueue(context.Background(), TaskRevertBulkAssign, RevertBulkAssignPayload{BatchID: "b1"}, opts)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestEnqueueResubmitReplacesFinishedTask(t *testing.T) {
	for _, state := range []asynq.TaskState{asynq.TaskStateArchived, asynq.TaskStateCompleted} {
		t.Run(state.String(), func(t *testing.T) {
			broker := newFakeBroker()
			broker.states["revert:b1"] = state
			client := newTestClient(broker)

			id, err := client.Enqueue(context.Background(), TaskRevertBulkAssign, RevertBulkAssignPayload{BatchID: "b1"},
				JobOptions{Attempts: 3, TaskID: "revert:b1", Resubmit: true})
			require.NoError(t, err)
			assert.Equal(t, "revert:b1", id)
			assert.Equal(t, []string{"revert:b1"}, broker.deleted)
			assert.Equal(t, asynq.TaskStatePending, broker.states["revert:b1"])
		})
	}
}

func TestEnqueueResubmitKeepsLiveTask(t *testing.T) {
	for _, state := range []asynq.TaskState{asynq.TaskStatePending, asynq.TaskStateActive, asynq.TaskStateRetry, asynq.TaskStateScheduled} {
		t.Run(state.String(), func(t *testing.T) {
			broker := newFakeBroker()
			broker.states["revert:b1"] = state
			client := newTestClient(broker)

			_, err := client.Enqueue(context.Background(), TaskRevertBulkAssign, RevertBulkAssignPayload{BatchID: "b1"},
				JobOptions{Attempts: 3, TaskID: "revert:b1", Resubmit: true})
			assert.ErrorIs(t, err, ErrDuplicate)
			assert.Empty(t, broker.deleted)
			assert.Equal(t, state, broker.states["revert:b1"])
		})
	}
}

func TestEnqueueWithoutResubmitLeavesArchivedTask(t *testing.T) {
	broker := newFakeBroker()
	broker.states["revert:b1"] = asynq.TaskStateArchived
	client := newTestClient(broker)

	_, err := client.Enqueue(context.Background(), TaskRevertBulkAssign, RevertBulkAssignPayload{BatchID: "b1"},
		JobOptions{Attempts: 3, TaskID: "revert:b1"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Empty(t, broker.deleted)
}
