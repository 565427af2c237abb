package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TaskBulkAssignLeads = "bulkAssignLeads"

const TaskRevertBulkAssign = "revertBulkAssign"

const TaskSendLeadFollowUpNotification = "sendLeadFollowUpNotification"

type BulkAssignPayload struct {
	BatchID        string `json:"batchId"`
	Limit          int    `json:"limit"`
	AssignTo       string `json:"assignTo"`
	Status         string `json:"status"`
	UpdatedBy      string `json:"updatedBy"`
	AvailableCount int64  `json:"availableCount"`
}

type RevertBulkAssignPayload struct {
	BatchID    string `json:"batchId"`
	RevertedBy string `json:"revertedBy"`
}

// FollowUpNotificationPayload is one reminder tier for one follow-up.
// ScheduledTime is the follow-up time the reminder was computed against, so
// the worker can drop reminders whose follow-up has since moved.
type FollowUpNotificationPayload struct {
	LeadID        string    `json:"leadId"`
	FollowUpID    string    `json:"followUpId"`
	ScheduledTime time.Time `json:"scheduledTime"`
	ReminderType  string    `json:"reminderType"`
	FollowUpType  string    `json:"followUpType"`
}

func ParseBulkAssignPayload(task *asynq.Task) (BulkAssignPayload, error) {
	var payload BulkAssignPayload
	if err := decode(task, &payload); err != nil {
		return BulkAssignPayload{}, err
	}
	return payload, nil
}

func ParseRevertBulkAssignPayload(task *asynq.Task) (RevertBulkAssignPayload, error) {
	var payload RevertBulkAssignPayload
	if err := decode(task, &payload); err != nil {
		return RevertBulkAssignPayload{}, err
	}
	return payload, nil
}

func ParseFollowUpNotificationPayload(task *asynq.Task) (FollowUpNotificationPayload, error) {
	var payload FollowUpNotificationPayload
	if err := decode(task, &payload); err != nil {
		return FollowUpNotificationPayload{}, err
	}
	return payload, nil
}

// Malformed payloads never become valid on retry.
func decode(task *asynq.Task, v any) error {
	if err := json.Unmarshal(task.Payload(), v); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	return nil
}

// Invalid marks err as non-retryable.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), asynq.SkipRetry)
}
