package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"brokerage_backoffice/internal/email"
	"brokerage_backoffice/internal/employees"
	"brokerage_backoffice/internal/followups"
	"brokerage_backoffice/internal/followups/reminders"
	leaddomain "brokerage_backoffice/internal/leads/domain"
	leadrepo "brokerage_backoffice/internal/leads/repository"
	"brokerage_backoffice/internal/notification/inapp"
	"brokerage_backoffice/internal/queue"
	"brokerage_backoffice/platform/apperr"
	"brokerage_backoffice/platform/logger"
	"brokerage_backoffice/platform/metrics"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	resultDelivered = "delivered"
	resultStale     = "stale"
	resultNoOwner   = "no_recipient"
	resultFailed    = "failed"
)

type FollowUpReader interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (followups.FollowUp, error)
}

type LeadReader interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (leaddomain.Lead, error)
}

type Directory interface {
	Get(ctx context.Context, id uuid.UUID) (employees.Employee, error)
}

type Notifier interface {
	Send(ctx context.Context, p inapp.CreateParams) (bool, error)
}

// ReminderDelivery executes sendLeadFollowUpNotification tasks: it stores an
// in-app notification for the lead's owner and mails them.
type ReminderDelivery struct {
	followUps FollowUpReader
	leads     LeadReader
	directory Directory
	inbox     Notifier
	mail      email.Sender
	table     reminders.Table
	baseURL   string
	log       *logger.Logger
}

func NewReminderDelivery(
	followUps FollowUpReader,
	leads LeadReader,
	directory Directory,
	inbox Notifier,
	mail email.Sender,
	table reminders.Table,
	baseURL string,
	log *logger.Logger,
) *ReminderDelivery {
	if mail == nil {
		mail = email.NoopSender{}
	}
	return &ReminderDelivery{
		followUps: followUps,
		leads:     leads,
		directory: directory,
		inbox:     inbox,
		mail:      mail,
		table:     table,
		baseURL:   strings.TrimRight(baseURL, "/"),
		log:       log,
	}
}

func (d *ReminderDelivery) Handle(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParseFollowUpNotificationPayload(task)
	if err != nil {
		return err
	}
	return d.Deliver(ctx, payload)
}

func (d *ReminderDelivery) Deliver(ctx context.Context, p queue.FollowUpNotificationPayload) error {
	leadID, err := primitive.ObjectIDFromHex(p.LeadID)
	if err != nil {
		return queue.Invalid("invalid leadId %q", p.LeadID)
	}
	followUpID, err := primitive.ObjectIDFromHex(p.FollowUpID)
	if err != nil {
		return queue.Invalid("invalid followUpId %q", p.FollowUpID)
	}
	tier, ok := d.table.Lookup(reminders.Tier(p.ReminderType))
	if !ok {
		return queue.Invalid("unknown reminder tier %q", p.ReminderType)
	}
	if p.ScheduledTime.IsZero() {
		return queue.Invalid("scheduledTime is required")
	}

	log := d.log.WithContext(ctx).With(
		"followUpId", p.FollowUpID,
		"leadId", p.LeadID,
		"tier", p.ReminderType,
	)

	followUp, err := d.followUps.GetByID(ctx, followUpID)
	if errors.Is(err, followups.ErrNotFound) {
		log.Info("follow-up removed, reminder dropped")
		metrics.RecordReminderDelivery(p.ReminderType, resultStale)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load follow-up: %w", err)
	}
	if !followUp.IsPending(p.ScheduledTime) {
		log.Info("follow-up closed or rescheduled, reminder dropped",
			"status", followUp.Status,
			"scheduledAt", followUp.ScheduledAt,
		)
		metrics.RecordReminderDelivery(p.ReminderType, resultStale)
		return nil
	}

	lead, err := d.leads.GetByID(ctx, leadID)
	if errors.Is(err, leadrepo.ErrNotFound) {
		log.Warn("lead not found, reminder dropped")
		metrics.RecordReminderDelivery(p.ReminderType, resultStale)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load lead: %w", err)
	}

	recipientID := lead.UploadedBy
	if !lead.IsUnassigned() {
		recipientID = *lead.AssignedTo
	}
	recipient, err := d.directory.Get(ctx, recipientID)
	if apperr.Is(err, apperr.KindNotFound) {
		log.Warn("reminder recipient is not an employee", "recipientId", recipientID)
		metrics.RecordReminderDelivery(p.ReminderType, resultNoOwner)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}

	reminder := email.FollowUpReminder{
		RecipientName: recipient.Name,
		LeadName:      lead.Name,
		LeadPhone:     lead.Phone,
		FollowUpType:  string(followUp.Type),
		DueIn:         dueIn(tier.Offset),
		ScheduledAt:   followUp.ScheduledAt,
		Notes:         followUp.Notes,
		LeadURL:       d.baseURL + "/leads/" + lead.ID.Hex(),
	}

	created, err := d.inbox.Send(ctx, inapp.CreateParams{
		UserID:        recipient.ID,
		LeadID:        p.LeadID,
		FollowUpID:    p.FollowUpID,
		Tier:          p.ReminderType,
		ScheduledTime: p.ScheduledTime,
		Title:         title(reminder),
		Message:       message(reminder),
	})
	if err != nil {
		metrics.RecordReminderDelivery(p.ReminderType, resultFailed)
		return fmt.Errorf("store notification: %w", err)
	}
	if !created {
		log.Debug("in-app notification already stored")
	}

	if recipient.Email != "" {
		if err := d.mail.SendFollowUpReminder(ctx, recipient.Email, reminder); err != nil {
			metrics.RecordReminderDelivery(p.ReminderType, resultFailed)
			return fmt.Errorf("send reminder email: %w", err)
		}
	}

	metrics.RecordReminderDelivery(p.ReminderType, resultDelivered)
	log.Info("follow-up reminder delivered", "recipientId", recipient.ID)
	return nil
}

func label(kind string) string {
	return strings.ReplaceAll(strings.ToLower(kind), "_", " ")
}

func title(r email.FollowUpReminder) string {
	if r.DueIn == "" {
		return fmt.Sprintf("%s with %s is due now", capitalize(label(r.FollowUpType)), r.LeadName)
	}
	return fmt.Sprintf("%s with %s %s", capitalize(label(r.FollowUpType)), r.LeadName, r.DueIn)
}

func message(r email.FollowUpReminder) string {
	msg := fmt.Sprintf("Scheduled for %s.", r.ScheduledAt.Format("Mon 02 Jan 2006, 15:04 MST"))
	if r.LeadPhone != "" {
		msg += " Phone: " + r.LeadPhone + "."
	}
	if r.Notes != "" {
		msg += " Notes: " + r.Notes
	}
	return msg
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// dueIn renders a tier offset as "in 2 hours"; the DUE tier renders empty.
func dueIn(offset time.Duration) string {
	switch {
	case offset <= 0:
		return ""
	case offset%time.Hour == 0:
		return plural(int(offset/time.Hour), "hour")
	default:
		return plural(int(offset.Round(time.Minute)/time.Minute), "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "in 1 " + unit
	}
	return fmt.Sprintf("in %d %ss", n, unit)
}
