// Package email delivers reminder mails to back-office staff.
package email

import (
	"context"
	"time"
)

// FollowUpReminder is the content of one reminder mail.
type FollowUpReminder struct {
	RecipientName string
	LeadName      string
	LeadPhone     string
	FollowUpType  string
	// DueIn is a human offset such as "in 2 hours"; empty means due now.
	DueIn       string
	ScheduledAt time.Time
	Notes       string
	LeadURL     string
}

type Sender interface {
	SendFollowUpReminder(ctx context.Context, toEmail string, reminder FollowUpReminder) error
}

// NoopSender is used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendFollowUpReminder(context.Context, string, FollowUpReminder) error {
	return nil
}
